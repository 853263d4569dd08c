// Package isbn validates ISBN-10 and ISBN-13 numbers and formats them with
// hyphens between prefix, registration group, registrant, publication and
// check digit.
package isbn

import (
	"errors"
	"strings"
)

var (
	// ErrLength is returned when the input has neither 10 nor 13 digits
	ErrLength = errors.New("isbn must have 10 or 13 digits")
	// ErrChecksum is returned when the check digit does not match
	ErrChecksum = errors.New("isbn check digit does not match")
	// ErrCharacters is returned on characters other than digits, X, spaces and hyphens
	ErrCharacters = errors.New("isbn contains invalid characters")
)

// Clean strips spaces and hyphens and upper-cases a trailing x.
func Clean(s string) (string, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		case r == '-' || r == ' ':
		default:
			return "", ErrCharacters
		}
	}
	digits := b.String()
	if idx := strings.IndexByte(digits, 'X'); idx >= 0 && idx != len(digits)-1 {
		return "", ErrCharacters
	}
	return digits, nil
}

// Format10 validates an ISBN-10 and returns its hyphenated form.
func Format10(s string) (string, error) {
	digits, err := Clean(s)
	if err != nil {
		return "", err
	}
	if len(digits) != 10 {
		return "", ErrLength
	}
	if checkDigit10(digits[:9]) != digits[9] {
		return "", ErrChecksum
	}
	return hyphenate("978", digits[:9], digits[9:]), nil
}

// Format13 validates an ISBN-13 and returns its hyphenated form.
func Format13(s string) (string, error) {
	digits, err := Clean(s)
	if err != nil {
		return "", err
	}
	if len(digits) != 13 || strings.Contains(digits, "X") {
		return "", ErrLength
	}
	if digits[:3] != "978" && digits[:3] != "979" {
		return "", ErrChecksum
	}
	if checkDigit13(digits[:12]) != digits[12] {
		return "", ErrChecksum
	}
	return digits[:3] + "-" + hyphenate(digits[:3], digits[3:12], digits[12:]), nil
}

// Format accepts either form.
func Format(s string) (string, error) {
	digits, err := Clean(s)
	if err != nil {
		return "", err
	}
	switch len(digits) {
	case 10:
		return Format10(digits)
	case 13:
		return Format13(digits)
	}
	return "", ErrLength
}

// To13 converts a valid ISBN-10 into its ISBN-13 equivalent.
func To13(s string) (string, error) {
	if _, err := Format10(s); err != nil {
		return "", err
	}
	digits, _ := Clean(s)
	body := "978" + digits[:9]
	return Format13(body + string(checkDigit13(body)))
}

func checkDigit10(body string) byte {
	sum := 0
	for i := 0; i < 9; i++ {
		sum += int(body[i]-'0') * (10 - i)
	}
	check := (11 - sum%11) % 11
	if check == 10 {
		return 'X'
	}
	return byte('0' + check)
}

func checkDigit13(body string) byte {
	sum := 0
	for i := 0; i < 12; i++ {
		d := int(body[i] - '0')
		if i%2 == 1 {
			d *= 3
		}
		sum += d
	}
	return byte('0' + (10-sum%10)%10)
}

// hyphenate splits body (everything after the EAN prefix except the check
// digit) into group, registrant and publication.
func hyphenate(prefix, body, check string) string {
	groupLen := groupLength(prefix, body)
	if groupLen == 0 || groupLen >= len(body) {
		return body + "-" + check
	}
	group, rest := body[:groupLen], body[groupLen:]
	pubLen := registrantLength(registrantRanges(prefix, group), rest)
	if pubLen == 0 || pubLen >= len(rest) {
		return group + "-" + rest + "-" + check
	}
	return group + "-" + rest[:pubLen] + "-" + rest[pubLen:] + "-" + check
}

func groupLength(prefix, body string) int {
	if prefix == "979" {
		switch {
		case strings.HasPrefix(body, "8"):
			return 1
		case body[:2] >= "10" && body[:2] <= "12":
			return 2
		}
		return 0
	}
	switch {
	case body[0] <= '5' || body[0] == '7':
		return 1
	case body[:3] >= "600" && body[:3] <= "649":
		return 3
	case body[:2] == "65":
		return 2
	case body[:2] >= "80" && body[:2] <= "94":
		return 2
	case body[:3] >= "950" && body[:3] <= "989":
		return 3
	case body[:4] >= "9900" && body[:4] <= "9989":
		return 4
	case body[:5] >= "99900":
		return 5
	}
	return 0
}

// registrantLength finds the range containing the first seven digits of
// rest; each range is given as its lowest and highest registrant.
func registrantLength(ranges [][2]string, rest string) int {
	probe := (rest + "0000000")[:7]
	for _, r := range ranges {
		lo := (r[0] + "0000000")[:7]
		hi := (r[1] + "9999999")[:7]
		if probe >= lo && probe <= hi {
			return len(r[0])
		}
	}
	return 0
}

var standardRanges = [][2]string{
	{"00", "19"}, {"200", "699"}, {"7000", "8499"}, {"85000", "89999"},
	{"900000", "949999"}, {"9500000", "9999999"},
}

var groupRanges = map[string][][2]string{
	"978-0": {
		{"00", "19"}, {"200", "227"}, {"2280", "2289"}, {"229", "368"}, {"3690", "3699"},
		{"370", "638"}, {"6390", "6397"}, {"6398000", "6399999"}, {"640", "644"},
		{"6450000", "6459999"}, {"646", "647"}, {"6480000", "6489999"}, {"649", "654"},
		{"6550", "6559"}, {"656", "699"}, {"7000", "8499"}, {"85000", "89999"},
		{"900000", "949999"}, {"9500000", "9999999"},
	},
	"978-1": {
		{"00", "09"}, {"100", "399"}, {"4000", "5499"}, {"55000", "86979"},
		{"869800", "998999"}, {"9990000", "9999999"},
	},
	"978-3": {
		{"00", "02"}, {"030", "033"}, {"0340", "0369"}, {"03700", "03999"}, {"04", "19"},
		{"200", "699"}, {"7000", "8499"}, {"85000", "89999"}, {"900000", "949999"},
		{"9500000", "9539999"}, {"95400", "96999"}, {"9700000", "9849999"}, {"98500", "99999"},
	},
	"979-10": {
		{"00", "19"}, {"200", "699"}, {"7000", "8999"}, {"90000", "97599"}, {"976000", "999999"},
	},
}

func registrantRanges(prefix, group string) [][2]string {
	if ranges, ok := groupRanges[prefix+"-"+group]; ok {
		return ranges
	}
	return standardRanges
}
