package dialog

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/arthur-debert/bookshelf/internal/validation"
)

// ReadLine writes prompt and reads one line without its line ending.
func (c *Context) ReadLine(prompt string) (string, error) {
	fmt.Fprint(c.out, prompt)
	line, err := c.in.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return strings.TrimRight(line, "\r\n"), nil
		}
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(c.out)
			return "", ErrInputClosed
		}
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func promptLabel(label, def string) string {
	if def == "" {
		return label + ": "
	}
	return fmt.Sprintf("%s [%s]: ", label, strings.ReplaceAll(def, "\n", ", "))
}

// Text reads a line and validates it, re-asking on validation errors. An
// empty answer takes the default.
func (c *Context) Text(label, def string, v validation.Validator) (any, error) {
	for {
		line, err := c.ReadLine(promptLabel(label, def))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(line) == "" {
			line = def
		}
		if v == nil {
			return line, nil
		}
		out, err := v.Validate(line)
		if err == nil {
			return out, nil
		}
		if !validation.IsValidationError(err) {
			return nil, err
		}
		c.write(Message{Kind: KindError, Text: err.Error()})
	}
}

// Choose lists options and reads an index. An empty answer keeps def,
// "-" clears the choice and returns -1.
func (c *Context) Choose(label string, options []string, def int) (int, error) {
	for i, opt := range options {
		fmt.Fprintf(c.out, "  %2d  %s\n", i, opt)
	}
	defLabel := ""
	if def >= 0 && def < len(options) {
		defLabel = options[def]
	}
	indexes := make([]any, len(options))
	for i := range options {
		indexes[i] = i
	}
	byIndex := validation.Option(indexes...)
	for {
		line, err := c.ReadLine(promptLabel(label, defLabel))
		if err != nil {
			return -1, err
		}
		line = strings.TrimSpace(line)
		switch line {
		case "":
			return def, nil
		case "-":
			return -1, nil
		}
		if i, err := byIndex.Validate(line); err == nil {
			return i.(int), nil
		}
		if i := matchOption(options, line); i >= 0 {
			return i, nil
		}
		c.write(Message{Kind: KindError, Text: fmt.Sprintf("%q is not one of the options", line)})
	}
}

func matchOption(options []string, input string) int {
	for i, opt := range options {
		if strings.EqualFold(opt, input) {
			return i
		}
	}
	return -1
}

// Confirm asks a yes/no question
func (c *Context) Confirm(question string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		line, err := c.ReadLine(fmt.Sprintf("%s [%s] ", question, hint))
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			return def, nil
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}

// Autocomplete reads a line and resolves it against labels, ignoring
// case. Typing "?" after some text lists the labels starting with it. The raw input is
// returned with matched false when nothing matches. Input matching several
// records only up to case lists them and asks again.
func (c *Context) Autocomplete(label, def string, labels map[string]int64) (input string, id int64, matched bool, err error) {
	for {
		line, err := c.ReadLine(promptLabel(label, def))
		if err != nil {
			return "", 0, false, err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			line = def
		}
		if prefix, listing := strings.CutSuffix(line, "?"); listing {
			for _, candidate := range candidates(labels, prefix) {
				fmt.Fprintf(c.out, "  %s\n", candidate)
			}
			continue
		}
		if line == "" {
			return "", 0, false, nil
		}
		id, ambiguous := resolveLabel(labels, line)
		if len(ambiguous) > 0 {
			fmt.Fprintf(c.out, "%q matches several entries:\n", line)
			for _, candidate := range ambiguous {
				fmt.Fprintf(c.out, "  %s\n", candidate)
			}
			continue
		}
		return line, id, id != 0, nil
	}
}

func candidates(labels map[string]int64, prefix string) []string {
	prefix = strings.ToLower(prefix)
	var out []string
	for label := range labels {
		if strings.HasPrefix(strings.ToLower(label), prefix) {
			out = append(out, label)
		}
	}
	sort.Strings(out)
	return out
}

// resolveLabel finds the id of input, trying the exact label first. Labels
// equal to input up to case and naming different ids are returned sorted
// instead, with a zero id.
func resolveLabel(labels map[string]int64, input string) (int64, []string) {
	if id, ok := labels[input]; ok {
		return id, nil
	}
	var folded []string
	for label := range labels {
		if strings.EqualFold(label, input) {
			folded = append(folded, label)
		}
	}
	if len(folded) == 0 {
		return 0, nil
	}
	sort.Strings(folded)
	id := labels[folded[0]]
	for _, label := range folded[1:] {
		if labels[label] != id {
			return 0, folded
		}
	}
	return id, nil
}

// exitChoice is the answer to quitting with unsaved changes
type exitChoice int

const (
	exitSave exitChoice = iota
	exitDiscard
	exitCancel
)

func (c *Context) askExit() (exitChoice, error) {
	for {
		line, err := c.ReadLine("Unsaved changes: [s]ave, [d]iscard or [c]ancel? ")
		if err != nil {
			return exitCancel, err
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "s", "save":
			return exitSave, nil
		case "d", "discard":
			return exitDiscard, nil
		case "c", "cancel", "":
			return exitCancel, nil
		}
	}
}
