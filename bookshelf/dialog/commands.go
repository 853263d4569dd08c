package dialog

import (
	"regexp"
	"strconv"
	"strings"
)

type command struct {
	name string
	n    int
}

var numberedRe = regexp.MustCompile(`^([sdr]?)(\d+)$`)

// parseCommand reads editor commands: "3" edits element 3, "s3", "d3" and
// "r3" move, delete and restore it. Anything else is returned by name.
func parseCommand(line string) command {
	line = strings.TrimSpace(line)
	if m := numberedRe.FindStringSubmatch(line); m != nil {
		n, _ := strconv.Atoi(m[2])
		return command{name: m[1] + "#", n: n}
	}
	return command{name: line, n: -1}
}

const listHelp = `Commands:
  #     edit element #
  s#    move element # to a new position
  d#    delete element #
  r#    restore element #
  a     add an element (also n, c)
  d!    delete all elements
  r!    restore all elements
  w     save and return (also wq)
  q     return, asking about unsaved changes
  q!    discard changes and return
  ?     show this help`

const structHelp = `Commands:
  #     edit field #
  d#    clear field #
  r#    restore field #
  r!    restore all fields
  w     save and return (also wq)
  q     return, asking about unsaved changes
  q!    discard changes and return
  ?     show this help`

const recordHelp = `Commands:
  #     edit field # (0 is the key)
  d#    clear field #
  r#    restore field #
  d!    delete this record
  r!    restore all fields
  w     save
  wq    save and quit
  q     quit, asking about unsaved changes
  q!    discard changes and quit
  ?     show this help`
