package dialog

import (
	"fmt"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
)

// EditStruct runs the struct editor over the sub-fields of f.
func (c *Context) EditStruct(label string, f *field.Struct, values map[string]any) (map[string]any, error) {
	subs := f.Fields()
	original := make(map[string]any, len(subs))
	for _, sub := range subs {
		original[sub.Name()] = values[sub.Name()]
	}
	current := copyValues(original)
	titles := c.Titles()

	redraw := func() {
		for i, sub := range subs {
			marker := " "
			if !sameValue(original[sub.Name()], current[sub.Name()]) {
				marker = "~"
			}
			fmt.Fprintf(c.out, "%s %3d  %-16s %s\n", marker, i+1, sub.Label(), indent(sub.Format(titles, current[sub.Name()])))
		}
		fmt.Fprintln(c.out)
	}
	dirty := func() bool { return !sameValue(original, current) }

	var result map[string]any
	err := c.WithLayer(label, redraw, func(l *Layer) error {
		for {
			if err := l.Update(""); err != nil {
				return err
			}
			line, err := c.ReadLine("struct> ")
			if err != nil {
				return err
			}
			cmd := parseCommand(line)
			i := cmd.n - 1
			if cmd.n >= 0 && (i < 0 || i >= len(subs)) {
				c.Error("no field %d", cmd.n)
				continue
			}

			switch cmd.name {
			case "":
			case "?":
				c.Note("%s", structHelp)
			case "#":
				sub := subs[i]
				v, err := sub.Ask(c, current[sub.Name()])
				if err != nil {
					return err
				}
				current[sub.Name()] = v
			case "d#":
				sub := subs[i]
				if err := sub.Validate(sub.Empty()); err != nil {
					c.Error("%s cannot be cleared: %v", sub.Label(), err)
					continue
				}
				current[sub.Name()] = sub.Empty()
			case "r#":
				current[subs[i].Name()] = original[subs[i].Name()]
			case "r!":
				current = copyValues(original)
			case "w", "wq":
				result = current
				return nil
			case "q":
				if !dirty() {
					result = current
					return nil
				}
				choice, err := c.askExit()
				if err != nil {
					return err
				}
				switch choice {
				case exitSave:
					result = current
					return nil
				case exitDiscard:
					result = original
					return nil
				}
			case "q!":
				result = original
				return nil
			default:
				c.Error("unknown command %q, type ? for help", line)
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func copyValues(values map[string]any) map[string]any {
	out := make(map[string]any, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
