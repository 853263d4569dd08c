package dialog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// listItem pairs an original element with its current value. A nil orig
// is an addition, a nil cur a deletion.
type listItem struct {
	orig any
	cur  any
}

// listState is the working copy of a list being edited
type listState struct {
	items []listItem
}

func newListState(values []any) *listState {
	s := &listState{}
	for _, v := range values {
		if v != nil {
			s.items = append(s.items, listItem{orig: v, cur: v})
		}
	}
	return s
}

func sameValue(a, b any) bool {
	return reflect.DeepEqual(store.Normalize(a), store.Normalize(b))
}

// errDuplicate is returned when a value is already in the list
type errDuplicate struct{ value any }

func (e errDuplicate) Error() string {
	return fmt.Sprintf("%s is already in the list", field.ToString(e.value))
}

func (s *listState) indexOfCurrent(v any, except int) int {
	for i, item := range s.items {
		if i != except && item.cur != nil && sameValue(item.cur, v) {
			return i
		}
	}
	return -1
}

// add appends v. A value equal to a deleted original restores that
// element; a value already present is rejected.
func (s *listState) add(v any) error {
	if s.indexOfCurrent(v, -1) >= 0 {
		return errDuplicate{v}
	}
	for i, item := range s.items {
		if item.cur == nil && item.orig != nil && sameValue(item.orig, v) {
			s.items[i].cur = item.orig
			return nil
		}
	}
	s.items = append(s.items, listItem{cur: v})
	return nil
}

func (s *listState) valid(i int) bool { return i >= 0 && i < len(s.items) }

// set replaces the current value of element i
func (s *listState) set(i int, v any) error {
	if s.indexOfCurrent(v, i) >= 0 {
		return errDuplicate{v}
	}
	s.items[i].cur = v
	return nil
}

// remove marks element i deleted; additions are dropped
func (s *listState) remove(i int) {
	if s.items[i].orig == nil {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return
	}
	s.items[i].cur = nil
}

// restore sets element i back to its original value; additions are dropped
func (s *listState) restore(i int) error {
	item := s.items[i]
	if item.orig == nil {
		s.items = append(s.items[:i:i], s.items[i+1:]...)
		return nil
	}
	if s.indexOfCurrent(item.orig, i) >= 0 {
		return errDuplicate{item.orig}
	}
	s.items[i].cur = item.orig
	return nil
}

// move places element i at position to
func (s *listState) move(i, to int) {
	item := s.items[i]
	rest := append(s.items[:i:i], s.items[i+1:]...)
	if to > len(rest) {
		to = len(rest)
	}
	s.items = append(rest[:to:to], append([]listItem{item}, rest[to:]...)...)
}

// clear marks every original deleted and drops every addition
func (s *listState) clear() {
	kept := s.items[:0:0]
	for _, item := range s.items {
		if item.orig != nil {
			kept = append(kept, listItem{orig: item.orig})
		}
	}
	s.items = kept
}

// resetTo restores the original values in their original order
func (s *listState) resetTo(originals []any) {
	*s = *newListState(originals)
}

func (s *listState) dirty(originals []any) bool {
	return !sameValue(s.result(), newListState(originals).result())
}

// result returns the current values in display order
func (s *listState) result() []any {
	out := []any{}
	for _, item := range s.items {
		if item.cur != nil {
			out = append(out, item.cur)
		}
	}
	return out
}

func itemMarker(item listItem) string {
	switch {
	case item.orig == nil:
		return "+"
	case item.cur == nil:
		return "-"
	case !sameValue(item.orig, item.cur):
		return "~"
	}
	return " "
}

func indent(text string) string {
	return strings.ReplaceAll(text, "\n", "\n        ")
}

// EditList runs the list editor over values and returns the edited list.
func (c *Context) EditList(label string, f *field.List, values []any) ([]any, error) {
	originals := append([]any(nil), values...)
	state := newListState(originals)
	titles := c.Titles()

	redraw := func() {
		if len(state.items) == 0 {
			fmt.Fprintln(c.out, "  (empty)")
		}
		for i, item := range state.items {
			v := item.cur
			if v == nil {
				v = item.orig
			}
			fmt.Fprintf(c.out, "%s %3d  %s\n", itemMarker(item), i+1, indent(f.Of().Format(titles, v)))
		}
		fmt.Fprintln(c.out)
	}

	rejected := func(err error) {
		var dup errDuplicate
		if errors.As(err, &dup) {
			c.Warning("%s is already in the list", f.Of().Format(titles, dup.value))
			return
		}
		c.Warning("%v", err)
	}

	var result []any
	err := c.WithLayer(label, redraw, func(l *Layer) error {
		for {
			if err := l.Update(""); err != nil {
				return err
			}
			line, err := c.ReadLine("list> ")
			if err != nil {
				return err
			}
			cmd := parseCommand(line)
			i := cmd.n - 1

			switch cmd.name {
			case "":
			case "?":
				c.Note("%s", listHelp)
			case "#":
				if !state.valid(i) {
					c.Error("no element %d", cmd.n)
					continue
				}
				cur := state.items[i].cur
				if cur == nil {
					cur = state.items[i].orig
				}
				v, err := f.Of().Ask(c, cur)
				if err != nil {
					return err
				}
				if v == nil {
					continue
				}
				if err := state.set(i, v); err != nil {
					rejected(err)
				}
			case "s#":
				if !f.Sortable() {
					c.Error("%s cannot be reordered", f.Label())
					continue
				}
				if !state.valid(i) {
					c.Error("no element %d", cmd.n)
					continue
				}
				pos, err := c.Text("New position", "", nil)
				if err != nil {
					return err
				}
				to, ok := store.AsInt(pos)
				if !ok || to < 1 || int(to) > len(state.items) {
					c.Error("position must be between 1 and %d", len(state.items))
					continue
				}
				state.move(i, int(to)-1)
			case "d#":
				if !state.valid(i) {
					c.Error("no element %d", cmd.n)
					continue
				}
				state.remove(i)
			case "r#":
				if !state.valid(i) {
					c.Error("no element %d", cmd.n)
					continue
				}
				if err := state.restore(i); err != nil {
					rejected(err)
				}
			case "a", "n", "c":
				v, err := f.Of().Ask(c, nil)
				if err != nil {
					return err
				}
				if v == nil {
					continue
				}
				if err := state.add(v); err != nil {
					rejected(err)
				}
			case "d!":
				state.clear()
			case "r!":
				state.resetTo(originals)
			case "w", "wq":
				result = state.result()
				return nil
			case "q":
				if !state.dirty(originals) {
					result = state.result()
					return nil
				}
				choice, err := c.askExit()
				if err != nil {
					return err
				}
				switch choice {
				case exitSave:
					result = state.result()
					return nil
				case exitDiscard:
					result = newListState(originals).result()
					return nil
				}
			case "q!":
				result = newListState(originals).result()
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
