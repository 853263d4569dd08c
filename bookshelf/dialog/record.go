package dialog

import (
	"errors"
	"fmt"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
	"github.com/arthur-debert/bookshelf/internal/validation"
)

type recordEditor struct {
	c      *Context
	table  string
	schema *schema.Schema
	coll   *store.Collection

	// base is the last saved state, or the initial values of a new record
	base      store.Record
	cur       store.Record
	persisted bool
	deleted   bool
}

func newRecordEditor(c *Context, table string, r store.Record) (*recordEditor, error) {
	s, err := c.Env.Schema(table)
	if err != nil {
		return nil, err
	}
	coll, err := c.Env.Collection(table)
	if err != nil {
		return nil, err
	}
	e := &recordEditor{c: c, table: table, schema: s, coll: coll, base: r.Clone()}
	if id := r.ID(); id > 0 {
		if _, err := coll.FindByID(id); err == nil {
			e.persisted = true
		}
	}
	e.cur = e.base.Clone()
	return e, nil
}

func (e *recordEditor) label() string {
	if !e.persisted {
		return "New " + e.schema.Title()
	}
	return fmt.Sprintf("%s %s", e.schema.Title(), e.base.Key())
}

func (e *recordEditor) dirty() bool {
	return !sameValue(map[string]any(e.base), map[string]any(e.cur))
}

func (e *recordEditor) redraw() {
	titles := e.c.Titles()
	marker := func(name string) string {
		if !sameValue(e.base[name], e.cur[name]) {
			return "~"
		}
		return " "
	}
	fmt.Fprintf(e.c.out, "%s %3d  %-18s %s\n", marker("key"), 0, "Key", e.cur.Key())
	for i, f := range e.schema.Fields() {
		fmt.Fprintf(e.c.out, "%s %3d  %-18s %s\n", marker(f.Name()), i+1, f.Label(), indent(f.Format(titles, e.cur[f.Name()])))
	}
	fmt.Fprintln(e.c.out)
}

func (e *recordEditor) field(n int) (field.Field, bool) {
	fields := e.schema.Fields()
	if n < 1 || n > len(fields) {
		return nil, false
	}
	return fields[n-1], true
}

func (e *recordEditor) askKey() error {
	def := e.cur.Key()
	if def == "" {
		key, err := e.schema.CreateKey(e.c.Env, e.cur)
		if err != nil {
			return err
		}
		def = key
	}
	var exceptID int64
	if e.persisted {
		exceptID = e.base.ID()
	}
	key, err := e.c.Text("Key", def, validation.NewKey(e.coll, exceptID))
	if err != nil {
		return err
	}
	e.cur["key"] = key
	return nil
}

// save writes the working copy. On failure the error is reported and the
// working copy stays as it is.
func (e *recordEditor) save() bool {
	for _, f := range e.schema.Fields() {
		if err := f.Validate(e.cur[f.Name()]); err != nil {
			e.c.Error("%s: %v", f.Label(), err)
			return false
		}
	}
	saved, err := e.coll.UpdateOrInsert(e.cur.Clone())
	if err != nil {
		e.c.Error("could not save: %v", err)
		return false
	}
	e.base = saved
	e.cur = saved.Clone()
	e.persisted = true
	e.c.Success("saved %s %s", e.schema.Title(), saved.Key())
	return true
}

func (e *recordEditor) result() store.Record {
	if !e.persisted || e.deleted {
		return nil
	}
	return e.base.Clone()
}

func (e *recordEditor) run() (store.Record, error) {
	err := e.c.WithLayer(e.label(), e.redraw, func(l *Layer) error {
		for {
			if err := l.Update(e.label()); err != nil {
				return err
			}
			line, err := e.c.ReadLine("edit> ")
			if err != nil {
				return err
			}
			done, err := e.dispatch(line)
			if err != nil || done {
				return err
			}
		}
	})
	if err != nil {
		return nil, err
	}
	return e.result(), nil
}

func (e *recordEditor) dispatch(line string) (done bool, err error) {
	cmd := parseCommand(line)
	switch cmd.name {
	case "":
	case "?":
		e.c.Note("%s", recordHelp)
	case "#":
		if cmd.n == 0 {
			return false, e.askKey()
		}
		f, ok := e.field(cmd.n)
		if !ok {
			e.c.Error("no field %d", cmd.n)
			return false, nil
		}
		v, err := f.Ask(e.c, e.cur[f.Name()])
		if err != nil {
			return false, err
		}
		e.cur[f.Name()] = v
	case "d#":
		if cmd.n == 0 {
			e.c.Error("the key cannot be cleared")
			return false, nil
		}
		f, ok := e.field(cmd.n)
		if !ok {
			e.c.Error("no field %d", cmd.n)
			return false, nil
		}
		if err := f.Validate(f.Empty()); err != nil {
			e.c.Error("%s cannot be cleared: %v", f.Label(), err)
			return false, nil
		}
		e.cur[f.Name()] = f.Empty()
	case "r#":
		name := "key"
		if cmd.n > 0 {
			f, ok := e.field(cmd.n)
			if !ok {
				e.c.Error("no field %d", cmd.n)
				return false, nil
			}
			name = f.Name()
		}
		if v, ok := e.base[name]; ok {
			e.cur[name] = v
		} else {
			delete(e.cur, name)
		}
	case "d!":
		if !e.persisted {
			e.c.Error("this %s is not saved yet", e.schema.Title())
			return false, nil
		}
		n, err := Delete(e.c, e.table, []string{e.base.Key()}, DeleteOptions{})
		if errors.Is(err, ErrReferenced) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		if n > 0 {
			e.deleted = true
			return true, nil
		}
	case "r!":
		e.cur = e.base.Clone()
	case "w":
		e.save()
	case "wq":
		return e.save(), nil
	case "q":
		if !e.dirty() {
			return true, nil
		}
		choice, err := e.c.askExit()
		if err != nil {
			return false, err
		}
		switch choice {
		case exitSave:
			return e.save(), nil
		case exitDiscard:
			e.cur = e.base.Clone()
			return true, nil
		}
	case "q!":
		e.cur = e.base.Clone()
		return true, nil
	default:
		e.c.Error("unknown command %q, type ? for help", line)
	}
	return false, nil
}

// EditRecord opens the record editor. It returns the last saved state of
// the record, nil when it was never saved or got deleted.
func EditRecord(c *Context, table string, r store.Record) (store.Record, error) {
	e, err := newRecordEditor(c, table, r)
	if err != nil {
		return nil, err
	}
	return e.run()
}

// Edit loads a record by key or id and opens the record editor on it.
func Edit(c *Context, table, keyOrID string) (store.Record, error) {
	coll, err := c.Env.Collection(table)
	if err != nil {
		return nil, err
	}
	r, err := schema.FindRecord(coll, keyOrID)
	if err != nil {
		return nil, err
	}
	return EditRecord(c, table, r)
}

// Create asks for every field of a new record, then for its key, and then
// opens the record editor. The record is stored once the editor saves it.
func Create(c *Context, table string, defaults store.Record) (store.Record, error) {
	s, err := c.Env.Schema(table)
	if err != nil {
		return nil, err
	}
	rec := defaults.Clone()
	if rec == nil {
		rec = store.Record{}
	}
	delete(rec, "id")
	e, err := newRecordEditor(c, table, rec)
	if err != nil {
		return nil, err
	}

	err = c.WithLayer("New "+s.Title(), nil, func(l *Layer) error {
		if err := l.Update(""); err != nil {
			return err
		}
		for _, f := range s.Fields() {
			v, err := f.Ask(c, e.cur[f.Name()])
			if err != nil {
				return err
			}
			e.cur[f.Name()] = v
		}
		return e.askKey()
	})
	if err != nil {
		return nil, err
	}
	return e.run()
}
