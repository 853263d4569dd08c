package dialog

import (
	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

var _ field.Prompter = (*Context)(nil)

// SelectRecord resolves typed text to a record of collection. Known
// labels select their record; unknown text offers to create a new record
// pre-filled from the text. It returns the record id, or nil for none.
// An empty answer keeps def.
func (c *Context) SelectRecord(label, collection string, def any) (any, error) {
	s, err := c.Env.Schema(collection)
	if err != nil {
		return nil, err
	}
	labels, err := s.Labels(c.Env)
	if err != nil {
		return nil, err
	}

	defText := ""
	if id, ok := store.AsInt(def); ok {
		if title, found := s.RecordTitle(c.Env, id); found {
			defText = title
			labels[title] = id
		}
	}

	input, id, matched, err := c.Autocomplete(label, defText, labels)
	if err != nil {
		return nil, err
	}
	switch {
	case input == "":
		return nil, nil
	case matched:
		return id, nil
	}

	create, err := c.Confirm("Create new "+s.Title()+" \""+input+"\"?", true)
	if err != nil {
		return nil, err
	}
	if !create {
		return nil, nil
	}
	rec, err := Create(c, collection, s.Defaults(input))
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return rec.ID(), nil
}
