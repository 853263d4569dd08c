package dialog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/arthur-debert/bookshelf/bookshelf/field"
	"github.com/arthur-debert/bookshelf/bookshelf/schema"
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// ErrReferenced is returned when records to delete are still referenced
var ErrReferenced = errors.New("records are still referenced")

// UnresolvedError lists inputs that do not name a record
type UnresolvedError struct {
	Table  string
	Inputs []string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("no %s with key or id %s", e.Table, strings.Join(e.Inputs, ", "))
}

// Policy decides what happens to records referring to deleted ones
type Policy int

const (
	// PolicyAbort refuses to delete referenced records
	PolicyAbort Policy = iota
	// PolicyDereference removes the references, then deletes
	PolicyDereference
	// PolicyCascade deletes the referring records too. It aborts when one
	// of those is referenced itself.
	PolicyCascade
)

// DeleteOptions controls the deletion dialog
type DeleteOptions struct {
	Policy    Policy
	NoSummary bool
	AssumeYes bool
}

type deletion struct {
	c       *Context
	table   string
	targets []store.Record
	refs    []schema.Referrer
}

// Delete resolves every input to a record, checks what refers to them,
// asks for confirmation and deletes them. Nothing is deleted when an
// input cannot be resolved or, under PolicyAbort, when a record is still
// referenced. It returns the number of deleted records of table.
func Delete(c *Context, table string, inputs []string, opts DeleteOptions) (int, error) {
	coll, err := c.Env.Collection(table)
	if err != nil {
		return 0, err
	}
	d := &deletion{c: c, table: table}

	seen := map[int64]bool{}
	var missing []string
	for _, input := range inputs {
		r, err := schema.FindRecord(coll, input)
		if errors.Is(err, store.ErrNotFound) {
			missing = append(missing, input)
			continue
		}
		if err != nil {
			return 0, err
		}
		if !seen[r.ID()] {
			seen[r.ID()] = true
			d.targets = append(d.targets, r)
		}
	}
	if len(missing) > 0 {
		return 0, &UnresolvedError{Table: table, Inputs: missing}
	}
	if len(d.targets) == 0 {
		c.Note("nothing to delete")
		return 0, nil
	}

	refs, err := schema.Referrers(c.Env, table, d.ids())
	if err != nil {
		return 0, err
	}
	d.refs = excludeTargets(refs, table, seen)

	if len(d.refs) > 0 {
		switch opts.Policy {
		case PolicyAbort:
			d.warnReferrers(d.refs)
			return 0, ErrReferenced
		case PolicyCascade:
			if err := d.checkCascade(); err != nil {
				return 0, err
			}
		}
	}

	if !opts.NoSummary {
		d.summary(opts.Policy)
	}
	if !opts.AssumeYes {
		ok, err := c.Confirm(fmt.Sprintf("Delete %d %s?", len(d.targets), plural(len(d.targets), table)), false)
		if err != nil {
			return 0, err
		}
		if !ok {
			c.Note("nothing deleted")
			return 0, nil
		}
	}

	if len(d.refs) > 0 {
		var err error
		switch opts.Policy {
		case PolicyDereference:
			err = d.dereference()
		case PolicyCascade:
			err = d.cascade()
		}
		if err != nil {
			return 0, err
		}
	}

	deleted := 0
	for _, r := range d.targets {
		ok, err := coll.DeleteByID(r.ID())
		if err != nil {
			return deleted, fmt.Errorf("delete %s %s: %w", table, r.Key(), err)
		}
		if ok {
			deleted++
		}
	}
	c.Success("deleted %d %s", deleted, plural(deleted, table))
	return deleted, nil
}

func plural(n int, table string) string {
	if n == 1 {
		return strings.TrimSuffix(table, "s")
	}
	return table
}

func (d *deletion) ids() []int64 {
	ids := make([]int64, len(d.targets))
	for i, r := range d.targets {
		ids[i] = r.ID()
	}
	return ids
}

// excludeTargets drops referring records that are themselves being deleted
func excludeTargets(refs []schema.Referrer, table string, targets map[int64]bool) []schema.Referrer {
	var out []schema.Referrer
	for _, ref := range refs {
		if ref.Reference.Origin != table {
			out = append(out, ref)
			continue
		}
		var kept []store.Record
		for _, r := range ref.Records {
			if !targets[r.ID()] {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out = append(out, schema.Referrer{Reference: ref.Reference, Records: kept})
		}
	}
	return out
}

func recordKeys(records []store.Record) string {
	keys := make([]string, len(records))
	for i, r := range records {
		keys[i] = r.Key()
	}
	return strings.Join(keys, ", ")
}

func (d *deletion) warnReferrers(refs []schema.Referrer) {
	for _, ref := range refs {
		d.c.Warning("%s.%s still refers to %s: %s", ref.Reference.Origin, ref.Reference.Field, d.table, recordKeys(ref.Records))
	}
}

// checkCascade refuses a cascade when a record it would delete is
// referenced by anything that is not deleted along with it.
func (d *deletion) checkCascade() error {
	doomed := map[string]map[int64]bool{d.table: {}}
	for _, r := range d.targets {
		doomed[d.table][r.ID()] = true
	}
	for _, ref := range d.refs {
		if doomed[ref.Reference.Origin] == nil {
			doomed[ref.Reference.Origin] = map[int64]bool{}
		}
		for _, r := range ref.Records {
			doomed[ref.Reference.Origin][r.ID()] = true
		}
	}

	var blocked []schema.Referrer
	for _, ref := range d.refs {
		ids := make([]int64, len(ref.Records))
		for i, r := range ref.Records {
			ids[i] = r.ID()
		}
		second, err := schema.Referrers(d.c.Env, ref.Reference.Origin, ids)
		if err != nil {
			return err
		}
		for _, s := range second {
			var kept []store.Record
			for _, r := range s.Records {
				if !doomed[s.Reference.Origin][r.ID()] {
					kept = append(kept, r)
				}
			}
			if len(kept) > 0 {
				blocked = append(blocked, schema.Referrer{Reference: s.Reference, Records: kept})
			}
		}
	}
	if len(blocked) > 0 {
		for _, ref := range blocked {
			d.c.Warning("%s.%s still refers to records that would be deleted: %s", ref.Reference.Origin, ref.Reference.Field, recordKeys(ref.Records))
		}
		return ErrReferenced
	}
	return nil
}

func (d *deletion) summary(policy Policy) {
	s, err := d.c.Env.Schema(d.table)
	if err != nil {
		return
	}
	for _, r := range d.targets {
		title, _ := s.RecordTitle(d.c.Env, r.ID())
		d.c.Printf("  %-30s %s\n", r.Key(), title)
	}
	for _, ref := range d.refs {
		switch policy {
		case PolicyDereference:
			d.c.Printf("  removing %d references from %s.%s\n", len(ref.Records), ref.Reference.Origin, ref.Reference.Field)
		case PolicyCascade:
			d.c.Printf("  also deleting %s through %s.%s: %s\n", ref.Reference.Origin, ref.Reference.Origin, ref.Reference.Field, recordKeys(ref.Records))
		}
	}
}

func (d *deletion) dereference() error {
	ids := map[int64]bool{}
	for _, r := range d.targets {
		ids[r.ID()] = true
	}
	for _, ref := range d.refs {
		coll, err := d.c.Env.Collection(ref.Reference.Origin)
		if err != nil {
			return err
		}
		for _, r := range ref.Records {
			current, err := coll.FindByID(r.ID())
			if err != nil {
				return err
			}
			current[ref.Reference.Field] = stripIDs(current[ref.Reference.Field], ref.Reference.Multi, ids)
			if _, err := coll.UpdateOrInsert(current); err != nil {
				return fmt.Errorf("dereference %s %s: %w", ref.Reference.Origin, current.Key(), err)
			}
		}
	}
	return nil
}

func stripIDs(v any, multi bool, ids map[int64]bool) any {
	if !multi {
		if id, ok := store.AsInt(v); ok && ids[id] {
			return nil
		}
		return v
	}
	kept := []any{}
	for _, item := range store.AsList(v) {
		if id, ok := store.AsInt(item); ok && ids[id] {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}

func (d *deletion) cascade() error {
	for _, ref := range d.refs {
		coll, err := d.c.Env.Collection(ref.Reference.Origin)
		if err != nil {
			return err
		}
		for _, r := range ref.Records {
			if _, err := coll.DeleteByID(r.ID()); err != nil {
				return fmt.Errorf("delete %s %s: %w", ref.Reference.Origin, r.Key(), err)
			}
			d.c.Note("deleted %s %s", strings.TrimSuffix(ref.Reference.Origin, "s"), field.ToString(r["key"]))
		}
	}
	return nil
}
