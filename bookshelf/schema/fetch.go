package schema

import (
	"github.com/arthur-debert/bookshelf/bookshelf/store"
)

// FetchFunc loads the records of another collection related to r
type FetchFunc func(env Env, r store.Record) ([]store.Record, error)

// Forward fetches the records of collection whose ids are stored in the
// local field.
func Forward(localField, collection string) FetchFunc {
	return func(env Env, r store.Record) ([]store.Record, error) {
		var ids []any
		for _, item := range store.AsList(r[localField]) {
			if id, ok := store.AsInt(item); ok {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return nil, nil
		}
		coll, err := env.Collection(collection)
		if err != nil {
			return nil, err
		}
		return coll.Find(store.Cond("id", store.OpIn, ids))
	}
}

// Reverse fetches the records of collection referring to r through any of
// the given fields.
func Reverse(collection string, fields ...string) FetchFunc {
	return func(env Env, r store.Record) ([]store.Record, error) {
		id := r.ID()
		if id == 0 {
			return nil, nil
		}
		coll, err := env.Collection(collection)
		if err != nil {
			return nil, err
		}
		preds := make([]store.Predicate, len(fields))
		for i, f := range fields {
			preds[i] = store.Cond(f, store.OpEqual, id)
		}
		return coll.Find(store.Or(preds...))
	}
}
