package storage

import (
	"iter"
	"reflect"
	"time"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// Predicate filters instances in queries.
type Predicate func(Instance) bool

// MatchFields returns a predicate that holds when every listed field equals
// the given value after normalization.
func MatchFields(match map[string]any) Predicate {
	if len(match) == 0 {
		return nil
	}
	want := make(map[string]any, len(match))
	for k, v := range match {
		want[k] = dsl.Normalize(v)
	}
	return func(inst Instance) bool {
		for field, v := range want {
			if field == "id" {
				if inst.ID != v {
					return false
				}
				continue
			}
			if !ValuesEqual(inst.Fields[field], v) {
				return false
			}
		}
		return true
	}
}

// ValuesEqual compares two normalized field values.
func ValuesEqual(a, b any) bool {
	return reflect.DeepEqual(dsl.Normalize(a), dsl.Normalize(b))
}

// Reader is a consistent read-only view of the store. Readers are only valid
// inside the View or Update callback that produced them.
type Reader interface {
	Get(typeName, id string) (Instance, error)
	// Find returns the first instance, by id, whose fields match.
	Find(typeName string, match map[string]any) (Instance, bool, error)
	Query(typeName string, pred Predicate) iter.Seq[Instance]
	Neighbors(link, id string, dir Direction) ([]string, error)
	HasEdge(link, from, to string) bool
	Count(typeName string) int
	Now() time.Time
}

// reader reads store state directly; the caller holds s.mu.
type reader struct {
	s *Store
}

func (r reader) Get(typeName, id string) (Instance, error) {
	insts, ok := r.s.objects[typeName]
	if !ok {
		return Instance{}, apperr.NotFound("object type", typeName)
	}
	inst, ok := insts[id]
	if !ok {
		return Instance{}, apperr.NotFound(typeName, id)
	}
	return inst.Clone(), nil
}

func (r reader) Find(typeName string, match map[string]any) (Instance, bool, error) {
	if _, ok := r.s.objects[typeName]; !ok {
		return Instance{}, false, apperr.NotFound("object type", typeName)
	}
	for inst := range r.Query(typeName, MatchFields(match)) {
		return inst, true, nil
	}
	return Instance{}, false, nil
}

func (r reader) Query(typeName string, pred Predicate) iter.Seq[Instance] {
	return func(yield func(Instance) bool) {
		insts := r.s.objects[typeName]
		for _, id := range sortedIDs(insts) {
			inst := insts[id]
			if pred != nil && !pred(inst) {
				continue
			}
			if !yield(inst.Clone()) {
				return
			}
		}
	}
}

func (r reader) Neighbors(link, id string, dir Direction) ([]string, error) {
	x, ok := r.s.links[link]
	if !ok {
		return nil, apperr.NotFound("link type", link)
	}
	return x.neighbors(id, dir), nil
}

func (r reader) HasEdge(link, from, to string) bool {
	x, ok := r.s.links[link]
	return ok && x.has(from, to)
}

func (r reader) Count(typeName string) int {
	return len(r.s.objects[typeName])
}

func (r reader) Now() time.Time {
	return r.s.now()
}
