package storage

import (
	"fmt"
	"maps"
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// Tx is a write transaction opened by Store.Update. Every mutation records
// its inverse so the whole transaction can be undone.
type Tx struct {
	reader
	undo    []func()
	touched map[Key]bool
	order   []Key
	edges   []EdgeChange
	hooks   []func() error
}

var _ Reader = (*Tx)(nil)

func newTx(s *Store) *Tx {
	return &Tx{reader: reader{s: s}, touched: make(map[Key]bool)}
}

func (tx *Tx) touch(k Key) {
	if !tx.touched[k] {
		tx.touched[k] = true
		tx.order = append(tx.order, k)
	}
}

// Touched returns the keys written so far, in write order.
func (tx *Tx) Touched() []Key {
	return slices.Clone(tx.order)
}

func (tx *Tx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// OnCommit registers fn to run after the journal has accepted the
// transaction, while the write lock is still held. Hooks run in registration
// order. An error from a hook undoes the transaction, including what the
// journal persisted, and is returned from Update.
func (tx *Tx) OnCommit(fn func() error) {
	tx.hooks = append(tx.hooks, fn)
}

// restoreSet describes the state before tx for everything it touched. It is
// only meaningful after rollback.
func (tx *Tx) restoreSet() ChangeSet {
	cs := tx.changeSet()
	cs.Edges = make([]EdgeChange, len(tx.edges))
	for i, ch := range tx.edges {
		cs.Edges[len(tx.edges)-1-i] = EdgeChange{Edge: ch.Edge, Added: !ch.Added}
	}
	return cs
}

func (tx *Tx) changeSet() ChangeSet {
	var cs ChangeSet
	for _, k := range tx.order {
		if inst, ok := tx.s.objects[k.Type][k.ID]; ok {
			cs.Upserts = append(cs.Upserts, inst.Clone())
		} else {
			cs.Deletes = append(cs.Deletes, k)
		}
	}
	cs.Edges = slices.Clone(tx.edges)
	return cs
}

// put stores inst and records how to restore the previous state.
func (tx *Tx) put(inst Instance) {
	insts := tx.s.objects[inst.Type]
	prev, existed := insts[inst.ID]
	insts[inst.ID] = inst
	tx.touch(inst.Key())
	tx.undo = append(tx.undo, func() {
		if existed {
			insts[prev.ID] = prev
		} else {
			delete(insts, inst.ID)
		}
	})
}

func conformCreate(ot *dsl.ObjectType, fields map[string]any) (map[string]any, []apperr.Violation) {
	out, violations := dsl.Conform(ot.Properties, fields, dsl.ConformOptions{})
	if len(violations) > 0 {
		return nil, violations
	}
	if id, _ := out[ot.PrimaryKey].(string); id == "" {
		return nil, []apperr.Violation{{Field: ot.PrimaryKey, Message: "primary key must be a non-empty string"}}
	}
	return out, nil
}

// Create validates fields against the object type and inserts a new
// instance at version 1.
func (tx *Tx) Create(typeName string, fields map[string]any) (Instance, error) {
	ot, err := tx.s.reg.GetObjectType(typeName)
	if err != nil {
		return Instance{}, err
	}
	out, violations := conformCreate(ot, fields)
	if len(violations) > 0 {
		id, _ := fields[ot.PrimaryKey].(string)
		return Instance{}, &apperr.SchemaViolationError{Type: typeName, ID: id, Violations: violations}
	}
	id := out[ot.PrimaryKey].(string)
	if _, exists := tx.s.objects[typeName][id]; exists {
		return Instance{}, &apperr.DuplicateIdentifierError{Type: typeName, ID: id}
	}

	inst := Instance{Type: typeName, ID: id, Fields: out, Version: 1, LastUpdated: tx.s.now()}
	tx.put(inst)
	return inst.Clone(), nil
}

// Update validates only the supplied fields and merges them into the
// instance. The primary key cannot change.
func (tx *Tx) Update(typeName, id string, partial map[string]any) (Instance, error) {
	ot, err := tx.s.reg.GetObjectType(typeName)
	if err != nil {
		return Instance{}, err
	}
	cur, ok := tx.s.objects[typeName][id]
	if !ok {
		return Instance{}, apperr.NotFound(typeName, id)
	}

	out, violations := dsl.Conform(ot.Properties, partial, dsl.ConformOptions{Partial: true})
	if pk, ok := out[ot.PrimaryKey]; ok && pk != id {
		violations = append(violations, apperr.Violation{Field: ot.PrimaryKey, Message: "primary key is immutable"})
	}
	if len(violations) > 0 {
		return Instance{}, &apperr.SchemaViolationError{Type: typeName, ID: id, Violations: violations}
	}

	next := cur.Clone()
	maps.Copy(next.Fields, out)
	next.Version = cur.Version + 1
	next.LastUpdated = tx.s.now()
	tx.put(next)
	return next.Clone(), nil
}

// Delete removes an instance, or its edges too when cascade is set.
func (tx *Tx) Delete(typeName, id string, cascade bool) error {
	insts, ok := tx.s.objects[typeName]
	if !ok {
		return apperr.NotFound("object type", typeName)
	}
	prev, ok := insts[id]
	if !ok {
		return apperr.NotFound(typeName, id)
	}

	var live []Edge
	for _, lt := range tx.s.reg.LinkTypes() {
		live = append(live, tx.s.links[lt.Name].touching(typeName, id)...)
	}
	if len(live) > 0 && !cascade {
		var names []string
		for _, e := range live {
			names = append(names, e.Link)
		}
		slices.Sort(names)
		return &apperr.ReferentialIntegrityError{Type: typeName, ID: id, Links: slices.Compact(names)}
	}
	for _, e := range live {
		if err := tx.Unlink(e.Link, e.From, e.To); err != nil {
			return err
		}
	}

	delete(insts, id)
	tx.touch(prev.Key())
	tx.undo = append(tx.undo, func() { insts[id] = prev })
	return nil
}

// Link adds an edge between two existing instances. Adding an edge that
// already exists is a no-op.
func (tx *Tx) Link(link, from, to string) error {
	x, ok := tx.s.links[link]
	if !ok {
		return apperr.NotFound("link type", link)
	}
	if _, ok := tx.s.objects[x.def.SourceType][from]; !ok {
		return fmt.Errorf("link %s: %w", link, apperr.NotFound(x.def.SourceType, from))
	}
	if _, ok := tx.s.objects[x.def.TargetType][to]; !ok {
		return fmt.Errorf("link %s: %w", link, apperr.NotFound(x.def.TargetType, to))
	}
	if x.has(from, to) {
		return nil
	}
	if err := x.checkAdd(from, to); err != nil {
		return err
	}
	x.add(from, to)
	tx.edges = append(tx.edges, EdgeChange{Edge: Edge{Link: link, From: from, To: to}, Added: true})
	tx.undo = append(tx.undo, func() { x.remove(from, to) })
	return nil
}

// Unlink removes an edge.
func (tx *Tx) Unlink(link, from, to string) error {
	x, ok := tx.s.links[link]
	if !ok {
		return apperr.NotFound("link type", link)
	}
	if !x.remove(from, to) {
		return apperr.NotFound(link+" edge", from+" -> "+to)
	}
	tx.edges = append(tx.edges, EdgeChange{Edge: Edge{Link: link, From: from, To: to}, Added: false})
	tx.undo = append(tx.undo, func() { x.add(from, to) })
	return nil
}

// UnlinkAll removes every outgoing edge of from through link.
func (tx *Tx) UnlinkAll(link, from string) error {
	x, ok := tx.s.links[link]
	if !ok {
		return apperr.NotFound("link type", link)
	}
	for _, to := range x.neighbors(from, Outgoing) {
		if err := tx.Unlink(link, from, to); err != nil {
			return err
		}
	}
	return nil
}
