package storage

import (
	"cmp"
	"errors"
	"fmt"
	"iter"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

// Store is the in-memory object store. Instances are keyed per object type by
// primary key; each link type has its own relationship index.
//
// mu guards objects and links. It is held for reading by View and lazy
// queries, and for writing only for the duration of an Update. Callers that
// need read-validate-write serialization across several instances take the
// per-instance locks from Lock first.
type Store struct {
	reg     *registry.Registry
	mu      sync.RWMutex
	objects map[string]map[string]Instance
	links   map[string]*edgeIndex
	locks   *LockTable
	journal Journal
	now     func() time.Time
	logger  *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithJournal persists committed changes to j.
func WithJournal(j Journal) Option {
	return func(s *Store) { s.journal = j }
}

// WithClock overrides the time source used for last_updated.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New creates an empty store for the object and link types of reg.
func New(reg *registry.Registry, opts ...Option) *Store {
	s := &Store{
		reg:     reg,
		objects: make(map[string]map[string]Instance),
		links:   make(map[string]*edgeIndex),
		locks:   NewLockTable(),
		journal: nopJournal{},
		now:     func() time.Time { return time.Now().UTC() },
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, ot := range reg.ObjectTypes() {
		s.objects[ot.Name] = make(map[string]Instance)
	}
	for _, lt := range reg.LinkTypes() {
		def := lt
		s.links[lt.Name] = newEdgeIndex(&def)
	}
	return s
}

// Registry returns the schema registry the store was built for.
func (s *Store) Registry() *registry.Registry { return s.reg }

// Close closes the journal.
func (s *Store) Close() error { return s.journal.Close() }

// Lock acquires the per-instance locks for keys in sorted order and returns
// the release function.
func (s *Store) Lock(keys ...Key) (unlock func()) {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = k.String()
	}
	return s.locks.Lock(names...)
}

// LockNames acquires arbitrary named locks in the same lock table as Lock.
// Used for selectors that do not resolve to an instance yet.
func (s *Store) LockNames(names ...string) (unlock func()) {
	return s.locks.Lock(names...)
}

// View runs fn against a consistent read snapshot.
func (s *Store) View(fn func(r Reader) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(reader{s: s})
}

// Update runs fn as a transaction. Every key in expect must currently have
// the given version (0 meaning absent) or ConcurrentModificationError is
// returned before fn runs. Any error from fn, from the journal or from a
// commit hook rolls every change back.
func (s *Store) Update(expect map[Key]uint64, fn func(tx *Tx) error) (ChangeSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, k := range sortedKeysOf(expect) {
		want := expect[k]
		var have uint64
		if inst, ok := s.objects[k.Type][k.ID]; ok {
			have = inst.Version
		}
		if have != want {
			return ChangeSet{}, &apperr.ConcurrentModificationError{
				Key: k.String(),
				Msg: fmt.Sprintf("expected version %d, found %d", want, have),
			}
		}
	}

	tx := newTx(s)
	if err := fn(tx); err != nil {
		tx.rollback()
		return ChangeSet{}, err
	}
	cs := tx.changeSet()
	if !cs.Empty() {
		if err := s.journal.Apply(cs); err != nil {
			tx.rollback()
			s.logger.Error("journal apply failed, transaction rolled back", zap.Error(err))
			return ChangeSet{}, fmt.Errorf("persist change set: %w", err)
		}
	}
	for _, hook := range tx.hooks {
		if err := hook(); err != nil {
			s.revert(tx, !cs.Empty())
			return ChangeSet{}, err
		}
	}
	return cs, nil
}

// revert undoes a transaction after its commit hooks failed. When the journal
// already holds the change set it is told to restore the previous state.
func (s *Store) revert(tx *Tx, journaled bool) {
	tx.rollback()
	if !journaled {
		return
	}
	if err := s.journal.Apply(tx.restoreSet()); err != nil {
		s.logger.Error("journal revert failed, persisted state is ahead of memory", zap.Error(err))
	}
}

// CreateInstance validates and stores a new instance.
func (s *Store) CreateInstance(typeName string, fields map[string]any) (Instance, error) {
	var out Instance
	_, err := s.Update(nil, func(tx *Tx) error {
		inst, err := tx.Create(typeName, fields)
		out = inst
		return err
	})
	return out, err
}

// GetInstance returns a copy of the instance.
func (s *Store) GetInstance(typeName, id string) (Instance, error) {
	var out Instance
	err := s.View(func(r Reader) error {
		inst, err := r.Get(typeName, id)
		out = inst
		return err
	})
	return out, err
}

// UpdateFields validates and merges the supplied fields.
func (s *Store) UpdateFields(typeName, id string, partial map[string]any) (Instance, error) {
	var out Instance
	_, err := s.Update(nil, func(tx *Tx) error {
		inst, err := tx.Update(typeName, id, partial)
		out = inst
		return err
	})
	return out, err
}

// DeleteInstance removes an instance. Live edges block the delete with a
// ReferentialIntegrityError unless cascade is set, in which case they are
// removed too.
func (s *Store) DeleteInstance(typeName, id string, cascade bool) error {
	_, err := s.Update(nil, func(tx *Tx) error {
		return tx.Delete(typeName, id, cascade)
	})
	return err
}

// AddLink records an edge.
func (s *Store) AddLink(link, from, to string) error {
	_, err := s.Update(nil, func(tx *Tx) error {
		return tx.Link(link, from, to)
	})
	return err
}

// RemoveLink deletes an edge.
func (s *Store) RemoveLink(link, from, to string) error {
	_, err := s.Update(nil, func(tx *Tx) error {
		return tx.Unlink(link, from, to)
	})
	return err
}

// Neighbors returns the ids linked to id through link, sorted.
func (s *Store) Neighbors(link, id string, dir Direction) ([]string, error) {
	var out []string
	err := s.View(func(r Reader) error {
		ids, err := r.Neighbors(link, id, dir)
		out = ids
		return err
	})
	return out, err
}

// Edges returns every edge of a link type ordered by source then target.
func (s *Store) Edges(link string) ([]Edge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	x, ok := s.links[link]
	if !ok {
		return nil, apperr.NotFound("link type", link)
	}
	return x.edges(), nil
}

// Count returns the number of instances of a type.
func (s *Store) Count(typeName string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects[typeName])
}

// QueryByType returns a lazy sequence of the instances of typeName that match
// pred (nil matches everything), ordered by id. Each iteration starts from a
// fresh listing of ids, so the sequence can be ranged over more than once;
// instances removed mid-iteration are skipped.
func (s *Store) QueryByType(typeName string, pred Predicate) (iter.Seq[Instance], error) {
	if _, err := s.reg.GetObjectType(typeName); err != nil {
		return nil, err
	}
	return func(yield func(Instance) bool) {
		s.mu.RLock()
		ids := sortedIDs(s.objects[typeName])
		s.mu.RUnlock()

		for _, id := range ids {
			s.mu.RLock()
			inst, ok := s.objects[typeName][id]
			if ok {
				inst = inst.Clone()
			}
			s.mu.RUnlock()
			if !ok || (pred != nil && !pred(inst)) {
				continue
			}
			if !yield(inst) {
				return
			}
		}
	}, nil
}

// Snapshot returns a deep copy of the full store state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{}
	for _, ot := range s.reg.ObjectTypes() {
		insts := s.objects[ot.Name]
		for _, id := range sortedIDs(insts) {
			snap.Instances = append(snap.Instances, insts[id].Clone())
		}
	}
	for _, lt := range s.reg.LinkTypes() {
		snap.Edges = append(snap.Edges, s.links[lt.Name].edges()...)
	}
	return snap
}

// Restore replaces the store contents with snap without journaling it.
// Instances are re-checked against their types and edges against cardinality.
func (s *Store) Restore(snap *Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	objects := make(map[string]map[string]Instance, len(s.objects))
	for name := range s.objects {
		objects[name] = make(map[string]Instance)
	}
	links := make(map[string]*edgeIndex, len(s.links))
	for name, x := range s.links {
		links[name] = newEdgeIndex(x.def)
	}

	var errs []error
	for _, inst := range snap.Instances {
		ot, err := s.reg.GetObjectType(inst.Type)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		fields, violations := conformCreate(ot, inst.Fields)
		if len(violations) > 0 {
			errs = append(errs, &apperr.SchemaViolationError{Type: inst.Type, ID: inst.ID, Violations: violations})
			continue
		}
		inst.Fields = fields
		inst.ID = fields[ot.PrimaryKey].(string)
		if inst.LastUpdated.IsZero() {
			inst.LastUpdated = s.now()
		}
		if inst.Version == 0 {
			inst.Version = 1
		}
		objects[inst.Type][inst.ID] = inst
	}
	for _, e := range snap.Edges {
		x, ok := links[e.Link]
		if !ok {
			errs = append(errs, apperr.NotFound("link type", e.Link))
			continue
		}
		_, fromOK := objects[x.def.SourceType][e.From]
		_, toOK := objects[x.def.TargetType][e.To]
		if !fromOK || !toOK {
			errs = append(errs, fmt.Errorf("edge %s %s -> %s: %w", e.Link, e.From, e.To, apperr.ErrReferentialIntegrity))
			continue
		}
		if x.has(e.From, e.To) {
			continue
		}
		if err := x.checkAdd(e.From, e.To); err != nil {
			errs = append(errs, err)
			continue
		}
		x.add(e.From, e.To)
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("restore snapshot: %w", err)
	}

	s.objects = objects
	s.links = links
	return nil
}

// Load restores the store from its journal. It reports false when the
// journal holds no instances.
func (s *Store) Load() (bool, error) {
	snap, err := s.journal.Load()
	if err != nil {
		return false, fmt.Errorf("load journal: %w", err)
	}
	if len(snap.Instances) == 0 {
		return false, nil
	}
	if err := s.Restore(snap); err != nil {
		return false, err
	}
	s.logger.Info("store loaded from journal",
		zap.Int("instances", len(snap.Instances)),
		zap.Int("edges", len(snap.Edges)))
	return true, nil
}

func sortedIDs(m map[string]Instance) []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

func sortedKeysOf(m map[Key]uint64) []Key {
	keys := make([]Key, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeys)
	return keys
}

func compareKeys(a, b Key) int {
	return cmp.Or(cmp.Compare(a.Type, b.Type), cmp.Compare(a.ID, b.ID))
}
