package storage

// EdgeChange is an edge added or removed by a transaction.
type EdgeChange struct {
	Edge  Edge `json:"edge"`
	Added bool `json:"added"`
}

// ChangeSet is the net effect of a committed transaction, in application order.
type ChangeSet struct {
	Upserts []Instance   `json:"upserts,omitempty"`
	Deletes []Key        `json:"deletes,omitempty"`
	Edges   []EdgeChange `json:"edges,omitempty"`
}

// Empty reports whether the change set carries no changes.
func (cs ChangeSet) Empty() bool {
	return len(cs.Upserts) == 0 && len(cs.Deletes) == 0 && len(cs.Edges) == 0
}

// Keys returns every instance key the change set touched.
func (cs ChangeSet) Keys() []Key {
	out := make([]Key, 0, len(cs.Upserts)+len(cs.Deletes))
	for _, inst := range cs.Upserts {
		out = append(out, inst.Key())
	}
	return append(out, cs.Deletes...)
}

// Snapshot is the full store state.
type Snapshot struct {
	Instances []Instance `json:"instances"`
	Edges     []Edge     `json:"edges"`
}

// Journal persists committed change sets. Apply is called while the store's
// write lock is held; an error rolls the in-memory commit back.
type Journal interface {
	Apply(cs ChangeSet) error
	Load() (*Snapshot, error)
	Close() error
}

// nopJournal keeps state in memory only.
type nopJournal struct{}

func (nopJournal) Apply(ChangeSet) error      { return nil }
func (nopJournal) Load() (*Snapshot, error)   { return &Snapshot{}, nil }
func (nopJournal) Close() error               { return nil }
