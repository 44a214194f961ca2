// Package audit keeps the append-only record of successful action
// invocations. Failed attempts are never recorded here.
package audit

import (
	"context"
	"slices"
	"sync"
	"time"
)

// Event is a notification emitted by an action.
type Event struct {
	Topic   string         `json:"topic"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Record is one successful action invocation.
type Record struct {
	ID            string         `json:"id"`
	Action        string         `json:"action"`
	TargetType    string         `json:"target_type"`
	TargetID      string         `json:"target_id"`
	Principal     string         `json:"principal"`
	PrincipalRole string         `json:"principal_role,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
	Parameters    map[string]any `json:"parameters"`
	Changed       []string       `json:"changed"`
	Events        []Event        `json:"events,omitempty"`
}

// Filter selects records. Zero fields match everything; Limit 0 means no limit.
type Filter struct {
	Action    string
	TargetID  string
	Principal string
	Limit     int
}

func (f Filter) match(r Record) bool {
	return (f.Action == "" || r.Action == f.Action) &&
		(f.TargetID == "" || r.TargetID == f.TargetID) &&
		(f.Principal == "" || r.Principal == f.Principal)
}

// Log is an append-only audit log.
type Log interface {
	Append(ctx context.Context, rec Record) error
	// List returns matching records, newest first.
	List(ctx context.Context, f Filter) ([]Record, error)
	Close() error
}

// selectNewest applies f to records held oldest first.
func selectNewest(records []Record, f Filter) []Record {
	var out []Record
	for _, r := range slices.Backward(records) {
		if !f.match(r) {
			continue
		}
		out = append(out, r)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out
}

// Memory keeps records in memory.
type Memory struct {
	mu      sync.RWMutex
	records []Record
}

var _ Log = (*Memory)(nil)

// NewMemory creates an empty in-memory log.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) Append(_ context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

func (m *Memory) List(_ context.Context, f Filter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return selectNewest(m.records, f), nil
}

// Len returns the number of records.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

func (m *Memory) Close() error { return nil }
