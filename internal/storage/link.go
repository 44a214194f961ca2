package storage

import (
	"slices"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// Direction selects which side of a link to traverse.
type Direction string

// Traversal directions.
const (
	Outgoing Direction = "outgoing"
	Incoming Direction = "incoming"
)

// Edge is one relationship between two instances.
type Edge struct {
	Link string `json:"link"`
	From string `json:"from"`
	To   string `json:"to"`
}

// edgeIndex is the bidirectional adjacency index of one link type.
type edgeIndex struct {
	def     *dsl.LinkType
	forward map[string]map[string]struct{}
	inverse map[string]map[string]struct{}
}

func newEdgeIndex(def *dsl.LinkType) *edgeIndex {
	return &edgeIndex{
		def:     def,
		forward: make(map[string]map[string]struct{}),
		inverse: make(map[string]map[string]struct{}),
	}
}

func (x *edgeIndex) has(from, to string) bool {
	_, ok := x.forward[from][to]
	return ok
}

// checkAdd enforces cardinality for a new edge from -> to.
func (x *edgeIndex) checkAdd(from, to string) error {
	if x.def.TargetUnique() && len(x.forward[from]) > 0 {
		return &apperr.CardinalityError{Link: x.def.Name, From: from, To: to, Side: "source"}
	}
	if x.def.SourceUnique() && len(x.inverse[to]) > 0 {
		return &apperr.CardinalityError{Link: x.def.Name, From: from, To: to, Side: "target"}
	}
	return nil
}

func (x *edgeIndex) add(from, to string) {
	if x.forward[from] == nil {
		x.forward[from] = make(map[string]struct{})
	}
	if x.inverse[to] == nil {
		x.inverse[to] = make(map[string]struct{})
	}
	x.forward[from][to] = struct{}{}
	x.inverse[to][from] = struct{}{}
}

func (x *edgeIndex) remove(from, to string) bool {
	if !x.has(from, to) {
		return false
	}
	delete(x.forward[from], to)
	if len(x.forward[from]) == 0 {
		delete(x.forward, from)
	}
	delete(x.inverse[to], from)
	if len(x.inverse[to]) == 0 {
		delete(x.inverse, to)
	}
	return true
}

// neighbors returns the ids on the other side, sorted.
func (x *edgeIndex) neighbors(id string, dir Direction) []string {
	side := x.forward
	if dir == Incoming {
		side = x.inverse
	}
	out := make([]string, 0, len(side[id]))
	for other := range side[id] {
		out = append(out, other)
	}
	slices.Sort(out)
	return out
}

// touching returns every edge with id on the given endpoint type side.
func (x *edgeIndex) touching(typeName, id string) []Edge {
	var out []Edge
	if x.def.SourceType == typeName {
		for _, to := range x.neighbors(id, Outgoing) {
			out = append(out, Edge{Link: x.def.Name, From: id, To: to})
		}
	}
	if x.def.TargetType == typeName {
		for _, from := range x.neighbors(id, Incoming) {
			out = append(out, Edge{Link: x.def.Name, From: from, To: id})
		}
	}
	return out
}

func (x *edgeIndex) edges() []Edge {
	froms := make([]string, 0, len(x.forward))
	for from := range x.forward {
		froms = append(froms, from)
	}
	slices.Sort(froms)
	var out []Edge
	for _, from := range froms {
		for _, to := range x.neighbors(from, Outgoing) {
			out = append(out, Edge{Link: x.def.Name, From: from, To: to})
		}
	}
	return out
}

func (x *edgeIndex) count() int {
	n := 0
	for _, tos := range x.forward {
		n += len(tos)
	}
	return n
}
