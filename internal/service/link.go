package service

import (
	"fmt"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// LinkService traverses relationships between instances.
type LinkService struct {
	store *storage.Store
}

func NewLinkService(store *storage.Store) *LinkService {
	return &LinkService{store: store}
}

// ParseDirection maps the query value to a direction. Empty means outgoing.
func ParseDirection(s string) (storage.Direction, error) {
	switch storage.Direction(s) {
	case "", storage.Outgoing:
		return storage.Outgoing, nil
	case storage.Incoming:
		return storage.Incoming, nil
	}
	return "", &apperr.ParameterValidationError{
		Operation:  "traverse",
		Violations: []apperr.Violation{{Field: "direction", Message: fmt.Sprintf("'%s' is not outgoing or incoming", s)}},
	}
}

// GetConnectedInstances returns the instances linked to objectType/id through
// link in the given direction, ordered by id. The object type must be the
// link's source for outgoing traversal and its target for incoming.
func (s *LinkService) GetConnectedInstances(objectType, id, link string, dir storage.Direction) ([]storage.Instance, error) {
	lt, err := s.store.Registry().GetLinkType(link)
	if err != nil {
		return nil, err
	}
	self, other := lt.SourceType, lt.TargetType
	if dir == storage.Incoming {
		self, other = other, self
	}
	if self != objectType {
		return nil, &apperr.ParameterValidationError{
			Operation: "traverse " + link,
			Violations: []apperr.Violation{{
				Field:   "link",
				Message: fmt.Sprintf("%s does not have %s %s links", objectType, dir, link),
			}},
		}
	}

	out := []storage.Instance{}
	err = s.store.View(func(r storage.Reader) error {
		if _, err := r.Get(objectType, id); err != nil {
			return err
		}
		ids, err := r.Neighbors(link, id, dir)
		if err != nil {
			return err
		}
		for _, nid := range ids {
			inst, err := r.Get(other, nid)
			if err != nil {
				return fmt.Errorf("dangling %s edge: %w", link, err)
			}
			out = append(out, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
