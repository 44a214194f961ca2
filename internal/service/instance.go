package service

import (
	"net/url"
	"strconv"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/apperr"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Page sizes for instance listings.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// Page is one window of a listing.
type Page struct {
	Items  []storage.Instance `json:"items"`
	Total  int                `json:"total"`
	Offset int                `json:"offset"`
	Limit  int                `json:"limit"`
}

// InstanceService reads object instances. Writes go through actions.
type InstanceService struct {
	store *storage.Store
}

func NewInstanceService(store *storage.Store) *InstanceService {
	return &InstanceService{store: store}
}

// GetInstance returns one instance.
func (s *InstanceService) GetInstance(objectType, id string) (storage.Instance, error) {
	return s.store.GetInstance(objectType, id)
}

// ListInstances returns instances ordered by id that match every field
// filter in q. offset and limit page the result.
func (s *InstanceService) ListInstances(objectType string, q url.Values) (*Page, error) {
	ot, err := s.store.Registry().GetObjectType(objectType)
	if err != nil {
		return nil, err
	}

	var violations []apperr.Violation
	offset, ok := queryInt(q, "offset", 0)
	if !ok || offset < 0 {
		violations = append(violations, apperr.Violation{Field: "offset", Message: "must be a non-negative integer"})
	}
	limit, ok := queryInt(q, "limit", DefaultPageSize)
	if !ok || limit < 1 || limit > MaxPageSize {
		violations = append(violations, apperr.Violation{Field: "limit", Message: "must be an integer from 1 to " + strconv.Itoa(MaxPageSize)})
	}
	if len(violations) > 0 {
		return nil, &apperr.ParameterValidationError{Operation: "list " + objectType, Violations: violations}
	}

	filter, err := ParseFilter(ot, q, "offset", "limit")
	if err != nil {
		return nil, err
	}
	seq, err := s.store.QueryByType(objectType, storage.MatchFields(filter))
	if err != nil {
		return nil, err
	}

	page := &Page{Items: []storage.Instance{}, Offset: offset, Limit: limit}
	for inst := range seq {
		if page.Total >= offset && len(page.Items) < limit {
			page.Items = append(page.Items, inst)
		}
		page.Total++
	}
	return page, nil
}

func queryInt(q url.Values, key string, def int) (int, bool) {
	raw := q.Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	return n, err == nil
}
