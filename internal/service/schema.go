package service

import (
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

// SchemaService answers schema introspection queries.
type SchemaService struct {
	reg *registry.Registry
}

func NewSchemaService(reg *registry.Registry) *SchemaService {
	return &SchemaService{reg: reg}
}

// SchemaSummary describes the loaded ontology.
type SchemaSummary struct {
	Version     string `json:"version"`
	Namespace   string `json:"namespace"`
	ObjectTypes int    `json:"object_types"`
	LinkTypes   int    `json:"link_types"`
	Actions     int    `json:"actions"`
	Functions   int    `json:"functions"`
	Domains     int    `json:"domains"`
}

func (s *SchemaService) Summary() SchemaSummary {
	return SchemaSummary{
		Version:     s.reg.Version(),
		Namespace:   s.reg.Namespace(),
		ObjectTypes: len(s.reg.ObjectTypes()),
		LinkTypes:   len(s.reg.LinkTypes()),
		Actions:     len(s.reg.Actions()),
		Functions:   len(s.reg.Functions()),
		Domains:     len(s.reg.Domains()),
	}
}

// Dump returns the whole schema as a document.
func (s *SchemaService) Dump() *dsl.OntologySchema {
	return s.reg.Dump()
}

func (s *SchemaService) ListObjectTypes() []dsl.ObjectType {
	return s.reg.ObjectTypes()
}

func (s *SchemaService) GetObjectType(name string) (*dsl.ObjectType, error) {
	return s.reg.GetObjectType(name)
}

// GetOutgoingLinks returns the link types whose source is the object type.
func (s *SchemaService) GetOutgoingLinks(objectTypeName string) ([]dsl.LinkType, error) {
	if _, err := s.reg.GetObjectType(objectTypeName); err != nil {
		return nil, err
	}
	return s.reg.OutgoingLinks(objectTypeName), nil
}

// GetIncomingLinks returns the link types whose target is the object type.
func (s *SchemaService) GetIncomingLinks(objectTypeName string) ([]dsl.LinkType, error) {
	if _, err := s.reg.GetObjectType(objectTypeName); err != nil {
		return nil, err
	}
	return s.reg.IncomingLinks(objectTypeName), nil
}

func (s *SchemaService) ListLinkTypes() []dsl.LinkType {
	return s.reg.LinkTypes()
}

func (s *SchemaService) GetLinkType(name string) (*dsl.LinkType, error) {
	return s.reg.GetLinkType(name)
}

func (s *SchemaService) ListActions() []dsl.ActionType {
	return s.reg.Actions()
}

func (s *SchemaService) GetAction(name string) (*dsl.ActionType, error) {
	return s.reg.GetAction(name)
}

func (s *SchemaService) ListFunctions() []dsl.FunctionType {
	return s.reg.Functions()
}

func (s *SchemaService) GetFunction(name string) (*dsl.FunctionType, error) {
	return s.reg.GetFunction(name)
}

func (s *SchemaService) ListDomains() []dsl.DomainGrouping {
	return s.reg.Domains()
}
