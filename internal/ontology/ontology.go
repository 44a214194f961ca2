// Package ontology bundles the TMHNA ontology document and its demonstration
// data. The server falls back to these when no DSL or seed file is configured.
package ontology

import (
	_ "embed"
	"fmt"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
)

// Names the bundled documents are reported under.
const (
	SchemaName = "tmhna_ontology.yaml"
	SeedName   = "tmhna_seed.yaml"
)

//go:embed schema.yaml
var schemaYAML []byte

//go:embed seed.yaml
var seedYAML []byte

// SchemaYAML returns the raw bundled ontology document.
func SchemaYAML() []byte { return schemaYAML }

// SeedYAML returns the raw bundled seed document.
func SeedYAML() []byte { return seedYAML }

// Schema parses and validates the bundled ontology document.
func Schema() (*dsl.OntologySchema, error) {
	return dsl.NewBytesLoader(SchemaName, schemaYAML).Load()
}

// Registry builds a sealed registry from the bundled ontology.
func Registry() (*registry.Registry, error) {
	schema, err := Schema()
	if err != nil {
		return nil, err
	}
	return registry.FromSchema(schema)
}

// Seed parses the bundled seed document.
func Seed() (*dsl.Seed, error) {
	seed, err := dsl.ParseSeed(seedYAML)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", SeedName, err)
	}
	return seed, nil
}

// NewStore builds the bundled registry and a store seeded with the bundled
// data.
func NewStore(opts ...storage.Option) (*storage.Store, error) {
	reg, err := Registry()
	if err != nil {
		return nil, err
	}
	seed, err := Seed()
	if err != nil {
		return nil, err
	}
	store := storage.New(reg, opts...)
	if err := store.LoadSeed(seed); err != nil {
		return nil, err
	}
	return store, nil
}
