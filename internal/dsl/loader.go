package dsl

import (
	"fmt"
	"os"
)

// Loader reads an ontology document from a file or from memory and validates it.
type Loader struct {
	source string
	data   []byte
}

// NewLoader creates a loader for a file on disk.
func NewLoader(filePath string) *Loader {
	return &Loader{source: filePath}
}

// NewBytesLoader creates a loader for an in-memory document, e.g. an embedded one.
func NewBytesLoader(name string, data []byte) *Loader {
	return &Loader{source: name, data: data}
}

// Source returns the file path or name the loader reads from.
func (l *Loader) Source() string {
	return l.source
}

// Load parses and validates the document.
func (l *Loader) Load() (*OntologySchema, error) {
	data := l.data
	if data == nil {
		var err error
		data, err = os.ReadFile(l.source)
		if err != nil {
			return nil, fmt.Errorf("failed to read DSL file: %w", err)
		}
	}

	schema, err := ParseSchema(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema %s: %w", l.source, err)
	}

	if err := NewValidator(schema).Validate(); err != nil {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}
	return schema, nil
}
