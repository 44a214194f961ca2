package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
)

// FileJournal persists instances as one JSON file each and edges as one JSON
// file per link type.
type FileJournal struct {
	paths *PathManager
	mu    sync.Mutex
}

var _ Journal = (*FileJournal)(nil)

// NewFileJournal creates a file journal rooted at pm.
func NewFileJournal(pm *PathManager) *FileJournal {
	return &FileJournal{paths: pm}
}

// Apply writes the change set to disk.
func (j *FileJournal) Apply(cs ChangeSet) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	for _, inst := range cs.Upserts {
		if err := writeJSON(j.paths.InstancePath(inst.Type, inst.ID), inst); err != nil {
			return err
		}
	}
	for _, k := range cs.Deletes {
		if err := os.Remove(j.paths.InstancePath(k.Type, k.ID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete instance file: %w", err)
		}
	}

	byLink := make(map[string][]EdgeChange)
	var order []string
	for _, ch := range cs.Edges {
		if _, seen := byLink[ch.Edge.Link]; !seen {
			order = append(order, ch.Edge.Link)
		}
		byLink[ch.Edge.Link] = append(byLink[ch.Edge.Link], ch)
	}
	for _, link := range order {
		path := j.paths.LinkPath(link)
		edges, err := readEdges(path)
		if err != nil {
			return err
		}
		for _, ch := range byLink[link] {
			idx := slices.Index(edges, ch.Edge)
			switch {
			case ch.Added && idx < 0:
				edges = append(edges, ch.Edge)
			case !ch.Added && idx >= 0:
				edges = slices.Delete(edges, idx, idx+1)
			}
		}
		if err := writeJSON(path, edges); err != nil {
			return err
		}
	}
	return nil
}

// Load reads every instance and edge file.
func (j *FileJournal) Load() (*Snapshot, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	snap := &Snapshot{}
	dirs, err := os.ReadDir(j.paths.Root())
	if errors.Is(err, fs.ErrNotExist) {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	for _, dir := range dirs {
		if !dir.IsDir() {
			continue
		}
		full := filepath.Join(j.paths.Root(), dir.Name())
		files, err := os.ReadDir(full)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory: %w", err)
		}
		for _, file := range files {
			if file.IsDir() || !strings.HasSuffix(file.Name(), ".json") {
				continue
			}
			path := filepath.Join(full, file.Name())
			if full == j.paths.LinkDir() {
				edges, err := readEdges(path)
				if err != nil {
					return nil, err
				}
				snap.Edges = append(snap.Edges, edges...)
				continue
			}
			var inst Instance
			if err := readJSON(path, &inst); err != nil {
				return nil, err
			}
			snap.Instances = append(snap.Instances, inst)
		}
	}
	return snap, nil
}

// Close is a no-op; every Apply is flushed before it returns.
func (j *FileJournal) Close() error { return nil }

func readEdges(path string) ([]Edge, error) {
	var edges []Edge
	if err := readJSON(path, &edges); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	return edges, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to parse JSON %s: %w", path, err)
	}
	return nil
}

// writeJSON replaces path atomically.
func writeJSON(path string, v any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
