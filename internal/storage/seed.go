package storage

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
)

// LoadSeed creates every seed instance and edge in one transaction. Types
// are loaded in registration order; every problem is reported.
func (s *Store) LoadSeed(seed *dsl.Seed) error {
	var instances, edges int
	_, err := s.Update(nil, func(tx *Tx) error {
		var errs []error
		for typeName := range seed.Instances {
			if _, err := s.reg.GetObjectType(typeName); err != nil {
				errs = append(errs, fmt.Errorf("seed: %w", err))
			}
		}
		for _, ot := range s.reg.ObjectTypes() {
			for _, fields := range seed.Instances[ot.Name] {
				if _, err := tx.Create(ot.Name, fields); err != nil {
					errs = append(errs, fmt.Errorf("seed: %w", err))
					continue
				}
				instances++
			}
		}
		for i, l := range seed.Links {
			if err := tx.Link(l.Link, l.From, l.To); err != nil {
				errs = append(errs, fmt.Errorf("seed link %d: %w", i, err))
				continue
			}
			edges++
		}
		return errors.Join(errs...)
	})
	if err != nil {
		return err
	}
	s.logger.Info("store seeded", zap.Int("instances", instances), zap.Int("edges", edges))
	return nil
}

// IsEmpty reports whether the store holds no instances.
func (s *Store) IsEmpty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, insts := range s.objects {
		if len(insts) > 0 {
			return false
		}
	}
	return true
}
