// Package server assembles the engine components behind the HTTP API.
package server

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/action"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/audit"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/auth"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/config"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/dsl"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/function"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/metrics"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/ontology"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/storage"
	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/validation"
)

// Server holds the wired components.
type Server struct {
	cfg       *config.Config
	logger    *zap.Logger
	Registry  *registry.Registry
	Store     *storage.Store
	Executor  *action.Executor
	Evaluator *function.Evaluator
	Auth      *auth.Service
	Metrics   *metrics.Metrics
	Events    *action.Broker

	audit audit.Log
	db    *sql.DB
}

// LoadSchema reads the configured ontology, or the bundled one when no path
// is set.
func LoadSchema(cfg *config.Config) (*dsl.OntologySchema, error) {
	if cfg.DSL.FilePath == "" {
		return ontology.Schema()
	}
	return dsl.NewLoader(cfg.DSL.FilePath).Load()
}

// New builds every component from cfg. The store is restored from its
// journal when one holds data, and seeded otherwise.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	schema, err := LoadSchema(cfg)
	if err != nil {
		return nil, err
	}
	reg, err := registry.FromSchema(schema)
	if err != nil {
		return nil, err
	}
	logger.Info("schema loaded",
		zap.String("namespace", reg.Namespace()),
		zap.Int("object_types", len(reg.ObjectTypes())),
		zap.Int("link_types", len(reg.LinkTypes())),
		zap.Int("actions", len(reg.Actions())),
		zap.Int("functions", len(reg.Functions())))

	s := &Server{
		cfg:      cfg,
		logger:   logger,
		Registry: reg,
		Auth:     auth.NewService(),
		Metrics:  metrics.New(),
		Events:   action.NewBroker(),
	}

	journal, err := s.openPersistence()
	if err != nil {
		s.Close()
		return nil, err
	}
	storeOpts := []storage.Option{storage.WithLogger(logger)}
	if journal != nil {
		storeOpts = append(storeOpts, storage.WithJournal(journal))
	}
	s.Store = storage.New(reg, storeOpts...)

	loaded, err := s.Store.Load()
	if err != nil {
		s.Close()
		return nil, err
	}
	if !loaded {
		if err := s.seed(); err != nil {
			s.Close()
			return nil, err
		}
	}
	s.refreshInstanceGauges()

	engine := validation.New(reg, s.Store)
	s.Executor = action.NewExecutor(s.Store, engine,
		action.WithAuditLog(s.audit),
		action.WithNotifier(action.Notifiers{action.NewLogNotifier(logger), s.Events}),
		action.WithLogger(logger),
		action.WithMetrics(s.Metrics),
		action.WithMaxAttempts(cfg.Action.MaxRetries),
	)
	s.Evaluator = function.NewEvaluator(s.Store,
		function.WithLogger(logger),
		function.WithMetrics(s.Metrics),
	)
	if err := s.Evaluator.Check(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// openPersistence sets up the audit log and returns the journal for the
// configured driver. The memory driver has no journal.
func (s *Server) openPersistence() (storage.Journal, error) {
	root := s.cfg.Data.RootPath
	switch s.cfg.Data.PersistDriver {
	case config.DriverFile:
		pm := storage.NewPathManager(root, s.Registry.Namespace())
		auditLog, err := audit.OpenFile(filepath.Join(pm.Root(), "audit.jsonl"))
		if err != nil {
			return nil, err
		}
		s.audit = auditLog
		return storage.NewFileJournal(pm), nil
	case config.DriverSQLite:
		db, err := storage.OpenSQLite(filepath.Join(root, s.Registry.Namespace()+".db"))
		if err != nil {
			return nil, err
		}
		s.db = db
		journal, err := storage.NewSQLiteJournal(db, s.Registry)
		if err != nil {
			return nil, err
		}
		auditLog, err := audit.NewSQLite(db)
		if err != nil {
			return nil, err
		}
		s.audit = auditLog
		return journal, nil
	}
	s.audit = audit.NewMemory()
	return nil, nil
}

func (s *Server) seed() error {
	var (
		seed *dsl.Seed
		err  error
	)
	switch {
	case s.cfg.DSL.SeedPath != "":
		seed, err = dsl.ReadSeed(s.cfg.DSL.SeedPath)
	case s.cfg.DSL.FilePath == "":
		seed, err = ontology.Seed()
	default:
		s.logger.Info("no seed configured, starting empty")
		return nil
	}
	if err != nil {
		return err
	}
	if err := s.Store.LoadSeed(seed); err != nil {
		return fmt.Errorf("load seed: %w", err)
	}
	return nil
}

func (s *Server) refreshInstanceGauges() {
	for _, ot := range s.Registry.ObjectTypes() {
		s.Metrics.SetInstances(ot.Name, s.Store.Count(ot.Name))
	}
}

// Close releases the store and the database.
func (s *Server) Close() error {
	var errs []error
	if s.Store != nil {
		errs = append(errs, s.Store.Close())
	}
	if s.audit != nil {
		errs = append(errs, s.audit.Close())
	}
	if s.db != nil {
		errs = append(errs, s.db.Close())
	}
	return errors.Join(errs...)
}
