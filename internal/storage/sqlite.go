package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/saadsidd-iu/TMHNA-PROJECT/internal/registry"
)

// OpenSQLite opens (creating if needed) a SQLite database file. The pool is
// limited to one connection so ":memory:" databases are shared.
func OpenSQLite(path string) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to configure database: %w", err)
		}
	}
	return db, nil
}

// SQLiteJournal persists one table per object type and one per link type.
type SQLiteJournal struct {
	db  *sql.DB
	reg *registry.Registry
}

var _ Journal = (*SQLiteJournal)(nil)

// NewSQLiteJournal creates the tables for every type in reg. The caller owns db.
func NewSQLiteJournal(db *sql.DB, reg *registry.Registry) (*SQLiteJournal, error) {
	j := &SQLiteJournal{db: db, reg: reg}
	if err := j.initSchema(); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return j, nil
}

func objectTable(typeName string) string { return "obj_" + normalizeName(typeName) }
func edgeTable(link string) string       { return "edge_" + normalizeName(link) }

func (j *SQLiteJournal) initSchema() error {
	for _, ot := range j.reg.ObjectTypes() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			version INTEGER NOT NULL,
			last_updated TEXT NOT NULL,
			fields TEXT NOT NULL
		)`, objectTable(ot.Name))
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("create table for %s: %w", ot.Name, err)
		}
	}
	for _, lt := range j.reg.LinkTypes() {
		stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			from_id TEXT NOT NULL,
			to_id TEXT NOT NULL,
			PRIMARY KEY (from_id, to_id)
		)`, edgeTable(lt.Name))
		if _, err := j.db.Exec(stmt); err != nil {
			return fmt.Errorf("create table for %s: %w", lt.Name, err)
		}
	}
	return nil
}

// Apply writes the change set in a single SQL transaction.
func (j *SQLiteJournal) Apply(cs ChangeSet) error {
	ctx := context.Background()
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for _, inst := range cs.Upserts {
		fields, err := json.Marshal(inst.Fields)
		if err != nil {
			return fmt.Errorf("encode %s: %w", inst.Key(), err)
		}
		stmt := fmt.Sprintf(`INSERT INTO %s (id, version, last_updated, fields) VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET version = excluded.version,
				last_updated = excluded.last_updated, fields = excluded.fields`, objectTable(inst.Type))
		if _, err := tx.ExecContext(ctx, stmt, inst.ID, inst.Version, inst.LastUpdated.Format(time.RFC3339Nano), string(fields)); err != nil {
			return fmt.Errorf("upsert %s: %w", inst.Key(), err)
		}
	}
	for _, k := range cs.Deletes {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, objectTable(k.Type))
		if _, err := tx.ExecContext(ctx, stmt, k.ID); err != nil {
			return fmt.Errorf("delete %s: %w", k, err)
		}
	}
	for _, ch := range cs.Edges {
		stmt := fmt.Sprintf(`DELETE FROM %s WHERE from_id = ? AND to_id = ?`, edgeTable(ch.Edge.Link))
		if ch.Added {
			stmt = fmt.Sprintf(`INSERT OR IGNORE INTO %s (from_id, to_id) VALUES (?, ?)`, edgeTable(ch.Edge.Link))
		}
		if _, err := tx.ExecContext(ctx, stmt, ch.Edge.From, ch.Edge.To); err != nil {
			return fmt.Errorf("edge %s %s -> %s: %w", ch.Edge.Link, ch.Edge.From, ch.Edge.To, err)
		}
	}
	return tx.Commit()
}

// Load reads every table.
func (j *SQLiteJournal) Load() (*Snapshot, error) {
	snap := &Snapshot{}
	for _, ot := range j.reg.ObjectTypes() {
		rows, err := j.db.Query(fmt.Sprintf(`SELECT id, version, last_updated, fields FROM %s ORDER BY id`, objectTable(ot.Name)))
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", ot.Name, err)
		}
		for rows.Next() {
			var (
				inst    = Instance{Type: ot.Name}
				updated string
				fields  string
			)
			if err := rows.Scan(&inst.ID, &inst.Version, &updated, &fields); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", ot.Name, err)
			}
			if inst.LastUpdated, err = time.Parse(time.RFC3339Nano, updated); err != nil {
				rows.Close()
				return nil, fmt.Errorf("parse last_updated of %s/%s: %w", ot.Name, inst.ID, err)
			}
			if err := json.Unmarshal([]byte(fields), &inst.Fields); err != nil {
				rows.Close()
				return nil, fmt.Errorf("decode %s/%s: %w", ot.Name, inst.ID, err)
			}
			snap.Instances = append(snap.Instances, inst)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	for _, lt := range j.reg.LinkTypes() {
		rows, err := j.db.Query(fmt.Sprintf(`SELECT from_id, to_id FROM %s ORDER BY from_id, to_id`, edgeTable(lt.Name)))
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", lt.Name, err)
		}
		for rows.Next() {
			e := Edge{Link: lt.Name}
			if err := rows.Scan(&e.From, &e.To); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan %s: %w", lt.Name, err)
			}
			snap.Edges = append(snap.Edges, e)
		}
		err = rows.Err()
		rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return snap, nil
}

// Close does not close the shared database.
func (j *SQLiteJournal) Close() error { return nil }
