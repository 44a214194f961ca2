package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SQLite stores records in the audit_log table.
type SQLite struct {
	db *sql.DB
}

var _ Log = (*SQLite)(nil)

// NewSQLite creates the audit_log table if needed. The caller owns db.
func NewSQLite(db *sql.DB) (*SQLite, error) {
	schema := `
	CREATE TABLE IF NOT EXISTS audit_log (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		action TEXT NOT NULL,
		target_type TEXT NOT NULL,
		target_id TEXT NOT NULL,
		principal TEXT NOT NULL,
		principal_role TEXT,
		timestamp TEXT NOT NULL,
		parameters_json TEXT,
		changed_json TEXT,
		events_json TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
	CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (l *SQLite) Append(ctx context.Context, rec Record) error {
	params, err := json.Marshal(rec.Parameters)
	if err != nil {
		return fmt.Errorf("encode parameters: %w", err)
	}
	changed, err := json.Marshal(rec.Changed)
	if err != nil {
		return fmt.Errorf("encode changed: %w", err)
	}
	events, err := json.Marshal(rec.Events)
	if err != nil {
		return fmt.Errorf("encode events: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, action, target_type, target_id, principal, principal_role,
			timestamp, parameters_json, changed_json, events_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Action, rec.TargetType, rec.TargetID, rec.Principal, rec.PrincipalRole,
		rec.Timestamp.Format(time.RFC3339Nano), string(params), string(changed), string(events))
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

func (l *SQLite) List(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	if f.Action != "" {
		where = append(where, "action = ?")
		args = append(args, f.Action)
	}
	if f.TargetID != "" {
		where = append(where, "target_id = ?")
		args = append(args, f.TargetID)
	}
	if f.Principal != "" {
		where = append(where, "principal = ?")
		args = append(args, f.Principal)
	}
	query := `SELECT id, action, target_type, target_id, principal, principal_role, timestamp,
		parameters_json, changed_json, events_json FROM audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec                     Record
			role                    sql.NullString
			ts                      string
			params, changed, events sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Action, &rec.TargetType, &rec.TargetID, &rec.Principal,
			&role, &ts, &params, &changed, &events); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.PrincipalRole = role.String
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("parse audit timestamp: %w", err)
		}
		for _, col := range []struct {
			raw sql.NullString
			dst any
		}{{params, &rec.Parameters}, {changed, &rec.Changed}, {events, &rec.Events}} {
			if !col.raw.Valid || col.raw.String == "" || col.raw.String == "null" {
				continue
			}
			if err := json.Unmarshal([]byte(col.raw.String), col.dst); err != nil {
				return nil, fmt.Errorf("decode audit record %s: %w", rec.ID, err)
			}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close does not close the shared database.
func (l *SQLite) Close() error { return nil }
