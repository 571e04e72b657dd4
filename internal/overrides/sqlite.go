package overrides

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"kitchen_demo_sync/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

const schema = `
CREATE TABLE IF NOT EXISTS overrides (
	id TEXT PRIMARY KEY,
	natural_key TEXT,
	recipes TEXT,
	notes TEXT,
	media_link TEXT,
	assigned_team INTEGER,
	assigned_slot TEXT,
	assignment_set INTEGER NOT NULL DEFAULT 0,
	lead_status TEXT,
	feed_lead_status TEXT,
	updated_at DATETIME NOT NULL,
	updated_by TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_overrides_natural_key ON overrides(natural_key);
`

const upsertSQL = `
INSERT INTO overrides (
	id, natural_key, recipes, notes, media_link,
	assigned_team, assigned_slot, assignment_set,
	lead_status, feed_lead_status, updated_at, updated_by
)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	natural_key = excluded.natural_key,
	recipes = excluded.recipes,
	notes = excluded.notes,
	media_link = excluded.media_link,
	assigned_team = excluded.assigned_team,
	assigned_slot = excluded.assigned_slot,
	assignment_set = excluded.assignment_set,
	lead_status = excluded.lead_status,
	feed_lead_status = excluded.feed_lead_status,
	updated_at = excluded.updated_at,
	updated_by = excluded.updated_by;
`

const selectColumns = `id, natural_key, recipes, notes, media_link,
	assigned_team, assigned_slot, assignment_set,
	lead_status, feed_lead_status, updated_at, updated_by`

// SQLiteStore keeps overrides in a local SQLite database.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (and initializes) the override database at path in WAL mode.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open override database: %w", err)
	}

	// SQLite allows one writer; a single connection avoids "database is locked".
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize override schema: %w", err)
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Override, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+`
		FROM overrides
		WHERE id = ? OR natural_key = ?
		ORDER BY (id = ?) DESC, updated_at DESC
		LIMIT 1`, key, key, key)

	o, err := scanOverride(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read override %s: %w", key, err)
	}
	return o, nil
}

func (s *SQLiteStore) Put(ctx context.Context, id, naturalKey string, patch Patch, updatedBy string) (*Override, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin override write: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	current := &Override{ID: id}
	existing, err := scanOverride(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM overrides WHERE id = ?`, id))
	switch {
	case err == nil:
		current = existing
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("failed to read override %s: %w", id, err)
	}

	current.Apply(patch)
	if naturalKey != "" {
		current.NaturalKey = naturalKey
	}
	current.UpdatedAt = s.now().UTC()
	current.UpdatedBy = updatedBy

	args, err := upsertArgs(current)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, upsertSQL, args...); err != nil {
		return nil, fmt.Errorf("failed to write override %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit override %s: %w", id, err)
	}
	return current, nil
}

func (s *SQLiteStore) All(ctx context.Context) ([]Override, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+selectColumns+` FROM overrides ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}
	defer rows.Close()

	var out []Override
	for rows.Next() {
		o, err := scanOverride(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan override: %w", err)
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOverride(row scanner) (*Override, error) {
	var (
		o             Override
		naturalKey    sql.NullString
		recipes       sql.NullString
		notes         sql.NullString
		mediaLink     sql.NullString
		assignedTeam  sql.NullInt64
		assignedSlot  sql.NullString
		assignmentSet bool
		leadStatus    sql.NullString
		feedStatus    sql.NullString
	)
	if err := row.Scan(&o.ID, &naturalKey, &recipes, &notes, &mediaLink,
		&assignedTeam, &assignedSlot, &assignmentSet,
		&leadStatus, &feedStatus, &o.UpdatedAt, &o.UpdatedBy); err != nil {
		return nil, err
	}

	o.NaturalKey = naturalKey.String
	if recipes.Valid {
		if err := json.Unmarshal([]byte(recipes.String), &o.Recipes); err != nil {
			return nil, fmt.Errorf("corrupt recipes for %s: %w", o.ID, err)
		}
		if o.Recipes == nil {
			o.Recipes = []string{}
		}
	}
	if notes.Valid {
		o.Notes = &notes.String
	}
	if mediaLink.Valid {
		o.MediaLink = &mediaLink.String
	}
	if assignmentSet {
		o.Assignment = &Assignment{Team: int(assignedTeam.Int64), Slot: assignedSlot.String}
	}
	if leadStatus.Valid {
		o.LeadStatus = &LeadStatus{
			Status:     model.LeadStatus(leadStatus.String),
			FeedStatus: model.LeadStatus(feedStatus.String),
		}
	}
	return &o, nil
}

func upsertArgs(o *Override) ([]any, error) {
	var recipes, notes, mediaLink, slot any
	var team, leadStatus, feedStatus any
	if o.Recipes != nil {
		data, err := json.Marshal(o.Recipes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode recipes: %w", err)
		}
		recipes = string(data)
	}
	if o.Notes != nil {
		notes = *o.Notes
	}
	if o.MediaLink != nil {
		mediaLink = *o.MediaLink
	}
	assignmentSet := o.Assignment != nil
	if assignmentSet {
		team = o.Assignment.Team
		slot = o.Assignment.Slot
	}
	if o.LeadStatus != nil {
		leadStatus = string(o.LeadStatus.Status)
		feedStatus = string(o.LeadStatus.FeedStatus)
	}
	return []any{o.ID, o.NaturalKey, recipes, notes, mediaLink, team, slot, assignmentSet,
		leadStatus, feedStatus, o.UpdatedAt, o.UpdatedBy}, nil
}
