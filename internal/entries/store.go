package entries

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Mirror receives a copy of every entry for off-host backup.
type Mirror interface {
	Save(ctx context.Context, entryID string, data []byte) error
	Remove(ctx context.Context, entryID string) error
}

// Store keeps configuration entries in SQLite.
type Store struct {
	db     *sql.DB
	mirror Mirror
	logger *zap.Logger
	now    func() time.Time
}

// Open opens (and migrates) the entry database at path. Use ":memory:" in tests.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open entries db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{db: db, logger: logger, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SetMirror attaches an optional backup mirror.
func (s *Store) SetMirror(m Mirror) {
	s.mirror = m
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS config_entries (
			entry_id TEXT PRIMARY KEY,
			domain TEXT NOT NULL,
			title TEXT NOT NULL,
			unique_id TEXT NOT NULL,
			data_json TEXT NOT NULL,
			created_at TEXT NOT NULL,
			UNIQUE (domain, unique_id)
		);`,
	}
	for _, stmt := range statements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate entries: %w", err)
		}
	}
	return nil
}

// Exists reports whether domain already has an entry with uniqueID.
func (s *Store) Exists(ctx context.Context, domain, uniqueID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM config_entries WHERE domain = ? AND unique_id = ?`,
		domain, uniqueID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("lookup entry: %w", err)
	}
	return n > 0, nil
}

// Create inserts e, assigning an id and creation time when unset.
func (s *Store) Create(ctx context.Context, e Entry) (Entry, error) {
	if e.Domain == "" || e.UniqueID == "" {
		return Entry{}, fmt.Errorf("entry domain and unique id are required")
	}
	if e.ID == "" {
		e.ID = strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now().UTC()
	}
	if len(e.Data) == 0 {
		e.Data = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO config_entries (entry_id, domain, title, unique_id, data_json, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Domain, e.Title, e.UniqueID, string(e.Data), e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return Entry{}, ErrDuplicate
		}
		return Entry{}, fmt.Errorf("insert entry: %w", err)
	}

	s.mirrorSave(ctx, e)
	return e, nil
}

// Get returns the entry with id.
func (s *Store) Get(ctx context.Context, id string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT entry_id, domain, title, unique_id, data_json, created_at FROM config_entries WHERE entry_id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// List returns the entries of a domain, oldest first. An empty domain lists all.
func (s *Store) List(ctx context.Context, domain string) ([]Entry, error) {
	query := `SELECT entry_id, domain, title, unique_id, data_json, created_at FROM config_entries`
	var args []any
	if domain != "" {
		query += ` WHERE domain = ?`
		args = append(args, domain)
	}
	query += ` ORDER BY created_at, entry_id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Delete removes the entry with id.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM config_entries WHERE entry_id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete entry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if s.mirror != nil {
		if err := s.mirror.Remove(ctx, id); err != nil {
			s.logger.Warn("entry mirror remove failed", zap.String("entry_id", id), zap.Error(err))
		}
	}
	return nil
}

func (s *Store) mirrorSave(ctx context.Context, e Entry) {
	if s.mirror == nil {
		return
	}
	payload, err := json.MarshalIndent(e, "", "  ")
	if err == nil {
		err = s.mirror.Save(ctx, e.ID, payload)
	}
	if err != nil {
		s.logger.Warn("entry mirror save failed", zap.String("entry_id", e.ID), zap.Error(err))
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e         Entry
		data      string
		createdAt string
	)
	if err := row.Scan(&e.ID, &e.Domain, &e.Title, &e.UniqueID, &data, &createdAt); err != nil {
		return Entry{}, err
	}
	e.Data = json.RawMessage(data)
	ts, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parse created_at for %s: %w", e.ID, err)
	}
	e.CreatedAt = ts
	return e, nil
}
