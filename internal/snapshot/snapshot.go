// Package snapshot persists the in-memory store to SQLite so a restart can
// resume with the same users, classes and homework. Entities are stored as
// JSON documents keyed by ID, one table per entity type: the store is the
// source of truth and the database is only its durable copy.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"

	"liveclass/internal/store"
)

var entityTables = []string{"users", "classes", "lessons", "homeworks", "submissions"}

// Store wraps the SQLite handle used for snapshot save and load.
type Store struct {
	db  *sql.DB
	log zerolog.Logger
}

// Open opens (or creates) the snapshot database and its schema.
func Open(path string, log zerolog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open snapshot db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	for _, table := range entityTables {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			doc TEXT NOT NULL
		)`, table)
		if _, err := db.Exec(ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create table %s: %w", table, err)
		}
	}

	return &Store{db: db, log: log.With().Str("component", "snapshot").Logger()}, nil
}

// Save replaces the persisted snapshot with the current store contents in
// one transaction.
func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin snapshot tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range entityTables {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear table %s: %w", table, err)
		}
	}

	if err := insertDocs(ctx, tx, "users", func(yield func(string, any)) {
		for _, u := range snap.Users {
			yield(u.ID, u)
		}
	}); err != nil {
		return err
	}
	if err := insertDocs(ctx, tx, "classes", func(yield func(string, any)) {
		for _, c := range snap.Classes {
			yield(c.ID, c)
		}
	}); err != nil {
		return err
	}
	if err := insertDocs(ctx, tx, "lessons", func(yield func(string, any)) {
		for _, l := range snap.Lessons {
			yield(l.ID, l)
		}
	}); err != nil {
		return err
	}
	if err := insertDocs(ctx, tx, "homeworks", func(yield func(string, any)) {
		for _, h := range snap.Homeworks {
			yield(h.ID, h)
		}
	}); err != nil {
		return err
	}
	if err := insertDocs(ctx, tx, "submissions", func(yield func(string, any)) {
		for _, sub := range snap.Submissions {
			yield(sub.ID, sub)
		}
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot: %w", err)
	}
	s.log.Info().
		Int("users", len(snap.Users)).
		Int("classes", len(snap.Classes)).
		Int("submissions", len(snap.Submissions)).
		Msg("snapshot saved")
	return nil
}

func insertDocs(ctx context.Context, tx *sql.Tx, table string, each func(yield func(id string, doc any))) error {
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (id, doc) VALUES (?, ?)", table))
	if err != nil {
		return fmt.Errorf("prepare insert %s: %w", table, err)
	}
	defer stmt.Close()

	var insertErr error
	each(func(id string, doc any) {
		if insertErr != nil {
			return
		}
		data, err := json.Marshal(doc)
		if err != nil {
			insertErr = fmt.Errorf("marshal %s %s: %w", table, id, err)
			return
		}
		if _, err := stmt.ExecContext(ctx, id, string(data)); err != nil {
			insertErr = fmt.Errorf("insert %s %s: %w", table, id, err)
		}
	})
	return insertErr
}

// Load reads the persisted snapshot. An empty database yields an empty
// snapshot, not an error.
func (s *Store) Load(ctx context.Context) (store.Snapshot, error) {
	var snap store.Snapshot

	if err := loadDocs(ctx, s.db, "users", &snap.Users); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, s.db, "classes", &snap.Classes); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, s.db, "lessons", &snap.Lessons); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, s.db, "homeworks", &snap.Homeworks); err != nil {
		return store.Snapshot{}, err
	}
	if err := loadDocs(ctx, s.db, "submissions", &snap.Submissions); err != nil {
		return store.Snapshot{}, err
	}
	return snap, nil
}

func loadDocs[T any](ctx context.Context, db *sql.DB, table string, out *[]T) error {
	rows, err := db.QueryContext(ctx, "SELECT doc FROM "+table)
	if err != nil {
		return fmt.Errorf("query %s: %w", table, err)
	}
	defer rows.Close()

	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return fmt.Errorf("scan %s: %w", table, err)
		}
		var v T
		if err := json.Unmarshal([]byte(doc), &v); err != nil {
			return fmt.Errorf("unmarshal %s: %w", table, err)
		}
		*out = append(*out, v)
	}
	return rows.Err()
}

func (s *Store) Close() error {
	return s.db.Close()
}
