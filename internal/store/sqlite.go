package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rcliao/robot-brain/internal/model"
)

// SQLiteBackend stores observations in a SQLite database. Save replaces the
// whole log inside a single transaction.
type SQLiteBackend struct {
	db   *sql.DB
	path string
}

// NewSQLiteBackend opens or creates a SQLite database at the given path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	b := &SQLiteBackend{db: db, path: dbPath}
	if err := b.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return b, nil
}

// Path returns the database location.
func (b *SQLiteBackend) Path() string { return b.path }

func (b *SQLiteBackend) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id         TEXT PRIMARY KEY,
		entity     TEXT NOT NULL,
		seq        INTEGER NOT NULL,
		content    TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_observations_entity ON observations(entity, seq);
	`
	_, err := b.db.Exec(schema)
	return err
}

// Load reads every observation grouped by entity, in insertion order.
func (b *SQLiteBackend) Load(ctx context.Context) (*model.Document, error) {
	rows, err := b.db.QueryContext(ctx,
		`SELECT id, entity, content, created_at FROM observations ORDER BY entity, seq`)
	if err != nil {
		return nil, fmt.Errorf("query observations: %w", err)
	}
	defer rows.Close()

	doc := model.NewDocument()
	for rows.Next() {
		var (
			id, entity, content, createdAt string
		)
		if err := rows.Scan(&id, &entity, &content, &createdAt); err != nil {
			return nil, fmt.Errorf("scan observation: %w", err)
		}
		ts, _ := time.Parse(time.RFC3339Nano, createdAt)
		el := doc.Entities[model.Entity(entity)]
		if el == nil {
			el = &model.EntityLog{}
			doc.Entities[model.Entity(entity)] = el
		}
		el.Observations = append(el.Observations, model.Observation{ID: id, Content: content, Timestamp: ts})
	}
	return doc, rows.Err()
}

// Save replaces the stored log with doc in one transaction.
func (b *SQLiteBackend) Save(ctx context.Context, doc *model.Document) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM observations`); err != nil {
		return fmt.Errorf("clear observations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO observations (id, entity, seq, content, created_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for entity, el := range doc.Entities {
		if el == nil {
			continue
		}
		for i, o := range el.Observations {
			id := o.ID
			if id == "" {
				id = fmt.Sprintf("%s-%d", entity, i)
			}
			if _, err := stmt.ExecContext(ctx, id, string(entity), i, o.Content,
				o.Timestamp.UTC().Format(time.RFC3339Nano)); err != nil {
				return fmt.Errorf("insert observation: %w", err)
			}
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
