// Package dlq records write batches whose commit failed and was swallowed, so they can be inspected and replayed.
package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// Entry represents one swallowed commit failure
type Entry struct {
	ID         string    `db:"id"`
	Namespace  string    `db:"namespace"`
	Operation  string    `db:"operation"`
	Error      string    `db:"error"`
	Statements string    `db:"statements"` // JSON array of rendered statements
	CreatedAt  time.Time `db:"created_at"`
}

// NewEntry builds an entry from a failed batch; statements are rendered with their parameters inline
func NewEntry(namespace, operation string, err error, statements []fmt.Stringer) (Entry, error) {
	rendered := make([]string, 0, len(statements))
	for _, s := range statements {
		rendered = append(rendered, s.String())
	}
	payload, mErr := json.Marshal(rendered)
	if mErr != nil {
		return Entry{}, fmt.Errorf("failed to marshal statements: %w", mErr)
	}

	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Entry{
		Namespace:  namespace,
		Operation:  operation,
		Error:      msg,
		Statements: string(payload),
	}, nil
}

// DecodedStatements returns the rendered statements stored with the entry
func (e Entry) DecodedStatements() ([]string, error) {
	var out []string
	if e.Statements == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(e.Statements), &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal statements of %s: %w", e.ID, err)
	}
	return out, nil
}

// Queue manages dead letters in SQLite (local) or PostgreSQL
type Queue struct {
	db     *sqlx.DB
	logger logrus.FieldLogger
}

const schema = `
CREATE TABLE IF NOT EXISTS dead_letters (
	id TEXT PRIMARY KEY,
	namespace TEXT NOT NULL,
	operation TEXT NOT NULL,
	error TEXT NOT NULL,
	statements TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
)`

// Open connects using a DSN. postgres:// and postgresql:// DSNs use lib/pq; anything else is a SQLite file path.
func Open(ctx context.Context, dsn string, logger logrus.FieldLogger) (*Queue, error) {
	driver := "sqlite3"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "postgres"
	} else if dsn != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
			return nil, fmt.Errorf("create dead letter directory: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a single connection keeps :memory: databases shared
		db.SetMaxOpenConns(1)
	}

	q := NewQueue(db, logger)
	if err := q.InitSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return q, nil
}

// NewQueue wraps an existing connection
func NewQueue(db *sqlx.DB, logger logrus.FieldLogger) *Queue {
	return &Queue{
		db:     db,
		logger: logger.WithField("component", "dlq"),
	}
}

// InitSchema creates the dead_letters table if needed
func (q *Queue) InitSchema(ctx context.Context) error {
	if _, err := q.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init dead letter schema: %w", err)
	}
	return nil
}

// Enqueue stores an entry. ID and CreatedAt are filled in when empty.
func (q *Queue) Enqueue(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO dead_letters (id, namespace, operation, error, statements, created_at)
		VALUES (:id, :namespace, :operation, :error, :statements, :created_at)
	`
	if _, err := q.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("failed to enqueue dead letter: %w", err)
	}

	q.logger.WithFields(logrus.Fields{
		"id":        entry.ID,
		"namespace": entry.Namespace,
		"operation": entry.Operation,
		"error":     entry.Error,
	}).Warn("commit failure recorded to dead letter queue")
	return nil
}

// List returns the most recent entries first. A non-positive limit returns everything.
func (q *Queue) List(ctx context.Context, limit int) ([]Entry, error) {
	query := `SELECT id, namespace, operation, error, statements, created_at FROM dead_letters ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var entries []Entry
	if err := q.db.SelectContext(ctx, &entries, q.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	return entries, nil
}

// Resolve removes an entry after it has been replayed
func (q *Queue) Resolve(ctx context.Context, id string) error {
	result, err := q.db.ExecContext(ctx, q.db.Rebind(`DELETE FROM dead_letters WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete dead letter: %w", err)
	}

	rows, _ := result.RowsAffected()
	if rows > 0 {
		q.logger.WithField("id", id).Info("dead letter resolved")
	}
	return nil
}

// Count returns the number of entries for a namespace ("" counts all)
func (q *Queue) Count(ctx context.Context, namespace string) (int, error) {
	var n int
	var err error
	if namespace == "" {
		err = q.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM dead_letters`)
	} else {
		err = q.db.GetContext(ctx, &n, q.db.Rebind(`SELECT COUNT(*) FROM dead_letters WHERE namespace = ?`), namespace)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to count dead letters: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (q *Queue) Close() error {
	return q.db.Close()
}
