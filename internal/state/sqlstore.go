package state

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"

	// MySQL driver registration for the mysql state backend.
	_ "github.com/go-sql-driver/mysql"
)

// identifierPattern restricts state table names to plain identifiers since
// the table name is interpolated into SQL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// SQLStore persists cursors in a MySQL table, one row per entity.
// Suitable when several extraction hosts share checkpoint state.
type SQLStore struct {
	db    *sql.DB
	table string
}

// NewSQLStore creates a cursor store over an existing database handle.
func NewSQLStore(db *sql.DB, table string) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is nil")
	}
	if !identifierPattern.MatchString(table) {
		return nil, fmt.Errorf("invalid state table name %q", table)
	}

	return &SQLStore{db: db, table: table}, nil
}

// OpenSQLStore opens a MySQL connection from a DSN and wraps it in a store.
func OpenSQLStore(dsn, table string) (*SQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	return NewSQLStore(db, table)
}

// InitializeTable creates the state table if it doesn't exist.
// Idempotent and safe to call on every startup.
func (s *SQLStore) InitializeTable(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	entity_name VARCHAR(255) PRIMARY KEY,
	cursor_kind VARCHAR(20) NOT NULL,
	cursor_value VARCHAR(255) NOT NULL,
	updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
) ENGINE=InnoDB;`, quoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create state table %s: %w", s.table, err)
	}
	return nil
}

// Get returns the cursor for an entity, if one has been persisted.
func (s *SQLStore) Get(ctx context.Context, entity string) (Cursor, bool, error) {
	query := fmt.Sprintf(
		"SELECT cursor_kind, cursor_value FROM %s WHERE entity_name = ?",
		quoteIdentifier(s.table),
	)

	var kind, value string
	err := s.db.QueryRowContext(ctx, query, entity).Scan(&kind, &value)
	if err == sql.ErrNoRows {
		return Cursor{}, false, nil
	}
	if err != nil {
		return Cursor{}, false, fmt.Errorf("failed to read cursor for %s: %w", entity, err)
	}

	cursor, err := parseCursor(Kind(kind), value)
	if err != nil {
		return Cursor{}, false, fmt.Errorf("stored cursor for %s: %w", entity, err)
	}
	return cursor, true, nil
}

// Set persists the cursor for an entity via upsert.
func (s *SQLStore) Set(ctx context.Context, entity string, cursor Cursor) error {
	query := fmt.Sprintf(`
INSERT INTO %s (entity_name, cursor_kind, cursor_value)
VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE cursor_kind = VALUES(cursor_kind), cursor_value = VALUES(cursor_value)`,
		quoteIdentifier(s.table))

	if _, err := s.db.ExecContext(ctx, query, entity, string(cursor.Kind), cursor.Value()); err != nil {
		return fmt.Errorf("failed to persist cursor for %s: %w", entity, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// quoteIdentifier wraps a MySQL identifier in backticks.
func quoteIdentifier(name string) string {
	return "`" + name + "`"
}
