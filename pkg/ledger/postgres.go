package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"
)

// PostgresStore keeps the ledger in a single-column postgres table.
type PostgresStore struct {
	db    *sql.DB
	table string
	sb    sq.StatementBuilderType
}

// NewPostgresStore wraps an open database. The table is quoted as an
// identifier.
func NewPostgresStore(db *sql.DB, table string) *PostgresStore {
	if table == "" {
		table = DefaultConfig().Table
	}
	return &PostgresStore{
		db:    db,
		table: pq.QuoteIdentifier(table),
		sb:    sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// OpenPostgres connects, checks the connection and creates the table.
func OpenPostgres(ctx context.Context, dsn, table string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s := NewPostgresStore(db, table)
	if _, err := db.ExecContext(ctx, s.schema()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) schema() string {
	return `CREATE TABLE IF NOT EXISTS ` + s.table + ` (
	source_url  TEXT PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
}

func (s *PostgresStore) hasQuery(url string) sq.SelectBuilder {
	return s.sb.Select("1").From(s.table).Where(sq.Eq{"source_url": url}).Limit(1)
}

func (s *PostgresStore) recordQuery(url string) sq.InsertBuilder {
	return s.sb.Insert(s.table).
		Columns("source_url").
		Values(url).
		Suffix("ON CONFLICT (source_url) DO NOTHING")
}

func (s *PostgresStore) listQuery() sq.SelectBuilder {
	return s.sb.Select("source_url").From(s.table).OrderBy("source_url")
}

// Has reports whether url has a row.
func (s *PostgresStore) Has(ctx context.Context, url string) (bool, error) {
	query, args, err := s.hasQuery(url).ToSql()
	if err != nil {
		return false, fmt.Errorf("build query: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("query ledger: %w", err)
	}
	return true, nil
}

// Record inserts url, ignoring duplicates.
func (s *PostgresStore) Record(ctx context.Context, url string) error {
	query, args, err := s.recordQuery(url).ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("record ledger: %w", err)
	}
	return nil
}

// List returns every recorded URL, sorted.
func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	query, args, err := s.listQuery().ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, fmt.Errorf("scan url: %w", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return urls, nil
}

// Close closes the database.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
