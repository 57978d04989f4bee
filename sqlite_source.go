package lumen

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// SQLite driver using pure Go implementation
	_ "modernc.org/sqlite"
)

// SQLiteSourceConfig configures the SQLite dataset source.
type SQLiteSourceConfig struct {
	// Path to the SQLite database file. Empty disables the source.
	Path string `yaml:"path"`

	// MaxRows caps the number of rows one query may return
	// (default: 50000). Interactive analytics should stay well below it.
	MaxRows int `yaml:"max_rows"`

	// BusyTimeout is the lock-acquisition timeout in milliseconds.
	BusyTimeout int `yaml:"busy_timeout"`

	// QueryTimeout bounds one query, as a time.ParseDuration string.
	QueryTimeout string `yaml:"query_timeout"`
}

// SQLiteSource runs read-only SQL queries against a local SQLite database
// and converts the result set into a Dataset. It plays the role of the
// upstream query-execution collaborator for locally stored data.
type SQLiteSource struct {
	db     *sql.DB
	config SQLiteSourceConfig
}

// NewSQLiteSource opens the database in read-only mode.
func NewSQLiteSource(config SQLiteSourceConfig) (*SQLiteSource, error) {
	if config.Path == "" {
		return nil, errors.New("sqlite source: path is required")
	}
	if config.MaxRows <= 0 {
		config.MaxRows = 50000
	}
	if config.BusyTimeout <= 0 {
		config.BusyTimeout = 5000
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=query_only(1)",
		config.Path, config.BusyTimeout)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite source: %w", err)
	}
	return &SQLiteSource{db: db, config: config}, nil
}

// Query executes a SELECT statement and converts every row to a Record.
// Cell types follow the driver's scan types; NULL becomes Missing.
func (s *SQLiteSource) Query(ctx context.Context, query string) (Dataset, error) {
	if !isReadOnlyQuery(query) {
		return nil, errors.New("sqlite source: only SELECT queries are allowed")
	}
	if timeout := durationOr(s.config.QueryTimeout, 30*time.Second); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("sqlite query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("sqlite columns: %w", err)
	}

	var ds Dataset
	for rows.Next() {
		if len(ds) >= s.config.MaxRows {
			return nil, fmt.Errorf("sqlite query exceeded %d rows", s.config.MaxRows)
		}
		cells := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range cells {
			ptrs[i] = &cells[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("sqlite scan: %w", err)
		}
		rec := make(Record, len(cols))
		for i, col := range cols {
			rec[col] = valueOf(cells[i])
		}
		ds = append(ds, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite rows: %w", err)
	}
	return ds, nil
}

// Close releases the database handle.
func (s *SQLiteSource) Close() error {
	return s.db.Close()
}

func isReadOnlyQuery(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(q, "select") || strings.HasPrefix(q, "with")
}
