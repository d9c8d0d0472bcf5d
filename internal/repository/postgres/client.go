package postgres

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Client reads dashboard tables straight from the Postgres database backing
// the hosted table store.
type Client struct {
	db *sql.DB
}

var _ table.Client = (*Client)(nil)

// Open connects to the database described by dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*Client, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewClient(db), nil
}

// NewClient wires an existing sql.DB.
func NewClient(db *sql.DB) *Client {
	return &Client{db: db}
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Query selects every column of tableName ordered and limited per opts.
func (c *Client) Query(ctx context.Context, tableName string, opts table.Options) ([]table.Row, error) {
	query, args, err := buildSelect(tableName, opts)
	if err != nil {
		return nil, err
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}

	result, err := scanRows(rows)
	if err != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("query %s: %w", tableName, err)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return result, nil
}

func buildSelect(tableName string, opts table.Options) (string, []interface{}, error) {
	if tableName == "" {
		return "", nil, fmt.Errorf("table name must not be empty")
	}

	builder := sq.Select("*").
		From(pq.QuoteIdentifier(tableName)).
		PlaceholderFormat(sq.Dollar)

	if opts.OrderBy != "" {
		direction := "DESC"
		if opts.Ascending {
			direction = "ASC"
		}
		builder = builder.OrderBy(pq.QuoteIdentifier(opts.OrderBy) + " " + direction)
	}
	if opts.Limit > 0 {
		builder = builder.Limit(uint64(opts.Limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("build select for %s: %w", tableName, err)
	}
	return query, args, nil
}

type rowScanner interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
}

func scanRows(rows rowScanner) ([]table.Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	var result []table.Row
	for rows.Next() {
		values := make([]interface{}, len(columns))
		pointers := make([]interface{}, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(table.Row, len(columns))
		for i, col := range columns {
			row[col] = driverValue(values[i])
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}

	return result, nil
}

// driverValue turns lib/pq byte slices into something the normalizers read:
// json/jsonb documents are decoded, everything else becomes a string.
func driverValue(v interface{}) interface{} {
	raw, ok := v.([]byte)
	if !ok {
		return v
	}

	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		var decoded interface{}
		if err := json.Unmarshal(trimmed, &decoded); err == nil {
			return decoded
		}
	}
	return string(raw)
}
