// Package table describes the read-only query capability the dashboard needs
// from the hosted table store.
package table

import "context"

// Tables read by the dashboard.
const (
	Inventory   = "dashboard"
	Dispatches  = "dispatches"
	Predictions = "sku_predictions"
)

// Row is an untyped record as returned by the backend.
type Row map[string]any

// Options mirrors the order/limit clause of a table query.
type Options struct {
	OrderBy   string
	Ascending bool
	// Limit <= 0 means no limit.
	Limit int
}

// Client runs a single table query.
type Client interface {
	Query(ctx context.Context, table string, opts Options) ([]Row, error)
}
