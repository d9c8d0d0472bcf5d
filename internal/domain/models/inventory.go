package models

import "time"

// StockStatus is the server-assigned health of an inventory line.
type StockStatus string

const (
	StatusHealthy  StockStatus = "healthy"
	StatusLow      StockStatus = "low"
	StatusCritical StockStatus = "critical"
)

// Valid reports whether s is one of the known stock statuses.
func (s StockStatus) Valid() bool {
	switch s {
	case StatusHealthy, StatusLow, StatusCritical:
		return true
	}
	return false
}

// InventoryRecord is one row of the dashboard table.
//
// AvailableStock is taken verbatim from the backend. It is not derived from
// TotalReceived and TotalDispatched, so the three numbers may disagree.
type InventoryRecord struct {
	ID              string      `json:"id"`
	ItemName        string      `json:"item_name"`
	SKU             string      `json:"sku"`
	TotalReceived   int         `json:"total_received"`
	TotalDispatched int         `json:"total_dispatched"`
	AvailableStock  int         `json:"available_stock"`
	Status          StockStatus `json:"status"`
	Category        string      `json:"category"`
	LastUpdated     time.Time   `json:"last_updated"`
}
