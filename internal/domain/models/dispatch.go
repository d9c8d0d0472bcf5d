package models

import "time"

// DispatchRecord captures units leaving the warehouse for a destination.
type DispatchRecord struct {
	ID              string    `json:"id"`
	ItemName        string    `json:"item_name"`
	SKU             string    `json:"sku"`
	UnitsDispatched int       `json:"units_dispatched"`
	Timestamp       time.Time `json:"timestamp"`
	Destination     string    `json:"destination"`
}
