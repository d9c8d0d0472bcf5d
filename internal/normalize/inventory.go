package normalize

import (
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Report maps a row index to the fields that fell back to defaults.
type Report map[int][]string

// Inventory converts one dashboard row. now is used when last_updated is unusable.
func Inventory(row table.Row, index int, now time.Time) (models.InventoryRecord, []string) {
	d := newDecoder(row, "")

	rec := models.InventoryRecord{
		ItemName:        d.str("item_name", UnknownItem),
		SKU:             d.str("sku", UnknownSKU),
		TotalReceived:   d.count("total_received"),
		TotalDispatched: d.count("total_dispatched"),
		AvailableStock:  d.integer("available_stock", 0),
		Category:        d.str("category", Uncategorized),
		LastUpdated:     d.timestamp("last_updated", now),
	}

	status := models.StockStatus(d.str("status", string(models.StatusHealthy)))
	if !status.Valid() {
		d.miss("status")
		status = models.StatusHealthy
	}
	rec.Status = status
	rec.ID = d.id(table.Inventory, index, rec.SKU, rec.ItemName)

	return rec, d.defaulted
}

// InventoryRows converts a result set, preserving its order.
func InventoryRows(rows []table.Row, now time.Time) ([]models.InventoryRecord, Report) {
	out := make([]models.InventoryRecord, 0, len(rows))
	report := Report{}
	for i, row := range rows {
		rec, defaulted := Inventory(row, i, now)
		if len(defaulted) > 0 {
			report[i] = defaulted
		}
		out = append(out, rec)
	}
	return out, report
}
