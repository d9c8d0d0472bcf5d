package normalize

import (
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Dispatch converts one dispatches row. now stands in for a missing created_at.
func Dispatch(row table.Row, index int, now time.Time) (models.DispatchRecord, []string) {
	d := newDecoder(row, "")

	rec := models.DispatchRecord{
		ItemName:        d.str("item_name", UnknownItem),
		SKU:             d.str("sku", UnknownSKU),
		UnitsDispatched: d.integer("quantity", 0),
		Timestamp:       d.timestamp("created_at", now),
		Destination:     d.str("location", UnknownLocation),
	}
	rec.ID = d.id(table.Dispatches, index, rec.SKU, rec.ItemName)

	return rec, d.defaulted
}

// DispatchRows converts a result set, preserving its order.
func DispatchRows(rows []table.Row, now time.Time) ([]models.DispatchRecord, Report) {
	out := make([]models.DispatchRecord, 0, len(rows))
	report := Report{}
	for i, row := range rows {
		rec, defaulted := Dispatch(row, i, now)
		if len(defaulted) > 0 {
			report[i] = defaulted
		}
		out = append(out, rec)
	}
	return out, report
}
