package normalize

import (
	"strconv"
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Prediction converts one sku_predictions row into a bundle. Prediction
// entries that are not objects are dropped and reported.
func Prediction(row table.Row, now time.Time) (models.PredictionBundle, []string) {
	d := newDecoder(row, "")

	bundle := models.PredictionBundle{
		Predictions:         []models.Prediction{},
		MonthlyTrendsURL:    d.str("monthly_trends_url", ""),
		SeasonalPatternsURL: d.str("seasonal_patterns_url", ""),
		Timestamp:           d.timestamp("timestamp", now),
	}

	for i, raw := range d.list("predictions") {
		prefix := "predictions[" + strconv.Itoa(i) + "]."
		entry, ok := asObject(raw)
		if !ok {
			d.defaulted = append(d.defaulted, prefix[:len(prefix)-1])
			continue
		}
		pd := d.nested(entry, prefix)
		bundle.Predictions = append(bundle.Predictions, models.Prediction{
			SKU:        pd.str("sku", UnknownSKU),
			Item:       pd.str("item", UnknownItem),
			Category:   pd.str("category", Uncategorized),
			Confidence: pd.number("confidence", 0),
		})
		d.absorb(pd)
	}

	summary := d.nested(d.object("summary"), "summary.")
	bundle.Summary = models.PredictionSummary{
		TotalRecords:  summary.count("total_records"),
		UniqueSKUs:    summary.count("unique_skus"),
		TotalQuantity: summary.count("total_quantity"),
	}
	dateRange := summary.nested(summary.object("date_range"), "date_range.")
	bundle.Summary.DateRange = models.DateRange{
		Start: dateRange.str("start", ""),
		End:   dateRange.str("end", ""),
	}
	summary.absorb(dateRange)
	d.absorb(summary)

	return bundle, d.defaulted
}

// LatestPrediction converts the first row of a result set already ordered
// newest first. It returns nil when the set is empty; older rows are ignored.
func LatestPrediction(rows []table.Row, now time.Time) (*models.PredictionBundle, []string) {
	if len(rows) == 0 {
		return nil, nil
	}
	bundle, defaulted := Prediction(rows[0], now)
	return &bundle, defaulted
}
