package normalize

import (
	"reflect"
	"sort"
	"testing"
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

var fetchTime = time.Date(2025, 7, 4, 12, 0, 0, 0, time.UTC)

func sorted(fields []string) []string {
	out := append([]string(nil), fields...)
	sort.Strings(out)
	return out
}

func TestInventoryFullRow(t *testing.T) {
	t.Parallel()

	row := table.Row{
		"id":               float64(12),
		"item_name":        "Bread - White Loaf",
		"sku":              "SKU002",
		"total_received":   float64(800),
		"total_dispatched": float64(650),
		"available_stock":  float64(-5),
		"status":           "low",
		"category":         "Bakery",
		"last_updated":     "2025-07-04T09:30:00.123456+00:00",
	}

	rec, defaulted := Inventory(row, 0, fetchTime)
	if len(defaulted) != 0 {
		t.Fatalf("expected no defaults, got %v", defaulted)
	}

	want := models.InventoryRecord{
		ID:              "12",
		ItemName:        "Bread - White Loaf",
		SKU:             "SKU002",
		TotalReceived:   800,
		TotalDispatched: 650,
		AvailableStock:  -5,
		Status:          models.StatusLow,
		Category:        "Bakery",
		LastUpdated:     time.Date(2025, 7, 4, 9, 30, 0, 123456000, time.UTC),
	}
	if !rec.LastUpdated.Equal(want.LastUpdated) {
		t.Fatalf("unexpected last_updated %v", rec.LastUpdated)
	}
	rec.LastUpdated = want.LastUpdated
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("unexpected record:\n got: %+v\nwant: %+v", rec, want)
	}
}

func TestInventoryAvailableStockIsNotRecomputed(t *testing.T) {
	t.Parallel()

	row := table.Row{"total_received": 100, "total_dispatched": 10, "available_stock": 3}
	rec, _ := Inventory(row, 0, fetchTime)
	if rec.AvailableStock != 3 {
		t.Fatalf("available stock must be trusted verbatim, got %d", rec.AvailableStock)
	}
}

func TestInventoryDefaults(t *testing.T) {
	t.Parallel()

	rows := []table.Row{
		{},
		nil,
		{
			"id":               map[string]any{"nested": true},
			"item_name":        42,
			"sku":              "",
			"total_received":   "not a number",
			"total_dispatched": float64(-3),
			"available_stock":  []any{1},
			"status":           "exploded",
			"category":         nil,
			"last_updated":     "yesterday-ish",
		},
	}

	for i, row := range rows {
		rec, defaulted := Inventory(row, i, fetchTime)

		if rec.SKU != UnknownSKU {
			t.Errorf("row %d: expected sku default, got %q", i, rec.SKU)
		}
		if rec.Category != Uncategorized {
			t.Errorf("row %d: expected category default, got %q", i, rec.Category)
		}
		if rec.Status != models.StatusHealthy {
			t.Errorf("row %d: expected healthy default, got %q", i, rec.Status)
		}
		if rec.TotalReceived != 0 || rec.TotalDispatched != 0 || rec.AvailableStock != 0 {
			t.Errorf("row %d: expected zero counters, got %+v", i, rec)
		}
		if !rec.LastUpdated.Equal(fetchTime) {
			t.Errorf("row %d: expected fetch time, got %v", i, rec.LastUpdated)
		}
		if rec.ID == "" {
			t.Errorf("row %d: expected generated id", i)
		}
		if len(defaulted) == 0 {
			t.Errorf("row %d: expected defaulted fields to be reported", i)
		}
	}

	rec, _ := Inventory(rows[2], 2, fetchTime)
	if rec.ItemName != "42" {
		t.Errorf("numeric names are formatted, got %q", rec.ItemName)
	}

	_, defaulted := Inventory(table.Row{}, 0, fetchTime)
	want := []string{"available_stock", "category", "id", "item_name", "last_updated", "sku", "status", "total_dispatched", "total_received"}
	if got := sorted(defaulted); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected defaulted list:\n got: %v\nwant: %v", got, want)
	}
}

func TestInventoryGeneratedIDIsStable(t *testing.T) {
	t.Parallel()

	row := table.Row{"sku": "S1", "item_name": "Milk"}
	a, _ := Inventory(row, 3, fetchTime)
	b, _ := Inventory(row, 3, fetchTime.Add(time.Hour))
	c, _ := Inventory(row, 4, fetchTime)

	if a.ID != b.ID {
		t.Fatalf("generated ids should be stable across fetches: %s vs %s", a.ID, b.ID)
	}
	if a.ID == c.ID {
		t.Fatal("rows at different positions should get different ids")
	}
}

func TestInventoryAcceptsDriverValues(t *testing.T) {
	t.Parallel()

	ts := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	row := table.Row{
		"id":              int64(9),
		"total_received":  "120.00",
		"available_stock": []byte("77"),
		"last_updated":    ts,
	}

	rec, _ := Inventory(row, 0, fetchTime)
	if rec.ID != "9" || rec.TotalReceived != 120 || rec.AvailableStock != 77 || !rec.LastUpdated.Equal(ts) {
		t.Fatalf("driver values not decoded: %+v", rec)
	}
}

func TestInventoryRowsPreservesOrder(t *testing.T) {
	t.Parallel()

	rows := []table.Row{
		{"id": "b", "sku": "S2"},
		{"id": "a", "sku": "S1"},
		{"id": "c"},
	}

	recs, report := InventoryRows(rows, fetchTime)
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if recs[0].ID != "b" || recs[1].ID != "a" || recs[2].ID != "c" {
		t.Fatalf("order changed: %v %v %v", recs[0].ID, recs[1].ID, recs[2].ID)
	}
	if _, ok := report[2]; !ok {
		t.Fatal("expected report entry for sparse row")
	}

	empty, _ := InventoryRows(nil, fetchTime)
	if empty == nil || len(empty) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", empty)
	}
}

func TestDispatchDefaults(t *testing.T) {
	t.Parallel()

	rec, defaulted := Dispatch(table.Row{"id": "d1"}, 0, fetchTime)
	want := models.DispatchRecord{
		ID:              "d1",
		ItemName:        UnknownItem,
		SKU:             UnknownSKU,
		UnitsDispatched: 0,
		Timestamp:       fetchTime,
		Destination:     UnknownLocation,
	}
	if !reflect.DeepEqual(rec, want) {
		t.Fatalf("unexpected record:\n got: %+v\nwant: %+v", rec, want)
	}
	wantFields := []string{"created_at", "item_name", "location", "quantity", "sku"}
	if got := sorted(defaulted); !reflect.DeepEqual(got, wantFields) {
		t.Fatalf("unexpected defaulted list: %v", got)
	}
}

func TestDispatchFullRow(t *testing.T) {
	t.Parallel()

	row := table.Row{
		"id":         float64(5),
		"item_name":  "Milk",
		"sku":        "S2",
		"quantity":   float64(24),
		"created_at": "2025-07-04 08:00:00+00",
		"location":   "Store #1042",
	}

	rec, defaulted := Dispatch(row, 0, fetchTime)
	if len(defaulted) != 0 {
		t.Fatalf("expected no defaults, got %v", defaulted)
	}
	if rec.UnitsDispatched != 24 || rec.Destination != "Store #1042" {
		t.Fatalf("unexpected record %+v", rec)
	}
	if !rec.Timestamp.Equal(time.Date(2025, 7, 4, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %v", rec.Timestamp)
	}
}

func TestPredictionBundle(t *testing.T) {
	t.Parallel()

	row := table.Row{
		"predictions": []any{
			map[string]any{"sku": "S1", "item": "Bread", "category": "Bakery", "confidence": float64(92.5)},
			map[string]any{"sku": "S2", "item": "Milk", "category": "Dairy", "confidence": "high"},
			"garbage",
			map[string]any{"sku": "S3"},
		},
		"summary": map[string]any{
			"total_records":  float64(1000),
			"unique_skus":    float64(40),
			"total_quantity": float64(25000),
			"date_range":     map[string]any{"start": "2024-01-01", "end": "2024-12-31"},
		},
		"monthly_trends_url":    "https://cdn.example/monthly.png",
		"seasonal_patterns_url": "https://cdn.example/seasonal.png",
		"timestamp":             "2025-07-01T00:00:00Z",
	}

	bundle, defaulted := Prediction(row, fetchTime)

	if len(bundle.Predictions) != 3 {
		t.Fatalf("expected 3 predictions (non-object dropped), got %d", len(bundle.Predictions))
	}
	if bundle.Predictions[0].Confidence != 92.5 {
		t.Fatalf("unexpected confidence %v", bundle.Predictions[0].Confidence)
	}
	if bundle.Predictions[1].Confidence != 0 {
		t.Fatalf("non-numeric confidence must coerce to 0, got %v", bundle.Predictions[1].Confidence)
	}
	if bundle.Predictions[2].Item != UnknownItem || bundle.Predictions[2].Category != Uncategorized {
		t.Fatalf("sparse prediction not defaulted: %+v", bundle.Predictions[2])
	}
	if bundle.Summary.TotalQuantity != 25000 || bundle.Summary.DateRange.End != "2024-12-31" {
		t.Fatalf("unexpected summary %+v", bundle.Summary)
	}
	if bundle.MonthlyTrendsURL == "" || bundle.SeasonalPatternsURL == "" {
		t.Fatal("urls should be kept")
	}

	want := []string{
		"predictions[1].confidence",
		"predictions[2]",
		"predictions[3].category",
		"predictions[3].confidence",
		"predictions[3].item",
	}
	if got := sorted(defaulted); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected defaulted list:\n got: %v\nwant: %v", got, want)
	}
}

func TestPredictionEmptyRow(t *testing.T) {
	t.Parallel()

	bundle, defaulted := Prediction(table.Row{"predictions": "not json"}, fetchTime)
	if bundle.Predictions == nil || len(bundle.Predictions) != 0 {
		t.Fatalf("expected empty predictions, got %#v", bundle.Predictions)
	}
	if bundle.Summary != (models.PredictionSummary{}) {
		t.Fatalf("expected zero summary, got %+v", bundle.Summary)
	}
	if !bundle.Timestamp.Equal(fetchTime) {
		t.Fatalf("expected fetch time, got %v", bundle.Timestamp)
	}
	if len(defaulted) == 0 {
		t.Fatal("expected defaulted fields")
	}
}

func TestPredictionDecodesJSONText(t *testing.T) {
	t.Parallel()

	row := table.Row{
		"predictions": `[{"sku":"S9","item":"Tea","category":"Beverages","confidence":61}]`,
		"summary":     []byte(`{"total_records": 3, "unique_skus": 1, "total_quantity": 9, "date_range": {"start": "a", "end": "b"}}`),
	}

	bundle, _ := Prediction(row, fetchTime)
	if len(bundle.Predictions) != 1 || bundle.Predictions[0].Confidence != 61 {
		t.Fatalf("json text predictions not decoded: %+v", bundle.Predictions)
	}
	if bundle.Summary.TotalRecords != 3 || bundle.Summary.DateRange.Start != "a" {
		t.Fatalf("json bytes summary not decoded: %+v", bundle.Summary)
	}
}

func TestLatestPrediction(t *testing.T) {
	t.Parallel()

	if got, _ := LatestPrediction(nil, fetchTime); got != nil {
		t.Fatalf("expected nil bundle for empty result, got %+v", got)
	}

	rows := []table.Row{
		{"monthly_trends_url": "newest"},
		{"monthly_trends_url": "older"},
	}
	got, _ := LatestPrediction(rows, fetchTime)
	if got == nil || got.MonthlyTrendsURL != "newest" {
		t.Fatalf("expected newest bundle, got %+v", got)
	}
}
