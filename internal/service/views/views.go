// Package views derives filtered and aggregated views from poller datasets.
// Nothing here mutates its input or performs I/O.
package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/mamadbah2/stockboard/internal/domain/models"
)

// All disables a category or status predicate.
const All = "all"

// InventoryFilter holds the inventory table controls.
type InventoryFilter struct {
	Search   string `form:"q"`
	Category string `form:"category"`
	Status   string `form:"status"`
}

// FilterInventory returns the records matching every active predicate, in input order.
func FilterInventory(items []models.InventoryRecord, f InventoryFilter) []models.InventoryRecord {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]models.InventoryRecord, 0, len(items))
	for _, item := range items {
		if search != "" &&
			!strings.Contains(strings.ToLower(item.ItemName), search) &&
			!strings.Contains(strings.ToLower(item.SKU), search) {
			continue
		}
		if active(f.Category) && item.Category != f.Category {
			continue
		}
		if active(f.Status) && string(item.Status) != f.Status {
			continue
		}
		out = append(out, item)
	}
	return out
}

func active(v string) bool {
	return v != "" && v != All
}

// Categories returns "all" followed by each distinct category in first-seen order.
func Categories(items []models.InventoryRecord) []string {
	seen := make(map[string]struct{}, len(items))
	out := []string{All}
	for _, item := range items {
		if _, ok := seen[item.Category]; ok {
			continue
		}
		seen[item.Category] = struct{}{}
		out = append(out, item.Category)
	}
	return out
}

// StatusCounts tallies records per stock status.
func StatusCounts(items []models.InventoryRecord) map[models.StockStatus]int {
	counts := map[models.StockStatus]int{
		models.StatusHealthy:  0,
		models.StatusLow:      0,
		models.StatusCritical: 0,
	}
	for _, item := range items {
		counts[item.Status]++
	}
	return counts
}

// Window selects how far back the stock movement list reaches.
type Window string

const (
	WindowToday Window = "today"
	WindowWeek  Window = "week"
	WindowAll   Window = "all"
)

// ParseWindow maps a query value to a Window. The empty string means today.
func ParseWindow(s string) (Window, error) {
	switch w := Window(strings.ToLower(strings.TrimSpace(s))); w {
	case "":
		return WindowToday, nil
	case WindowToday, WindowWeek, WindowAll:
		return w, nil
	}
	return "", fmt.Errorf("unknown time window %q", s)
}

// Since returns the earliest timestamp included by w, or the zero time for WindowAll.
// Today starts at local midnight; the week reaches seven days before that midnight.
func (w Window) Since(now time.Time) time.Time {
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch w {
	case WindowToday:
		return midnight
	case WindowWeek:
		return midnight.Add(-7 * 24 * time.Hour)
	}
	return time.Time{}
}

// FilterMovements keeps the dispatches inside the window, in input order.
func FilterMovements(movements []models.DispatchRecord, w Window, now time.Time) []models.DispatchRecord {
	if w == WindowAll {
		out := make([]models.DispatchRecord, len(movements))
		copy(out, movements)
		return out
	}
	since := w.Since(now)
	out := make([]models.DispatchRecord, 0, len(movements))
	for _, m := range movements {
		if !m.Timestamp.Before(since) {
			out = append(out, m)
		}
	}
	return out
}

// TotalUnits sums units dispatched.
func TotalUnits(movements []models.DispatchRecord) int {
	total := 0
	for _, m := range movements {
		total += m.UnitsDispatched
	}
	return total
}

// Band is the display tier of a prediction confidence score.
type Band string

const (
	BandHigh Band = "high"
	BandGood Band = "good"
	BandFair Band = "fair"
	BandLow  Band = "low"
)

// ConfidenceBand buckets a 0-100 confidence score.
func ConfidenceBand(confidence float64) Band {
	switch {
	case confidence >= 90:
		return BandHigh
	case confidence >= 75:
		return BandGood
	case confidence >= 60:
		return BandFair
	}
	return BandLow
}

// FindRegion looks a region up by id or code. Matching is case-insensitive.
func FindRegion(regions []models.Region, key string) (models.Region, bool) {
	for _, r := range regions {
		if strings.EqualFold(r.ID, key) || strings.EqualFold(r.Code, key) {
			return r, true
		}
	}
	return models.Region{}, false
}

// DashboardTitle is the page heading for a region.
func DashboardTitle(region models.Region) string {
	return region.Name + " Region Dashboard"
}
