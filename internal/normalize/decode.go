// Package normalize turns loosely typed backend rows into dashboard records.
//
// Every function here is total: a missing, null or oddly shaped field falls
// back to its default and the field name is reported as defaulted. Nothing in
// this package returns an error.
package normalize

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Placeholders used when the backend omits a display field.
const (
	UnknownItem     = "Unknown Item"
	UnknownSKU      = "N/A"
	UnknownLocation = "Unknown Location"
	Uncategorized   = "Uncategorized"
)

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999Z07",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// decoder reads fields of one row and records which ones were defaulted.
type decoder struct {
	row       map[string]any
	prefix    string
	defaulted []string
}

func newDecoder(row map[string]any, prefix string) *decoder {
	return &decoder{row: row, prefix: prefix}
}

func (d *decoder) miss(key string) {
	d.defaulted = append(d.defaulted, d.prefix+key)
}

func (d *decoder) value(key string) (any, bool) {
	if d.row == nil {
		return nil, false
	}
	v, ok := d.row[key]
	if !ok || v == nil {
		return nil, false
	}
	return v, true
}

// str reads a non-empty string. Numbers are formatted; other shapes default.
func (d *decoder) str(key, fallback string) string {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return fallback
	}
	s, ok := asString(v)
	if !ok || s == "" {
		d.miss(key)
		return fallback
	}
	return s
}

// integer reads a whole number, truncating fractional values.
func (d *decoder) integer(key string, fallback int) int {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return fallback
	}
	f, ok := asFloat(v)
	if !ok {
		d.miss(key)
		return fallback
	}
	return int(f)
}

// count reads a non-negative whole number.
func (d *decoder) count(key string) int {
	n := d.integer(key, 0)
	if n < 0 {
		d.miss(key)
		return 0
	}
	return n
}

func (d *decoder) number(key string, fallback float64) float64 {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return fallback
	}
	// Confidence and similar scores must be real numbers, numeric strings do not count.
	f, ok := asStrictFloat(v)
	if !ok {
		d.miss(key)
		return fallback
	}
	return f
}

func (d *decoder) timestamp(key string, fallback time.Time) time.Time {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return fallback
	}
	t, ok := asTime(v)
	if !ok {
		d.miss(key)
		return fallback
	}
	return t
}

func (d *decoder) object(key string) map[string]any {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return nil
	}
	m, ok := asObject(v)
	if !ok {
		d.miss(key)
		return nil
	}
	return m
}

func (d *decoder) list(key string) []any {
	v, ok := d.value(key)
	if !ok {
		d.miss(key)
		return nil
	}
	l, ok := asList(v)
	if !ok {
		d.miss(key)
		return nil
	}
	return l
}

func (d *decoder) nested(m map[string]any, prefix string) *decoder {
	return newDecoder(m, d.prefix+prefix)
}

func (d *decoder) absorb(child *decoder) {
	d.defaulted = append(d.defaulted, child.defaulted...)
}

func asString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case []byte:
		return string(x), true
	case json.Number:
		return x.String(), true
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return "", false
		}
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x), true
	}
	return "", false
}

func asStrictFloat(v any) (float64, bool) {
	var f float64
	switch x := v.(type) {
	case float64:
		f = x
	case float32:
		f = float64(x)
	case int:
		f = float64(x)
	case int32:
		f = float64(x)
	case int64:
		f = float64(x)
	case uint32:
		f = float64(x)
	case uint64:
		f = float64(x)
	case json.Number:
		parsed, err := x.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// asFloat also accepts numeric text, which is how Postgres numeric columns
// arrive through the driver.
func asFloat(v any) (float64, bool) {
	if f, ok := asStrictFloat(v); ok {
		return f, true
	}
	var s string
	switch x := v.(type) {
	case string:
		s = x
	case []byte:
		s = string(x)
	default:
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case time.Time:
		if x.IsZero() {
			return time.Time{}, false
		}
		return x, true
	case string:
		return parseTime(x)
	case []byte:
		return parseTime(string(x))
	}
	return time.Time{}, false
}

func parseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func asObject(v any) (map[string]any, bool) {
	switch x := v.(type) {
	case map[string]any:
		return x, true
	case table.Row:
		return x, true
	case string:
		return decodeJSON[map[string]any](x)
	case []byte:
		return decodeJSON[map[string]any](string(x))
	}
	return nil, false
}

func asList(v any) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case []map[string]any:
		out := make([]any, len(x))
		for i := range x {
			out[i] = x[i]
		}
		return out, true
	case string:
		return decodeJSON[[]any](x)
	case []byte:
		return decodeJSON[[]any](string(x))
	}
	return nil, false
}

func decodeJSON[T any](s string) (T, bool) {
	var out T
	if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &out); err != nil {
		return out, false
	}
	return out, true
}
