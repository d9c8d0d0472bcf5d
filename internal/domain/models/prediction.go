package models

import "time"

// Prediction is a per-SKU demand forecast produced by the ML pipeline.
type Prediction struct {
	SKU        string  `json:"sku"`
	Item       string  `json:"item"`
	Category   string  `json:"category"`
	Confidence float64 `json:"confidence"`
}

// DateRange bounds the history a prediction run was trained on.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// PredictionSummary aggregates the input set of a prediction run.
type PredictionSummary struct {
	TotalRecords  int       `json:"total_records"`
	UniqueSKUs    int       `json:"unique_skus"`
	TotalQuantity int       `json:"total_quantity"`
	DateRange     DateRange `json:"date_range"`
}

// PredictionBundle is the latest snapshot of the sku_predictions table.
type PredictionBundle struct {
	Predictions         []Prediction      `json:"predictions"`
	Summary             PredictionSummary `json:"summary"`
	MonthlyTrendsURL    string            `json:"monthly_trends_url"`
	SeasonalPatternsURL string            `json:"seasonal_patterns_url"`
	Timestamp           time.Time         `json:"timestamp"`
}
