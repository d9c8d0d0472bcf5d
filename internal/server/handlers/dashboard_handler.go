package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/internal/service/dashboard"
	"github.com/mamadbah2/stockboard/internal/service/export"
	"github.com/mamadbah2/stockboard/internal/service/views"
)

// SheetExporter writes the inventory view into a spreadsheet.
type SheetExporter interface {
	Export(ctx context.Context, items []models.InventoryRecord) (int, error)
}

// DashboardHandler serves the derived dashboard views.
type DashboardHandler struct {
	svc     *dashboard.Service
	regions []models.Region
	sheets  SheetExporter
	now     func() time.Time
	logger  *zap.Logger
}

// NewDashboardHandler constructs the HTTP handler adapter. sheets may be nil
// when no spreadsheet is configured.
func NewDashboardHandler(svc *dashboard.Service, regions []models.Region, sheets SheetExporter, now func() time.Time, logger *zap.Logger) *DashboardHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &DashboardHandler{svc: svc, regions: regions, sheets: sheets, now: now, logger: logger}
}

// Regions lists the region catalogue.
func (h *DashboardHandler) Regions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"regions": h.regions})
}

// Dashboard returns the page title and the state of every poller.
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	region, ok := h.resolveRegion(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("unknown region %q", c.Query("region"))})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"title":   views.DashboardTitle(region),
		"region":  region,
		"pollers": h.svc.Status(),
	})
}

// Inventory returns the filtered inventory view.
func (h *DashboardHandler) Inventory(c *gin.Context) {
	var filter views.InventoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return
	}

	st := h.svc.Inventory().State()
	items := views.FilterInventory(st.Data, filter)

	c.JSON(http.StatusOK, gin.H{
		"items":         items,
		"count":         len(items),
		"total":         len(st.Data),
		"status_counts": views.StatusCounts(st.Data),
		"loading":       st.Loading,
		"error":         st.Error,
		"last_updated":  st.LastUpdated,
	})
}

// Categories returns the category options for the inventory filter.
func (h *DashboardHandler) Categories(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"categories": views.Categories(h.svc.Inventory().State().Data)})
}

// ExportCSV downloads the filtered inventory view as CSV.
func (h *DashboardHandler) ExportCSV(c *gin.Context) {
	items, ok := h.filteredInventory(c)
	if !ok {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.CSVFilename))
	c.Header("Content-Type", "text/csv")
	c.Status(http.StatusOK)
	if err := export.WriteCSV(c.Writer, items); err != nil {
		h.logger.Error("failed writing csv export", zap.Error(err))
	}
}

// ExportPDF downloads the filtered inventory view as PDF.
func (h *DashboardHandler) ExportPDF(c *gin.Context) {
	items, ok := h.filteredInventory(c)
	if !ok {
		return
	}
	title := "Inventory Report"
	if region, ok := h.resolveRegion(c); ok {
		title = views.DashboardTitle(region)
	}

	doc, err := export.PDF(items, title, h.now())
	if err != nil {
		h.logger.Error("failed rendering pdf export", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unable to render report"})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.PDFFilename))
	c.Data(http.StatusOK, "application/pdf", doc)
}

// ExportSheets pushes the filtered inventory view to the configured spreadsheet.
func (h *DashboardHandler) ExportSheets(c *gin.Context) {
	if h.sheets == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "spreadsheet export is not configured"})
		return
	}
	items, ok := h.filteredInventory(c)
	if !ok {
		return
	}

	n, err := h.sheets.Export(c.Request.Context(), items)
	if err != nil {
		h.logger.Error("failed exporting to sheet", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "unable to export to spreadsheet"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exported": n})
}

// Dispatches returns stock movements inside the requested time window.
func (h *DashboardHandler) Dispatches(c *gin.Context) {
	window, err := views.ParseWindow(c.Query("window"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st := h.svc.Dispatches().State()
	items := views.FilterMovements(st.Data, window, h.now())

	c.JSON(http.StatusOK, gin.H{
		"items":        items,
		"window":       window,
		"total_units":  views.TotalUnits(items),
		"loading":      st.Loading,
		"error":        st.Error,
		"last_updated": st.LastUpdated,
	})
}

type predictionView struct {
	models.Prediction
	Band views.Band `json:"band"`
}

// Predictions returns the latest forecast bundle with confidence bands.
func (h *DashboardHandler) Predictions(c *gin.Context) {
	st := h.svc.Predictions().State()

	resp := gin.H{
		"loading":      st.Loading,
		"error":        st.Error,
		"last_updated": st.LastUpdated,
		"data":         nil,
	}
	if b := st.Data; b != nil {
		preds := make([]predictionView, 0, len(b.Predictions))
		for _, p := range b.Predictions {
			preds = append(preds, predictionView{Prediction: p, Band: views.ConfidenceBand(p.Confidence)})
		}
		resp["data"] = gin.H{
			"predictions":           preds,
			"summary":               b.Summary,
			"monthly_trends_url":    b.MonthlyTrendsURL,
			"seasonal_patterns_url": b.SeasonalPatternsURL,
			"timestamp":             b.Timestamp,
		}
	}
	c.JSON(http.StatusOK, resp)
}

// Refresh triggers an immediate fetch of one dataset.
func (h *DashboardHandler) Refresh(c *gin.Context) {
	domain := c.Param("domain")
	err := h.svc.Refresh(c.Request.Context(), domain)
	switch {
	case err == nil:
	case errors.Is(err, dashboard.ErrUnknownDomain):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case errors.Is(err, poller.ErrNotRunning):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "polling is not running"})
		return
	default:
		h.logger.Warn("manual refresh failed", zap.String("domain", domain), zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	for _, m := range h.svc.Status() {
		if m.Name == domain {
			c.JSON(http.StatusOK, m)
			return
		}
	}
	c.Status(http.StatusOK)
}

func (h *DashboardHandler) filteredInventory(c *gin.Context) ([]models.InventoryRecord, bool) {
	var filter views.InventoryFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid filter"})
		return nil, false
	}
	return views.FilterInventory(h.svc.Inventory().State().Data, filter), true
}

// resolveRegion picks the region from the query, then from the signed-in
// user's home region, then the first catalogue entry.
func (h *DashboardHandler) resolveRegion(c *gin.Context) (models.Region, bool) {
	if key := c.Query("region"); key != "" {
		return views.FindRegion(h.regions, key)
	}
	if user, ok := currentUser(c); ok {
		for _, r := range h.regions {
			if r.Name == user.Region {
				return r, true
			}
		}
	}
	if len(h.regions) == 0 {
		return models.Region{}, false
	}
	return h.regions[0], true
}
