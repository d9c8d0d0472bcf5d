// Package dashboard owns the three polled datasets behind the dashboard.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/normalize"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/internal/repository/table"
)

// Dataset names, used for refresh routes and live feed topics.
const (
	DomainInventory   = "inventory"
	DomainDispatches  = "dispatches"
	DomainPredictions = "predictions"
)

// ErrUnknownDomain is returned by Refresh for a dataset it does not own.
var ErrUnknownDomain = errors.New("unknown dataset")

// Meta summarizes one poller for status endpoints.
type Meta struct {
	Name        string    `json:"name"`
	Running     bool      `json:"running"`
	Loading     bool      `json:"loading"`
	Error       string    `json:"error,omitempty"`
	LastUpdated time.Time `json:"last_updated"`
}

// Service runs one poller per table.
type Service struct {
	client table.Client
	now    func() time.Time
	logger *zap.Logger

	inventory   *poller.Poller[[]models.InventoryRecord]
	dispatches  *poller.Poller[[]models.DispatchRecord]
	predictions *poller.Poller[*models.PredictionBundle]
}

// NewService builds the pollers. Nothing is fetched until Start.
func NewService(client table.Client, sched poller.Scheduler, opts poller.Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	s := &Service{client: client, now: opts.Now, logger: logger}
	s.inventory = poller.New(DomainInventory, s.fetchInventory, sched, opts, logger.Named("poller.inventory")).WithEmpty([]models.InventoryRecord{})
	s.dispatches = poller.New(DomainDispatches, s.fetchDispatches, sched, opts, logger.Named("poller.dispatches")).WithEmpty([]models.DispatchRecord{})
	s.predictions = poller.New(DomainPredictions, s.fetchPredictions, sched, opts, logger.Named("poller.predictions"))
	return s
}

// Start activates every poller. If one fails to start, the others are stopped again.
func (s *Service) Start(ctx context.Context) error {
	starters := []interface {
		Start(context.Context) error
		Stop()
	}{s.inventory, s.dispatches, s.predictions}

	for i, p := range starters {
		if err := p.Start(ctx); err != nil {
			for _, started := range starters[:i] {
				started.Stop()
			}
			return err
		}
	}
	return nil
}

// Stop deactivates every poller.
func (s *Service) Stop() {
	s.inventory.Stop()
	s.dispatches.Stop()
	s.predictions.Stop()
}

// Refresh runs an immediate fetch of the named dataset.
func (s *Service) Refresh(ctx context.Context, domain string) error {
	switch domain {
	case DomainInventory:
		return s.inventory.Refetch(ctx)
	case DomainDispatches:
		return s.dispatches.Refetch(ctx)
	case DomainPredictions:
		return s.predictions.Refetch(ctx)
	}
	return fmt.Errorf("%w: %q", ErrUnknownDomain, domain)
}

// Inventory returns the inventory poller.
func (s *Service) Inventory() *poller.Poller[[]models.InventoryRecord] { return s.inventory }

// Dispatches returns the dispatch poller.
func (s *Service) Dispatches() *poller.Poller[[]models.DispatchRecord] { return s.dispatches }

// Predictions returns the prediction poller.
func (s *Service) Predictions() *poller.Poller[*models.PredictionBundle] { return s.predictions }

// Status reports every poller in a fixed order.
func (s *Service) Status() []Meta {
	inv, dis, pre := s.inventory.State(), s.dispatches.State(), s.predictions.State()
	return []Meta{
		{DomainInventory, s.inventory.Running(), inv.Loading, inv.Error, inv.LastUpdated},
		{DomainDispatches, s.dispatches.Running(), dis.Loading, dis.Error, dis.LastUpdated},
		{DomainPredictions, s.predictions.Running(), pre.Loading, pre.Error, pre.LastUpdated},
	}
}

func (s *Service) fetchInventory(ctx context.Context) ([]models.InventoryRecord, error) {
	rows, err := s.client.Query(ctx, table.Inventory, table.Options{OrderBy: "last_updated"})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Inventory, err)
	}
	records, report := normalize.InventoryRows(rows, s.now())
	s.logDefaults(table.Inventory, report)
	return records, nil
}

func (s *Service) fetchDispatches(ctx context.Context) ([]models.DispatchRecord, error) {
	rows, err := s.client.Query(ctx, table.Dispatches, table.Options{OrderBy: "created_at"})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Dispatches, err)
	}
	records, report := normalize.DispatchRows(rows, s.now())
	s.logDefaults(table.Dispatches, report)
	return records, nil
}

func (s *Service) fetchPredictions(ctx context.Context) (*models.PredictionBundle, error) {
	rows, err := s.client.Query(ctx, table.Predictions, table.Options{OrderBy: "timestamp", Limit: 1})
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", table.Predictions, err)
	}
	bundle, defaulted := normalize.LatestPrediction(rows, s.now())
	if len(defaulted) > 0 {
		s.logger.Debug("prediction fields defaulted", zap.Strings("fields", defaulted))
	}
	return bundle, nil
}

func (s *Service) logDefaults(tableName string, report normalize.Report) {
	if len(report) == 0 {
		return
	}
	s.logger.Debug("row fields defaulted", zap.String("table", tableName), zap.Int("rows", len(report)), zap.Any("fields", report))
}
