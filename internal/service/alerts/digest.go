package alerts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/internal/service/views"
	"github.com/mamadbah2/stockboard/pkg/clients/whatsapp"
)

const digestTimeout = 2 * time.Minute

// Snapshot is the data a digest is built from.
type Snapshot struct {
	Inventory   []models.InventoryRecord
	Dispatches  []models.DispatchRecord
	Predictions *models.PredictionBundle
}

// SnapshotFunc returns the current dashboard data.
type SnapshotFunc func() Snapshot

// CronScheduler registers jobs on a cron expression.
type CronScheduler interface {
	At(spec string, job func()) (poller.Handle, error)
}

// Digest sends a periodic stock summary for one region.
type Digest struct {
	client    whatsapp.Client
	recipient string
	title     string
	snapshot  SnapshotFunc
	now       func() time.Time
	logger    *zap.Logger
}

// NewDigest creates a digest sender. now may be nil.
func NewDigest(client whatsapp.Client, recipient, title string, snapshot SnapshotFunc, now func() time.Time, logger *zap.Logger) *Digest {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Digest{client: client, recipient: recipient, title: title, snapshot: snapshot, now: now, logger: logger}
}

// Schedule registers the digest on spec.
func (d *Digest) Schedule(s CronScheduler, spec string) (poller.Handle, error) {
	return s.At(spec, d.sendScheduled)
}

func (d *Digest) sendScheduled() {
	ctx, cancel := context.WithTimeout(context.Background(), digestTimeout)
	defer cancel()

	if err := d.Send(ctx); err != nil {
		d.logger.Error("failed to send stock digest", zap.Error(err))
		return
	}
	d.logger.Info("stock digest sent successfully")
}

// Send builds and delivers the digest now.
func (d *Digest) Send(ctx context.Context) error {
	msg := BuildDigest(d.title, d.snapshot(), d.now())
	if _, err := d.client.SendText(ctx, d.recipient, msg); err != nil {
		return fmt.Errorf("deliver digest: %w", err)
	}
	return nil
}

// BuildDigest renders the weekly summary text.
func BuildDigest(title string, snap Snapshot, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s, week to %s\n", title, now.Format("2006-01-02"))

	counts := views.StatusCounts(snap.Inventory)
	fmt.Fprintf(&b, "Inventory: %d items (%d healthy, %d low, %d critical)\n",
		len(snap.Inventory), counts[models.StatusHealthy], counts[models.StatusLow], counts[models.StatusCritical])

	week := views.FilterMovements(snap.Dispatches, views.WindowWeek, now)
	fmt.Fprintf(&b, "Dispatched: %d units across %d movements\n", views.TotalUnits(week), len(week))

	if snap.Predictions == nil || len(snap.Predictions.Predictions) == 0 {
		b.WriteString("Forecast: no predictions yet")
		return b.String()
	}

	best := snap.Predictions.Predictions[0]
	for _, p := range snap.Predictions.Predictions[1:] {
		if p.Confidence > best.Confidence {
			best = p
		}
	}
	fmt.Fprintf(&b, "Top forecast: %s (%s), %.0f%% confidence", best.Item, best.SKU, best.Confidence)
	return b.String()
}
