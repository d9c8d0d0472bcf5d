// Package alerts pushes stock notifications to a WhatsApp recipient.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockboard/internal/domain/models"
	"github.com/mamadbah2/stockboard/internal/poller"
	"github.com/mamadbah2/stockboard/pkg/clients/whatsapp"
)

const queueSize = 32

// Notifier watches inventory snapshots and reports items that newly turn critical.
//
// The first successful snapshot only establishes the baseline, so a restart
// does not replay alerts for items that were already critical.
type Notifier struct {
	client    whatsapp.Client
	recipient string
	logger    *zap.Logger

	mu       sync.Mutex
	seeded   bool
	critical map[string]struct{}

	queue chan string
}

// NewNotifier creates a notifier delivering to recipient.
func NewNotifier(client whatsapp.Client, recipient string, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{
		client:    client,
		recipient: recipient,
		logger:    logger,
		critical:  make(map[string]struct{}),
		queue:     make(chan string, queueSize),
	}
}

// Observe is a poller subscriber. It never blocks: when the delivery queue is
// full the message is dropped and logged.
func (n *Notifier) Observe(state poller.State[[]models.InventoryRecord]) {
	if state.Error != "" || state.Loading {
		return
	}

	fresh := n.diff(state.Data)
	if len(fresh) == 0 {
		return
	}

	msg := criticalMessage(fresh)
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn("alert queue full, dropping message", zap.Int("items", len(fresh)))
	}
}

// Run delivers queued messages until ctx is done.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-n.queue:
			id, err := n.client.SendText(ctx, n.recipient, msg)
			if err != nil {
				n.logger.Error("failed to send critical stock alert", zap.Error(err))
				continue
			}
			n.logger.Info("critical stock alert sent", zap.String("message_id", id))
		}
	}
}

// diff updates the critical set and returns the records that were not critical before.
func (n *Notifier) diff(items []models.InventoryRecord) []models.InventoryRecord {
	n.mu.Lock()
	defer n.mu.Unlock()

	current := make(map[string]struct{})
	var fresh []models.InventoryRecord
	for _, item := range items {
		if item.Status != models.StatusCritical {
			continue
		}
		key := itemKey(item)
		if _, dup := current[key]; dup {
			continue
		}
		current[key] = struct{}{}
		if _, known := n.critical[key]; !known && n.seeded {
			fresh = append(fresh, item)
		}
	}

	n.critical = current
	n.seeded = true
	return fresh
}

// SKUs are not guaranteed unique, so the item name is part of the key.
func itemKey(item models.InventoryRecord) string {
	return item.SKU + "\x00" + item.ItemName
}

func criticalMessage(items []models.InventoryRecord) string {
	sorted := append([]models.InventoryRecord(nil), items...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].AvailableStock < sorted[j].AvailableStock })

	var b strings.Builder
	fmt.Fprintf(&b, "Critical stock: %d item(s)\n", len(sorted))
	for _, item := range sorted {
		fmt.Fprintf(&b, "- %s (%s): %d left\n", item.ItemName, item.SKU, item.AvailableStock)
	}
	return strings.TrimSuffix(b.String(), "\n")
}
