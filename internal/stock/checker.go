package stock

import (
	"context"
	"html"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/hermosa/pos-api/internal/catalog"
	"github.com/hermosa/pos-api/internal/events"
	"github.com/hermosa/pos-api/internal/notify"
	"github.com/hermosa/pos-api/internal/queue"
)

// DefaultThreshold flags products whose stock drops below ten units.
var DefaultThreshold = decimal.NewFromInt(10)

// Checker periodically scans the catalog and queues an alert email listing
// products running low. One alert per day at most, enforced through the
// queue's idempotency key.
type Checker struct {
	Catalog   *catalog.Service
	Queue     queue.Enqueuer
	Events    *events.Bus
	Threshold decimal.Decimal
	Recipient string
	Interval  time.Duration
	Logger    zerolog.Logger
	Now       func() time.Time
}

func (c *Checker) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// Run sweeps on the configured interval until the context is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := c.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.Check(ctx); err != nil {
				c.Logger.Error().Err(err).Msg("low stock sweep")
			}
		}
	}
}

// Check runs a single sweep. Nothing is queued when no product is below the
// threshold or no recipient is configured.
func (c *Checker) Check(ctx context.Context) error {
	if c.Recipient == "" {
		return nil
	}
	threshold := c.Threshold
	if threshold.IsZero() {
		threshold = DefaultThreshold
	}
	low := c.Catalog.LowStock(threshold)
	if len(low) == 0 {
		return nil
	}
	subject, body := renderAlert(low, threshold)
	key := "low-stock-" + c.now().Format("2006-01-02")
	c.Logger.Info().Int("products", len(low)).Msg("queueing low stock alert")
	queued, err := notify.EnqueueEmail(ctx, c.Queue, notify.EmailPayload{
		To:      c.Recipient,
		Subject: subject,
		HTML:    body,
	}, key, 0)
	if err != nil {
		return err
	}
	if queued && c.Events != nil {
		if _, err := c.Events.Emit(ctx, events.TopicStockLow, uuid.New(), map[string]any{"products": len(low)}); err != nil {
			c.Logger.Error().Err(err).Msg("emit stock.low")
		}
	}
	return nil
}

func renderAlert(products []catalog.Product, threshold decimal.Decimal) (subject, body string) {
	subject = "Low stock alert"
	var b strings.Builder
	b.WriteString("<h1>Products below " + threshold.String() + " in stock</h1>")
	b.WriteString("<table><tr><th>Product</th><th>Remaining</th></tr>")
	for _, p := range products {
		qty := p.StockQuantity.String()
		if p.UnitLabel != "" {
			qty += " " + html.EscapeString(p.UnitLabel)
		}
		b.WriteString("<tr><td>" + html.EscapeString(p.Name) + "</td><td>" + qty + "</td></tr>")
	}
	b.WriteString("</table>")
	return subject, b.String()
}
