package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/hermosa/pos-api/internal/common"
	"github.com/hermosa/pos-api/internal/events"
	"github.com/hermosa/pos-api/internal/queue"
	"github.com/hermosa/pos-api/internal/sales"
)

// EmailTask is the queue kind carrying a fully rendered email.
const EmailTask = "send-email"

// EmailPayload is the queue message body for EmailTask. Emails are rendered
// by the producer; the worker only delivers them.
type EmailPayload struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

// EmailScheduler turns sale.created events into queued receipt emails. It
// implements events.Scheduler on the bus.
type EmailScheduler struct {
	Queue       queue.Enqueuer
	Sales       *sales.Service
	MaxAttempts int
	Logger      zerolog.Logger
}

// Schedule renders a receipt for sale.created events that carry a customer
// email and enqueues it for delivery. Other topics are ignored.
func (s EmailScheduler) Schedule(ctx context.Context, ev events.Event) error {
	if ev.Topic != events.TopicSaleCreated {
		return nil
	}
	var payload struct {
		Email string `json:"email"`
	}
	if err := json.Unmarshal(ev.Payload, &payload); err != nil {
		return fmt.Errorf("notify: decode sale.created payload: %w", err)
	}
	if payload.Email == "" {
		return nil
	}
	rec, err := s.Sales.Get(ev.AggregateID)
	if err != nil {
		return fmt.Errorf("notify: load sale %s: %w", ev.AggregateID, err)
	}
	subject, body := RenderReceipt(rec)
	_, err = EnqueueEmail(ctx, s.Queue, EmailPayload{
		To:      payload.Email,
		Subject: subject,
		HTML:    body,
	}, "receipt-"+rec.ID.String(), s.MaxAttempts)
	return err
}

// EnqueueEmail queues one rendered email for asynchronous delivery. The bool
// reports whether the email was queued (false when deduplicated).
func EnqueueEmail(ctx context.Context, q queue.Enqueuer, p EmailPayload, idempotencyKey string, maxAttempts int) (bool, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return false, err
	}
	if maxAttempts <= 0 {
		maxAttempts = 6
	}
	return q.Enqueue(ctx, queue.Task{
		Kind:           EmailTask,
		Payload:        raw,
		IdempotencyKey: idempotencyKey,
		MaxAttempts:    maxAttempts,
	})
}

// EmailHandler returns a queue handler that delivers queued emails through
// the given sender.
func EmailHandler(sender common.EmailSender, logger zerolog.Logger) func(context.Context, queue.Task) error {
	return func(ctx context.Context, task queue.Task) error {
		var p EmailPayload
		if err := json.Unmarshal(task.Payload, &p); err != nil {
			// malformed payloads will never succeed, drop instead of retrying
			logger.Error().Err(err).Msg("drop malformed email task")
			return nil
		}
		if err := sender.Send(ctx, p.To, p.Subject, p.HTML); err != nil {
			return err
		}
		logger.Info().Str("to", p.To).Str("subject", p.Subject).Msg("email delivered")
		return nil
	}
}
