// Package notify delivers new-record notifications to subscribers.
package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"catwatch/internal/model"
)

// Sender is the messaging transport a Notifier delivers through.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendPhoto(ctx context.Context, chatID int64, photoURL, caption string) error
}

// Summary reports what a notification round actually delivered.
type Summary struct {
	// Sent counts successfully delivered (record, subscriber) messages.
	Sent int
	// Failed counts (record, subscriber) messages that failed after retry.
	Failed int
	// Overflow is how many new records were withheld by the per-run cap.
	Overflow int
}

// Notifier sends one message per new record to every subscriber. Delivery
// of record i to subscriber j is independent: a failed pair is logged and
// skipped without affecting the rest of the round.
type Notifier struct {
	sender     Sender
	log        *slog.Logger
	maxPerRun  int
	listingURL string
	sendDelay  time.Duration
	backoff    time.Duration
}

// New creates a Notifier. maxPerRun caps the records announced in one run;
// the cap overflow is reported in a single summary message per subscriber.
func New(sender Sender, maxPerRun int, listingURL string, log *slog.Logger) *Notifier {
	if maxPerRun <= 0 {
		maxPerRun = 30
	}
	return &Notifier{
		sender:     sender,
		log:        log,
		maxPerRun:  maxPerRun,
		listingURL: listingURL,
		sendDelay:  500 * time.Millisecond,
		backoff:    2 * time.Second,
	}
}

// SetDelays overrides the inter-message delay and retry backoff (useful
// for testing).
func (n *Notifier) SetDelays(sendDelay, backoff time.Duration) {
	n.sendDelay = sendDelay
	n.backoff = backoff
}

// NotifyAll delivers the new records to every subscriber.
func (n *Notifier) NotifyAll(ctx context.Context, subs []model.Subscriber, records []model.Record) Summary {
	var sum Summary

	capped := records
	if len(capped) > n.maxPerRun {
		sum.Overflow = len(capped) - n.maxPerRun
		capped = capped[:n.maxPerRun]
	}

	for _, sub := range subs {
		first := true
		for _, rec := range capped {
			if ctx.Err() != nil {
				return sum
			}
			// Pace consecutive messages to the same subscriber.
			if !first && !n.pause(ctx) {
				return sum
			}
			first = false

			if err := n.sendRecord(ctx, sub, rec); err != nil {
				n.log.Error("send notification",
					"chat_id", sub.ChatID, "record_id", rec.ID, "error", err)
				sum.Failed++
				continue
			}
			sum.Sent++
		}

		if sum.Overflow > 0 && len(capped) > 0 {
			if !n.pause(ctx) {
				return sum
			}
			msg := FormatOverflow(sum.Overflow, n.listingURL)
			if err := n.sendWithRetry(ctx, func(ctx context.Context) error {
				return n.sender.SendMessage(ctx, sub.ChatID, msg)
			}); err != nil {
				n.log.Error("send overflow summary", "chat_id", sub.ChatID, "error", err)
			}
		}
	}

	return sum
}

func (n *Notifier) sendRecord(ctx context.Context, sub model.Subscriber, rec model.Record) error {
	return n.sendWithRetry(ctx, func(ctx context.Context) error {
		if rec.ImageURL != "" {
			return n.sender.SendPhoto(ctx, sub.ChatID, rec.ImageURL, FormatRecord(rec))
		}
		return n.sender.SendMessage(ctx, sub.ChatID, FormatRecord(rec))
	})
}

// sendWithRetry attempts a send, retrying exactly once after the backoff.
func (n *Notifier) sendWithRetry(ctx context.Context, send func(ctx context.Context) error) error {
	b := retry.WithMaxRetries(1, retry.NewConstant(n.backoff))
	return retry.Do(ctx, b, func(ctx context.Context) error {
		if err := send(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}

func (n *Notifier) pause(ctx context.Context) bool {
	if n.sendDelay <= 0 {
		return true
	}
	timer := time.NewTimer(n.sendDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
