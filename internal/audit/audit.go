// Package audit captures key marketplace actions as append-only events.
// Domain services publish onto a buffered channel; a background worker drains
// it into a store. Keep Event transport-agnostic so stores and sinks can fan
// out.
package audit

import (
	"context"
	"log/slog"
	"time"

	"coopmarket/pkg/domain"
)

// Category classifies audit events by their primary purpose.
type Category string

const (
	// CategorySecurity covers auth failures, bans, role changes.
	CategorySecurity Category = "security"
	// CategoryOperations covers routine marketplace activity.
	CategoryOperations Category = "operations"
)

// Action names. Stable strings: the admin log endpoint exposes them as-is.
const (
	ActionUserRegistered     = "user_registered"
	ActionLoginSucceeded     = "login_succeeded"
	ActionAuthFailed         = "auth_failed"
	ActionPasswordReset      = "password_reset"
	ActionEmailVerified      = "email_verified"
	ActionRoleChanged        = "role_changed"
	ActionUserBanned         = "user_banned"
	ActionUserUnbanned       = "user_unbanned"
	ActionProductCreated     = "product_created"
	ActionProductUpdated     = "product_updated"
	ActionProductDeleted     = "product_deleted"
	ActionAuctionCreated     = "auction_created"
	ActionAuctionCancelled   = "auction_cancelled"
	ActionAuctionEnded       = "auction_ended"
	ActionBidPlaced          = "bid_placed"
	ActionBidRejected        = "bid_rejected"
	ActionOrderCreated       = "order_created"
	ActionOrderStatusChanged = "order_status_changed"
)

// Event is one audit record.
type Event struct {
	Category  Category      `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	UserID    domain.UserID `json:"user_id"`
	Action    string        `json:"action"`
	Subject   string        `json:"subject,omitempty"`
	Reason    string        `json:"reason,omitempty"`
	RequestID string        `json:"request_id,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Publisher hands events to the worker without blocking request handling.
// When the buffer is full the event is dropped and counted in the log; audit
// must never stall a request.
type Publisher struct {
	inbox  chan Event
	logger *slog.Logger
}

func NewPublisher(buffer int, logger *slog.Logger) *Publisher {
	return &Publisher{inbox: make(chan Event, buffer), logger: logger}
}

// Publish stamps and enqueues an event.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit inbox full, dropping event",
			"action", event.Action,
		)
	}
}

// Inbox exposes the receive side for the worker.
func (p *Publisher) Inbox() <-chan Event { return p.inbox }

// Worker consumes audit events from the publisher and persists them.
type Worker struct {
	store  Store
	inbox  <-chan Event
	logger *slog.Logger
}

func NewWorker(store Store, inbox <-chan Event, logger *slog.Logger) *Worker {
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run drains the inbox until the context is cancelled. Store failures are
// logged, not fatal: losing an audit row must not take the process down.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-w.inbox:
			if err := w.store.Append(ctx, event); err != nil {
				w.logger.ErrorContext(ctx, "failed to append audit event",
					"error", err,
					"action", event.Action,
				)
			}
		}
	}
}
