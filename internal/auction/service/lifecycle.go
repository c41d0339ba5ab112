package service

import (
	"context"
	"log/slog"
	"time"
)

// Lifecycle is the background worker that moves auctions through time:
// due SCHEDULED auctions become ACTIVE, expired ACTIVE auctions END.
type Lifecycle struct {
	service  *Service
	interval time.Duration
	logger   *slog.Logger
}

func NewLifecycle(service *Service, interval time.Duration, logger *slog.Logger) *Lifecycle {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Lifecycle{service: service, interval: interval, logger: logger}
}

// Run ticks until the context is cancelled. Individual transition failures
// are logged and retried on the next tick; the worker itself never dies from
// them.
func (l *Lifecycle) Run(ctx context.Context) error {
	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.sweep(ctx)
		}
	}
}

func (l *Lifecycle) sweep(ctx context.Context) {
	toActivate, toEnd, err := l.service.auctions.ListDue(ctx, time.Now())
	if err != nil {
		l.logger.ErrorContext(ctx, "failed to list due auctions", "error", err)
		return
	}

	for _, auction := range toActivate {
		if err := l.service.Activate(ctx, auction); err != nil {
			l.logger.ErrorContext(ctx, "failed to activate auction",
				"error", err,
				"auction_id", auction.ID,
			)
			continue
		}
		l.logger.InfoContext(ctx, "auction activated", "auction_id", auction.ID)
	}

	for _, auction := range toEnd {
		if _, err := l.service.End(ctx, auction); err != nil {
			l.logger.ErrorContext(ctx, "failed to end auction",
				"error", err,
				"auction_id", auction.ID,
			)
			continue
		}
		l.logger.InfoContext(ctx, "auction ended", "auction_id", auction.ID)
	}
}
