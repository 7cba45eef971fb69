package triage

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically re-evaluates SLA standings so deadlines that pass
// without any edit still produce an sla_alert.
type Sweeper struct {
	log      *slog.Logger
	svc      *Service
	interval time.Duration
}

func NewSweeper(log *slog.Logger, svc *Service, interval time.Duration) *Sweeper {
	return &Sweeper{log: log, svc: svc, interval: interval}
}

// Run blocks until ctx is cancelled.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.InfoContext(ctx, "sla sweeper started", slog.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.svc.RefreshSLA(ctx)
		}
	}
}
