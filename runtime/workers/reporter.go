package workers

import (
	"context"
	"log/slog"
	"time"
)

// StatsReporter periodically logs a snapshot of relay health: connection
// counts, memory usage, whatever the provider exposes. Purely observational.
type StatsReporter struct {
	log      *slog.Logger
	interval time.Duration
	snapshot func() map[string]any
}

func NewStatsReporter(log *slog.Logger, interval time.Duration, snapshot func() map[string]any) *StatsReporter {
	return &StatsReporter{log: log, interval: interval, snapshot: snapshot}
}

func (w *StatsReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			stats := w.snapshot()
			args := make([]any, 0, len(stats)*2)
			for k, v := range stats {
				args = append(args, k, v)
			}
			w.log.Info("relay stats", args...)
		}
	}
}
