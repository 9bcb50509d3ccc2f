// Package worker keeps a ledger snapshot current from change events and
// mirrors every new snapshot outward.
package worker

import (
	"context"
	"log/slog"
	"time"

	"kharcha/internal/log"
	"kharcha/internal/notify"
	"kharcha/internal/refresh"
)

type Worker struct {
	refresher *refresh.Refresher
	source    notify.Source
	mirror    *Mirror
	interval  time.Duration
}

// New wires a refresher fed by source to mirror. interval is the safety-net
// refresh period; zero disables it.
func New(r *refresh.Refresher, source notify.Source, mirror *Mirror, interval time.Duration) *Worker {
	return &Worker{refresher: r, source: source, mirror: mirror, interval: interval}
}

// Run blocks until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	if w.mirror != nil {
		w.refresher.OnUpdate(func(st *refresh.State) {
			_, _ = w.mirror.Handle(ctx, st)
		})
	}

	slog.InfoContext(ctx, "Worker started",
		log.FieldComponent, log.ComponentWorker,
		"interval", w.interval.String())

	err := w.refresher.Run(ctx, w.source, w.interval)
	w.refresher.Wait()

	slog.InfoContext(ctx, "Worker stopped", log.FieldComponent, log.ComponentWorker)
	return err
}
