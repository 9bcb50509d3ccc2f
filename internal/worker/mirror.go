package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"kharcha/internal/ledger"
	"kharcha/internal/log"
	"kharcha/internal/refresh"
	"kharcha/internal/sheets"
)

const (
	mirrorLockKey = "kharcha:lock:mirror"
	mirrorLockTTL = 30 * time.Second
)

// Alert is a budget whose severity rose since the previous snapshot.
type Alert struct {
	Budget   string
	Severity ledger.Severity
	Percent  float64
	Spent    string
}

// Mirror writes each newer published snapshot to a SnapshotMirror and raises
// budget alerts. Calls are serialized and older generations are ignored, so
// listeners may deliver states out of order.
type Mirror struct {
	target sheets.SnapshotMirror
	locker Locker

	mu      sync.Mutex
	lastGen uint64
	levels  map[string]ledger.Severity
}

type MirrorOption func(*Mirror)

// WithLocker makes Mirror write only while holding a shared lock, so one
// replica among several updates the sheet.
func WithLocker(l Locker) MirrorOption {
	return func(m *Mirror) { m.locker = l }
}

func NewMirror(target sheets.SnapshotMirror, opts ...MirrorOption) *Mirror {
	m := &Mirror{target: target, levels: make(map[string]ledger.Severity)}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Handle processes one published state. It returns the alerts raised, and
// an error only when the mirror write failed.
func (m *Mirror) Handle(ctx context.Context, st *refresh.State) ([]Alert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if st.Generation <= m.lastGen {
		return nil, nil
	}
	m.lastGen = st.Generation

	var alerts []Alert
	if !st.Stale() {
		alerts = m.checkBudgets(ctx, st.Report.Budgets)
	}

	if m.target == nil {
		return alerts, nil
	}
	if err := m.write(ctx, st); err != nil {
		slog.ErrorContext(ctx, "Snapshot mirror failed",
			log.FieldComponent, log.ComponentWorker,
			log.FieldGeneration, st.Generation,
			log.FieldError, err)
		return alerts, err
	}
	return alerts, nil
}

func (m *Mirror) write(ctx context.Context, st *refresh.State) error {
	if m.locker != nil {
		release, err := m.locker.Obtain(ctx, mirrorLockKey, mirrorLockTTL)
		if errors.Is(err, ErrLockHeld) {
			slog.DebugContext(ctx, "Another worker holds the mirror lock, skipping",
				log.FieldComponent, log.ComponentWorker,
				log.FieldGeneration, st.Generation)
			return nil
		}
		if err != nil {
			return fmt.Errorf("obtain mirror lock: %w", err)
		}
		defer func() {
			if err := release(ctx); err != nil {
				slog.WarnContext(ctx, "Failed to release mirror lock",
					log.FieldComponent, log.ComponentWorker,
					log.FieldError, err)
			}
		}()
	}

	rng, err := m.target.Mirror(ctx, sheets.Snapshot{
		Report:      st.Report,
		Generation:  st.Generation,
		RefreshedAt: st.RefreshedAt,
		Stale:       st.Stale(),
	})
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "Snapshot mirrored",
		log.FieldComponent, log.ComponentWorker,
		log.FieldGeneration, st.Generation,
		log.FieldRemaining, st.Report.Snapshot.Remaining.String(),
		"range", rng)
	return nil
}

// checkBudgets logs budgets that moved to a higher severity. Budgets that
// vanished are forgotten so a re-created one alerts again.
func (m *Mirror) checkBudgets(ctx context.Context, budgets []ledger.BudgetProgress) []Alert {
	var alerts []Alert
	seen := make(map[string]struct{}, len(budgets))
	for _, p := range budgets {
		key := p.Budget.ID
		if key == "" {
			key = p.Budget.Name
		}
		seen[key] = struct{}{}

		sev := p.Severity()
		prev, ok := m.levels[key]
		if !ok {
			prev = ledger.SeverityNormal
		}
		m.levels[key] = sev
		if rank(sev) <= rank(prev) {
			continue
		}

		a := Alert{Budget: p.Budget.Name, Severity: sev, Percent: p.Percent, Spent: p.Spent.String()}
		alerts = append(alerts, a)
		slog.WarnContext(ctx, "Budget threshold crossed",
			log.FieldComponent, log.ComponentWorker,
			log.FieldBudget, a.Budget,
			log.FieldPercent, a.Percent,
			"severity", a.Severity,
			"spent", a.Spent,
			"over_budget", p.OverBudget)
	}
	for key := range m.levels {
		if _, ok := seen[key]; !ok {
			delete(m.levels, key)
		}
	}
	return alerts
}

func rank(s ledger.Severity) int {
	switch s {
	case ledger.SeverityCritical:
		return 2
	case ledger.SeverityWarning:
		return 1
	}
	return 0
}
