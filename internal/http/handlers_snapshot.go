package http

import (
	"context"
	"net/http"
	"sort"
	"time"

	"kharcha/internal/core"
	"kharcha/internal/export"
	"kharcha/internal/ledger"
	"kharcha/internal/log"
	"kharcha/internal/refresh"
)

// marketNoteLimit is how many annotated market purchases the dashboard shows.
const marketNoteLimit = 3

type budgetView struct {
	ledger.BudgetProgress
	Severity ledger.Severity `json:"severity"`
}

func budgetViews(progress []ledger.BudgetProgress) []budgetView {
	out := make([]budgetView, 0, len(progress))
	for _, p := range progress {
		out = append(out, budgetView{BudgetProgress: p, Severity: p.Severity()})
	}
	return out
}

type dashboardResponse struct {
	Snapshot    ledger.FinancialSnapshot `json:"snapshot"`
	Budgets     []budgetView             `json:"budgets"`
	PerPerson   ledger.PerPerson         `json:"per_person"`
	TodayMenu   *menuView                `json:"today_menu,omitempty"`
	MarketNotes []core.MarketPurchase    `json:"market_notes"`
	Currency    string                   `json:"currency"`
	Empty       bool                     `json:"empty"`
	Stale       bool                     `json:"stale"`
	Error       string                   `json:"error,omitempty"`
	Generation  uint64                   `json:"generation"`
	RefreshedAt *time.Time               `json:"refreshed_at,omitempty"`
}

// marketNotes returns the newest purchases that carry a per-item budget or a
// note.
func marketNotes(purchases []core.MarketPurchase, limit int) []core.MarketPurchase {
	out := make([]core.MarketPurchase, 0, limit)
	for _, p := range purchases {
		if p.BudgetLimit != nil || p.Note != "" {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// handleDashboard serves the latest published snapshot. It never blocks on
// the store for ledger data; a failed refresh shows up as stale with the
// last good figures.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	st := s.refresher.Current()
	resp := dashboardResponse{
		Snapshot:    st.Report.Snapshot,
		Budgets:     budgetViews(st.Report.Budgets),
		PerPerson:   st.Report.PerPerson,
		MarketNotes: marketNotes(st.Ledger.Market, marketNoteLimit),
		Currency:    s.currency,
		Empty:       st.Ledger.IsEmpty(),
		Stale:       st.Stale(),
		Generation:  st.Generation,
	}
	if st.Err != nil {
		resp.Error = "could not load the latest ledger data"
	}
	if !st.RefreshedAt.IsZero() {
		at := st.RefreshedAt
		resp.RefreshedAt = &at
	}

	today, err := s.store.GetMenuDay(r.Context(), s.now().Weekday())
	if err != nil {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Menu unavailable for dashboard",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldError, err)
	} else {
		v := newMenuView(today)
		resp.TodayMenu = &v
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleBudgetProgress(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, budgetViews(s.refresher.Current().Report.Budgets))
}

func (s *Server) handleAssistantContext(w http.ResponseWriter, r *http.Request) {
	st := s.refresher.Current()
	text, err := s.assistant.Build(st.Ledger, st.Report)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if st.Stale() {
		w.Header().Set("X-Snapshot-Stale", "true")
	}
	_, _ = w.Write([]byte(text))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	st := s.refresher.Current()
	body, err := s.exporter.Export(r.Context(), st.Generation, st.Ledger, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", f.ContentType())
	w.Header().Set("Content-Disposition", `attachment; filename="`+f.Filename(s.now())+`"`)
	_, _ = w.Write(body)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	})
}

// handleReady checks the store and reports the snapshot state. A stale
// snapshot does not make the service unready; the store being down does.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if err := s.store.Ping(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	checks["snapshot"] = snapshotCheck(s.refresher.Current())
	checks["rate_limiter"] = map[string]any{
		"active_clients": s.limiter.ActiveClients(),
	}
	if s.exporter != nil {
		checks["export_cache"] = s.exporter.Cache().Stats()
	}

	writeJSON(w, httpStatus, map[string]any{
		"status":    status,
		"timestamp": s.now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}

func snapshotCheck(st *refresh.State) map[string]any {
	out := map[string]any{
		"generation": st.Generation,
		"stale":      st.Stale(),
	}
	if !st.RefreshedAt.IsZero() {
		out["refreshed_at"] = st.RefreshedAt.UTC().Format(time.RFC3339)
	}
	return out
}
