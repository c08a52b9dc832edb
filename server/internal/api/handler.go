package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/compute"
	"github.com/buoywatch/buoywatch/server/internal/ingest"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

const (
	maxBodyBytes      = 64 << 10
	reportAlertLimit  = 5
	defaultAlertLimit = 50
	maxAlertLimit     = 500
)

// Submitter accepts a raw JSON submission. stationID may be empty, in which
// case the body's buoy_id is used.
type Submitter interface {
	Submit(ctx context.Context, stationID string, data []byte) (*ingest.Result, error)
}

// RulesProvider supplies the effective rule set.
type RulesProvider interface {
	Rules(ctx context.Context) settings.Rules
}

// AlertHistory is the recorder's in-memory alert history.
type AlertHistory interface {
	Recent(stationID string, limit int) []types.AlertEvent
}

// Deps are the collaborators a Handler reads from.
type Deps struct {
	Ingest   Submitter
	Registry store.Registry
	State    store.StateStore
	Alerts   store.AlertSink
	Rules    RulesProvider

	// History, when set, serves alert reads while the sink is failing.
	History AlertHistory
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	deps Deps
	mux  *http.ServeMux
}

// New creates a Handler and registers all routes.
func New(deps Deps) http.Handler {
	h := &Handler{deps: deps, mux: http.NewServeMux()}

	h.mux.HandleFunc("/api/v1/ingest", h.ingest)
	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/stations", h.listStations)
	h.mux.HandleFunc("/api/v1/stations/", h.getStation) // subtree, extracts {id}
	h.mux.HandleFunc("/api/v1/alerts", h.alerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// ingest handles POST /api/v1/ingest.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
		return
	}

	res, err := h.deps.Ingest.Submit(r.Context(), "", body)
	switch {
	case errors.Is(err, ingest.ErrInvalidReading):
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		slog.Error("api: ingest failed", "err", err)
		jsonErr(w, http.StatusInternalServerError, "ingest failed")
		return
	}
	jsonResp(w, http.StatusOK, res)
}

// health handles GET /api/v1/health: station counts by state.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ctx := r.Context()
	ids, err := h.deps.Registry.ListStations(ctx)
	if err != nil {
		slog.Error("api: list stations failed", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "registry unavailable")
		return
	}

	resp := HealthResponse{
		Status:          "ok",
		StationCount:    len(ids),
		SchedulerPaused: h.deps.Rules.Rules(ctx).Paused,
	}
	for _, id := range ids {
		switch h.stateOf(ctx, id) {
		case types.StateOnline:
			resp.OnlineCount++
		case types.StateOffline:
			resp.OfflineCount++
		default:
			resp.UnknownCount++
		}
	}
	jsonResp(w, http.StatusOK, resp)
}

// listStations handles GET /api/v1/stations.
func (h *Handler) listStations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out, err := h.stations(r.Context())
	if err != nil {
		slog.Error("api: list stations failed", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "registry unavailable")
		return
	}
	jsonResp(w, http.StatusOK, out)
}

// getStation handles GET /api/v1/stations/{id}.
func (h *Handler) getStation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/v1/stations/")
	if id == "" {
		h.listStations(w, r)
		return
	}

	ctx := r.Context()
	rules := h.deps.Rules.Rules(ctx)
	report, known := h.summary(ctx, id, rules.Weights)

	cfg, err := h.deps.Registry.StationSettings(ctx, id)
	switch {
	case err == nil:
		known = true
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("api: read station settings failed", "station", id, "err", err)
	}
	if !known {
		jsonErr(w, http.StatusNotFound, "station not found")
		return
	}

	offlineAfter := rules.OfflineAfter
	if cfg.OfflineAfter > 0 {
		offlineAfter = cfg.OfflineAfter
	}
	report.Settings = SettingsResponse{
		ExpectedParams:       cfg.Expected(),
		OfflineAfterMinutes:  offlineAfter.Minutes(),
		MissingRepeatMinutes: rules.MissingRepeat.Minutes(),
	}

	recent, err := h.recentAlerts(ctx, id, reportAlertLimit)
	if err != nil {
		slog.Warn("api: recent alerts failed", "station", id, "err", err)
		recent = []types.AlertEvent{}
	}
	report.RecentAlerts = recent

	jsonResp(w, http.StatusOK, report)
}

// alerts handles GET /api/v1/alerts?station=&limit=, newest first.
func (h *Handler) alerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	q := r.URL.Query()
	limit := defaultAlertLimit
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAlertLimit)
	}

	out, err := h.recentAlerts(r.Context(), q.Get("station"), limit)
	if err != nil {
		slog.Error("api: recent alerts failed", "err", err)
		jsonErr(w, http.StatusServiceUnavailable, "alert log unavailable")
		return
	}
	jsonResp(w, http.StatusOK, out)
}

// BuildSnapshot returns the station list with a generation timestamp. The
// WebSocket hub broadcasts it on every tick.
func BuildSnapshot(ctx context.Context, deps Deps) (SnapshotResponse, error) {
	h := &Handler{deps: deps}
	list, err := h.stations(ctx)
	if err != nil {
		return SnapshotResponse{}, err
	}
	return SnapshotResponse{
		Stations:    list,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}, nil
}

// --- helpers ----------------------------------------------------------------

func (h *Handler) stations(ctx context.Context) ([]StationSummary, error) {
	ids, err := h.deps.Registry.ListStations(ctx)
	if err != nil {
		return nil, err
	}
	weights := h.deps.Rules.Rules(ctx).Weights
	out := make([]StationSummary, 0, len(ids))
	for _, id := range ids {
		rep, _ := h.summary(ctx, id, weights)
		out = append(out, rep.StationSummary)
	}
	return out, nil
}

// summary assembles the live view of one station. known reports whether any
// state exists for it.
func (h *Handler) summary(ctx context.Context, id string, weights compute.Weights) (StationReport, bool) {
	rep := StationReport{
		StationSummary: StationSummary{StationID: id, State: types.StateUnknown},
		Sensors:        map[types.Parameter]types.Tier{},
		Missing:        []types.Parameter{},
		Values:         types.Values{},
	}
	known := false

	if owner, err := h.deps.Registry.Owner(ctx, id); err == nil {
		rep.OwnerID = owner
	}

	cur, err := h.deps.State.Current(ctx, id)
	switch {
	case err == nil:
		known = true
		rep.Values = cur.Values
		rep.UpdatedAt = cur.UpdatedAt.UTC().Format(time.RFC3339)
		if len(cur.Values) > 0 {
			res := compute.Score(cur.Values, weights)
			rep.Score = &res
			rep.Index = &res.Index
			rep.Status = res.Status
		}
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("api: read current failed", "station", id, "err", err)
	}

	snap, err := h.deps.State.Status(ctx, id)
	switch {
	case err == nil:
		known = true
		rep.State = snap.State
		rep.LastChecked = snap.LastChecked.UTC().Format(time.RFC3339)
		if snap.Sensors != nil {
			rep.Sensors = snap.Sensors
		}
		if snap.Missing != nil {
			rep.Missing = snap.Missing
		}
	case !errors.Is(err, store.ErrNotFound):
		slog.Warn("api: read status failed", "station", id, "err", err)
	}
	return rep, known
}

// recentAlerts reads the sink, falling back to the in-memory history when
// the sink errors and a history is configured.
func (h *Handler) recentAlerts(ctx context.Context, stationID string, limit int) ([]types.AlertEvent, error) {
	out, err := h.deps.Alerts.RecentAlerts(ctx, stationID, time.Time{}, limit)
	if err != nil {
		if h.deps.History == nil {
			return nil, err
		}
		slog.Warn("api: alert sink unavailable, serving in-memory history", "err", err)
		out = h.deps.History.Recent(stationID, limit)
	}
	if out == nil {
		out = []types.AlertEvent{}
	}
	return out, nil
}

func (h *Handler) stateOf(ctx context.Context, id string) types.State {
	snap, err := h.deps.State.Status(ctx, id)
	if err != nil {
		return types.StateUnknown
	}
	return snap.State
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
