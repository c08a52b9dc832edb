package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

const maxHistoryLen = 200

// Listener is notified after every recorded alert.
type Listener func(types.AlertEvent)

// Recorder stamps alerts and appends them to a sink.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	sink  store.AlertSink
	now   func() time.Time // injectable for deterministic tests
	newID func() string

	mu        sync.Mutex
	history   []types.AlertEvent // most recent last
	listeners []Listener
}

// New creates a Recorder writing to sink.
func New(sink store.AlertSink) *Recorder {
	return &Recorder{
		sink:  sink,
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// OnAlert registers fn to be called synchronously after each Record.
func (r *Recorder) OnAlert(fn Listener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Record fills in the id, status and creation time of a, appends it to the
// sink and returns the stamped event. The event is kept in the in-memory
// history and passed to listeners even when the sink write fails.
func (r *Recorder) Record(ctx context.Context, a types.AlertEvent) (types.AlertEvent, error) {
	if a.ID == "" {
		a.ID = r.newID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = r.now().UTC()
	}
	a.Status = types.AlertActive

	var err error
	if werr := r.sink.AppendAlert(ctx, a); werr != nil {
		err = fmt.Errorf("alerts: append %s alert for %s: %w", a.Category, a.StationID, werr)
	}

	attrs := []any{
		"station", a.StationID,
		"category", a.Category,
		"severity", a.Severity,
		"message", a.Message,
	}
	if a.Parameter != nil {
		attrs = append(attrs, "parameter", *a.Parameter)
	}
	if a.Value != nil {
		attrs = append(attrs, "value", *a.Value)
	}
	if a.Severity == types.SeverityInfo {
		slog.Info("alert fired", attrs...)
	} else {
		slog.Warn("alert fired", attrs...)
	}

	r.mu.Lock()
	r.history = append(r.history, a)
	if len(r.history) > maxHistoryLen {
		r.history = r.history[len(r.history)-maxHistoryLen:]
	}
	listeners := make([]Listener, len(r.listeners))
	copy(listeners, r.listeners)
	r.mu.Unlock()

	for _, fn := range listeners {
		fn(a)
	}
	return a, err
}

// Recent returns up to limit alerts from the in-memory history, newest
// first. An empty stationID matches every station; limit <= 0 returns all.
func (r *Recorder) Recent(stationID string, limit int) []types.AlertEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]types.AlertEvent, 0)
	for i := len(r.history) - 1; i >= 0; i-- {
		a := r.history[i]
		if stationID != "" && a.StationID != stationID {
			continue
		}
		out = append(out, a)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}
