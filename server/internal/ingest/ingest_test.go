package ingest

import (
	"context"
	"errors"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/alerts"
	"github.com/buoywatch/buoywatch/server/internal/compute"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

// 2024-06-01 20:00 UTC is already 2024-06-02 in Bangkok.
var eventTime = time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC)

type fixture struct {
	mem *store.Memory
	o   *Orchestrator
	obs *recordingObserver
}

type recordingObserver struct{ calls []compute.Result }

func (r *recordingObserver) ObserveIngest(_ string, s compute.Result) { r.calls = append(r.calls, s) }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Bangkok")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	mem := store.NewMemory(0)
	mem.RegisterStation("buoy_001", "registry-owner", types.StationSettings{})
	obs := &recordingObserver{}
	o := New(Deps{
		History:  mem,
		State:    mem,
		Registry: mem,
		Alerts:   alerts.New(mem),
		Rules:    settings.NewProvider(settings.NewStaticSource(settings.Document{}), time.Minute),
		Location: loc,
		Observer: obs,
	})
	o.now = func() time.Time { return eventTime.Add(time.Hour) }
	return &fixture{mem: mem, o: o, obs: obs}
}

func TestIngest_HealthyReading(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.o.Ingest(ctx, "buoy_001", map[string]any{
		"ph":          7.0,
		"tds":         500.0,
		"ec":          nil,
		"turbidity":   10.0,
		"temperature": 28.0,
		"rainfall":    900.0,
	}, eventTime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.Score.Index != 90.25 || res.Score.Status != compute.StatusGood {
		t.Errorf("score: got %.2f %q, want 90.25 Good", res.Score.Index, res.Score.Status)
	}
	if len(res.Alerts) != 0 {
		t.Errorf("alerts: got %d, want 0", len(res.Alerts))
	}
	if !res.Timestamp.Equal(eventTime) {
		t.Errorf("Timestamp: got %v, want %v", res.Timestamp, eventTime)
	}

	if got := len(f.mem.Readings("buoy_001")); got != 5 {
		t.Errorf("timeseries rows: got %d, want 5", got)
	}
	if got := len(f.mem.History("buoy_001", "2024-06-02")); got != 1 {
		t.Errorf("history for local day 2024-06-02: got %d, want 1", got)
	}

	logs := f.mem.ScoreLogs("buoy_001")
	if len(logs) != 1 {
		t.Fatalf("score logs: got %d, want 1", len(logs))
	}
	if logs[0].OwnerID == nil || *logs[0].OwnerID != "registry-owner" {
		t.Errorf("score log owner: got %v, want registry-owner", logs[0].OwnerID)
	}

	seen, _ := f.mem.LastSeen(ctx, "buoy_001")
	if _, ok := seen[types.EC]; ok {
		t.Error("null ec must not be stamped as seen")
	}
	if !seen[types.PH].Equal(eventTime) {
		t.Errorf("last seen ph: got %v, want %v", seen[types.PH], eventTime)
	}

	if len(f.obs.calls) != 1 {
		t.Errorf("observer calls: got %d, want 1", len(f.obs.calls))
	}
}

func TestIngest_AcidicReadingRaisesOneAlert(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.Ingest(context.Background(), "buoy_001", map[string]any{"ph": 5.5}, eventTime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if res.Score.Index != 0 || res.Score.Status != compute.StatusCritical {
		t.Errorf("score: got %.2f %q, want 0 Critical", res.Score.Index, res.Score.Status)
	}
	if len(res.Alerts) != 1 {
		t.Fatalf("alerts: got %d, want 1", len(res.Alerts))
	}
	a := res.Alerts[0]
	if a.Severity != types.SeverityCritical || a.Category != types.CategorySensor || a.Origin != types.OriginIngest {
		t.Errorf("alert: got %+v", a)
	}
	if a.Parameter == nil || *a.Parameter != types.PH {
		t.Errorf("alert parameter: got %v, want ph", a.Parameter)
	}
	if a.ID == "" || a.Status != types.AlertActive {
		t.Errorf("alert not stamped: %+v", a)
	}

	stored, _ := f.mem.RecentAlerts(context.Background(), "buoy_001", time.Time{}, 0)
	if len(stored) != 1 {
		t.Errorf("sink: got %d alerts, want 1", len(stored))
	}
}

func TestIngest_AlertsInCanonicalOrder(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.Ingest(context.Background(), "buoy_001", map[string]any{
		"rainfall":  100.0,
		"turbidity": 150.0,
		"ph":        8.8,
	}, eventTime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	want := []types.Parameter{types.PH, types.Turbidity, types.Rainfall}
	if len(res.Alerts) != len(want) {
		t.Fatalf("alerts: got %d, want %d", len(res.Alerts), len(want))
	}
	for i, p := range want {
		if *res.Alerts[i].Parameter != p {
			t.Errorf("alert[%d]: got %q, want %q", i, *res.Alerts[i].Parameter, p)
		}
	}
}

func TestIngest_PayloadOwnerWins(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.Ingest(context.Background(), "buoy_001", map[string]any{
		"ph":  5.0,
		"uid": "payload-owner",
	}, eventTime)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if o := res.Alerts[0].OwnerID; o == nil || *o != "payload-owner" {
		t.Errorf("owner: got %v, want payload-owner", o)
	}
}

func TestIngest_UnregisteredStationHasNoOwner(t *testing.T) {
	f := newFixture(t)

	if _, err := f.o.Ingest(context.Background(), "stray", map[string]any{"ph": 7.0}, eventTime); err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	logs := f.mem.ScoreLogs("stray")
	if len(logs) != 1 || logs[0].OwnerID != nil {
		t.Errorf("score log: got %+v, want one entry with nil owner", logs)
	}
}

func TestIngest_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		station string
		raw     map[string]any
	}{
		{"missing station", "  ", map[string]any{"ph": 7.0}},
		{"missing sensors", "buoy_001", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.o.Ingest(ctx, tt.station, tt.raw, eventTime)
			if !errors.Is(err, ErrInvalidReading) {
				t.Errorf("err: got %v, want ErrInvalidReading", err)
			}
		})
	}
	if got := len(f.mem.ScoreLogs("buoy_001")); got != 0 {
		t.Errorf("rejected input wrote %d score logs", got)
	}
}

func TestIngest_EmptySensorsStillScores(t *testing.T) {
	f := newFixture(t)

	res, err := f.o.Ingest(context.Background(), "buoy_001", map[string]any{"ph": "n/a"}, time.Time{})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if res.Score.Index != 0 || len(res.Alerts) != 0 {
		t.Errorf("got index %v alerts %d, want 0/0", res.Score.Index, len(res.Alerts))
	}
	if !res.Timestamp.Equal(eventTime.Add(time.Hour)) {
		t.Errorf("zero event time should default to now: got %v", res.Timestamp)
	}
	if _, err := f.mem.Current(context.Background(), "buoy_001"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("no values must leave current untouched, got err %v", err)
	}
}

// brokenHistory fails every history write.
type brokenHistory struct{}

func (brokenHistory) AppendReadings(context.Context, []types.Reading) error {
	return errors.New("history down")
}
func (brokenHistory) AppendHistory(context.Context, types.HistoryEntry) error {
	return errors.New("history down")
}
func (brokenHistory) AppendScoreLog(context.Context, types.ScoreLog) error {
	return errors.New("history down")
}

func TestIngest_BestEffortWrites(t *testing.T) {
	mem := store.NewMemory(0)
	o := New(Deps{
		History:  brokenHistory{},
		State:    mem,
		Registry: mem,
		Alerts:   alerts.New(mem),
		Rules:    settings.NewProvider(settings.NewStaticSource(settings.Document{}), time.Minute),
	})

	res, err := o.Ingest(context.Background(), "b1", map[string]any{"turbidity": 150.0}, eventTime)
	if err != nil {
		t.Fatalf("Ingest must not fail on store errors: %v", err)
	}
	if len(res.Alerts) != 1 {
		t.Errorf("alerts: got %d, want 1", len(res.Alerts))
	}
	if _, err := mem.Current(context.Background(), "b1"); err != nil {
		t.Errorf("current projection should still be written: %v", err)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	ms := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		in   float64
		want time.Time
	}{
		{"zero", 0, time.Time{}},
		{"negative", -5, time.Time{}},
		{"seconds", float64(ms.Unix()), ms},
		{"milliseconds", float64(ms.UnixMilli()), ms},
	}
	for _, tt := range tests {
		if got := NormalizeTimestamp(tt.in); !got.Equal(tt.want) {
			t.Errorf("%s: got %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPayloadEventTime(t *testing.T) {
	want := time.UnixMilli(1717221600000).UTC()
	tests := []struct {
		name string
		body string
		want time.Time
	}{
		{"millis number", `{"device_time_ms":1717221600000}`, want},
		{"seconds number", `{"device_time_ms":1717221600}`, want},
		{"millis string", `{"device_time_ms":"1717221600000"}`, want},
		{"seconds string", `{"device_time_ms":" 1717221600 "}`, want},
		{"iso string", `{"device_time_ms":"2024-06-01T06:00:00Z"}`, want},
		{"iso with offset", `{"device_time_ms":"2024-06-01T13:00:00+07:00"}`, want},
		{"garbage string", `{"device_time_ms":"yesterday"}`, time.Time{}},
		{"bool", `{"device_time_ms":true}`, time.Time{}},
		{"absent", `{}`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := DecodePayload([]byte(tt.body))
			if err != nil {
				t.Fatalf("DecodePayload: %v", err)
			}
			if got := p.EventTime(); !got.Equal(tt.want) {
				t.Errorf("EventTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSubmit_StringDeviceTime(t *testing.T) {
	f := newFixture(t)
	body := []byte(`{"buoy_id":"buoy_001","device_time_ms":"1717272000000","sensors":{"ph":7.2}}`)
	res, err := f.o.Submit(context.Background(), "", body)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !res.Timestamp.Equal(time.UnixMilli(1717272000000)) {
		t.Errorf("Timestamp: got %v", res.Timestamp)
	}
}

func TestSubmit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	body := []byte(`{"buoy_id":"buoy_001","device_time_ms":1717272000,"sensors":{"ph":7.2,"tds":"620"}}`)
	res, err := f.o.Submit(ctx, "", body)
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if res.StationID != "buoy_001" {
		t.Errorf("StationID: got %q", res.StationID)
	}
	if !res.Timestamp.Equal(time.Unix(1717272000, 0)) {
		t.Errorf("Timestamp: got %v", res.Timestamp)
	}
	if len(res.Alerts) != 1 || *res.Alerts[0].Parameter != types.TDS {
		t.Errorf("alerts: got %+v, want one tds warning", res.Alerts)
	}

	// Topic-derived id overrides the body.
	res, err = f.o.Submit(ctx, "buoy_009", body)
	if err != nil || res.StationID != "buoy_009" {
		t.Errorf("override: got %v, %v", res, err)
	}

	if _, err := f.o.Submit(ctx, "", []byte(`{not json`)); !errors.Is(err, ErrInvalidReading) {
		t.Errorf("bad json: got %v, want ErrInvalidReading", err)
	}
}
