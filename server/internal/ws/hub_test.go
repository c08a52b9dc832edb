package ws_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/api"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
	wsHub "github.com/buoywatch/buoywatch/server/internal/ws"
)

const testInterval = 20 * time.Millisecond

// --- helpers ----------------------------------------------------------------

func newStore(ids ...string) *store.Memory {
	mem := store.NewMemory(0)
	for _, id := range ids {
		mem.RegisterStation(id, "", types.StationSettings{})
	}
	return mem
}

func snapshotOf(mem *store.Memory) wsHub.SnapshotFunc {
	deps := api.Deps{
		Registry: mem,
		State:    mem,
		Alerts:   mem,
		Rules:    settings.NewProvider(settings.NewStaticSource(settings.Document{}), time.Minute),
	}
	return func(ctx context.Context) (any, error) { return api.BuildSnapshot(ctx, deps) }
}

// startHub starts a test HTTP server with the hub as its handler and runs
// the broadcast loop until the test ends or cancel is called.
func startHub(t *testing.T, fn wsHub.SnapshotFunc) (wsURL string, hub *wsHub.Hub, cancel func()) {
	t.Helper()

	hub = wsHub.New(fn, testInterval)
	ctx, cancelFn := context.WithCancel(context.Background())

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	go hub.Run(ctx)

	t.Cleanup(func() {
		cancelFn()
		srv.Close()
	})

	wsURL = "ws" + strings.TrimPrefix(srv.URL, "http")
	return wsURL, hub, cancelFn
}

func dial(t *testing.T, wsURL string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readMessage reads and decodes one message with a short deadline.
func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ReadMessage: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(msg, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return m
}

// readEvent skips messages until one with the given event arrives.
func readEvent(t *testing.T, conn *websocket.Conn, event string) map[string]interface{} {
	t.Helper()
	for i := 0; i < 50; i++ {
		if m := readMessage(t, conn); m["event"] == event {
			return m
		}
	}
	t.Fatalf("no %q event received", event)
	return nil
}

func stationsOf(t *testing.T, m map[string]interface{}) []interface{} {
	t.Helper()
	data, ok := m["data"].(map[string]interface{})
	if !ok {
		t.Fatal("data: missing or wrong type")
	}
	list, ok := data["stations"].([]interface{})
	if !ok {
		t.Fatal("stations: missing or wrong type")
	}
	return list
}

// --- tests ------------------------------------------------------------------

func TestHub_Connect_ReceivesImmediateSnapshot(t *testing.T) {
	wsURL, _, _ := startHub(t, snapshotOf(newStore("buoy_001")))

	m := readMessage(t, dial(t, wsURL))
	if m["event"] != wsHub.EventSnapshot {
		t.Errorf("event: got %v, want snapshot", m["event"])
	}
	data := m["data"].(map[string]interface{})
	if data["generated_at"] == nil || data["generated_at"] == "" {
		t.Error("generated_at: missing")
	}
	if n := len(stationsOf(t, m)); n != 1 {
		t.Errorf("stations: got %d, want 1", n)
	}
}

func TestHub_EmptyRegistry_EmptyStations(t *testing.T) {
	wsURL, _, _ := startHub(t, snapshotOf(newStore()))
	m := readMessage(t, dial(t, wsURL))
	if n := len(stationsOf(t, m)); n != 0 {
		t.Errorf("stations: got %d, want 0", n)
	}
}

func TestHub_ReceivesBroadcastOnTick(t *testing.T) {
	mem := newStore()
	wsURL, _, _ := startHub(t, snapshotOf(mem))

	conn := dial(t, wsURL)
	readMessage(t, conn) // immediate snapshot, empty registry

	mem.RegisterStation("new-buoy", "", types.StationSettings{})

	for i := 0; i < 50; i++ {
		list := stationsOf(t, readEvent(t, conn, wsHub.EventSnapshot))
		if len(list) == 1 {
			s := list[0].(map[string]interface{})
			if s["station_id"] != "new-buoy" {
				t.Errorf("station_id: got %v, want new-buoy", s["station_id"])
			}
			return
		}
	}
	t.Fatal("tick broadcast never included the new station")
}

func TestHub_PublishAlert(t *testing.T) {
	wsURL, hub, _ := startHub(t, snapshotOf(newStore()))
	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	hub.PublishAlert(types.AlertEvent{
		ID:        "a-1",
		StationID: "buoy_001",
		Severity:  types.SeverityCritical,
		Message:   "PH abnormal at critical level",
	})

	m := readEvent(t, conn, wsHub.EventAlert)
	data := m["data"].(map[string]interface{})
	if data["id"] != "a-1" || data["severity"] != "critical" {
		t.Errorf("alert data: got %v", data)
	}
}

func TestHub_StationFilterScopesAlerts(t *testing.T) {
	wsURL, hub, _ := startHub(t, snapshotOf(newStore("buoy_001", "buoy_002")))
	conn := dial(t, wsURL+"?station=buoy_002")
	readMessage(t, conn)

	hub.PublishAlert(types.AlertEvent{ID: "a-1", StationID: "buoy_001", Severity: types.SeverityWarning})
	hub.PublishAlert(types.AlertEvent{ID: "a-2", StationID: "buoy_002", Severity: types.SeverityWarning})

	data := readEvent(t, conn, wsHub.EventAlert)["data"].(map[string]interface{})
	if data["id"] != "a-2" {
		t.Errorf("first alert: got %v, want a-2", data["id"])
	}
}

func TestHub_SnapshotErrorSkipsTick(t *testing.T) {
	var calls atomic.Int32
	fn := func(context.Context) (any, error) {
		if calls.Add(1) == 1 {
			return api.SnapshotResponse{Stations: []api.StationSummary{}}, nil
		}
		return nil, errors.New("registry unavailable")
	}
	wsURL, hub, _ := startHub(t, fn)
	conn := dial(t, wsURL)
	readMessage(t, conn)

	// Failing ticks send nothing; the connection stays open.
	time.Sleep(5 * testInterval)
	if n := hub.Count(); n != 1 {
		t.Errorf("Count: got %d, want 1", n)
	}
}

func TestHub_CountClients(t *testing.T) {
	wsURL, hub, _ := startHub(t, snapshotOf(newStore()))

	conns := make([]*websocket.Conn, 3)
	for i := range conns {
		conns[i] = dial(t, wsURL)
		readMessage(t, conns[i])
	}
	time.Sleep(10 * time.Millisecond)
	if n := hub.Count(); n != 3 {
		t.Errorf("Count: got %d, want 3", n)
	}

	conns[0].Close()
	time.Sleep(50 * time.Millisecond) // let readPump detect the close
	if n := hub.Count(); n != 2 {
		t.Errorf("Count after disconnect: got %d, want 2", n)
	}
}

func TestHub_CancelContextClosesConnections(t *testing.T) {
	wsURL, hub, cancel := startHub(t, snapshotOf(newStore()))

	conn := dial(t, wsURL)
	readMessage(t, conn)
	time.Sleep(10 * time.Millisecond)

	cancel()

	time.Sleep(50 * time.Millisecond)
	if n := hub.Count(); n != 0 {
		t.Errorf("Count after cancel: got %d, want 0", n)
	}
}

func TestHub_NonWebSocketRequest_Returns400(t *testing.T) {
	hub := wsHub.New(snapshotOf(newStore()), testInterval)
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeHTTP))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", resp.StatusCode)
	}
}
