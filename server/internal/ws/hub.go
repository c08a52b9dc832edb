package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/buoywatch/buoywatch/pkg/types"
)

const (
	writeWait   = 10 * time.Second
	idleTimeout = 60 * time.Second
	keepalive   = idleTimeout * 9 / 10 // must stay below idleTimeout
	queueDepth  = 16
	maxInbound  = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Dashboards are served from other origins; the reverse proxy enforces CORS.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Event names carried in Message.Event.
const (
	EventSnapshot = "snapshot"
	EventAlert    = "alert"
)

// Message is the JSON envelope sent to clients.
type Message struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// SnapshotFunc builds the payload of a snapshot message.
type SnapshotFunc func(ctx context.Context) (any, error)

// Hub fans station snapshots and alerts out to dashboard connections.
// Snapshots go to everyone on every tick. Alerts go to subscribers whose
// station filter matches; connect with ?station=<id> to receive one
// station's alerts only.
type Hub struct {
	snapshot SnapshotFunc
	interval time.Duration

	mu   sync.RWMutex
	subs map[*subscriber]struct{}
}

type subscriber struct {
	conn    *websocket.Conn
	queue   chan []byte
	station string // "" receives every station
}

// offer queues data without blocking and reports whether it fit.
func (s *subscriber) offer(data []byte) bool {
	select {
	case s.queue <- data:
		return true
	default:
		return false
	}
}

func (s *subscriber) wants(stationID string) bool {
	return s.station == "" || s.station == stationID
}

// New returns a Hub that calls snapshot every interval.
func New(snapshot SnapshotFunc, interval time.Duration) *Hub {
	return &Hub{
		snapshot: snapshot,
		interval: interval,
		subs:     make(map[*subscriber]struct{}),
	}
}

// Run pushes a snapshot to every subscriber each interval until ctx is done,
// then disconnects them all.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.dropAll()
			return
		case <-t.C:
			data, err := h.snapshotMessage(ctx)
			if err != nil {
				slog.Warn("ws: build snapshot failed", "err", err)
				continue
			}
			h.fanOut(data, nil)
		}
	}
}

// ServeHTTP upgrades r and holds the connection until the peer goes away.
// The first message is always a fresh snapshot.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return // Upgrade replied already
	}

	s := &subscriber{
		conn:    conn,
		queue:   make(chan []byte, queueDepth),
		station: r.URL.Query().Get("station"),
	}
	if data, err := h.snapshotMessage(r.Context()); err == nil {
		s.offer(data)
	}
	h.add(s)
	defer h.drop(s)

	go s.writeLoop()
	s.readLoop()
}

// PublishAlert matches alerts.Listener. It never blocks the recorder.
func (h *Hub) PublishAlert(a types.AlertEvent) {
	data, err := json.Marshal(Message{Event: EventAlert, Data: a})
	if err != nil {
		slog.Warn("ws: encode alert failed", "id", a.ID, "err", err)
		return
	}
	h.fanOut(data, func(s *subscriber) bool { return s.wants(a.StationID) })
}

// Count reports how many subscribers are connected.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) add(s *subscriber) {
	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
}

// drop is idempotent; the queue is closed exactly once.
func (h *Hub) drop(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.queue)
}

func (h *Hub) dropAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.queue)
	}
}

// fanOut offers data to every subscriber accepted by match (nil accepts
// all). Offers happen under the read lock so a queue cannot close
// mid-send; subscribers with a full queue are dropped afterwards.
func (h *Hub) fanOut(data []byte, match func(*subscriber) bool) {
	var stalled []*subscriber
	h.mu.RLock()
	for s := range h.subs {
		if match != nil && !match(s) {
			continue
		}
		if !s.offer(data) {
			stalled = append(stalled, s)
		}
	}
	h.mu.RUnlock()

	for _, s := range stalled {
		slog.Debug("ws: dropping stalled subscriber", "station", s.station)
		h.drop(s)
	}
}

func (h *Hub) snapshotMessage(ctx context.Context) ([]byte, error) {
	data, err := h.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Message{Event: EventSnapshot, Data: data})
}

// writeLoop owns all writes to the connection.
func (s *subscriber) writeLoop() {
	ping := time.NewTicker(keepalive)
	defer ping.Stop()
	defer s.conn.Close()

	for {
		var (
			kind = websocket.PingMessage
			data []byte
		)
		select {
		case msg, open := <-s.queue:
			if !open {
				s.write(websocket.CloseMessage, nil) //nolint:errcheck
				return
			}
			kind, data = websocket.TextMessage, msg
		case <-ping.C:
		}
		if err := s.write(kind, data); err != nil {
			return
		}
	}
}

func (s *subscriber) write(kind int, data []byte) error {
	s.conn.SetWriteDeadline(time.Now().Add(writeWait)) //nolint:errcheck
	return s.conn.WriteMessage(kind, data)
}

// readLoop discards inbound frames; it exists to service pongs and notice
// the peer closing. Returns when the connection is gone.
func (s *subscriber) readLoop() {
	defer s.conn.Close()
	s.conn.SetReadLimit(maxInbound)
	extend := func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(idleTimeout))
	}
	extend("") //nolint:errcheck
	s.conn.SetPongHandler(extend)
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}
