package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"

	"valley-transit/internal/metrics"
	"valley-transit/internal/session"
	"valley-transit/internal/transit"
)

// Hub fans vehicle snapshots out to websocket clients. It subscribes
// to the simulation clock as an observer; slow clients drop frames
// rather than stalling the tick loop.
type Hub struct {
	mu      sync.Mutex
	conns   map[*websocket.Conn]chan []byte
	metrics *metrics.Collector
}

func NewHub(m *metrics.Collector) *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan []byte), metrics: m}
}

type vehiclesFrame struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Vehicles  []transit.Vehicle `json:"vehicles"`
}

// VehiclesUpdated implements sim.Observer.
func (h *Hub) VehiclesUpdated(vehicles []transit.Vehicle) {
	b, err := json.Marshal(vehiclesFrame{Type: "vehicles", Timestamp: time.Now(), Vehicles: vehicles})
	if err != nil {
		log.Printf("marshal vehicle frame: %v", err)
		return
	}
	h.mu.Lock()
	for _, ch := range h.conns {
		select {
		case ch <- b:
		default:
			// client is behind; skip this frame for it
		}
	}
	h.mu.Unlock()
}

// Handle runs one vehicle-stream connection until the client leaves.
func (h *Hub) Handle(conn *websocket.Conn) {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	h.conns[conn] = ch
	n := len(h.conns)
	h.mu.Unlock()
	if h.metrics != nil {
		h.metrics.WSClients.Set(float64(n))
	}
	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		n := len(h.conns)
		h.mu.Unlock()
		if h.metrics != nil {
			h.metrics.WSClients.Set(float64(n))
		}
		conn.Close()
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case b := <-ch:
			if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
				return
			}
		}
	}
}

// tripEvent is one client action on the trip session socket.
type tripEvent struct {
	Type  string   `json:"type"` // input | focus | select | plan | locate | locate_denied
	Field string   `json:"field,omitempty"`
	Text  string   `json:"text,omitempty"`
	Lat   *float64 `json:"lat,omitempty"`
	Lng   *float64 `json:"lng,omitempty"`
}

// stateWriter serializes session states onto one websocket.
type stateWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *stateWriter) StateChanged(s session.State) {
	b, err := json.Marshal(struct {
		Type string `json:"type"`
		session.State
	}{Type: "state", State: s})
	if err != nil {
		log.Printf("marshal session state: %v", err)
		return
	}
	w.mu.Lock()
	err = w.conn.WriteMessage(websocket.TextMessage, b)
	w.mu.Unlock()
	if err != nil {
		log.Printf("write session state: %v", err)
	}
}

// tripSession runs one interactive planning session over a websocket.
// The browser sends keystrokes and actions; the controller handles
// debounce, stale-response suppression and plan sequencing, and every
// state change is pushed back as a full snapshot.
func (s *Server) tripSession(conn *websocket.Conn) {
	defer conn.Close()

	writer := &stateWriter{conn: conn}
	ctrl := session.New(s.planner, nil, writer, s.debounce)
	writer.StateChanged(ctrl.Snapshot())

	ctx := context.Background()
	for {
		var ev tripEvent
		if err := conn.ReadJSON(&ev); err != nil {
			return
		}
		switch ev.Type {
		case "input":
			ctrl.SetInput(ctx, parseField(ev.Field), ev.Text)
		case "focus":
			ctrl.SetActiveField(parseField(ev.Field))
		case "select":
			ctrl.SelectSuggestion(parseField(ev.Field), ev.Text)
		case "plan":
			ctrl.PlanTrip(ctx)
		case "locate":
			if ev.Lat != nil && ev.Lng != nil {
				ctrl.SetUserLocation(transit.Coordinate{Lat: *ev.Lat, Lng: *ev.Lng})
			}
		case "locate_denied":
			ctrl.LocationDenied()
		default:
			log.Printf("trip session: unknown event type %q", ev.Type)
		}
	}
}

func parseField(s string) session.Field {
	switch s {
	case "origin":
		return session.FieldOrigin
	case "destination":
		return session.FieldDestination
	}
	return session.FieldNone
}
