// Package realtime fans station availability changes out to websocket
// subscribers.
package realtime

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/codr1/ChargeEase/internal/models"
)

const (
	subscriberBuffer = 8
	writeWait        = 10 * time.Second
	pongWait         = 60 * time.Second
	pingPeriod       = (pongWait * 9) / 10
	maxMessageSize   = 512
)

// Update is the message streamed to station subscribers.
type Update struct {
	StationID      string              `json:"stationId"`
	Availability   models.Availability `json:"availability"`
	ConnectorTypes []models.Connector  `json:"connectorTypes"`
	Timestamp      time.Time           `json:"timestamp"`
}

func UpdateFor(station models.ChargingStation, now time.Time) Update {
	return Update{
		StationID:      station.ID,
		Availability:   station.Availability,
		ConnectorTypes: station.ConnectorTypes,
		Timestamp:      now.UTC(),
	}
}

// StationSource is the snapshot cache the hub refreshes from.
type StationSource interface {
	Invalidate(stationID string)
	Get(ctx context.Context, id string) (models.ChargingStation, error)
}

type subscriber struct {
	stationID string
	send      chan Update
}

type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]struct{}
	closed bool

	upgrader websocket.Upgrader
}

// NewHub returns a hub whose upgrader accepts origins allowed by checkOrigin.
// A nil checkOrigin accepts every origin.
func NewHub(checkOrigin func(r *http.Request) bool) *Hub {
	if checkOrigin == nil {
		checkOrigin = func(r *http.Request) bool { return true }
	}
	return &Hub{
		subs: make(map[string]map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     checkOrigin,
		},
	}
}

// Subscribe registers interest in a station. The returned cancel func must
// be called once; it closes the channel.
func (h *Hub) Subscribe(stationID string) (<-chan Update, func()) {
	sub := &subscriber{stationID: stationID, send: make(chan Update, subscriberBuffer)}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.send)
		return sub.send, func() {}
	}
	if h.subs[stationID] == nil {
		h.subs[stationID] = make(map[*subscriber]struct{})
	}
	h.subs[stationID][sub] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return sub.send, func() {
		once.Do(func() { h.remove(sub) })
	}
}

func (h *Hub) remove(sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[sub.stationID]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.stationID)
	}
	close(sub.send)
}

// Publish delivers u to every subscriber of its station. A subscriber whose
// buffer is full misses the update.
func (h *Hub) Publish(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs[u.StationID] {
		select {
		case sub.send <- u:
		default:
			log.Warn().Str("station_id", u.StationID).Msg("Dropping availability update for slow subscriber")
		}
	}
}

// Refresh drops the cached snapshot for stationID and, when anyone is
// listening, publishes the reloaded availability.
func (h *Hub) Refresh(ctx context.Context, stations StationSource, stationID string) {
	stations.Invalidate(stationID)
	if h.Subscribers(stationID) == 0 {
		return
	}
	station, err := stations.Get(ctx, stationID)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("station_id", stationID).Msg("Failed to reload station for live update")
		return
	}
	h.Publish(UpdateFor(station, time.Now()))
}

func (h *Hub) Subscribers(stationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[stationID])
}

// Close ends every subscription.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for stationID, set := range h.subs {
		for sub := range set {
			close(sub.send)
		}
		delete(h.subs, stationID)
	}
}

// Serve upgrades the request and streams updates for stationID, starting
// with initial, until the client goes away or the hub closes.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, initial Update) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written the HTTP error.
		return nil
	}
	defer conn.Close()

	logger := log.Ctx(r.Context()).With().Str("station_id", initial.StationID).Logger()
	updates, cancel := h.Subscribe(initial.StationID)
	defer cancel()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go readPump(conn, stop)

	if err := writeUpdate(conn, initial); err != nil {
		return nil
	}
	logger.Debug().Msg("Live availability subscriber connected")

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
					time.Now().Add(writeWait))
				return nil
			}
			if err := writeUpdate(conn, update); err != nil {
				logger.Debug().Err(err).Msg("Live availability write failed")
				return nil
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return nil
			}
		case <-ctx.Done():
			logger.Debug().Msg("Live availability subscriber disconnected")
			return nil
		}
	}
}

// readPump discards client messages and reports when the connection drops.
func readPump(conn *websocket.Conn, done func()) {
	defer done()
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func writeUpdate(conn *websocket.Conn, u Update) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(u)
}
