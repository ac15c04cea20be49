package wshandler

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/rajpalom13/move-meal-sub001/internal/auth"
	"github.com/rajpalom13/move-meal-sub001/internal/domain"
	"github.com/rajpalom13/move-meal-sub001/pkg/ws"
)

var activeConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "ws_active_connections",
	Help: "Number of live websocket connections",
})

type WSHandler struct {
	hub      *ws.Hub
	verifier *auth.Verifier
}

func NewWSHandler(hub *ws.Hub, verifier *auth.Verifier) *WSHandler {
	return &WSHandler{hub: hub, verifier: verifier}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type clientMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Handle authenticates the token query param, upgrades, and runs the read
// loop. Rejection happens at handshake: no token, no socket.
func (h *WSHandler) Handle(w http.ResponseWriter, r *http.Request) {
	claims, err := h.verifier.Verify(r.URL.Query().Get("token"))
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		http.Error(w, "upgrade failed", http.StatusBadRequest)
		return
	}

	c := h.hub.Add(claims.UserID, conn)
	activeConnections.Inc()
	defer func() {
		h.hub.Remove(c)
		activeConnections.Dec()
	}()

	// Every connection watches its own user room.
	h.hub.Join(c, domain.UserRoom(claims.UserID))

	conn.SetReadLimit(4096)
	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		c.Touch()
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			break
		}
		c.Touch()

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("WS bad message from user=%s: %v", claims.UserID, err)
			continue
		}
		h.dispatch(c, claims.UserID, msg)
	}
}

func (h *WSHandler) dispatch(c *ws.Conn, userID string, msg clientMessage) {
	switch msg.Event {
	case domain.MsgJoinCluster:
		if id := idField(msg.Data, "cluster_id"); id != "" {
			h.hub.Join(c, domain.ClusterRoom(id))
		}
	case domain.MsgLeaveCluster:
		if id := idField(msg.Data, "cluster_id"); id != "" {
			h.hub.Leave(c, domain.ClusterRoom(id))
		}
	case domain.MsgJoinVendor:
		if id := idField(msg.Data, "vendor_id"); id != "" {
			h.hub.Join(c, domain.VendorRoom(id))
		}
	case domain.MsgJoinRider:
		if id := idField(msg.Data, "rider_id"); id != "" {
			h.hub.Join(c, domain.RiderRoom(id))
		}
	case domain.MsgLocationUpdate:
		// Riders stream their own position to whoever watches their room.
		var loc struct {
			Lat float64 `json:"lat"`
			Lng float64 `json:"lng"`
		}
		if err := json.Unmarshal(msg.Data, &loc); err != nil {
			return
		}
		h.hub.Broadcast(domain.RiderRoom(userID), domain.RiderLocationEvent(userID), loc)
	default:
		log.Printf("WS unknown event %q from user=%s", msg.Event, userID)
	}
}

func idField(data json.RawMessage, field string) string {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return ""
	}
	return m[field]
}
