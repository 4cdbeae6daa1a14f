package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"realtime-gateway/internal/domain"
	"realtime-gateway/pkg/logger"
	"realtime-gateway/pkg/realtime"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Origin checks are handled by the CORS layer in front
	},
}

// TokenVerifier turns an access token into an identity.
type TokenVerifier interface {
	Verify(token string) (domain.Identity, error)
}

// Handler terminates websocket connections: it authenticates the handshake,
// registers the connection, and runs its read loop.
type Handler struct {
	registry *Registry
	verifier TokenVerifier
	options  ConnectionOptions
	log      logger.Logger
}

func NewHandler(registry *Registry, verifier TokenVerifier, options ConnectionOptions,
	log logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		verifier: verifier,
		options:  options,
		log:      log,
	}
}

// HandleConnection upgrades the request. A valid access_token yields an
// authenticated identity; a missing token yields an anonymous connection. An
// invalid token is rejected before the upgrade.
func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	var identity domain.Identity

	if token := r.URL.Query().Get("access_token"); token != "" {
		verified, err := h.verifier.Verify(token)
		if err != nil {
			h.log.Warn("Rejected connection - invalid token", "error", err)
			http.Error(w, "invalid access token", http.StatusUnauthorized)
			return
		}
		identity = verified
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	connection := NewConnection(uuid.NewString(), identity, conn, h.options, h.log)
	connection.Start()

	h.registry.Register(connection)

	go h.readLoop(connection, conn)
}

func (h *Handler) readLoop(connection *Connection, conn *websocket.Conn) {
	defer func() {
		h.registry.Unregister(connection)
		connection.Close()
	}()

	conn.SetReadLimit(h.options.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		// Each pong answering the write pump's pings buys the peer another
		// read window; a half-open peer stops answering and times out here.
		return conn.SetReadDeadline(time.Now().Add(h.options.ReadTimeout))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Debug("websocket read error", "connection_id", connection.ID(), "error", err)
			}
			return
		}

		var msg realtime.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			h.log.Debug("ignoring malformed message", "connection_id", connection.ID(), "error", err)
			continue
		}

		h.handleMessage(connection, msg)
	}
}

func (h *Handler) handleMessage(connection *Connection, msg realtime.ClientMessage) {
	switch msg.Type {
	case realtime.MsgTestMethod:
		if err := connection.Send(realtime.TestResponseEvent{Message: msg.Message}); err != nil {
			h.log.Debug("failed to echo test message", "connection_id", connection.ID(), "error", err)
		}
	case realtime.MsgJoinGroup:
		if msg.Group == "" {
			return
		}
		h.registry.JoinGroup(connection.ID(), msg.Group)
	case realtime.MsgLeaveGroup:
		if msg.Group == "" {
			return
		}
		h.registry.LeaveGroup(connection.ID(), msg.Group)
	default:
		h.log.Debug("unknown message type", "connection_id", connection.ID(), "type", msg.Type)
	}
}
