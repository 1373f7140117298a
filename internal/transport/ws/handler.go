package ws

import (
	"encoding/json"
	"livepoll/internal/idgen"
	"livepoll/internal/model"
	"livepoll/internal/service"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 8192
)

// Handler upgrades classroom connections and runs their pumps
type Handler struct {
	hub       *Hub
	classroom *service.ClassroomService
	upgrader  websocket.Upgrader
}

// NewHandler creates a new WebSocket handler. An origin list containing "*"
// accepts any origin.
func NewHandler(hub *Hub, classroom *service.ClassroomService, allowedOrigins []string) *Handler {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}
	return &Handler{
		hub:       hub,
		classroom: classroom,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				if allowAll || origin == "" {
					return true
				}
				_, ok := allowed[origin]
				return ok
			},
		},
	}
}

// ServeWS handles GET /v1/ws. A token query parameter authenticates the
// connection right away; otherwise the client sends an authenticate event.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	handle, err := idgen.Connection()
	if err != nil {
		slog.Error("ws: allocate handle", "err", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws: upgrade failed", "err", err)
		return
	}

	client := NewClient(handle)
	if !h.hub.Register(client) {
		wsConn.Close()
		return
	}
	slog.Info("ws: connection opened", "handle", handle, "remote", r.RemoteAddr)

	go h.writePump(wsConn, client)

	if token := r.URL.Query().Get("token"); token != "" {
		payload, _ := json.Marshal(&model.AuthenticatePayload{Token: token})
		h.classroom.HandleEvent(handle, &model.Envelope{Type: model.EventAuthenticate, Payload: payload})
	}

	go h.readPump(wsConn, client)
}

func (h *Handler) readPump(wsConn *websocket.Conn, client *Client) {
	defer func() {
		h.hub.Unregister(client)
		h.classroom.Disconnect(client.Handle)
		wsConn.Close()
		slog.Info("ws: connection closed", "handle", client.Handle)
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("ws: read error", "handle", client.Handle, "err", err)
			}
			return
		}

		var env model.Envelope
		if err := json.Unmarshal(data, &env); err != nil || env.Type == "" {
			h.classroom.ReplyError(client.Handle, model.EventPollError, &service.ValidationError{Field: "frame", Message: "malformed event frame"})
			continue
		}
		h.classroom.HandleEvent(client.Handle, &env)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, client *Client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-client.Outbound():
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			w, err := wsConn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
