package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"quiz-room-service/internal/app"
	"quiz-room-service/internal/auth"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type WSHandler struct {
	service  *app.GameService
	issuer   *auth.Issuer
	log      *slog.Logger
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService, issuer *auth.Issuer, log *slog.Logger) *WSHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WSHandler{
		service: service,
		issuer:  issuer,
		log:     log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	DisplayIndex *int `json:"displayIndex"`
}

type outboundMessage struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades to a websocket and streams session events for a player
// (?code=&playerId=) or for the host (?code=&token=).
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	playerID := r.URL.Query().Get("playerId")
	token := r.URL.Query().Get("token")
	if code == "" || (playerID == "" && token == "") {
		http.Error(w, "missing code, and playerId or token", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	session, err := h.open(ctx, code, playerID, token)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer session.Close()

	send := make(chan outboundMessage, 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// one writer: gorilla connections do not support concurrent writes
	go func() {
		defer close(writerDone)
		for msg := range send {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug("ws write failed", "room", code, "err", err)
				cancel()
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case ev, ok := <-session.Events():
				if !ok {
					return
				}
				select {
				case send <- outboundMessage{Type: string(ev.Type), Payload: ev.Payload}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	reply := func(msg outboundMessage) {
		select {
		case send <- msg:
		case <-ctx.Done():
		}
	}

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil || payload.DisplayIndex == nil {
				reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}})
				continue
			}
			result, err := session.Answer(ctx, *payload.DisplayIndex)
			if err != nil {
				reply(outboundMessage{Type: "error", Payload: errorPayload{Message: err.Error()}})
				continue
			}
			reply(outboundMessage{Type: "answerResult", Payload: result})
		case "ping":
			reply(outboundMessage{Type: "pong"})
		default:
			reply(outboundMessage{Type: "error", Payload: errorPayload{Message: "unsupported message type"}})
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
}

func (h *WSHandler) open(ctx context.Context, code, playerID, token string) (*app.Session, error) {
	if token == "" {
		return h.service.OpenPlayerSession(ctx, code, playerID)
	}
	game, err := h.service.GameByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if err := h.issuer.Authorize(token, game.ID); err != nil {
		return nil, err
	}
	return h.service.OpenHostSession(ctx, code)
}
