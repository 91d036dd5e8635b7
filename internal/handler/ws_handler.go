package handler

import (
	"context"
	"errors"
	"net/http"

	"superid/internal/logging"
	"superid/internal/middleware"
	"superid/internal/service"
	"superid/internal/websocket"
	"superid/pkg/jwt"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
)

type WebSocketHandler struct {
	manager   *websocket.Manager
	jwtSecret string
	upgrader  ws.Upgrader
	logger    logging.Logger
}

func NewWebSocketHandler(manager *websocket.Manager, jwtSecret string, readBuf, writeBuf int, logger logging.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		manager:   manager,
		jwtSecret: jwtSecret,
		upgrader: ws.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		logger: logger.With("handler", "websocket"),
	}
}

func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = middleware.BearerToken(r.Header.Get("Authorization"))
	}

	if token == "" {
		http.Error(w, "missing authorization token", http.StatusUnauthorized)
		return
	}

	claims, err := jwt.ValidateToken(token, h.jwtSecret)
	if err != nil {
		h.logger.Info(ctx, "websocket token rejected", "error", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	deviceID := r.URL.Query().Get("device_id")
	if deviceID == "" {
		deviceID = "default"
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(ctx, "websocket upgrade failed", "error", err)
		return
	}

	client := websocket.NewClient(uuid.New().String(), claims.UserID, deviceID, conn, h.manager)

	h.manager.Register <- client

	go client.WritePump()
	go client.ReadPump()
}

type loginTokenBinder interface {
	Bind(ctx context.Context, raw, userID string) error
}

// WebSocketMessageHandler answers requests sent by connected devices.
type WebSocketMessageHandler struct {
	manager     *websocket.Manager
	loginTokens loginTokenBinder
}

func NewWebSocketMessageHandler(manager *websocket.Manager, loginTokens loginTokenBinder) *WebSocketMessageHandler {
	return &WebSocketMessageHandler{
		manager:     manager,
		loginTokens: loginTokens,
	}
}

func (h *WebSocketMessageHandler) HandleWebSocketMessage(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	switch msg.Type {
	case websocket.TypePing:
		pong, err := websocket.NewMessage(websocket.TypePong, nil)
		if err != nil {
			return err
		}
		return h.manager.SendToClient(client.ID, pong)

	case websocket.TypeBindLoginToken:
		return h.handleBind(ctx, client, msg)

	default:
		return h.ack(client, msg, errors.New("unknown message type"))
	}
}

func (h *WebSocketMessageHandler) handleBind(ctx context.Context, client *websocket.Client, msg *websocket.Message) error {
	var payload websocket.BindLoginTokenPayload
	if err := msg.UnmarshalPayload(&payload); err != nil || payload.LoginToken == "" {
		return h.ack(client, msg, errors.New("login_token is required"))
	}

	err := h.loginTokens.Bind(ctx, payload.LoginToken, client.UserID)
	if err != nil && !isClientError(err) {
		h.ack(client, msg, errors.New("internal error"))
		return err
	}
	return h.ack(client, msg, err)
}

func (h *WebSocketMessageHandler) ack(client *websocket.Client, msg *websocket.Message, result error) error {
	payload := websocket.AckPayload{MessageID: msg.ID, Success: result == nil}
	if result != nil {
		payload.Error = result.Error()
	}

	reply, err := websocket.NewMessage(websocket.TypeAck, payload)
	if err != nil {
		return err
	}
	return h.manager.SendToClient(client.ID, reply)
}

func isClientError(err error) bool {
	return errors.Is(err, service.ErrTokenNotFound) ||
		errors.Is(err, service.ErrTokenExpired) ||
		errors.Is(err, service.ErrTokenAlreadyBound)
}
