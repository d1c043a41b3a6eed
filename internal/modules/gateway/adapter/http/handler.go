package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/frankieli/raffle_engine/internal/modules/gateway/usecase"
	"github.com/frankieli/raffle_engine/internal/modules/gateway/ws"
	"github.com/frankieli/raffle_engine/pkg/auth"
	"github.com/frankieli/raffle_engine/pkg/logger"
)

// Handler upgrades websocket requests and feeds client frames to the use case.
type Handler struct {
	useCase *usecase.GatewayUseCase
	manager *ws.Manager
	issuer  *auth.Issuer
}

// NewHandler creates the websocket handler. With a nil issuer every
// connection is an anonymous observer.
func NewHandler(useCase *usecase.GatewayUseCase, manager *ws.Manager, issuer *auth.Issuer) *Handler {
	return &Handler{
		useCase: useCase,
		manager: manager,
		issuer:  issuer,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (h *Handler) RegisterRoutes(r gin.IRoutes, path string) {
	r.GET(path, func(c *gin.Context) {
		h.HandleWebSocket(c.Writer, c.Request)
	})
}

// HandleWebSocket authenticates an optional ?token= and upgrades the connection.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := logger.WebSocketContext(r)
	requestID := logger.GetRequestID(ctx)

	var userID string
	if token := r.URL.Query().Get("token"); token != "" {
		if h.issuer == nil {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		claims, err := h.issuer.ValidateRole(token, auth.RolePlayer)
		if errors.Is(err, auth.ErrWrongRole) {
			logger.Warn(ctx).Err(err).Msg("ws token is not a player token")
			http.Error(w, "Forbidden", http.StatusForbidden)
			return
		}
		if err != nil {
			logger.Warn(ctx).Err(err).Msg("ws token rejected")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		userID = claims.Subject
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error(ctx).Err(err).Msg("ws upgrade failed")
		return
	}

	client, err := h.manager.Register(conn, userID)
	if err != nil {
		logger.Warn(ctx).Err(err).Msg("ws register failed")
		conn.Close()
		return
	}

	logger.Info(ctx).
		Int64("conn_id", client.ID).
		Str("user_id", userID).
		Str("remote_addr", r.RemoteAddr).
		Msg("ws connected")

	go client.WritePump()
	go client.ReadPump(func(c *ws.Connection, message []byte) {
		msgCtx := logger.WithRequestID(context.Background(), logger.GenerateRequestID())
		msgCtx = logger.WithFields(msgCtx, map[string]interface{}{
			"user_id":       c.UserID,
			"ws_request_id": requestID,
		})

		response, err := h.useCase.HandleMessage(msgCtx, c.UserID, message)
		if err != nil {
			logger.Debug(msgCtx).Err(err).Msg("ws message rejected")
			if b, mErr := json.Marshal(map[string]interface{}{"type": "error", "error": err.Error()}); mErr == nil {
				c.Reply(b)
			}
			return
		}
		if response != nil {
			c.Reply(response)
		}
	})
}
