package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-assess/internal/response"
	"github.com/stemsi/exstem-assess/internal/service"
	"github.com/stemsi/exstem-assess/internal/validator"
	ws "github.com/stemsi/exstem-assess/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams session telemetry over a WebSocket.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/sessions/:token/stream
// Accepts "patch" and "ping" messages for an open session.
func (h *WSHandler) SessionStream(c *gin.Context) {
	token := c.Param("token")

	session, err := h.sessions.Get(c.Request.Context(), token)
	if err != nil {
		failWith(c, err, response.ErrSessionNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("test_id", session.TestID).Logger()
	wsLog.Info().Msg("Session stream connected")

	// The request context ends with the handshake on some servers.
	ctx := context.WithoutCancel(c.Request.Context())

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		var env ws.RequestEnvelope
		if err := json.Unmarshal(raw, &env); err != nil {
			_ = ws.WriteError(conn, 0, "malformed message", nil)
			continue
		}

		switch env.Action {
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionPatch:
			if closed := h.handlePatch(ctx, conn, wsLog, token, raw, env.Seq); closed {
				return
			}
		default:
			wsLog.Warn().Str("action", string(env.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, env.Seq, "unknown action: "+string(env.Action), nil)
		}
	}
}

// handlePatch applies one patch and reports whether the session is now closed.
func (h *WSHandler) handlePatch(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, token string, raw json.RawMessage, seq int64) bool {
	var req ws.PatchRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		_ = ws.WriteError(conn, seq, "malformed patch", nil)
		return false
	}
	if fields := validator.Struct(&req.Patch); fields != nil {
		_ = ws.WriteError(conn, seq, "validation failed", fields)
		return false
	}

	session, err := h.sessions.Patch(ctx, token, req.Patch)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			_ = ws.WriteError(conn, seq, "session not found", nil)
			return true
		}
		wsLog.Error().Err(err).Msg("Session patch failed")
		_ = ws.WriteError(conn, seq, "save failed", nil)
		return false
	}

	if session.Closed() {
		_ = ws.WriteTyped(conn, ws.ClosedResponse{Event: ws.EventClosed, Terminated: session.TerminatedAt != nil})
		return true
	}

	ack := ws.AckResponse{Event: ws.EventAck, Seq: seq, TabSwitchCount: session.TabSwitchCount}
	if clock, err := h.sessions.Remaining(ctx, token); err == nil {
		ack.RemainingSeconds = clock.RemainingSeconds
	}
	_ = ws.WriteTyped(conn, ack)
	return false
}
