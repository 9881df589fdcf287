package websocket

import (
	"github.com/stemsi/exstem-assess/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPatch Action = "patch"
	ActionPing  Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
	Seq    int64  `json:"seq,omitempty"`
}

// PatchRequest carries the same fields as PATCH /sessions/:token.
type PatchRequest struct {
	Seq   int64              `json:"seq"`
	Patch model.SessionPatch `json:"patch"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError  Event = "error"
	EventAck    Event = "ack"
	EventPong   Event = "pong"
	EventClosed Event = "closed"
)

// AckResponse confirms a patch and echoes the resulting clock.
type AckResponse struct {
	Event            Event `json:"event"`
	Seq              int64 `json:"seq,omitempty"`
	TabSwitchCount   int   `json:"tabSwitchCount"`
	RemainingSeconds int   `json:"remainingSeconds"`
}

// ClosedResponse is sent once the session reaches a terminal state.
type ClosedResponse struct {
	Event      Event `json:"event"`
	Terminated bool  `json:"terminated"`
}

type ErrorResponse struct {
	Event  Event             `json:"event"`
	Seq    int64             `json:"seq,omitempty"`
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
