package websocket

import (
	"encoding/json"

	"github.com/gridparty/tictactoe-relay/internal/entity"
)

// Client-issued actions.
const (
	ActionRoomCreate = "room:create"
	ActionRoomJoin   = "room:join"
	ActionGameTurn   = "game:turn"
)

// Server-initiated pushes.
const (
	ActionConnect   = "connect"
	ActionGameStart = "game:start"
	ActionGameLeft  = "game:left"
)

// Message is the wire envelope in both directions.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Payload carries every request and response body. Requests fill Room (id to
// join, type/difficulty to create) and Cell; responses fill Room, You and,
// once a game ends, Result.
type Payload struct {
	Room   *entity.Room   `json:"room,omitempty"`
	You    *entity.Player `json:"you,omitempty"`
	Cell   *int           `json:"cell,omitempty"`
	Result *entity.Result `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
}
