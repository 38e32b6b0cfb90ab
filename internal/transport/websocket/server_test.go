package websocket

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gridparty/tictactoe-relay/internal/bot"
	"github.com/gridparty/tictactoe-relay/internal/entity"
	"github.com/gridparty/tictactoe-relay/internal/registry"
	"github.com/gridparty/tictactoe-relay/internal/repository"
)

const readWait = 3 * time.Second

type fakeArchive struct {
	mu      sync.Mutex
	results []string
}

func (that *fakeArchive) RecordResult(_ context.Context, winner string) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.results = append(that.results, winner)

	return nil
}

func (that *fakeArchive) Stats(_ context.Context) (repository.Stats, error) {
	return repository.Stats{}, nil
}

func (that *fakeArchive) recorded() []string {
	that.mu.Lock()
	defer that.mu.Unlock()

	return append([]string(nil), that.results...)
}

func newTestRelay(t *testing.T) (*httptest.Server, *fakeArchive) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	archive := &fakeArchive{}

	server := New(
		logger,
		registry.New(logger),
		bot.New(rand.New(rand.NewSource(1))),
		archive,
	)

	httpServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		server.serveConnection(context.Background(), w, r)
	}))
	t.Cleanup(httpServer.Close)

	return httpServer, archive
}

func dialRelay(t *testing.T, httpServer *httptest.Server) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	// every connection is greeted with its handle
	greeting := expectMessage(t, conn, ActionConnect)
	require.NotNil(t, greeting.You)
	require.NotEmpty(t, greeting.You.ID)

	return conn
}

func sendMessage(t *testing.T, conn *websocket.Conn, action string, payload Payload) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	require.NoError(t, conn.WriteJSON(Message{Action: action, Payload: body}))
}

func expectMessage(t *testing.T, conn *websocket.Conn, action string) Payload {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(readWait)))

	var message Message
	require.NoError(t, conn.ReadJSON(&message))
	require.Equal(t, action, message.Action)

	var payload Payload
	if len(message.Payload) > 0 {
		require.NoError(t, json.Unmarshal(message.Payload, &payload))
	}

	return payload
}

func createRoom(t *testing.T, conn *websocket.Conn) string {
	t.Helper()

	sendMessage(t, conn, ActionRoomCreate, Payload{})

	payload := expectMessage(t, conn, ActionRoomCreate)
	require.Empty(t, payload.Error)
	require.NotNil(t, payload.Room)

	return payload.Room.ID
}

func TestServer_CreateAndJoin(t *testing.T) {
	httpServer, _ := newTestRelay(t)

	// Given: a creator with a fresh room
	creator := dialRelay(t, httpServer)
	roomID := createRoom(t, creator)
	assert.Len(t, roomID, 5)

	// When: a second client joins by ID
	joiner := dialRelay(t, httpServer)
	sendMessage(t, joiner, ActionRoomJoin, Payload{Room: &entity.Room{ID: roomID}})

	// Then: both sides receive the started game with an empty board, X to move
	for _, conn := range []*websocket.Conn{creator, joiner} {
		payload := expectMessage(t, conn, ActionGameStart)
		require.NotNil(t, payload.Room)
		assert.Equal(t, entity.NewBoard(), payload.Room.Board)
		assert.Equal(t, entity.PlayerX, payload.Room.Turn)
		assert.Len(t, payload.Room.Players, 2)
		require.NotNil(t, payload.You)
	}
}

func TestServer_JoinErrors(t *testing.T) {
	httpServer, _ := newTestRelay(t)

	creator := dialRelay(t, httpServer)
	roomID := createRoom(t, creator)

	joiner := dialRelay(t, httpServer)
	sendMessage(t, joiner, ActionRoomJoin, Payload{Room: &entity.Room{ID: roomID}})
	expectMessage(t, joiner, ActionGameStart)
	expectMessage(t, creator, ActionGameStart)

	t.Run("Third joiner is rejected with room full", func(t *testing.T) {
		// When: a third client tries the same room
		third := dialRelay(t, httpServer)
		sendMessage(t, third, ActionRoomJoin, Payload{Room: &entity.Room{ID: roomID}})

		// Then: only the offender hears about it
		payload := expectMessage(t, third, ActionRoomJoin)
		assert.Equal(t, "room is already full", payload.Error)
	})

	t.Run("Unknown room is rejected", func(t *testing.T) {
		stray := dialRelay(t, httpServer)
		sendMessage(t, stray, ActionRoomJoin, Payload{Room: &entity.Room{ID: "nope1"}})

		payload := expectMessage(t, stray, ActionRoomJoin)
		assert.Equal(t, "room not found", payload.Error)
	})

	t.Run("Join without a room id is rejected", func(t *testing.T) {
		stray := dialRelay(t, httpServer)
		sendMessage(t, stray, ActionRoomJoin, Payload{})

		payload := expectMessage(t, stray, ActionRoomJoin)
		assert.Equal(t, "room id is required", payload.Error)
	})
}

func TestServer_GameTurn(t *testing.T) {
	httpServer, archive := newTestRelay(t)

	creator := dialRelay(t, httpServer)
	roomID := createRoom(t, creator)

	joiner := dialRelay(t, httpServer)
	sendMessage(t, joiner, ActionRoomJoin, Payload{Room: &entity.Room{ID: roomID}})
	expectMessage(t, creator, ActionGameStart)
	expectMessage(t, joiner, ActionGameStart)

	move := func(conn *websocket.Conn, cell int) {
		t.Helper()
		sendMessage(t, conn, ActionGameTurn, Payload{Room: &entity.Room{ID: roomID}, Cell: &cell})
	}

	// When: X opens on cell 0
	move(creator, 0)

	// Then: both sides get the snapshot with the turn flipped to O
	for _, conn := range []*websocket.Conn{creator, joiner} {
		payload := expectMessage(t, conn, ActionGameTurn)
		require.NotNil(t, payload.Room)
		assert.Equal(t, entity.PlayerX, payload.Room.Board[0])
		assert.Equal(t, entity.PlayerO, payload.Room.Turn)
		require.NotNil(t, payload.Result)
		assert.Equal(t, entity.ResultActive, payload.Result.Status)
	}

	// When: X tries to move again out of turn
	move(creator, 1)

	// Then: only X hears the rejection, no broadcast happens
	payload := expectMessage(t, creator, ActionGameTurn)
	assert.Equal(t, "it's not your turn", payload.Error)

	// When: the game is played out to X's top-row win
	move(joiner, 3)
	expectMessage(t, creator, ActionGameTurn)
	expectMessage(t, joiner, ActionGameTurn)

	move(creator, 1)
	expectMessage(t, creator, ActionGameTurn)
	expectMessage(t, joiner, ActionGameTurn)

	move(joiner, 4)
	expectMessage(t, creator, ActionGameTurn)
	expectMessage(t, joiner, ActionGameTurn)

	move(creator, 2)

	// Then: the final broadcast carries the winner and the winning line
	for _, conn := range []*websocket.Conn{creator, joiner} {
		payload = expectMessage(t, conn, ActionGameTurn)
		require.NotNil(t, payload.Result)
		assert.Equal(t, entity.ResultWon, payload.Result.Status)
		assert.Equal(t, entity.PlayerX, payload.Result.Winner)
		require.NotNil(t, payload.Result.Line)
		assert.Equal(t, [3]int{0, 1, 2}, *payload.Result.Line)
	}

	// Then: the outcome is archived and the room is retired
	assert.Equal(t, []string{entity.PlayerX}, archive.recorded())

	move(creator, 5)
	payload = expectMessage(t, creator, ActionGameTurn)
	assert.Equal(t, "room not found", payload.Error)
}

func TestServer_PlayerLeft(t *testing.T) {
	httpServer, _ := newTestRelay(t)

	creator := dialRelay(t, httpServer)
	roomID := createRoom(t, creator)

	joiner := dialRelay(t, httpServer)
	sendMessage(t, joiner, ActionRoomJoin, Payload{Room: &entity.Room{ID: roomID}})
	expectMessage(t, creator, ActionGameStart)
	expectMessage(t, joiner, ActionGameStart)

	// When: the creator drops the connection mid-game
	require.NoError(t, creator.Close())

	// Then: the survivor is told the opponent left
	expectMessage(t, joiner, ActionGameLeft)

	// Then: the survivor's moves now fail with opponent left
	cell := 0
	sendMessage(t, joiner, ActionGameTurn, Payload{Room: &entity.Room{ID: roomID}, Cell: &cell})

	payload := expectMessage(t, joiner, ActionGameTurn)
	assert.Equal(t, "opponent left the game", payload.Error)
}

func TestServer_BotRoom(t *testing.T) {
	httpServer, _ := newTestRelay(t)

	player := dialRelay(t, httpServer)

	// When: creating a room against the hard bot
	sendMessage(t, player, ActionRoomCreate, Payload{Room: &entity.Room{Type: entity.WithBotType, Difficulty: bot.DifficultyHard}})

	// Then: the game starts immediately with the bot seated as O
	payload := expectMessage(t, player, ActionRoomCreate)
	require.Empty(t, payload.Error)
	require.NotNil(t, payload.Room)
	assert.True(t, payload.Room.IsOngoing())
	require.Len(t, payload.Room.Players, 2)
	assert.True(t, payload.Room.Players[1].IsBot())

	// When: the human opens on a corner
	cell := 0
	sendMessage(t, player, ActionGameTurn, Payload{Room: &entity.Room{ID: payload.Room.ID}, Cell: &cell})

	// Then: one snapshot arrives carrying both the human and the bot move
	payload = expectMessage(t, player, ActionGameTurn)
	require.Empty(t, payload.Error)
	require.NotNil(t, payload.Room)
	assert.Equal(t, entity.PlayerX, payload.Room.Board[0])

	xCount, oCount := payload.Room.Board.CountMarks()
	assert.Equal(t, 1, xCount)
	assert.Equal(t, 1, oCount)
	assert.Equal(t, entity.PlayerX, payload.Room.Turn)
}

func TestServer_UnknownAction(t *testing.T) {
	httpServer, _ := newTestRelay(t)

	conn := dialRelay(t, httpServer)
	sendMessage(t, conn, "game:quit", Payload{})

	payload := expectMessage(t, conn, "game:quit")
	assert.Equal(t, "unknown action", payload.Error)
}
