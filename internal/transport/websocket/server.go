package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/gridparty/tictactoe-relay/internal/apperror"
	"github.com/gridparty/tictactoe-relay/internal/entity"
	"github.com/gridparty/tictactoe-relay/internal/pkg"
	"github.com/gridparty/tictactoe-relay/internal/registry"
	"github.com/gridparty/tictactoe-relay/internal/repository"
)

type gameRegistry interface {
	CreateRoom(participant, roomType, difficulty string) (*entity.Room, error)
	JoinRoom(id, participant string) (*entity.Room, error)
	RecordMove(id, participant string, cell int) (*entity.Room, string, error)
	CloseRoom(id string)
	RemoveParticipant(participant string) (string, *entity.Player, bool)
}

type moveChooser interface {
	ChooseMove(board entity.Board, botMark, difficulty string) (int, error)
}

// Server relays room and move traffic between paired connections. Each
// connection is one participant handle; its ID is assigned at upgrade time and
// dies with the socket.
type Server struct {
	logger   *slog.Logger
	registry gameRegistry
	bot      moveChooser
	archive  repository.ResultArchive

	upgrader websocket.Upgrader
	handlers map[string]func(ctx context.Context, conn *connection, message *Message) error

	connectionsMutex sync.RWMutex
	connections      map[string]*connection
}

// connection wraps one live socket. Writes go through the mutex because
// broadcasts and pushes may target the same socket from different handlers.
type connection struct {
	id string

	mu   sync.Mutex
	ws   *websocket.Conn
	once sync.Once
}

func (that *connection) send(message Message) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.ws.WriteJSON(message); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}

	return nil
}

func New(logger *slog.Logger, rooms gameRegistry, chooser moveChooser, archive repository.ResultArchive) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		registry: rooms,
		bot:      chooser,
		archive:  archive,

		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
		handlers:    make(map[string]func(context.Context, *connection, *Message) error),
		connections: make(map[string]*connection),
	}

	server.handlers[ActionRoomCreate] = server.handleCreateRoom
	server.handlers[ActionRoomJoin] = server.handleJoinRoom
	server.handlers[ActionGameTurn] = server.handleGameTurn

	return server
}

// Start - starts the WebSocket server and blocks until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		that.serveConnection(ctx, w, r)
	})

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  0, // connections are long-lived; liveness comes from read errors
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// serveConnection upgrades the request and runs the connection's message loop.
func (that *Server) serveConnection(ctx context.Context, w http.ResponseWriter, r *http.Request) {
	log := that.logger.With("method", "serveConnection")

	ws, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error("failed to upgrade connection", "error", err)
		return
	}

	connectionID, err := pkg.GenerateConnectionID()
	if err != nil {
		log.Error("failed to generate connection id", "error", err)
		_ = ws.Close()

		return
	}

	conn := &connection{id: connectionID, ws: ws}

	that.connectionsMutex.Lock()
	that.connections[connectionID] = conn
	that.connectionsMutex.Unlock()

	defer that.cleanupConnection(conn)

	log = log.With("connectionID", connectionID)
	log.Info("WebSocket connection established")

	if err = that.sendMessage(conn, ActionConnect, Payload{You: &entity.Player{ID: connectionID}}); err != nil {
		log.Error("failed to send connect ack", "error", err)
		return
	}

	that.handleMessages(ctx, conn)
}

// handleMessages - processes messages from the client until the socket dies.
func (that *Server) handleMessages(ctx context.Context, conn *connection) {
	log := that.logger.With("method", "handleMessages", "connectionID", conn.id)

	for {
		_, body, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Error("error reading message", "error", err)
			}

			return
		}

		var message Message
		if err = json.Unmarshal(body, &message); err != nil {
			log.Error("failed to unmarshal message", "error", err)

			if err = that.sendErrorResponse(conn, message.Action, "malformed message"); err != nil {
				return
			}

			continue
		}

		handler, ok := that.handlers[message.Action]
		if !ok {
			log.Warn("unknown action", "action", message.Action)

			if err = that.sendErrorResponse(conn, message.Action, "unknown action"); err != nil {
				return
			}

			continue
		}

		if err = handler(ctx, conn, &message); err != nil {
			log.Error("error processing message", "action", message.Action, "error", err)
		}
	}
}

// cleanupConnection vacates the participant's seat exactly once and notifies
// the opponent that was left behind. Safe to call for a connection that was
// never seated.
func (that *Server) cleanupConnection(conn *connection) {
	conn.once.Do(func() {
		log := that.logger.With("method", "cleanupConnection", "connectionID", conn.id)

		that.connectionsMutex.Lock()
		delete(that.connections, conn.id)
		that.connectionsMutex.Unlock()

		_ = conn.ws.Close()

		roomID, remaining, removed := that.registry.RemoveParticipant(conn.id)
		if !removed {
			log.Info("connection closed")
			return
		}

		log = log.With("roomID", roomID)
		log.Info("participant removed from room")

		if remaining == nil {
			return
		}

		peer, ok := that.lookupConnection(remaining.ID)
		if !ok {
			log.Warn("connection not found for remaining player", "playerID", remaining.ID)
			return
		}

		if err := that.sendMessage(peer, ActionGameLeft, Payload{}); err != nil {
			log.Error("failed to notify remaining player", "error", err)
		}
	})
}

func (that *Server) lookupConnection(id string) (*connection, bool) {
	that.connectionsMutex.RLock()
	defer that.connectionsMutex.RUnlock()

	conn, ok := that.connections[id]

	return conn, ok
}

func (that *Server) sendMessage(conn *connection, action string, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	return conn.send(Message{Action: action, Payload: body})
}

func (that *Server) sendErrorResponse(conn *connection, action, message string) error {
	return that.sendMessage(conn, action, Payload{Error: message})
}

// broadcastRoom pushes the payload to every human seat, with You set per
// recipient. Bots have no socket and are skipped.
func (that *Server) broadcastRoom(action string, room *entity.Room, payload Payload) {
	log := that.logger.With("method", "broadcastRoom", "roomID", room.ID)

	for _, player := range room.Players {
		if player.IsBot() {
			continue
		}

		conn, ok := that.lookupConnection(player.ID)
		if !ok {
			log.Warn("connection not found for player", "playerID", player.ID)
			continue
		}

		recipientPayload := payload
		seat := *player
		recipientPayload.You = &seat

		if err := that.sendMessage(conn, action, recipientPayload); err != nil {
			log.Error("failed to send game update", "error", err)
		}
	}
}

// clientErrors are the recoverable faults a requester caused itself; their
// text goes back verbatim. Anything else is reported generically.
var clientErrors = []error{
	apperror.ErrRoomNotFound,
	apperror.ErrRoomFull,
	apperror.ErrNotAParticipant,
	apperror.ErrNotYourTurn,
	apperror.ErrIllegalMove,
	apperror.ErrOpponentLeft,
	apperror.ErrGameNotStarted,
	registry.ErrAlreadyInRoom,
}

func clientMessage(err error) (string, bool) {
	for _, clientErr := range clientErrors {
		if errors.Is(err, clientErr) {
			return clientErr.Error(), true
		}
	}

	return "", false
}
