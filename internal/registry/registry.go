package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gridparty/tictactoe-relay/internal/apperror"
	"github.com/gridparty/tictactoe-relay/internal/entity"
	"github.com/gridparty/tictactoe-relay/internal/pkg"
)

const maxIDAttempts = 10

var (
	ErrAlreadyInRoom  = errors.New("player is already in a room")
	ErrIDSpaceExhaust = errors.New("could not generate a unique room id")
)

// Registry owns every live room. Rooms are reachable only through it, and all
// returned rooms are deep copies, never aliases of guarded state.
//
// Locking: the registry mutex guards the rooms and seats maps; each room entry
// carries its own mutex serializing that room's check-then-write mutations.
// Lock order is registry before room, so cross-room traffic stays parallel.
type Registry struct {
	logger     *slog.Logger
	generateID func() (string, error)

	mu    sync.RWMutex
	rooms map[string]*roomEntry
	seats map[string]string // connection ID -> room ID
}

type roomEntry struct {
	mu   sync.Mutex
	room *entity.Room
}

func New(logger *slog.Logger) *Registry {
	return NewWithGenerator(logger, pkg.GenerateRoomID)
}

// NewWithGenerator - like New, but with a custom room ID source.
// Tests use it to force collisions.
func NewWithGenerator(logger *slog.Logger, generateID func() (string, error)) *Registry {
	return &Registry{
		logger:     logger.With("component", "registry"),
		generateID: generateID,
		rooms:      make(map[string]*roomEntry),
		seats:      make(map[string]string),
	}
}

// CreateRoom seats the creator as X in a fresh room. Friend rooms wait for an
// opponent; bot rooms seat the bot as O and start immediately.
func (that *Registry) CreateRoom(participant, roomType, difficulty string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, seated := that.seats[participant]; seated {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInRoom, participant)
	}

	id, err := that.newUniqueID()
	if err != nil {
		return nil, err
	}

	room := entity.NewRoom(id, roomType)
	room.Players = []*entity.Player{{ID: participant, Mark: entity.PlayerX}}

	if room.IsWithBot() {
		room.Players = append(room.Players, entity.NewBotPlayer(entity.PlayerO))
		room.Difficulty = difficulty
		room.Status = entity.StatusOngoing
	}

	that.rooms[id] = &roomEntry{room: room}
	that.seats[participant] = id

	that.logger.Info("room created", "roomID", id, "type", room.Type)

	return room.Clone(), nil
}

// newUniqueID retries generation until the ID misses every live room.
// Caller must hold the registry write lock.
func (that *Registry) newUniqueID() (string, error) {
	for range maxIDAttempts {
		id, err := that.generateID()
		if err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}

		if _, exists := that.rooms[id]; !exists {
			return id, nil
		}
	}

	return "", ErrIDSpaceExhaust
}

// JoinRoom seats the joiner as O and starts the game. The seat-count check and
// the seating happen under one lock, so two racing joiners cannot both win.
func (that *Registry) JoinRoom(id, participant string) (*entity.Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if _, seated := that.seats[participant]; seated {
		return nil, fmt.Errorf("%w: %s", ErrAlreadyInRoom, participant)
	}

	entry, ok := that.rooms[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	// A room whose creator already left is dead, not joinable.
	if entry.room.IsAbandoned() {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	if len(entry.room.Players) >= 2 {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomFull, id)
	}

	entry.room.Players = append(entry.room.Players, &entity.Player{ID: participant, Mark: entity.PlayerO})
	entry.room.Status = entity.StatusOngoing
	that.seats[participant] = id

	that.logger.Info("player joined room", "roomID", id)

	return entry.room.Clone(), nil
}

// RecordMove validates and applies one move. The acting mark is derived from
// the participant's seat, never from the request. Validation fully precedes
// mutation; on any error the room is untouched.
//
// Terminal classification is the caller's job: the registry tracks only the
// board and whose turn it is.
func (that *Registry) RecordMove(id, participant string, cell int) (*entity.Room, string, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, "", fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	room := entry.room

	seat, ok := room.PlayerByID(participant)
	if !ok {
		return nil, "", fmt.Errorf("%w: room %s", apperror.ErrNotAParticipant, id)
	}

	if room.IsAbandoned() {
		return nil, "", fmt.Errorf("%w: room %s", apperror.ErrOpponentLeft, id)
	}

	if room.IsWaiting() {
		return nil, "", fmt.Errorf("%w: room %s", apperror.ErrGameNotStarted, id)
	}

	if room.Turn != seat.Mark {
		return nil, "", fmt.Errorf("%w: room %s", apperror.ErrNotYourTurn, id)
	}

	board, err := room.Board.Apply(cell, seat.Mark)
	if err != nil {
		return nil, "", fmt.Errorf("failed to apply move: %w", err)
	}

	room.Board = board
	room.Turn = entity.NextMark(seat.Mark)

	return room.Clone(), seat.Mark, nil
}

// CloseRoom retires a finished room; later moves see ErrRoomNotFound.
func (that *Registry) CloseRoom(id string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	entry, ok := that.rooms[id]
	if !ok {
		return
	}

	entry.mu.Lock()
	for _, player := range entry.room.Players {
		delete(that.seats, player.ID)
	}
	entry.mu.Unlock()

	delete(that.rooms, id)

	that.logger.Info("room closed", "roomID", id)
}

// RemoveParticipant vacates the participant's seat wherever it is. The room is
// deleted once no human seat remains, otherwise marked abandoned; the surviving
// player is returned so the caller can notify it. Removing an unknown or
// already-removed participant is a no-op.
func (that *Registry) RemoveParticipant(participant string) (string, *entity.Player, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	roomID, seated := that.seats[participant]
	if !seated {
		return "", nil, false
	}

	delete(that.seats, participant)

	entry, ok := that.rooms[roomID]
	if !ok {
		return "", nil, false
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	room := entry.room

	players := make([]*entity.Player, 0, len(room.Players))
	for _, player := range room.Players {
		if player.ID != participant {
			players = append(players, player)
		}
	}
	room.Players = players

	var remaining *entity.Player
	for _, player := range room.Players {
		if !player.IsBot() {
			remaining = player
			break
		}
	}

	if remaining == nil {
		delete(that.rooms, roomID)
		that.logger.Info("room deleted", "roomID", roomID)

		return roomID, nil, true
	}

	room.Status = entity.StatusAbandoned
	that.logger.Info("room abandoned", "roomID", roomID)

	seat := *remaining

	return roomID, &seat, true
}

// Snapshot returns a copy of the room's current state.
func (that *Registry) Snapshot(id string) (*entity.Room, error) {
	that.mu.RLock()
	entry, ok := that.rooms[id]
	that.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, id)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()

	return entry.room.Clone(), nil
}

// Count returns the number of live rooms.
func (that *Registry) Count() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.rooms)
}
