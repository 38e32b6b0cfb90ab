package entity

const (
	StatusWaiting   = "waiting"
	StatusOngoing   = "ongoing"
	StatusAbandoned = "abandoned"
)

const (
	FriendType  = "friend"
	WithBotType = "bot"
)

const BotPlayerID = "bot"

// Player is one seat in a room: an opaque connection ID plus the mark it plays.
// No identity outlives the connection.
type Player struct {
	ID   string `json:"id"`
	Mark string `json:"mark"`
}

func NewBotPlayer(mark string) *Player {
	return &Player{
		ID:   BotPlayerID,
		Mark: mark,
	}
}

func (that *Player) IsBot() bool {
	return that.ID == BotPlayerID
}

// Room is one game instance. The first seat always plays X, the second O.
type Room struct {
	ID         string    `json:"id"`
	Board      Board     `json:"board"`
	Turn       string    `json:"turn"`
	Status     string    `json:"status"`
	Players    []*Player `json:"players,omitempty"`
	Type       string    `json:"type,omitempty"`
	Difficulty string    `json:"difficulty,omitempty"`
}

func NewRoom(id, roomType string) *Room {
	return &Room{
		ID:     id,
		Board:  NewBoard(),
		Turn:   PlayerX,
		Status: StatusWaiting,
		Type:   roomType,
	}
}

func (that *Room) IsWaiting() bool {
	return that.Status == StatusWaiting
}

func (that *Room) IsOngoing() bool {
	return that.Status == StatusOngoing
}

func (that *Room) IsAbandoned() bool {
	return that.Status == StatusAbandoned
}

func (that *Room) IsWithBot() bool {
	return that.Type == WithBotType
}

// PlayerByID returns the seat occupied by the given connection, if any.
func (that *Room) PlayerByID(id string) (*Player, bool) {
	for _, player := range that.Players {
		if player.ID == id {
			return player, true
		}
	}

	return nil, false
}

// Opponent returns the other seat relative to the given connection.
func (that *Room) Opponent(id string) (*Player, bool) {
	for _, player := range that.Players {
		if player.ID != id {
			return player, true
		}
	}

	return nil, false
}

// Clone returns a deep copy, safe to hand out after the registry lock is released.
func (that *Room) Clone() *Room {
	cloned := *that

	cloned.Players = make([]*Player, len(that.Players))
	for i, player := range that.Players {
		seat := *player
		cloned.Players[i] = &seat
	}

	return &cloned
}
