package apperror

import "errors"

var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is already full")
	ErrNotAParticipant  = errors.New("player is not in this room")
	ErrNotYourTurn      = errors.New("it's not your turn")
	ErrIllegalMove      = errors.New("illegal move")
	ErrOpponentLeft     = errors.New("opponent left the game")
	ErrGameNotStarted   = errors.New("game is not started")
	ErrNoAvailableMoves = errors.New("no available moves")
)
