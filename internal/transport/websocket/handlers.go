package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gridparty/tictactoe-relay/internal/bot"
	"github.com/gridparty/tictactoe-relay/internal/entity"
)

const genericErrorMessage = "internal error, try again"

func (that *Server) handleCreateRoom(_ context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleCreateRoom", "connectionID", conn.id)

	payloadReq, err := unmarshalPayload(msg)
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, "malformed payload")
	}

	roomType := entity.FriendType
	difficulty := ""

	if payloadReq.Room != nil && payloadReq.Room.Type != "" {
		roomType = payloadReq.Room.Type
	}

	switch roomType {
	case entity.FriendType:
	case entity.WithBotType:
		difficulty = bot.DifficultyEasy
		if payloadReq.Room != nil && payloadReq.Room.Difficulty != "" {
			difficulty = payloadReq.Room.Difficulty
		}

		if !bot.IsDifficulty(difficulty) {
			return that.sendErrorResponse(conn, msg.Action, fmt.Sprintf("unknown difficulty %q", difficulty))
		}
	default:
		return that.sendErrorResponse(conn, msg.Action, fmt.Sprintf("unknown room type %q", roomType))
	}

	room, err := that.registry.CreateRoom(conn.id, roomType, difficulty)
	if err != nil {
		log.Error("failed to create room", "error", err)

		if message, ok := clientMessage(err); ok {
			return that.sendErrorResponse(conn, msg.Action, message)
		}

		return that.sendErrorResponse(conn, msg.Action, genericErrorMessage)
	}

	log.Info("room created", "roomID", room.ID, "type", room.Type)

	seat, _ := room.PlayerByID(conn.id)

	return that.sendMessage(conn, msg.Action, Payload{Room: room, You: seat})
}

func (that *Server) handleJoinRoom(_ context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleJoinRoom", "connectionID", conn.id)

	payloadReq, err := unmarshalPayload(msg)
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, "malformed payload")
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		return that.sendErrorResponse(conn, msg.Action, "room id is required")
	}

	room, err := that.registry.JoinRoom(payloadReq.Room.ID, conn.id)
	if err != nil {
		log.Error("failed to join room", "roomID", payloadReq.Room.ID, "error", err)

		if message, ok := clientMessage(err); ok {
			return that.sendErrorResponse(conn, msg.Action, message)
		}

		return that.sendErrorResponse(conn, msg.Action, genericErrorMessage)
	}

	log.Info("player joined room", "roomID", room.ID)

	that.broadcastRoom(ActionGameStart, room, Payload{Room: room})

	return nil
}

func (that *Server) handleGameTurn(ctx context.Context, conn *connection, msg *Message) error {
	log := that.logger.With("method", "handleGameTurn", "connectionID", conn.id)

	payloadReq, err := unmarshalPayload(msg)
	if err != nil {
		return that.sendErrorResponse(conn, msg.Action, "malformed payload")
	}

	if payloadReq.Room == nil || payloadReq.Room.ID == "" {
		return that.sendErrorResponse(conn, msg.Action, "room id is required")
	}

	if payloadReq.Cell == nil {
		return that.sendErrorResponse(conn, msg.Action, "cell is required")
	}

	room, mark, err := that.registry.RecordMove(payloadReq.Room.ID, conn.id, *payloadReq.Cell)
	if err != nil {
		log.Error("failed to make turn", "roomID", payloadReq.Room.ID, "error", err)

		if message, ok := clientMessage(err); ok {
			return that.sendErrorResponse(conn, msg.Action, message)
		}

		return that.sendErrorResponse(conn, msg.Action, genericErrorMessage)
	}

	log = log.With("roomID", room.ID)
	log.Info("player made a turn", "mark", mark, "cell", *payloadReq.Cell)

	result := room.Board.Terminal()

	if result.Status == entity.ResultActive && room.IsWithBot() {
		room, result, err = that.makeBotTurn(room)
		if err != nil {
			log.Error("bot failed to make turn", "error", err)
			return that.sendErrorResponse(conn, msg.Action, genericErrorMessage)
		}
	}

	that.broadcastRoom(ActionGameTurn, room, Payload{Room: room, Result: &result})

	if result.Status != entity.ResultActive {
		that.finishGame(ctx, room, result)
	}

	return nil
}

// makeBotTurn asks the bot for its reply and records it through the same
// registry path a human move takes.
func (that *Server) makeBotTurn(room *entity.Room) (*entity.Room, entity.Result, error) {
	botSeat, ok := room.PlayerByID(entity.BotPlayerID)
	if !ok {
		return nil, entity.Result{}, fmt.Errorf("bot seat missing in room %s", room.ID)
	}

	cell, err := that.bot.ChooseMove(room.Board, botSeat.Mark, room.Difficulty)
	if err != nil {
		return nil, entity.Result{}, fmt.Errorf("failed to choose bot move: %w", err)
	}

	updated, _, err := that.registry.RecordMove(room.ID, entity.BotPlayerID, cell)
	if err != nil {
		return nil, entity.Result{}, fmt.Errorf("failed to record bot move: %w", err)
	}

	return updated, updated.Board.Terminal(), nil
}

// finishGame retires a terminal room and records the outcome. Archive failures
// are logged only; the game itself already ended for both players.
func (that *Server) finishGame(ctx context.Context, room *entity.Room, result entity.Result) {
	log := that.logger.With("method", "finishGame", "roomID", room.ID)

	if err := that.archive.RecordResult(ctx, result.Winner); err != nil {
		log.Error("failed to archive result", "error", err)
	}

	that.registry.CloseRoom(room.ID)

	log.Info("game finished", "status", result.Status, "winner", result.Winner)
}

func unmarshalPayload(msg *Message) (Payload, error) {
	var payload Payload

	if len(msg.Payload) == 0 {
		return payload, nil
	}

	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return payload, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return payload, nil
}
