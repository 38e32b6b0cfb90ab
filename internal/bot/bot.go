package bot

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/gridparty/tictactoe-relay/internal/apperror"
	"github.com/gridparty/tictactoe-relay/internal/entity"
)

const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"

	easyHardMoveChance   = 0.5
	mediumHardMoveChance = 0.7

	centerCell = 4
)

var ErrUnknownDifficulty = errors.New("unknown difficulty")

// IsDifficulty reports whether the given string names a supported tier.
func IsDifficulty(difficulty string) bool {
	switch difficulty {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	default:
		return false
	}
}

var cornerCells = []int{0, 2, 6, 8}

// Bot picks moves for the server-side opponent. It never mutates the board it
// is given: every simulation runs on a value copy.
type Bot struct {
	rng *rand.Rand
}

// New returns a bot backed by the given randomness source.
// Tests pass a seeded source to make tier fallbacks deterministic.
func New(rng *rand.Rand) *Bot {
	return &Bot{rng: rng}
}

// ChooseMove returns the cell the bot wants to play with its mark.
// Returns ErrNoAvailableMoves when the board is full.
func (that *Bot) ChooseMove(board entity.Board, botMark, difficulty string) (int, error) {
	available := board.EmptyCells()
	if len(available) == 0 {
		return 0, apperror.ErrNoAvailableMoves
	}

	switch difficulty {
	case DifficultyEasy:
		return that.chooseWithFallback(board, botMark, available, easyHardMoveChance), nil
	case DifficultyMedium:
		return that.chooseWithFallback(board, botMark, available, mediumHardMoveChance), nil
	case DifficultyHard:
		return that.chooseHard(board, botMark, available), nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, difficulty)
	}
}

// chooseWithFallback plays the hard move with the given probability,
// otherwise a uniform-random empty cell.
func (that *Bot) chooseWithFallback(board entity.Board, botMark string, available []int, hardChance float64) int {
	if that.rng.Float64() < hardChance {
		return that.chooseHard(board, botMark, available)
	}

	return available[that.rng.Intn(len(available))]
}

// chooseHard applies the fixed priority order: win now, block the opponent's
// win, take the center, take a random corner, take anything.
func (that *Bot) chooseHard(board entity.Board, botMark string, available []int) int {
	if cell, ok := winningCell(board, botMark, available); ok {
		return cell
	}

	if cell, ok := winningCell(board, entity.NextMark(botMark), available); ok {
		return cell
	}

	if board.IsLegal(centerCell) {
		return centerCell
	}

	freeCorners := make([]int, 0, len(cornerCells))
	for _, corner := range cornerCells {
		if board.IsLegal(corner) {
			freeCorners = append(freeCorners, corner)
		}
	}

	if len(freeCorners) > 0 {
		return freeCorners[that.rng.Intn(len(freeCorners))]
	}

	return available[that.rng.Intn(len(available))]
}

// winningCell finds a cell that completes a line for the given mark.
// Each candidate is simulated on a board copy, so the caller's board stays intact.
func winningCell(board entity.Board, mark string, available []int) (int, bool) {
	for _, cell := range available {
		simulated, err := board.Apply(cell, mark)
		if err != nil {
			continue
		}

		if winner, _, won := simulated.Winner(); won && winner == mark {
			return cell, true
		}
	}

	return 0, false
}
