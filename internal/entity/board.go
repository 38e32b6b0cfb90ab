package entity

import (
	"fmt"

	"github.com/gridparty/tictactoe-relay/internal/apperror"
)

const (
	PlayerX   = "X"
	PlayerO   = "O"
	PlayerTie = "-"

	EmptyCell = ""

	BoardSize = 9
)

const (
	ResultActive = "active"
	ResultWon    = "won"
	ResultDraw   = "draw"
)

// WinCombos are the 8 winning triples: 3 rows, 3 columns, 2 diagonals.
// Winner scans them in this order, so the first satisfied triple wins.
var WinCombos = [][3]int{
	{0, 1, 2},
	{3, 4, 5},
	{6, 7, 8},
	{0, 3, 6},
	{1, 4, 7},
	{2, 5, 8},
	{0, 4, 8},
	{2, 4, 6},
}

// Board is a 3x3 grid in row-major order, cells 0-8.
// It is a value type: Apply returns a modified copy, callers never share cells.
type Board [BoardSize]string

// Result classifies a board: active, won (with the mark and winning line) or draw.
type Result struct {
	Status string  `json:"status"`
	Winner string  `json:"winner,omitempty"`
	Line   *[3]int `json:"line,omitempty"`
}

func NewBoard() Board {
	return Board{}
}

// IsLegal reports whether a mark may be placed on the given cell.
func (that Board) IsLegal(cell int) bool {
	return cell >= 0 && cell < BoardSize && that[cell] == EmptyCell
}

// Apply returns a copy of the board with the mark placed on the given cell.
// Out-of-range and occupied cells are rejected before any indexing happens.
func (that Board) Apply(cell int, mark string) (Board, error) {
	if !that.IsLegal(cell) {
		return that, fmt.Errorf("%w: cell %d", apperror.ErrIllegalMove, cell)
	}

	that[cell] = mark

	return that, nil
}

// Winner returns the winning mark and its line, if any triple is uniform and non-empty.
func (that Board) Winner() (string, [3]int, bool) {
	for _, combo := range WinCombos {
		a, b, c := that[combo[0]], that[combo[1]], that[combo[2]]
		if a != EmptyCell && a == b && b == c {
			return a, combo, true
		}
	}

	return "", [3]int{}, false
}

// IsDraw reports whether the board is full with no winner.
func (that Board) IsDraw() bool {
	if _, _, won := that.Winner(); won {
		return false
	}

	for _, cell := range that {
		if cell == EmptyCell {
			return false
		}
	}

	return true
}

// Terminal classifies the board into active, won or draw.
func (that Board) Terminal() Result {
	if winner, line, won := that.Winner(); won {
		return Result{Status: ResultWon, Winner: winner, Line: &line}
	}

	if that.IsDraw() {
		return Result{Status: ResultDraw, Winner: PlayerTie}
	}

	return Result{Status: ResultActive}
}

// EmptyCells returns the indexes of all free cells.
func (that Board) EmptyCells() []int {
	cells := make([]int, 0, BoardSize)
	for i, cell := range that {
		if cell == EmptyCell {
			cells = append(cells, i)
		}
	}

	return cells
}

// CountMarks returns how many cells each player occupies.
func (that Board) CountMarks() (xCount, oCount int) {
	for _, cell := range that {
		switch cell {
		case PlayerX:
			xCount++
		case PlayerO:
			oCount++
		}
	}

	return xCount, oCount
}

// NextMark returns the opposite mark, X for O and O for X.
func NextMark(mark string) string {
	if mark == PlayerX {
		return PlayerO
	}

	return PlayerX
}
