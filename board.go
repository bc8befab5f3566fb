package main

import (
	"crypto/rand"
)

const (
	// Cells hold values 1..n²/2, so 0 is free to mark a matched pair
	// that has been cleared from play.
	removedCell = 0

	minBoardSize = 2
	maxBoardSize = 10
)

// Board is the shuffled pair-deck for one round. Index order is the
// layout the clients render; matched cells are zeroed in place.
type Board []int

// validBoardSize reports whether size is usable as a board side length.
// The card count is size², and pairs require an even count.
func validBoardSize(size int) bool {
	return size >= minBoardSize && size <= maxBoardSize && size%2 == 0
}

// generateBoard builds a deck of size² cards, each value 1..size²/2
// appearing exactly twice, shuffled with Fisher-Yates over crypto/rand.
func generateBoard(size int) Board {
	total := size * size

	board := make(Board, 0, total)
	for i := 1; i <= total/2; i++ {
		board = append(board, i, i)
	}

	for i := len(board) - 1; i > 0; i-- {
		j := randInt(i + 1)
		board[i], board[j] = board[j], board[i]
	}

	return board
}

// randInt returns a uniform random int in [0, max), rejecting bytes
// that would bias the modulo.
func randInt(max int) int {
	limit := byte(255 - (256 % max))

	buf := make([]byte, 1)
	for {
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		if buf[0] <= limit {
			return int(buf[0]) % max
		}
	}
}

// ValueAt returns the face value at index, or removedCell if the cell
// has been cleared or the index is out of range.
func (b Board) ValueAt(index int) int {
	if index < 0 || index >= len(b) {
		return removedCell
	}
	return b[index]
}

// Remove clears both cells of a matched pair.
func (b Board) Remove(index1, index2 int) {
	b[index1] = removedCell
	b[index2] = removedCell
}

// Cleared reports whether every pair has been matched.
func (b Board) Cleared() bool {
	for _, cell := range b {
		if cell != removedCell {
			return false
		}
	}
	return true
}

// Snapshot renders the board for the wire: face values as-is, removed
// cells as JSON null.
func (b Board) Snapshot() []any {
	cells := make([]any, len(b))
	for i, cell := range b {
		if cell == removedCell {
			cells[i] = nil
		} else {
			cells[i] = cell
		}
	}
	return cells
}
