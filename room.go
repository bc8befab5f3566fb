package main

import (
	"errors"
	"time"
)

// Rejections are reported to the requesting connection only; they never
// mutate room state and never reach the rest of the room.
var (
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoleFull         = errors.New("no seats left for that role")
	ErrNotAParticipant  = errors.New("only participants may touch the cards")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrInvalidCell      = errors.New("that card cannot be flipped")
	ErrInvalidBoardSize = errors.New("board size must be even and between 2 and 10")
)

type Role string

const (
	RoleParticipant Role = "participant"
	RoleSpectator   Role = "spectator"

	// The pairing logic assumes exactly two turn-takers.
	maxParticipants = 2
)

// parseRole maps the client-supplied role string; anything that isn't
// explicitly a participant spectates.
func parseRole(s string) Role {
	if s == string(RoleParticipant) {
		return RoleParticipant
	}
	return RoleSpectator
}

// Player is a room member, owned by exactly one room's participant or
// spectator list at a time. ID is the owning connection's identifier.
type Player struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role Role   `json:"role"`
}

// pendingFlip is a card currently face-up awaiting resolution.
type pendingFlip struct {
	connID    string
	cellIndex int
}

// Room is one isolated game session. All mutation happens on the hub's
// event loop, so no locking is needed here; the only asynchronous edge
// is the mismatch flip-back timer, which is fenced by generation.
type Room struct {
	ID           string
	Size         int
	Board        Board
	Participants []*Player
	Spectators   []*Player
	Current      int // index into Participants of the turn-taker
	Scores       map[string]int
	Creator      string

	pending []pendingFlip

	// generation counts flip cycles; it advances on every resolution,
	// restart, and forced pending reset, so a flip-back timer that
	// outlives the state it was scheduled against can detect staleness.
	generation uint64

	lastActive time.Time
}

func newRoom(id string, size int, creator string) *Room {
	return &Room{
		ID:         id,
		Size:       size,
		Board:      generateBoard(size),
		Scores:     make(map[string]int),
		Creator:    creator,
		lastActive: time.Now(),
	}
}

// Admit seats a player, enforcing the two-participant cap and the
// configured spectator policy (0 = unlimited).
func (r *Room) Admit(p *Player, maxSpectators int) error {
	switch p.Role {
	case RoleParticipant:
		if len(r.Participants) >= maxParticipants {
			return ErrRoleFull
		}
		r.Participants = append(r.Participants, p)
	default:
		if maxSpectators > 0 && len(r.Spectators) >= maxSpectators {
			return ErrRoleFull
		}
		r.Spectators = append(r.Spectators, p)
	}

	r.Scores[p.ID] = 0
	r.Touch()

	return nil
}

// Member returns the player owned by connID, in either list.
func (r *Room) Member(connID string) *Player {
	for _, p := range r.Participants {
		if p.ID == connID {
			return p
		}
	}
	for _, s := range r.Spectators {
		if s.ID == connID {
			return s
		}
	}
	return nil
}

// Members lists participants first in join order, then spectators; this
// is the "updatePlayers" roster.
func (r *Room) Members() []*Player {
	members := make([]*Player, 0, len(r.Participants)+len(r.Spectators))
	members = append(members, r.Participants...)
	members = append(members, r.Spectators...)
	return members
}

// Empty reports whether no one is left in the room.
func (r *Room) Empty() bool {
	return len(r.Participants) == 0 && len(r.Spectators) == 0
}

// CurrentParticipant returns the turn-taker, or nil when the room has
// no participants.
func (r *Room) CurrentParticipant() *Player {
	if len(r.Participants) == 0 || r.Current < 0 || r.Current >= len(r.Participants) {
		return nil
	}
	return r.Participants[r.Current]
}

// removal describes the side effects of taking a player out of a room.
type removal struct {
	player *Player
	// flippedBack holds cells that were pending when a participant
	// left mid-cycle and must be turned face-down on the clients.
	flippedBack []int
}

// Remove takes connID out of the room, deleting its score entry. Used by
// both explicit leave and disconnect; returns a zero removal.player if
// the connection was not a member. If the departing player was a
// participant, any in-flight flip cycle is aborted and the turn index is
// re-clamped so it stays valid for the remaining participants.
func (r *Room) Remove(connID string) removal {
	var out removal

	for i, p := range r.Participants {
		if p.ID != connID {
			continue
		}

		out.player = p
		r.Participants = append(r.Participants[:i], r.Participants[i+1:]...)

		if i < r.Current {
			r.Current--
		}
		if len(r.Participants) > 0 {
			r.Current %= len(r.Participants)
		} else {
			r.Current = 0
		}

		out.flippedBack = r.ResetPending()
		break
	}

	if out.player == nil {
		for i, s := range r.Spectators {
			if s.ID == connID {
				out.player = s
				r.Spectators = append(r.Spectators[:i], r.Spectators[i+1:]...)
				break
			}
		}
	}

	if out.player != nil {
		delete(r.Scores, connID)
		r.Touch()
	}

	return out
}

// ResetPending aborts an in-flight flip cycle, returning the cell
// indices that were face-up. Advancing the generation turns any
// scheduled flip-back timer for those cells into a no-op.
func (r *Room) ResetPending() []int {
	if len(r.pending) == 0 {
		return nil
	}

	indices := make([]int, 0, len(r.pending))
	for _, f := range r.pending {
		indices = append(indices, f.cellIndex)
	}

	r.pending = nil
	r.generation++

	return indices
}

type flipOutcome int

const (
	// flipIgnored: two cards are already face-up and resolution is in
	// flight; the request is dropped without an error.
	flipIgnored flipOutcome = iota
	// flipRevealed: first card of the cycle turned face-up.
	flipRevealed
	// flipMatched: second card matched the first.
	flipMatched
	// flipMismatched: second card did not match; a deferred flip-back
	// is required.
	flipMismatched
	// flipGameOver: the match cleared the last pair.
	flipGameOver
)

// flipResult is everything the gateway needs to broadcast after an
// accepted flip.
type flipResult struct {
	Outcome   flipOutcome
	CellIndex int
	Value     int

	// Resolution fields, set for flipMatched, flipMismatched, and
	// flipGameOver.
	Index1 int
	Index2 int
	Scorer *Player
	Next   *Player

	// Generation fences the deferred flip-back for flipMismatched.
	Generation uint64

	Finals []finalScore
}

// Flip runs one step of the flip cycle for connID.
func (r *Room) Flip(connID string, cellIndex int) (flipResult, error) {
	var res flipResult

	player := r.Member(connID)
	if player == nil || player.Role != RoleParticipant {
		return res, ErrNotAParticipant
	}

	current := r.CurrentParticipant()
	if current == nil || current.ID != connID {
		return res, ErrNotYourTurn
	}

	if len(r.pending) >= 2 {
		res.Outcome = flipIgnored
		return res, nil
	}

	if cellIndex < 0 || cellIndex >= len(r.Board) || r.Board.ValueAt(cellIndex) == removedCell {
		return res, ErrInvalidCell
	}
	for _, f := range r.pending {
		if f.cellIndex == cellIndex {
			return res, ErrInvalidCell
		}
	}

	r.pending = append(r.pending, pendingFlip{connID: connID, cellIndex: cellIndex})
	r.Touch()

	res.CellIndex = cellIndex
	res.Value = r.Board.ValueAt(cellIndex)

	if len(r.pending) < 2 {
		res.Outcome = flipRevealed
		return res, nil
	}

	first, second := r.pending[0], r.pending[1]
	res.Index1 = first.cellIndex
	res.Index2 = second.cellIndex

	if r.Board.ValueAt(first.cellIndex) == r.Board.ValueAt(second.cellIndex) {
		r.Scores[connID]++
		r.Board.Remove(first.cellIndex, second.cellIndex)
		r.pending = nil
		r.generation++

		res.Scorer = player

		if r.Board.Cleared() {
			res.Outcome = flipGameOver
			res.Finals = r.FinalScores()
			return res, nil
		}

		r.advanceTurn()
		res.Outcome = flipMatched
		res.Next = r.CurrentParticipant()
		return res, nil
	}

	// Both cards stay face-up until the deferred flip-back resolves;
	// rule 3 above blocks any third flip in the meantime.
	res.Outcome = flipMismatched
	res.Generation = r.generation
	return res, nil
}

// ResolveMismatch finishes a mismatch cycle scheduled at generation. It
// reports false when the room has since restarted, reset, or resolved,
// in which case the caller must not broadcast anything.
func (r *Room) ResolveMismatch(generation uint64) (index1, index2 int, next *Player, ok bool) {
	if generation != r.generation || len(r.pending) != 2 {
		return 0, 0, nil, false
	}

	index1 = r.pending[0].cellIndex
	index2 = r.pending[1].cellIndex

	r.pending = nil
	r.generation++
	r.advanceTurn()
	r.Touch()

	return index1, index2, r.CurrentParticipant(), true
}

func (r *Room) advanceTurn() {
	if len(r.Participants) == 0 {
		r.Current = 0
		return
	}
	r.Current = (r.Current + 1) % len(r.Participants)
}

// Restart regenerates the board at the same size and zeroes every score
// for a fresh round. The membership is untouched.
func (r *Room) Restart() {
	r.Board = generateBoard(r.Size)
	r.Current = 0
	r.pending = nil
	r.generation++

	for id := range r.Scores {
		r.Scores[id] = 0
	}

	r.Touch()
}

// FinalScores reports one entry per participant, in join order.
func (r *Room) FinalScores() []finalScore {
	finals := make([]finalScore, 0, len(r.Participants))
	for _, p := range r.Participants {
		finals = append(finals, finalScore{
			Name:  p.Name,
			Score: r.Scores[p.ID],
		})
	}
	return finals
}

// Touch records activity for the idle reaper.
func (r *Room) Touch() {
	r.lastActive = time.Now()
}

// Idle reports whether the room has seen no activity for at least d.
func (r *Room) Idle(d time.Duration) bool {
	return time.Since(r.lastActive) >= d
}
