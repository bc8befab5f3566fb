package main

import (
	"errors"
	"fmt"
	"time"
)

type command struct {
	client *Client
	msg    clientMessage
}

// flipBackTask is the deferred half of a mismatch cycle. It carries the
// room's generation at scheduling time so a room that restarted, reset,
// or emptied before the delay elapsed turns the task into a no-op.
type flipBackTask struct {
	roomID     string
	generation uint64
}

// Hub fans events into a single run loop: every inbound request, timer
// expiry, and reaper tick mutates room state from one goroutine, so the
// game logic itself needs no locks.
type Hub struct {
	cfg   *Config
	rooms *Registry

	clients map[*Client]bool

	register  chan *Client
	unreg     chan *Client
	commands  chan command
	flipBacks chan flipBackTask
}

func newHub(cfg *Config) *Hub {
	return &Hub{
		cfg:       cfg,
		rooms:     newRegistry(),
		clients:   make(map[*Client]bool),
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		commands:  make(chan command),
		flipBacks: make(chan flipBackTask, 64),
	}
}

func (h *Hub) run() {
	var reap <-chan time.Time
	if h.cfg.sessionTimeout > 0 {
		ticker := time.NewTicker(h.cfg.sessionTimeout / 2)
		defer ticker.Stop()
		reap = ticker.C
	}

	for {
		select {
		case c := <-h.register:
			h.clients[c] = true

		case c := <-h.unreg:
			h.handleDisconnect(c)

		case cmd := <-h.commands:
			h.dispatch(cmd)

		case task := <-h.flipBacks:
			h.handleFlipBack(task)

		case <-reap:
			h.reapIdle()
		}
	}
}

func (h *Hub) dispatch(cmd command) {
	c := cmd.client
	msg := cmd.msg

	switch msg.Type {
	case "createRoom":
		h.handleCreate(c, msg)
	case "joinRoom":
		h.handleJoin(c, msg)
	case "flipCard":
		h.handleFlip(c, msg)
	case "restartGame":
		h.handleRestart(c, msg)
	case "leaveRoom":
		h.handleLeave(c, msg)
	case "sendMessage":
		h.handleChat(c, msg)
	case "getCurrentPlayer":
		h.handleCurrentPlayer(c, msg)
	default:
		// ignore unknown types
	}
}

// sendTo delivers to one client, dropping the connection if its buffer
// is full. Clients already dropped within this event are skipped, since
// their send channel is closed.
func (h *Hub) sendTo(c *Client, msg any) {
	if _, ok := h.clients[c]; !ok {
		return
	}

	select {
	case c.send <- msg:
	default:
		h.dropClient(c)
	}
}

// broadcastRoom delivers to every connection in the room, participants
// and spectators alike.
func (h *Hub) broadcastRoom(roomID string, msg any) {
	for c := range h.clients {
		if c.room != roomID {
			continue
		}
		select {
		case c.send <- msg:
		default:
			h.dropClient(c)
		}
	}
}

// dropClient detaches a client whose writer can no longer keep up.
// Closing send unwinds writePump, which closes the connection; room
// cleanup then happens on the resulting unregister.
func (h *Hub) dropClient(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

func (h *Hub) sendError(c *Client, text string) {
	h.sendTo(c, simpleMessage{
		Type:    "error",
		Message: text,
	})
}

func (h *Hub) handleCreate(c *Client, msg clientMessage) {
	if c.room != "" {
		h.sendError(c, "you are already in a room")
		return
	}

	size := msg.Size
	if size == 0 {
		size = minBoardSize
	}
	if !validBoardSize(size) {
		h.sendError(c, ErrInvalidBoardSize.Error())
		return
	}

	role := parseRole(msg.PlayerRole)
	room := h.rooms.Create(size, c.id)

	player := &Player{ID: c.id, Name: msg.PlayerName, Role: role}
	if err := room.Admit(player, h.cfg.maxSpectators); err != nil {
		h.rooms.Delete(room.ID)
		h.sendTo(c, simpleMessage{
			Type:    "roleFull",
			Message: err.Error(),
		})
		return
	}

	c.room = room.ID

	h.sendTo(c, roomCreatedMessage{
		Type:   "roomCreated",
		RoomID: room.ID,
	})
	h.sendTo(c, boardMessage{
		Type:  "board",
		Board: room.Board.Snapshot(),
	})

	h.broadcastRoom(room.ID, updatePlayersMessage{
		Type:    "updatePlayers",
		Players: room.Members(),
	})
	h.broadcastRoom(room.ID, simpleMessage{
		Type:    "playerJoined",
		Message: fmt.Sprintf("%s entered the room (%s)", player.Name, player.Role),
	})

	if current := room.CurrentParticipant(); current != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: current,
		})
	}

	logf(h.cfg, "ROOMS: %q created room %s (size %d, %d live)", player.Name, room.ID, size, h.rooms.Len())
}

func (h *Hub) handleJoin(c *Client, msg clientMessage) {
	if c.room != "" {
		h.sendError(c, "you are already in a room")
		return
	}

	room, ok := h.rooms.Get(msg.RoomID)
	if !ok {
		h.sendError(c, ErrRoomNotFound.Error())
		return
	}

	player := &Player{ID: c.id, Name: msg.PlayerName, Role: parseRole(msg.PlayerRole)}
	if err := room.Admit(player, h.cfg.maxSpectators); err != nil {
		if errors.Is(err, ErrRoleFull) {
			h.sendTo(c, simpleMessage{
				Type:    "roleFull",
				Message: err.Error(),
			})
		} else {
			h.sendError(c, err.Error())
		}
		return
	}

	c.room = room.ID

	h.sendTo(c, boardMessage{
		Type:  "board",
		Board: room.Board.Snapshot(),
	})

	h.broadcastRoom(room.ID, updatePlayersMessage{
		Type:    "updatePlayers",
		Players: room.Members(),
	})
	h.broadcastRoom(room.ID, simpleMessage{
		Type:    "playerJoined",
		Message: fmt.Sprintf("%s entered the room (%s)", player.Name, player.Role),
	})

	if current := room.CurrentParticipant(); current != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: current,
		})
	}

	logf(h.cfg, "ROOMS: %q joined room %s as %s", player.Name, room.ID, player.Role)
}

func (h *Hub) handleFlip(c *Client, msg clientMessage) {
	room, ok := h.rooms.Get(msg.RoomID)
	if !ok {
		h.sendError(c, ErrRoomNotFound.Error())
		return
	}

	result, err := room.Flip(c.id, msg.CellIndex)
	if err != nil {
		h.sendError(c, err.Error())
		return
	}

	if result.Outcome == flipIgnored {
		return
	}

	// Everyone sees the reveal, not just the flipper.
	h.broadcastRoom(room.ID, cardFlippedMessage{
		Type:      "cardFlipped",
		CellIndex: result.CellIndex,
		Value:     result.Value,
	})

	switch result.Outcome {
	case flipRevealed:

	case flipMatched:
		h.broadcastRoom(room.ID, pairFoundMessage{
			Type:   "pairFound",
			Index1: result.Index1,
			Index2: result.Index2,
			Player: result.Scorer,
		})
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: result.Next,
		})

	case flipGameOver:
		h.broadcastRoom(room.ID, pairFoundMessage{
			Type:   "pairFound",
			Index1: result.Index1,
			Index2: result.Index2,
			Player: result.Scorer,
		})
		h.broadcastRoom(room.ID, gameOverMessage{
			Type:   "gameOver",
			Scores: result.Finals,
		})
		logf(h.cfg, "ROOMS: room %s cleared, %q matched the last pair", room.ID, result.Scorer.Name)

	case flipMismatched:
		h.scheduleFlipBack(room.ID, result.Generation)
	}
}

// scheduleFlipBack re-injects the deferred mismatch resolution into the
// run loop after the visual-settle delay.
func (h *Hub) scheduleFlipBack(roomID string, generation uint64) {
	task := flipBackTask{roomID: roomID, generation: generation}

	time.AfterFunc(h.cfg.flipDelay, func() {
		h.flipBacks <- task
	})
}

func (h *Hub) handleFlipBack(task flipBackTask) {
	room, ok := h.rooms.Get(task.roomID)
	if !ok {
		return
	}

	index1, index2, next, ok := room.ResolveMismatch(task.generation)
	if !ok {
		return
	}

	h.broadcastRoom(room.ID, flipBackMessage{
		Type:   "flipBack",
		Index1: index1,
		Index2: index2,
	})

	if next != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: next,
		})
	}
}

func (h *Hub) handleRestart(c *Client, msg clientMessage) {
	room, ok := h.rooms.Get(msg.RoomID)
	if !ok {
		h.sendError(c, ErrRoomNotFound.Error())
		return
	}

	// Any member may restart; connections outside the room may not.
	if room.Member(c.id) == nil {
		h.sendError(c, "you are not in that room")
		return
	}

	room.Restart()

	h.broadcastRoom(room.ID, boardMessage{
		Type:  "board",
		Board: room.Board.Snapshot(),
	})
	h.broadcastRoom(room.ID, updatePlayersMessage{
		Type:    "updatePlayers",
		Players: room.Members(),
	})

	if current := room.CurrentParticipant(); current != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: current,
		})
	}

	logf(h.cfg, "ROOMS: room %s restarted", room.ID)
}

func (h *Hub) handleLeave(c *Client, msg clientMessage) {
	roomID := c.room
	if roomID == "" {
		roomID = msg.RoomID
	}

	room, ok := h.rooms.Get(roomID)
	if !ok {
		return
	}

	if h.removeFromRoom(c, room) {
		h.sendTo(c, roomClosedMessage{Type: "roomClosed"})
	}
	c.room = ""
}

func (h *Hub) handleChat(c *Client, msg clientMessage) {
	roomID := c.room
	if roomID == "" {
		roomID = msg.RoomID
	}

	room, ok := h.rooms.Get(roomID)
	if !ok {
		return
	}

	player := room.Member(c.id)
	if player == nil {
		return
	}

	h.broadcastRoom(room.ID, receiveMessage{
		Type:    "receiveMessage",
		Name:    player.Name,
		Message: msg.Message,
	})
}

func (h *Hub) handleCurrentPlayer(c *Client, msg clientMessage) {
	room, ok := h.rooms.Get(msg.RoomID)
	if !ok {
		h.sendError(c, ErrRoomNotFound.Error())
		return
	}

	if current := room.CurrentParticipant(); current != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: current,
		})
	}
}

// handleDisconnect is the implicit leave: same membership cleanup, but
// no ack since the connection is already gone.
func (h *Hub) handleDisconnect(c *Client) {
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}

	if c.room == "" {
		return
	}

	room, ok := h.rooms.Get(c.room)
	c.room = ""
	if !ok {
		return
	}

	h.removeFromRoom(c, room)
}

// removeFromRoom takes the client's player out of the room and emits
// the membership broadcasts. Deletes the room when it empties. Reports
// whether the client was actually a member.
func (h *Hub) removeFromRoom(c *Client, room *Room) bool {
	out := room.Remove(c.id)
	if out.player == nil {
		return false
	}

	h.broadcastRoom(room.ID, updatePlayersMessage{
		Type:    "updatePlayers",
		Players: room.Members(),
	})
	h.broadcastRoom(room.ID, simpleMessage{
		Type:    "playerLeft",
		Message: fmt.Sprintf("%s left the room", out.player.Name),
	})

	// A participant leaving mid-cycle aborts the pending flips; the
	// scheduled flip-back timer is already stale at this point.
	if n := len(out.flippedBack); n > 0 {
		h.broadcastRoom(room.ID, flipBackMessage{
			Type:   "flipBack",
			Index1: out.flippedBack[0],
			Index2: out.flippedBack[n-1],
		})
	}

	if room.Empty() {
		h.rooms.Delete(room.ID)
		logf(h.cfg, "ROOMS: room %s deleted (%d live)", room.ID, h.rooms.Len())
		return true
	}

	if current := room.CurrentParticipant(); current != nil {
		h.broadcastRoom(room.ID, nextPlayerMessage{
			Type:   "nextPlayer",
			Player: current,
		})
	}

	return true
}

// reapIdle closes rooms that have seen no activity for the configured
// session timeout, covering clients that vanished without a disconnect.
func (h *Hub) reapIdle() {
	for _, id := range h.rooms.IDs() {
		room, ok := h.rooms.Get(id)
		if !ok || !room.Idle(h.cfg.sessionTimeout) {
			continue
		}

		h.broadcastRoom(id, roomClosedMessage{Type: "roomClosed"})

		for c := range h.clients {
			if c.room == id {
				c.room = ""
				h.dropClient(c)
			}
		}

		h.rooms.Delete(id)
		logf(h.cfg, "ROOMS: room %s reaped after idle timeout", id)
	}
}
