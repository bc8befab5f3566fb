package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() *Config {
	return &Config{
		flipDelay:      time.Millisecond,
		sessionTimeout: time.Hour,
	}
}

// newTestClient builds a socketless client and registers it with the
// hub, the way the run loop would.
func newTestClient(h *Hub, id string) *Client {
	c := &Client{
		send: make(chan any, 32),
		id:   id,
	}
	h.clients[c] = true
	return c
}

// drainClient empties a client's send buffer.
func drainClient(c *Client) []any {
	var out []any
	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				return out
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func msgType(m any) string {
	switch v := m.(type) {
	case simpleMessage:
		return v.Type
	case roomCreatedMessage:
		return v.Type
	case boardMessage:
		return v.Type
	case updatePlayersMessage:
		return v.Type
	case nextPlayerMessage:
		return v.Type
	case cardFlippedMessage:
		return v.Type
	case pairFoundMessage:
		return v.Type
	case flipBackMessage:
		return v.Type
	case gameOverMessage:
		return v.Type
	case roomClosedMessage:
		return v.Type
	case receiveMessage:
		return v.Type
	default:
		return ""
	}
}

func msgTypes(msgs []any) []string {
	types := make([]string, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, msgType(m))
	}
	return types
}

// createTestRoom drives the full createRoom handler for a client and
// returns the resulting room.
func createTestRoom(t *testing.T, h *Hub, c *Client, size int) *Room {
	t.Helper()

	h.handleCreate(c, clientMessage{
		Type:       "createRoom",
		Size:       size,
		PlayerName: "name-" + c.id,
		PlayerRole: "participant",
	})

	var room *Room
	for _, m := range drainClient(c) {
		if created, ok := m.(roomCreatedMessage); ok {
			got, found := h.rooms.Get(created.RoomID)
			require.True(t, found)
			room = got
		}
	}
	require.NotNil(t, room, "expected a roomCreated ack")

	return room
}

func joinTestRoom(t *testing.T, h *Hub, c *Client, roomID, role string) {
	t.Helper()

	h.handleJoin(c, clientMessage{
		Type:       "joinRoom",
		RoomID:     roomID,
		PlayerName: "name-" + c.id,
		PlayerRole: role,
	})
}

func TestHubCreateRoom(t *testing.T) {
	h := newHub(testConfig())
	c := newTestClient(h, "a")

	h.handleCreate(c, clientMessage{
		Type:       "createRoom",
		Size:       4,
		PlayerName: "Alice",
		PlayerRole: "participant",
	})

	msgs := drainClient(c)
	require.Equal(t, []string{"roomCreated", "board", "updatePlayers", "playerJoined", "nextPlayer"}, msgTypes(msgs))

	board := msgs[1].(boardMessage)
	assert.Len(t, board.Board, 16)

	next := msgs[4].(nextPlayerMessage)
	assert.Equal(t, "a", next.Player.ID)

	assert.Equal(t, 1, h.rooms.Len())
	assert.NotEmpty(t, c.room)
}

func TestHubCreateRoomAsSpectator(t *testing.T) {
	h := newHub(testConfig())
	c := newTestClient(h, "a")

	h.handleCreate(c, clientMessage{
		Type:       "createRoom",
		Size:       2,
		PlayerName: "Alice",
		PlayerRole: "spectator",
	})

	types := msgTypes(drainClient(c))
	assert.NotContains(t, types, "nextPlayer", "no turn notification without participants")
	assert.Contains(t, types, "roomCreated")
}

func TestHubCreateRoomInvalidSize(t *testing.T) {
	h := newHub(testConfig())

	for _, size := range []int{3, 7, 12, -2} {
		c := newTestClient(h, "a")

		h.handleCreate(c, clientMessage{Type: "createRoom", Size: size, PlayerRole: "participant"})

		msgs := drainClient(c)
		require.Len(t, msgs, 1, "size %d", size)
		assert.Equal(t, "error", msgType(msgs[0]))
		assert.Equal(t, 0, h.rooms.Len())
		delete(h.clients, c)
	}
}

func TestHubCreateRoomDefaultSize(t *testing.T) {
	h := newHub(testConfig())
	c := newTestClient(h, "a")

	room := createTestRoom(t, h, c, 0)

	assert.Equal(t, minBoardSize, room.Size)
	assert.Len(t, room.Board, minBoardSize*minBoardSize)
}

func TestHubJoinRoom(t *testing.T) {
	h := newHub(testConfig())
	creator := newTestClient(h, "a")
	room := createTestRoom(t, h, creator, 2)

	joiner := newTestClient(h, "b")
	joinTestRoom(t, h, joiner, room.ID, "participant")

	require.Equal(t, []string{"board", "updatePlayers", "playerJoined", "nextPlayer"}, msgTypes(drainClient(joiner)))

	// The existing member sees the roster change too.
	creatorTypes := msgTypes(drainClient(creator))
	assert.Contains(t, creatorTypes, "updatePlayers")
	assert.Contains(t, creatorTypes, "playerJoined")

	assert.Len(t, room.Participants, 2)
}

func TestHubJoinRoomNotFound(t *testing.T) {
	h := newHub(testConfig())
	c := newTestClient(h, "a")

	joinTestRoom(t, h, c, "missing12", "participant")

	msgs := drainClient(c)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgType(msgs[0]))
	assert.Empty(t, c.room)
}

func TestHubThirdParticipantRejected(t *testing.T) {
	h := newHub(testConfig())
	creator := newTestClient(h, "a")
	room := createTestRoom(t, h, creator, 2)

	second := newTestClient(h, "b")
	joinTestRoom(t, h, second, room.ID, "participant")
	drainClient(second)
	drainClient(creator)

	third := newTestClient(h, "c")
	joinTestRoom(t, h, third, room.ID, "participant")

	msgs := drainClient(third)
	require.Len(t, msgs, 1)
	assert.Equal(t, "roleFull", msgType(msgs[0]))
	assert.Empty(t, third.room)

	// Room state is unchanged, and the members heard nothing.
	assert.Len(t, room.Participants, 2)
	assert.Empty(t, drainClient(creator))
	assert.Empty(t, drainClient(second))
}

func TestHubSpectatorCapRejected(t *testing.T) {
	cfg := testConfig()
	cfg.maxSpectators = 1

	h := newHub(cfg)
	creator := newTestClient(h, "a")
	room := createTestRoom(t, h, creator, 2)

	first := newTestClient(h, "b")
	joinTestRoom(t, h, first, room.ID, "spectator")
	require.Len(t, room.Spectators, 1)

	second := newTestClient(h, "c")
	joinTestRoom(t, h, second, room.ID, "spectator")

	msgs := drainClient(second)
	require.Len(t, msgs, 1)
	assert.Equal(t, "roleFull", msgType(msgs[0]))
	assert.Len(t, room.Spectators, 1)
}

func TestHubFlipMatchAndGameOver(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	b := newTestClient(h, "b")
	joinTestRoom(t, h, b, room.ID, "participant")
	watcher := newTestClient(h, "w")
	joinTestRoom(t, h, watcher, room.ID, "spectator")

	room.Board = Board{1, 1, 2, 2}
	drainClient(a)
	drainClient(b)
	drainClient(watcher)

	h.handleFlip(a, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 0})

	// The reveal reaches participants and spectators alike.
	for _, c := range []*Client{a, b, watcher} {
		msgs := drainClient(c)
		require.Len(t, msgs, 1)
		flipped := msgs[0].(cardFlippedMessage)
		assert.Equal(t, 0, flipped.CellIndex)
		assert.Equal(t, 1, flipped.Value)
	}

	h.handleFlip(a, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 1})

	msgs := drainClient(b)
	require.Equal(t, []string{"cardFlipped", "pairFound", "nextPlayer"}, msgTypes(msgs))
	pair := msgs[1].(pairFoundMessage)
	assert.Equal(t, "a", pair.Player.ID)
	next := msgs[2].(nextPlayerMessage)
	assert.Equal(t, "b", next.Player.ID)
	drainClient(a)
	drainClient(watcher)

	h.handleFlip(b, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 2})
	h.handleFlip(b, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 3})

	msgs = drainClient(watcher)
	require.Equal(t, []string{"cardFlipped", "cardFlipped", "pairFound", "gameOver"}, msgTypes(msgs))
	over := msgs[3].(gameOverMessage)
	assert.Equal(t, []finalScore{
		{Name: "name-a", Score: 1},
		{Name: "name-b", Score: 1},
	}, over.Scores)

	// The room stays open for a restart.
	_, ok := h.rooms.Get(room.ID)
	assert.True(t, ok)
}

func TestHubSpectatorCannotFlip(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	watcher := newTestClient(h, "w")
	joinTestRoom(t, h, watcher, room.ID, "spectator")
	drainClient(a)
	drainClient(watcher)

	before := room.Board.Snapshot()

	h.handleFlip(watcher, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 0})

	// Only the offender hears about it.
	msgs := drainClient(watcher)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgType(msgs[0]))
	assert.Empty(t, drainClient(a))
	assert.Equal(t, before, room.Board.Snapshot())
}

func TestHubMismatchFlipBack(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	b := newTestClient(h, "b")
	joinTestRoom(t, h, b, room.ID, "participant")

	room.Board = Board{1, 2, 1, 2}
	drainClient(a)
	drainClient(b)

	h.handleFlip(a, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 0})
	h.handleFlip(a, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 1})
	require.Equal(t, []string{"cardFlipped", "cardFlipped"}, msgTypes(drainClient(b)))
	drainClient(a)

	generation := room.generation

	// A stale task does nothing.
	h.handleFlipBack(flipBackTask{roomID: room.ID, generation: generation + 1})
	assert.Empty(t, drainClient(b))

	// So does a task for a room that no longer exists.
	h.handleFlipBack(flipBackTask{roomID: "missing12", generation: generation})
	assert.Empty(t, drainClient(b))

	h.handleFlipBack(flipBackTask{roomID: room.ID, generation: generation})

	msgs := drainClient(b)
	require.Equal(t, []string{"flipBack", "nextPlayer"}, msgTypes(msgs))
	back := msgs[0].(flipBackMessage)
	assert.Equal(t, 0, back.Index1)
	assert.Equal(t, 1, back.Index2)
	next := msgs[1].(nextPlayerMessage)
	assert.Equal(t, "b", next.Player.ID)
}

func TestHubLeaveRoom(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	b := newTestClient(h, "b")
	joinTestRoom(t, h, b, room.ID, "participant")
	drainClient(a)
	drainClient(b)

	h.handleLeave(b, clientMessage{Type: "leaveRoom", RoomID: room.ID})

	types := msgTypes(drainClient(b))
	assert.Contains(t, types, "roomClosed")
	assert.Empty(t, b.room)

	aTypes := msgTypes(drainClient(a))
	assert.Contains(t, aTypes, "updatePlayers")
	assert.Contains(t, aTypes, "playerLeft")
	assert.Contains(t, aTypes, "nextPlayer")

	_, scored := room.Scores["b"]
	assert.False(t, scored)

	// Last member out deletes the room.
	h.handleLeave(a, clientMessage{Type: "leaveRoom", RoomID: room.ID})
	_, ok := h.rooms.Get(room.ID)
	assert.False(t, ok)
}

func TestHubLeaveWhenNotAMember(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	drainClient(a)

	stranger := newTestClient(h, "s")
	h.handleLeave(stranger, clientMessage{Type: "leaveRoom", RoomID: room.ID})

	assert.Empty(t, drainClient(stranger), "no ack for a non-member")
	assert.Empty(t, drainClient(a))
}

func TestHubDisconnectMidCycle(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	b := newTestClient(h, "b")
	joinTestRoom(t, h, b, room.ID, "participant")

	room.Board = Board{1, 2, 1, 2}
	drainClient(a)
	drainClient(b)

	h.handleFlip(a, clientMessage{Type: "flipCard", RoomID: room.ID, CellIndex: 0})
	drainClient(b)

	h.handleDisconnect(a)

	types := msgTypes(drainClient(b))
	assert.Contains(t, types, "updatePlayers")
	assert.Contains(t, types, "playerLeft")
	assert.Contains(t, types, "flipBack", "orphaned flip turns back down")
	assert.Contains(t, types, "nextPlayer")

	// The game continues for the remaining participant.
	current := room.CurrentParticipant()
	require.NotNil(t, current)
	assert.Equal(t, "b", current.ID)
	assert.Empty(t, room.pending)
	_, scored := room.Scores["a"]
	assert.False(t, scored)
}

func TestHubDisconnectLastParticipant(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	watcher := newTestClient(h, "w")
	joinTestRoom(t, h, watcher, room.ID, "spectator")
	drainClient(a)
	drainClient(watcher)

	h.handleDisconnect(a)

	// The room persists for the spectator, and no turn notification is
	// attempted on an empty participant list.
	_, ok := h.rooms.Get(room.ID)
	require.True(t, ok)
	types := msgTypes(drainClient(watcher))
	assert.Contains(t, types, "playerLeft")
	assert.NotContains(t, types, "nextPlayer")

	h.handleDisconnect(watcher)
	_, ok = h.rooms.Get(room.ID)
	assert.False(t, ok, "empty room is deleted")
}

func TestHubChat(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	watcher := newTestClient(h, "w")
	joinTestRoom(t, h, watcher, room.ID, "spectator")
	drainClient(a)
	drainClient(watcher)

	h.handleChat(watcher, clientMessage{Type: "sendMessage", RoomID: room.ID, Message: "hello"})

	for _, c := range []*Client{a, watcher} {
		msgs := drainClient(c)
		require.Len(t, msgs, 1)
		chat := msgs[0].(receiveMessage)
		assert.Equal(t, "name-w", chat.Name)
		assert.Equal(t, "hello", chat.Message)
	}

	// Connections outside the room can't speak into it.
	stranger := newTestClient(h, "s")
	h.handleChat(stranger, clientMessage{Type: "sendMessage", RoomID: room.ID, Message: "psst"})
	assert.Empty(t, drainClient(a))
}

func TestHubGetCurrentPlayer(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	drainClient(a)

	h.handleCurrentPlayer(a, clientMessage{Type: "getCurrentPlayer", RoomID: room.ID})

	msgs := drainClient(a)
	require.Len(t, msgs, 1)
	next := msgs[0].(nextPlayerMessage)
	assert.Equal(t, "a", next.Player.ID)
}

func TestHubRestart(t *testing.T) {
	h := newHub(testConfig())
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	watcher := newTestClient(h, "w")
	joinTestRoom(t, h, watcher, room.ID, "spectator")
	room.Scores["a"] = 2
	drainClient(a)
	drainClient(watcher)

	// Members may restart, including spectators; outsiders may not.
	stranger := newTestClient(h, "s")
	h.handleRestart(stranger, clientMessage{Type: "restartGame", RoomID: room.ID})
	msgs := drainClient(stranger)
	require.Len(t, msgs, 1)
	assert.Equal(t, "error", msgType(msgs[0]))
	assert.Empty(t, drainClient(a))

	h.handleRestart(watcher, clientMessage{Type: "restartGame", RoomID: room.ID})

	require.Equal(t, []string{"board", "updatePlayers", "nextPlayer"}, msgTypes(drainClient(a)))
	assert.Equal(t, 0, room.Scores["a"])
	assert.Equal(t, 0, room.Current)
}

func TestHubReapIdle(t *testing.T) {
	cfg := testConfig()
	cfg.sessionTimeout = time.Minute

	h := newHub(cfg)
	a := newTestClient(h, "a")
	room := createTestRoom(t, h, a, 2)
	drainClient(a)

	// A fresh room survives a sweep.
	h.reapIdle()
	_, ok := h.rooms.Get(room.ID)
	require.True(t, ok)

	room.lastActive = time.Now().Add(-2 * time.Minute)
	h.reapIdle()

	_, ok = h.rooms.Get(room.ID)
	assert.False(t, ok)
	assert.NotContains(t, h.clients, a)

	types := msgTypes(drainClient(a))
	assert.Contains(t, types, "roomClosed")
}
