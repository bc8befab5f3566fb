package main

// Messages coming from clients. A single envelope covers every request
// type; unused fields are simply left empty.
type clientMessage struct {
	Type       string `json:"type"`                 // "createRoom", "joinRoom", "flipCard", "restartGame", "leaveRoom", "sendMessage", "getCurrentPlayer"
	RoomID     string `json:"roomId,omitempty"`     // all but createRoom
	Size       int    `json:"size,omitempty"`       // createRoom
	PlayerName string `json:"playerName,omitempty"` // createRoom / joinRoom
	PlayerRole string `json:"playerRole,omitempty"` // createRoom / joinRoom
	CellIndex  int    `json:"cellIndex"`            // flipCard
	Message    string `json:"message,omitempty"`    // sendMessage
}

// Messages sent to clients

// simpleMessage covers the announcement and rejection events that carry
// only a human-readable string: "playerJoined", "playerLeft", "roleFull",
// and "error".
type simpleMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// roomCreatedMessage acks room creation to the creator only.
type roomCreatedMessage struct {
	Type   string `json:"type"` // "roomCreated"
	RoomID string `json:"roomId"`
}

// boardMessage is a full board snapshot: face values, with null for
// cells already cleared from play.
type boardMessage struct {
	Type  string `json:"type"` // "board"
	Board []any  `json:"board"`
}

// updatePlayersMessage broadcasts the room roster after any membership
// change, participants first in join order, then spectators.
type updatePlayersMessage struct {
	Type    string    `json:"type"` // "updatePlayers"
	Players []*Player `json:"players"`
}

// nextPlayerMessage names the participant whose turn it is.
type nextPlayerMessage struct {
	Type   string  `json:"type"` // "nextPlayer"
	Player *Player `json:"player"`
}

// cardFlippedMessage reveals a cell to the whole room, spectators included.
type cardFlippedMessage struct {
	Type      string `json:"type"` // "cardFlipped"
	CellIndex int    `json:"cellIndex"`
	Value     int    `json:"value"`
}

// pairFoundMessage announces a resolved match and the scoring player.
type pairFoundMessage struct {
	Type   string  `json:"type"` // "pairFound"
	Index1 int     `json:"index1"`
	Index2 int     `json:"index2"`
	Player *Player `json:"player"`
}

// flipBackMessage turns two mismatched cells face-down again.
type flipBackMessage struct {
	Type   string `json:"type"` // "flipBack"
	Index1 int    `json:"index1"`
	Index2 int    `json:"index2"`
}

// gameOverMessage carries one score entry per participant once the last
// pair has been cleared.
type gameOverMessage struct {
	Type   string       `json:"type"` // "gameOver"
	Scores []finalScore `json:"scores"`
}

type finalScore struct {
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// roomClosedMessage acks an explicit leave to the departing client.
type roomClosedMessage struct {
	Type string `json:"type"` // "roomClosed"
}

// receiveMessage is the chat passthrough.
type receiveMessage struct {
	Type    string `json:"type"` // "receiveMessage"
	Name    string `json:"name"`
	Message string `json:"message"`
}
