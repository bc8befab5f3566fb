// Matchbox memory game
//
// A server-authoritative game of concentration. Two participants take
// turns flipping pairs of cards on a shuffled board; spectators watch
// and chat. The server holds all room state in memory and pushes every
// state change to the room over websockets.
//
// Features:
// - Any number of independent rooms, created on demand with random IDs
// - Two participant seats per room, configurable spectator policy
// - Turn enforcement, pair scoring, and game-over detection server-side
// - Mismatched cards flip back after a server-paced delay
// - Rooms are deleted when the last member leaves, or reaped when idle
// - In-browser QR code to share a room, backed by go-qrcode

package main

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// qrHandler generates a PNG QR code linking straight to a room.
func qrHandler(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		url := scheme + "://" + r.Host + cfg.prefix + "/?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

// registerMemoryGame sets up routes so that:
//   - $path/ws          → websocket carrying the whole game protocol
//   - $path/qr/:roomid  → PNG QR code linking to a room
func registerMemoryGame(cfg *Config, path string, mux *httprouter.Router) {
	hub := newHub(cfg)
	go hub.run()

	mux.GET(cfg.prefix+path+"/ws", serveWS(cfg, hub))

	mux.GET(cfg.prefix+path+"/qr/:roomid", qrHandler(cfg))
}

// Simple HTML client for quick testing
const indexHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Matchbox</title>
<style>
  body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; }
  #board { display: grid; gap: 0.5rem; margin: 1rem 0; max-width: 28rem; }
  #board button { aspect-ratio: 1; font-size: 1.5rem; cursor: pointer; }
  #board button.removed { visibility: hidden; }
  #players li.current { font-weight: bold; }
  #log { margin-top: 1rem; padding: 0; list-style: none; max-height: 12rem; overflow-y: auto; font-size: 0.9rem; }
  #log li { padding: 0.15rem 0; border-bottom: 1px solid #ddd; }
</style>
</head>
<body>
<h1>Matchbox</h1>
<div id="status">Connecting…</div>
<div>
  <button id="create">Create room</button>
  <button id="join">Join room</button>
  <button id="restart">Restart</button>
  <button id="leave">Leave</button>
</div>
<div id="board"></div>
<ul id="players"></ul>
<ul id="log"></ul>
<form id="chat"><input id="chatText" placeholder="Say something…"><button>Send</button></form>

<script>
(function() {
  const statusEl = document.getElementById('status');
  const boardEl = document.getElementById('board');
  const playersEl = document.getElementById('players');
  const logEl = document.getElementById('log');

  let roomId = '';

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const base = location.pathname.replace(/\/$/, '');
  const ws = new WebSocket(proto + location.host + base + '/play/ws');

  function log(text) {
    const li = document.createElement('li');
    li.textContent = text;
    logEl.prepend(li);
  }

  function send(msg) {
    ws.send(JSON.stringify(msg));
  }

  function renderBoard(board) {
    boardEl.innerHTML = '';
    const side = Math.sqrt(board.length);
    boardEl.style.gridTemplateColumns = 'repeat(' + side + ', 1fr)';
    board.forEach(function(cell, i) {
      const b = document.createElement('button');
      b.textContent = '?';
      if (cell === null) {
        b.className = 'removed';
      }
      b.onclick = function() {
        send({ type: 'flipCard', roomId: roomId, cellIndex: i });
      };
      boardEl.appendChild(b);
    });
  }

  ws.onopen = function() {
    statusEl.textContent = 'Connected.';
    const fromLink = new URLSearchParams(location.search).get('room');
    if (fromLink) {
      joinRoom(fromLink);
    }
  };

  function joinRoom(id) {
    roomId = id;
    const playerName = prompt('Enter your name:') || 'anonymous';
    const playerRole = confirm('Play? (cancel to spectate)') ? 'participant' : 'spectator';
    send({ type: 'joinRoom', roomId: id, playerName: playerName, playerRole: playerRole });
  }

  document.getElementById('create').onclick = function() {
    const size = parseInt(prompt('Board size (even, 2-10):', '4'), 10) || 4;
    const playerName = prompt('Enter your name:') || 'anonymous';
    send({ type: 'createRoom', size: size, playerName: playerName, playerRole: 'participant' });
  };

  document.getElementById('join').onclick = function() {
    const id = prompt('Room ID:') || '';
    if (id) {
      joinRoom(id);
    }
  };

  document.getElementById('restart').onclick = function() {
    send({ type: 'restartGame', roomId: roomId });
  };

  document.getElementById('leave').onclick = function() {
    send({ type: 'leaveRoom', roomId: roomId });
  };

  document.getElementById('chat').onsubmit = function(e) {
    e.preventDefault();
    const input = document.getElementById('chatText');
    if (input.value) {
      send({ type: 'sendMessage', roomId: roomId, message: input.value });
      input.value = '';
    }
  };

  ws.onmessage = function(event) {
    const msg = JSON.parse(event.data);

    switch (msg.type) {
    case 'roomCreated':
      roomId = msg.roomId;
      statusEl.textContent = 'Room ' + roomId;
      log('Room created: ' + roomId);
      break;
    case 'board':
      renderBoard(msg.board);
      break;
    case 'updatePlayers':
      playersEl.innerHTML = '';
      msg.players.forEach(function(p) {
        const li = document.createElement('li');
        li.textContent = p.name + ' (' + p.role + ')';
        li.dataset.id = p.id;
        playersEl.appendChild(li);
      });
      break;
    case 'nextPlayer':
      Array.from(playersEl.children).forEach(function(li) {
        li.classList.toggle('current', li.dataset.id === msg.player.id);
      });
      break;
    case 'cardFlipped':
      boardEl.children[msg.cellIndex].textContent = msg.value;
      break;
    case 'pairFound':
      boardEl.children[msg.index1].className = 'removed';
      boardEl.children[msg.index2].className = 'removed';
      log(msg.player.name + ' found a pair!');
      break;
    case 'flipBack':
      [msg.index1, msg.index2].forEach(function(i) {
        boardEl.children[i].textContent = '?';
      });
      break;
    case 'gameOver':
      log('Game over! ' + msg.scores.map(function(s) { return s.name + ': ' + s.score; }).join(', '));
      break;
    case 'playerJoined':
    case 'playerLeft':
    case 'roleFull':
    case 'error':
      log(msg.message);
      break;
    case 'receiveMessage':
      log(msg.name + ': ' + msg.message);
      break;
    case 'roomClosed':
      roomId = '';
      statusEl.textContent = 'Left room.';
      break;
    }
  };

  ws.onclose = function() {
    statusEl.textContent = 'Disconnected.';
  };

  ws.onerror = function() {
    statusEl.textContent = 'Error with WebSocket.';
  };
})();
</script>
</body>
</html>
`
