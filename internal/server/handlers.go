// Package server exposes HTTP handlers, including websocket upgrades, health
// checks, and the built-in test page.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// NewWebSocketHandler returns the handler that upgrades HTTP requests and
// binds the resulting connection to the provided hub as a new session.
func NewWebSocketHandler(hub *Hub) http.HandlerFunc {
	policy := newOriginPolicy(hub.cfg.AllowedOrigins)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}

		// The hub registers the session and launches its pump goroutines.
		hub.Connect(NewSession(conn, hub, r.RemoteAddr))
	}
}

// HealthHandler provides a simple health check endpoint that returns server
// status as plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "RelayPoint chat server is running!")
}

// TestPageHandler serves an HTML page for exercising the relay by hand:
// connect, pick a username, exchange messages, and watch typing indicators.
func TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPageHTML); err != nil {
		log.Debug().Err(err).Msg("writing test page response")
	}
}

const testPageHTML = `<!DOCTYPE html>
<html>
<head>
    <title>RelayPoint Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages {
            border: 1px solid #ccc;
            height: 300px;
            padding: 10px;
            overflow-y: scroll;
            margin: 10px 0;
            background-color: #f9f9f9;
        }
        #typing { color: gray; font-style: italic; min-height: 1.2em; }
        input[type="text"] { padding: 5px; margin-right: 10px; }
        #messageInput { width: 300px; }
        button {
            padding: 5px 15px;
            background-color: #007cba;
            color: white;
            border: none;
            cursor: pointer;
        }
        .status { margin: 10px 0; padding: 5px; border-radius: 3px; }
        .connected { background-color: #d4edda; color: #155724; }
        .disconnected { background-color: #f8d7da; color: #721c24; }
    </style>
</head>
<body>
    <h1>RelayPoint Chat Test</h1>

    <div id="status" class="status disconnected">Disconnected</div>

    <div>
        <input type="text" id="userInput" placeholder="Username" value="">
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <input type="text" id="messageInput" placeholder="Type a message..." disabled>
        <button id="sendButton" onclick="sendMessage()" disabled>Send</button>
    </div>

    <div id="messages"></div>
    <div id="typing"></div>

    <script>
        let ws = null;
        let typingTimer = null;
        const typingUsers = new Set();
        const messagesDiv = document.getElementById('messages');
        const typingDiv = document.getElementById('typing');
        const messageInput = document.getElementById('messageInput');
        const userInput = document.getElementById('userInput');
        const sendButton = document.getElementById('sendButton');
        const connectButton = document.getElementById('connectButton');
        const statusDiv = document.getElementById('status');

        function addMessage(msg) {
            const el = document.createElement('div');
            el.style.margin = '5px 0';
            const when = new Date(msg.sentAt).toLocaleTimeString();
            el.innerHTML = '<strong>' + msg.user + '</strong> <small>' + when + '</small>: ' + msg.body;
            messagesDiv.appendChild(el);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function renderTyping() {
            const users = Array.from(typingUsers);
            typingDiv.textContent = users.length ? users.join(', ') + ' typing...' : '';
        }

        function updateStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = 'status ' + (connected ? 'connected' : 'disconnected');
            messageInput.disabled = !connected;
            sendButton.disabled = !connected;
            connectButton.textContent = connected ? 'Disconnect' : 'Connect';
        }

        function connect() {
            ws = new WebSocket('ws://' + location.host + '/ws');

            ws.onopen = function() { updateStatus(true); };

            ws.onmessage = function(event) {
                const frame = JSON.parse(event.data);
                if (frame.kind === 'history') {
                    frame.messages.forEach(addMessage);
                } else if (frame.kind === 'message') {
                    typingUsers.delete(frame.message.user);
                    renderTyping();
                    addMessage(frame.message);
                } else if (frame.kind === 'presence') {
                    if (frame.isTyping) {
                        typingUsers.add(frame.user);
                    } else {
                        typingUsers.delete(frame.user);
                    }
                    renderTyping();
                }
            };

            ws.onclose = function() {
                updateStatus(false);
                typingUsers.clear();
                renderTyping();
                ws = null;
            };
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
            } else {
                connect();
            }
        }

        function sendTyping(isTyping) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ kind: 'typing', user: userInput.value, isTyping: isTyping }));
            }
        }

        function sendMessage() {
            const body = messageInput.value.trim();
            if (body && ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify({ kind: 'send', user: userInput.value, body: body }));
                messageInput.value = '';
                clearTimeout(typingTimer);
                typingTimer = null;
            }
        }

        messageInput.addEventListener('input', function() {
            if (!typingTimer) {
                sendTyping(true);
            } else {
                clearTimeout(typingTimer);
            }
            typingTimer = setTimeout(function() {
                sendTyping(false);
                typingTimer = null;
            }, 2000);
        });

        messageInput.addEventListener('keypress', function(e) {
            if (e.key === 'Enter') {
                sendMessage();
            }
        });
    </script>
</body>
</html>`
