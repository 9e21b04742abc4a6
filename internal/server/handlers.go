// Package server exposes the HTTP handlers: the WebSocket upgrade endpoint,
// a health probe, and the built-in client page.
package server

import (
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
)

// WebSocketHandler returns the upgrade handler for hub. It upgrades GET
// requests whose Origin passes the configured allow-list, wraps the
// connection in a Client, and hands it to the hub, which starts the pumps.
func WebSocketHandler(hub *Hub) http.HandlerFunc {
	checker := newOriginChecker(hub.cfg.AllowedOrigins, hub.log)
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checker.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			hub.log.Warn().Err(err).Msg("websocket upgrade failed")
			return
		}

		client := NewClient(conn, hub, r.RemoteAddr)
		hub.register <- client
	}
}

// HealthHandler reports process liveness in plain text.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "ok")
}

// ClientPageHandler serves the built-in chat client, a single HTML page that
// speaks the full frame protocol: create, login, logout, message, whisper.
func ClientPageHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html")
	_, _ = fmt.Fprint(w, clientPage)
}

const clientPage = `<!DOCTYPE html>
<html>
<head>
    <title>Parley</title>
    <style>
        body { font-family: sans-serif; margin: 20px; max-width: 640px; }
        #log { border: 1px solid #ccc; height: 320px; padding: 8px; overflow-y: scroll; margin: 10px 0; background: #f9f9f9; }
        input { padding: 4px; margin: 2px; }
        .whisper { color: purple; }
        .error { color: red; }
        .info { color: gray; font-style: italic; }
    </style>
</head>
<body>
    <h1>Parley</h1>
    <div>
        <input id="username" placeholder="username">
        <input id="password" type="password" placeholder="password">
        <button onclick="auth('login')">Log in</button>
        <button onclick="auth('create')">Create account</button>
        <button onclick="send({type:'logout'})">Log out</button>
    </div>
    <div id="log"></div>
    <div>
        <input id="message" placeholder="message" size="40">
        <input id="recipients" placeholder="whisper to (comma-separated)">
        <button onclick="chat()">Send</button>
        <button onclick="whisper()">Whisper</button>
    </div>
    <script>
        const log = (text, cls) => {
            const line = document.createElement('div');
            if (cls) line.className = cls;
            line.textContent = text;
            const box = document.getElementById('log');
            box.appendChild(line);
            box.scrollTop = box.scrollHeight;
        };
        const value = (id) => document.getElementById(id).value;

        const ws = new WebSocket((location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '/ws');
        ws.onopen = () => log('connected', 'info');
        ws.onclose = () => log('disconnected', 'info');
        ws.onmessage = (event) => {
            const frame = JSON.parse(event.data);
            if (frame.error) return log(frame.type + ': ' + frame.error, 'error');
            switch (frame.type) {
                case 'message': return log(frame.sender + ': ' + frame.message);
                case 'whisper': return log(frame.sender + ' (whisper): ' + frame.message, 'whisper');
                default: return log(frame.type + ' ok: ' + (frame.username || ''), 'info');
            }
        };

        const send = (frame) => ws.send(JSON.stringify(frame));
        const auth = (type) => send({ type, username: value('username'), password: value('password') });
        const chat = () => send({ type: 'message', message: value('message') });
        const whisper = () => send({
            type: 'whisper',
            message: value('message'),
            recipients: value('recipients').split(',').map(s => s.trim()).filter(Boolean)
        });
    </script>
</body>
</html>`
