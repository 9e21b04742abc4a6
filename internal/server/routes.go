// Package server wires HTTP handlers into a ServeMux.
package server

import "net/http"

// SetupRoutes configures and returns the application's routes: the client
// page, the WebSocket endpoint, and the health probe.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", ClientPageHandler)
	mux.HandleFunc("/ws", WebSocketHandler(hub))
	mux.HandleFunc("/healthz", HealthHandler)
	return mux
}
