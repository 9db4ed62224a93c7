package webserver

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// handleWS upgrades the connection and hands it to the hub as a viewer
// session. The session receives only events emitted while it is connected;
// catch-up is the list endpoints, not this channel.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "realtime channel disabled", http.StatusServiceUnavailable)
		return
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || s.cfg.AllowedOrigin == "*" || origin == s.cfg.AllowedOrigin
		},
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.hub.ServeConn(conn)
}
