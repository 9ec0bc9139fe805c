// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"encoding/json"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/hashicorp/go-multierror"
)

// Server accepts WebSocket connections on /ws and runs one Session per
// connection. Next to the relay endpoint it serves a small operational
// surface: /status with the current presence count and /healthz.
type Server struct {
	table     *PresenceTable
	router    *Router
	discovery *Discovery

	httpServer *http.Server
	upgrader   websocket.Upgrader
	startedAt  time.Time
}

// NewServer starts a Server listening on the given address.
func NewServer(address string) (s *Server, err error) {
	table := NewPresenceTable()

	s = &Server{
		table:     table,
		router:    NewRouter(table),
		discovery: NewDiscovery(table),

		upgrader:  websocket.Upgrader{},
		startedAt: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/ws", s.websocketHandler)
	r.HandleFunc("/status", s.statusHandler).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.healthzHandler).Methods(http.MethodGet)

	s.httpServer = &http.Server{
		Addr:    address,
		Handler: r,
	}

	startupErr := make(chan error)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			startupErr <- err
		}

		close(startupErr)
	}()

	select {
	case err = <-startupErr:
		s = nil
	case <-time.After(100 * time.Millisecond):
	}

	return
}

func (s *Server) log() *log.Entry {
	return log.WithField("relay", s.httpServer.Addr)
}

// websocketHandler upgrades each HTTP request to /ws and hands the
// connection to a new Session.
func (s *Server) websocketHandler(rw http.ResponseWriter, r *http.Request) {
	conn, connErr := s.upgrader.Upgrade(rw, r, nil)
	if connErr != nil {
		s.log().WithError(connErr).Warn("Upgrading HTTP request to WebSocket errored")
		return
	}

	s.log().WithField("peer", conn.RemoteAddr().String()).Debug("Accepted WebSocket connection")

	newSession(conn, s.table, s.router, s.discovery).start()
}

func (s *Server) statusHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.Header().Set("Content-Type", "application/json")

	_ = json.NewEncoder(rw).Encode(struct {
		Online        int     `json:"online"`
		UptimeSeconds float64 `json:"uptimeSeconds"`
	}{
		Online:        s.table.Len(),
		UptimeSeconds: time.Since(s.startedAt).Seconds(),
	})
}

func (s *Server) healthzHandler(rw http.ResponseWriter, _ *http.Request) {
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("ok"))
}

// Presence exposes the Server's PresenceTable.
func (s *Server) Presence() *PresenceTable {
	return s.table
}

// Close the Server with all its Sessions.
func (s *Server) Close() (err error) {
	for _, session := range s.table.sessions() {
		session.close()
	}

	if httpErr := s.httpServer.Close(); httpErr != nil {
		err = multierror.Append(err, httpErr)
	}

	return
}
