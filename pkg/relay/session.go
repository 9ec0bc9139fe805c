// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/volly/volly-go/pkg/msgs"
)

// sendBufferSize bounds a Session's outbound buffer. A destination which
// falls this far behind is closed instead of blocking its senders.
const sendBufferSize = 32

// Session owns one accepted WebSocket connection and binds it to zero or one
// registered identifier. An unregistered Session only accepts a Register
// message; everything else is answered with an error while the connection
// stays open. Only transport failures close a Session.
type Session struct {
	conn *websocket.Conn

	table     *PresenceTable
	router    *Router
	discovery *Discovery

	userId string
	mutex  sync.Mutex

	out       chan []byte
	closeSyn  chan struct{}
	closeOnce sync.Once
}

func newSession(conn *websocket.Conn, table *PresenceTable, router *Router, discovery *Discovery) *Session {
	return &Session{
		conn: conn,

		table:     table,
		router:    router,
		discovery: discovery,

		out:      make(chan []byte, sendBufferSize),
		closeSyn: make(chan struct{}),
	}
}

// start this Session's writer and reader loops; blocks until the connection
// is gone.
func (s *Session) start() {
	go s.handleWriter()
	s.handleReader()
}

func (s *Session) log() *log.Entry {
	return log.WithFields(log.Fields{
		"session": s.conn.RemoteAddr().String(),
		"user":    s.identity(),
	})
}

// identity is the registered identifier, empty while unregistered.
func (s *Session) identity() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.userId
}

func (s *Session) setIdentity(userId string) (previous string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	previous = s.userId
	s.userId = userId
	return
}

func (s *Session) handleReader() {
	defer s.teardown()

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.log().WithError(err).Debug("Reading from WebSocket errored")
			return
		}

		s.dispatch(data)
	}
}

func (s *Session) handleWriter() {
	for {
		select {
		case <-s.closeSyn:
			return

		case data := <-s.out:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.log().WithError(err).Debug("Writing to WebSocket errored")
				s.close()
				return
			}
		}
	}
}

// dispatch a raw inbound message to its handler. Protocol errors are
// answered on the same connection and are never fatal.
func (s *Session) dispatch(data []byte) {
	m, err := msgs.Unmarshal(data)
	switch {
	case errors.Is(err, msgs.ErrInvalidFormat):
		s.sendError(msgs.TextInvalidFormat)
		return

	case errors.Is(err, msgs.ErrUnknownType):
		s.sendError(msgs.TextUnknownType)
		return
	}

	switch m := m.(type) {
	case *msgs.Register:
		s.handleRegister(m)

	case *msgs.Discover:
		s.handleDiscover(m)

	case msgs.Negotiation:
		s.handleNegotiation(m)

	default:
		// a known type, but not one a client may send
		s.sendError(msgs.TextUnknownType)
	}
}

func (s *Session) handleRegister(m *msgs.Register) {
	if err := m.Validate(); err != nil {
		s.log().WithError(err).Debug("Register message misses fields")
		s.sendError(msgs.TextMissingFields)
		return
	}

	if previous := s.setIdentity(m.UserId); previous != "" && previous != m.UserId {
		s.table.RemoveIf(previous, s)
	}
	s.table.Upsert(m.UserId, m.PublicKey, s)

	s.log().WithField("user", m.UserId).Info("Registered session")
	s.sendMessage(msgs.NewRegistered(m.UserId))
}

func (s *Session) handleDiscover(m *msgs.Discover) {
	if s.identity() == "" {
		s.sendError(msgs.TextMustRegister)
		return
	}

	if err := m.Validate(); err != nil {
		s.log().WithError(err).Debug("Discover message misses fields")
		s.sendError(msgs.TextMissingFields)
		return
	}

	s.sendMessage(s.discovery.Handle(m))
}

func (s *Session) handleNegotiation(m msgs.Negotiation) {
	userId := s.identity()
	if userId == "" {
		s.sendError(msgs.TextMustRegister)
		return
	}

	if err := m.Validate(); err != nil {
		s.log().WithError(err).Debug("Negotiation message misses fields")
		s.sendError(msgs.TextMissingFields)
		return
	}

	// the sender's identity always wins over the claimed "from"
	m.SetSender(userId)

	s.router.Route(s, m)
}

// send enqueues raw data for the writer. A full buffer marks a slow
// consumer; such a Session is closed.
func (s *Session) send(data []byte) {
	select {
	case <-s.closeSyn:

	case s.out <- data:

	default:
		s.log().Warn("Outbound buffer is full, closing slow session")
		s.close()
	}
}

func (s *Session) sendMessage(m msgs.Message) {
	if data, err := msgs.Marshal(m); err != nil {
		s.log().WithError(err).Error("Marshalling outbound message errored")
	} else {
		s.send(data)
	}
}

func (s *Session) sendError(text string) {
	s.sendMessage(msgs.NewError(text))
}

// teardown removes this Session's presence, unless a newer registration
// already replaced it, and closes the connection.
func (s *Session) teardown() {
	if userId := s.identity(); userId != "" {
		if s.table.RemoveIf(userId, s) {
			s.log().Info("Removed presence for closed session")
		}
	}

	s.close()
}

func (s *Session) close() {
	s.closeOnce.Do(func() {
		close(s.closeSyn)
		_ = s.conn.Close()
	})
}
