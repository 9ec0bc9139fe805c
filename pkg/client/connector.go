// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/gorilla/websocket"

	"github.com/volly/volly-go/pkg/msgs"
)

// ErrTimeout is returned when the relay does not answer a round-trip within
// its deadline. A timed-out discovery is treated as "offline".
var ErrTimeout = errors.New("relay round-trip timed out")

// Connector is one established connection to a rendezvous relay. Writes are
// serialized through a single writer goroutine; a reader goroutine demuxes
// acknowledgements, discovery responses, relayed negotiation messages and
// relay errors.
type Connector struct {
	conn *websocket.Conn

	msgOutChan chan msgs.Message
	msgOutErr  chan error

	regChan      chan *msgs.Registered
	discChan     chan *msgs.DiscoverResponse
	incomingChan chan msgs.Negotiation
	errChan      chan *msgs.Error

	closeSyn chan struct{}
	closeAck chan struct{}
	done     chan struct{}
}

// DialConnector connects to a relay's WebSocket endpoint, e.g.,
// ws://localhost:8080/ws.
func DialConnector(apiUrl string) (c *Connector, err error) {
	var conn *websocket.Conn
	if conn, _, err = websocket.DefaultDialer.Dial(apiUrl, nil); err != nil {
		return
	}

	c = &Connector{
		conn: conn,

		msgOutChan: make(chan msgs.Message),
		msgOutErr:  make(chan error),

		regChan:      make(chan *msgs.Registered, 1),
		discChan:     make(chan *msgs.DiscoverResponse, 1),
		incomingChan: make(chan msgs.Negotiation),
		errChan:      make(chan *msgs.Error, 1),

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
		done:     make(chan struct{}),
	}

	go c.handler()
	go c.handleReader()

	return
}

func (c *Connector) writeMessage(m msgs.Message) error {
	data, err := msgs.Marshal(m)
	if err != nil {
		return err
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// handler serializes outgoing writes until Close is called.
func (c *Connector) handler() {
	defer func() {
		close(c.closeAck)

		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.closeSyn:
			return

		case m := <-c.msgOutChan:
			c.msgOutErr <- c.writeMessage(m)
		}
	}
}

// handleReader demuxes inbound messages. Round-trip answers go to buffered
// channels and are dropped if nobody awaits them; negotiation messages block
// until consumed.
func (c *Connector) handleReader() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		m, err := msgs.Unmarshal(data)
		if err != nil {
			log.WithError(err).Warn("Unmarshalling relay message errored")
			continue
		}

		switch m := m.(type) {
		case *msgs.Registered:
			select {
			case c.regChan <- m:
			default:
			}

		case *msgs.DiscoverResponse:
			select {
			case c.discChan <- m:
			default:
			}

		case *msgs.Error:
			select {
			case c.errChan <- m:
			default:
				log.WithField("message", m.Message).Debug("Dropping unawaited relay error")
			}

		case msgs.Negotiation:
			select {
			case c.incomingChan <- m:
			case <-c.closeSyn:
				return
			}

		default:
			log.WithField("type", m.MessageType()).Debug("Ignoring unexpected relay message")
		}
	}
}

func (c *Connector) send(m msgs.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()

	select {
	case c.msgOutChan <- m:
		return <-c.msgOutErr

	case <-c.done:
		return errors.New("connection is closed")
	}
}

// drainStaleErrors discards queued-up routing errors of earlier sends, so a
// following round-trip does not consume one as its own answer.
func (c *Connector) drainStaleErrors() {
	for {
		select {
		case e := <-c.errChan:
			log.WithField("message", e.Message).Debug("Discarding stale relay error")
		default:
			return
		}
	}
}

// Register announces the identifier and public key and awaits the relay's
// acknowledgement.
func (c *Connector) Register(userId, publicKey string, timeout time.Duration) error {
	c.drainStaleErrors()

	if err := c.send(msgs.NewRegister(userId, publicKey)); err != nil {
		return err
	}

	select {
	case <-c.regChan:
		return nil

	case e := <-c.errChan:
		return fmt.Errorf("relay refused registration: %s", e.Message)

	case <-c.done:
		return errors.New("connection is closed")

	case <-time.After(timeout):
		return ErrTimeout
	}
}

// Discover queries the presence of an identifier.
func (c *Connector) Discover(userId string, timeout time.Duration) (*msgs.DiscoverResponse, error) {
	c.drainStaleErrors()

	if err := c.send(msgs.NewDiscover(userId)); err != nil {
		return nil, err
	}

	select {
	case resp := <-c.discChan:
		return resp, nil

	case e := <-c.errChan:
		return nil, fmt.Errorf("relay refused discovery: %s", e.Message)

	case <-c.done:
		return nil, errors.New("connection is closed")

	case <-time.After(timeout):
		return nil, ErrTimeout
	}
}

// Send relays a negotiation message. Routing errors arrive asynchronously on
// Errors.
func (c *Connector) Send(m msgs.Negotiation) error {
	return c.send(m)
}

// Incoming returns the channel of negotiation messages relayed to this
// client.
func (c *Connector) Incoming() <-chan msgs.Negotiation {
	return c.incomingChan
}

// Errors returns the channel of relay errors nobody was awaiting, e.g.,
// "not online" answers to Send.
func (c *Connector) Errors() <-chan *msgs.Error {
	return c.errChan
}

// Done is closed once the connection is gone.
func (c *Connector) Done() <-chan struct{} {
	return c.done
}

// Close this Connector.
func (c *Connector) Close() {
	defer func() {
		// channel is already closed
		_ = recover()
	}()

	close(c.closeSyn)
	<-c.closeAck
}
