// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package client

import (
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/volly/volly-go/pkg/msgs"
	"github.com/volly/volly-go/pkg/queue"
)

// State of a Controller's connection lifecycle.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateRegistering
	StateActive
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateRegistering:
		return "registering"
	case StateActive:
		return "active"
	case StateClosing:
		return "closing"
	default:
		return fmt.Sprintf("invalid state %d", s)
	}
}

// ErrNotConnected is returned for discovery or negotiation requests while
// the Controller holds no active relay connection.
var ErrNotConnected = errors.New("not connected to the relay")

// RelayConn is the Controller's view of an established relay connection.
// The Connector implements it; tests substitute fakes through the Dialer.
type RelayConn interface {
	Register(userId, publicKey string, timeout time.Duration) error
	Discover(userId string, timeout time.Duration) (*msgs.DiscoverResponse, error)
	Send(m msgs.Negotiation) error
	Incoming() <-chan msgs.Negotiation
	Errors() <-chan *msgs.Error
	Done() <-chan struct{}
	Close()
}

// Dialer opens a new relay connection.
type Dialer func() (RelayConn, error)

// WebSocketDialer returns a Dialer connecting to the given relay URL.
func WebSocketDialer(apiUrl string) Dialer {
	return func() (RelayConn, error) {
		return DialConnector(apiUrl)
	}
}

// Deliverer hands a message body to its destination over an established
// direct channel. The channel itself, including its encryption, is outside
// this package.
type Deliverer interface {
	Deliver(destination string, payload []byte) error
}

// Config assembles a Controller. Transport, queue and deliverer are injected
// here; there is no runtime swapping.
type Config struct {
	UserId    string
	PublicKey string

	Dial    Dialer
	Queue   *queue.Store
	Deliver Deliverer

	// DrainInterval paces the delivery queue's retry loop, default 1s.
	DrainInterval time.Duration

	// RoundTripTimeout bounds register and discover round-trips, default 5s.
	RoundTripTimeout time.Duration

	// OnIncoming is called for each relayed negotiation message, if set.
	OnIncoming func(msgs.Negotiation)

	// OnStalled is called once a message passes the backoff ceiling without
	// confirmed delivery, if set. Retries continue regardless.
	OnStalled func(queue.QueuedMessage)
}

// Controller drives the connection lifecycle as a loop of
// Disconnected -> Connecting -> Registering -> Active -> Disconnected, with
// a terminal Closing state on shutdown. While Active it periodically drains
// the delivery queue, checking a destination's presence before attempting
// delivery and honoring the queue's per-destination ordering.
type Controller struct {
	cfg Config

	state State
	conn  RelayConn
	mutex sync.Mutex

	closeSyn  chan struct{}
	closeAck  chan struct{}
	closeOnce sync.Once
}

// NewController validates the Config and starts the Controller's scheduler.
func NewController(cfg Config) (*Controller, error) {
	if cfg.UserId == "" || cfg.PublicKey == "" {
		return nil, errors.New("both an user id and a public key are required")
	}
	if cfg.Dial == nil || cfg.Queue == nil || cfg.Deliver == nil {
		return nil, errors.New("dialer, queue and deliverer are required")
	}

	if cfg.DrainInterval <= 0 {
		cfg.DrainInterval = time.Second
	}
	if cfg.RoundTripTimeout <= 0 {
		cfg.RoundTripTimeout = 5 * time.Second
	}

	c := &Controller{
		cfg: cfg,

		state: StateDisconnected,

		closeSyn: make(chan struct{}),
		closeAck: make(chan struct{}),
	}

	go c.run()

	return c, nil
}

func (c *Controller) log() *log.Entry {
	return log.WithField("controller", c.cfg.UserId)
}

// State reports the current lifecycle state.
func (c *Controller) State() State {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.state
}

func (c *Controller) setState(state State, conn RelayConn) {
	c.mutex.Lock()
	c.state = state
	c.conn = conn
	c.mutex.Unlock()

	c.log().WithField("state", state).Debug("Controller changed state")
}

func (c *Controller) activeConn() (RelayConn, bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.conn, c.state == StateActive && c.conn != nil
}

// run is the Controller's single scheduler goroutine.
func (c *Controller) run() {
	defer close(c.closeAck)

	attempt := 0
	for {
		c.setState(StateConnecting, nil)
		conn, err := c.cfg.Dial()
		if err != nil {
			attempt++
			c.log().WithError(err).WithField("attempt", attempt).Warn("Connecting to the relay errored")

			if !c.pause(queue.RetryDelay(attempt)) {
				c.setState(StateClosing, nil)
				return
			}
			continue
		}

		c.setState(StateRegistering, nil)
		if err := conn.Register(c.cfg.UserId, c.cfg.PublicKey, c.cfg.RoundTripTimeout); err != nil {
			conn.Close()

			attempt++
			c.log().WithError(err).WithField("attempt", attempt).Warn("Registering at the relay errored")

			if !c.pause(queue.RetryDelay(attempt)) {
				c.setState(StateClosing, nil)
				return
			}
			continue
		}

		attempt = 0
		c.log().Info("Registered at the relay")
		c.setState(StateActive, conn)

		closing := c.active(conn)

		c.setState(StateDisconnected, nil)
		conn.Close()

		if closing {
			c.setState(StateClosing, nil)
			return
		}

		// pending messages survive in the queue; only the connection is gone
		attempt = 1
		if !c.pause(queue.RetryDelay(attempt)) {
			c.setState(StateClosing, nil)
			return
		}
	}
}

// pause sleeps for the given duration, cancellable by Close. It reports
// whether the Controller shall keep running.
func (c *Controller) pause(d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-c.closeSyn:
		return false
	case <-timer.C:
		return true
	}
}

// active serves one Active phase until shutdown or connection loss, draining
// the delivery queue on each tick.
func (c *Controller) active(conn RelayConn) (closing bool) {
	ticker := time.NewTicker(c.cfg.DrainInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closeSyn:
			return true

		case <-conn.Done():
			c.log().Warn("Relay connection is gone")
			return false

		case m := <-conn.Incoming():
			if m == nil {
				return false
			}
			if c.cfg.OnIncoming != nil {
				c.cfg.OnIncoming(m)
			}

		case e := <-conn.Errors():
			if e == nil {
				return false
			}
			c.log().WithField("message", e.Message).Debug("Relay reported an error")

		case <-ticker.C:
			c.drainOnce(conn)
		}
	}
}

// drainOnce attempts delivery for each due message, destination by
// destination in sequence order. The first failure for a destination stops
// its batch; later messages must not overtake earlier ones.
func (c *Controller) drainOnce(conn RelayConn) {
	pending, err := c.cfg.Queue.GetPending(time.Now())
	if err != nil {
		c.log().WithError(err).Error("Fetching pending messages errored")
		return
	}

	var (
		current string
		skipped string
	)

	for _, qm := range pending {
		if qm.Destination == skipped {
			continue
		}

		if qm.Destination != current {
			current = qm.Destination

			if !c.destinationOnline(conn, current) {
				c.markFailed(qm, "destination is offline")
				skipped = current
				continue
			}
		}

		if err := c.cfg.Deliver.Deliver(qm.Destination, qm.Payload); err != nil {
			c.markFailed(qm, err.Error())
			skipped = qm.Destination
			continue
		}

		if err := c.cfg.Queue.MarkDelivered(qm.SequenceId); err != nil {
			c.log().WithError(err).WithField("sequence", qm.SequenceId).Error("Marking message as delivered errored")
		}
	}
}

// destinationOnline asks the relay for the destination's presence. A failed
// or timed-out discovery counts as offline and degrades to queueing.
func (c *Controller) destinationOnline(conn RelayConn, destination string) bool {
	resp, err := conn.Discover(destination, c.cfg.RoundTripTimeout)
	if err != nil {
		c.log().WithError(err).WithField("destination", destination).Debug("Discovery errored, assuming offline")
		return false
	}
	return resp.Online
}

func (c *Controller) markFailed(qm queue.QueuedMessage, cause string) {
	failed, err := c.cfg.Queue.MarkFailed(qm.SequenceId, cause)
	if err != nil {
		c.log().WithError(err).WithField("sequence", qm.SequenceId).Error("Marking message as failed errored")
		return
	}

	if failed.Stalled && c.cfg.OnStalled != nil {
		c.cfg.OnStalled(failed)
	}
}

// Enqueue hands an outbound message to the delivery queue. This is a local
// write; delivery happens from the drain loop.
func (c *Controller) Enqueue(conversationId, destination string, payload []byte) (queue.QueuedMessage, error) {
	return c.cfg.Queue.Enqueue(conversationId, destination, payload)
}

// Discover queries a peer's presence over the active connection.
func (c *Controller) Discover(userId string) (*msgs.DiscoverResponse, error) {
	conn, ok := c.activeConn()
	if !ok {
		return nil, ErrNotConnected
	}
	return conn.Discover(userId, c.cfg.RoundTripTimeout)
}

// Negotiate relays a negotiation message over the active connection.
func (c *Controller) Negotiate(m msgs.Negotiation) error {
	conn, ok := c.activeConn()
	if !ok {
		return ErrNotConnected
	}
	return conn.Send(m)
}

// Close shuts the Controller down: the active retry timer is aborted and the
// transport closed. The delivery queue is left untouched for the next
// session.
func (c *Controller) Close() {
	c.closeOnce.Do(func() {
		close(c.closeSyn)
	})
	<-c.closeAck
}
