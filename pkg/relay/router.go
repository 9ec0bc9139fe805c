// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	log "github.com/sirupsen/logrus"

	"github.com/volly/volly-go/pkg/msgs"
)

// Router forwards negotiation messages between exactly the two parties named
// within the message. It is stateless; messages are neither stored nor
// retried on the relay's behalf.
type Router struct {
	table *PresenceTable
}

// NewRouter creates a Router resolving destinations from the given table.
func NewRouter(table *PresenceTable) *Router {
	return &Router{table: table}
}

// Route forwards m to its recipient's Session, or answers the sender with a
// routing error if the recipient is not present. Messages from the same
// sender to the same destination keep their order; each sender has a single
// read loop and each destination a single outbound queue.
func (r *Router) Route(sender *Session, m msgs.Negotiation) {
	entry, ok := r.table.Lookup(m.Recipient())
	if !ok {
		sender.sendError(msgs.TextUserNotOnline(m.Recipient()))
		return
	}

	data, err := msgs.Marshal(m)
	if err != nil {
		log.WithError(err).WithField("type", m.MessageType()).Error("Marshalling negotiation message errored")
		return
	}

	log.WithFields(log.Fields{
		"type": m.MessageType(),
		"to":   m.Recipient(),
	}).Debug("Routing negotiation message")

	entry.session.send(data)
}
