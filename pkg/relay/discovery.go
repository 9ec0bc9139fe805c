// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import "github.com/volly/volly-go/pkg/msgs"

// Discovery answers presence queries. It is a pure read on the
// PresenceTable; the relay answers immediately and never waits for an
// identifier to appear.
type Discovery struct {
	table *PresenceTable
}

// NewDiscovery creates a Discovery handler backed by the given table.
func NewDiscovery(table *PresenceTable) *Discovery {
	return &Discovery{table: table}
}

// Handle answers a Discover request. The public key is only included for an
// online identifier.
func (d *Discovery) Handle(m *msgs.Discover) *msgs.DiscoverResponse {
	if entry, ok := d.table.Lookup(m.UserId); ok {
		return msgs.NewDiscoverResponse(m.UserId, true, entry.PublicKey)
	}
	return msgs.NewDiscoverResponse(m.UserId, false, "")
}
