// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package relay

import (
	"sync"
	"time"
)

// PresenceEntry binds a registered identifier to its Session and the public
// key advertised at registration time.
type PresenceEntry struct {
	UserId       string
	PublicKey    string
	RegisteredAt time.Time

	session *Session
}

// PresenceTable is the only shared mutable state of the relay. It holds at
// most one entry per identifier; a second registration under the same
// identifier replaces the prior entry. All operations are atomic with
// respect to each other, the critical sections never touch the network.
type PresenceTable struct {
	entries map[string]PresenceEntry
	mutex   sync.RWMutex
}

// NewPresenceTable creates an empty PresenceTable.
func NewPresenceTable() *PresenceTable {
	return &PresenceTable{
		entries: make(map[string]PresenceEntry),
	}
}

// Upsert inserts or replaces the entry for userId. A replaced Session is not
// notified; its connection fails naturally on its next write.
func (pt *PresenceTable) Upsert(userId, publicKey string, session *Session) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	pt.entries[userId] = PresenceEntry{
		UserId:       userId,
		PublicKey:    publicKey,
		RegisteredAt: time.Now(),

		session: session,
	}
}

// Lookup returns a copy of the entry for userId, if present.
func (pt *PresenceTable) Lookup(userId string) (PresenceEntry, bool) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	entry, ok := pt.entries[userId]
	return entry, ok
}

// RemoveIf removes the entry for userId only if it still points at the given
// Session. This guards a disconnecting Session against removing a newer
// registration which replaced it under the same identifier.
func (pt *PresenceTable) RemoveIf(userId string, session *Session) bool {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()

	if entry, ok := pt.entries[userId]; ok && entry.session == session {
		delete(pt.entries, userId)
		return true
	}
	return false
}

// Len is the amount of currently registered identifiers.
func (pt *PresenceTable) Len() int {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	return len(pt.entries)
}

// sessions snapshots all currently registered Sessions, e.g., for shutdown.
func (pt *PresenceTable) sessions() (sessions []*Session) {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	for _, entry := range pt.entries {
		sessions = append(sessions, entry.session)
	}
	return
}
