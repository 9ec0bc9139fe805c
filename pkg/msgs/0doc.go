// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package msgs describes the JSON wire protocol spoken between a Volly client
// and the rendezvous relay: registration, presence discovery and the opaque
// offer/answer/ice-candidate negotiation messages relayed between two peers.
//
// The relay never inspects negotiation payloads; they travel as raw JSON.
package msgs
