// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package relay implements the rendezvous relay: it tracks which identifiers
// are currently connected, answers discovery queries and forwards opaque
// negotiation messages between exactly two registered peers. Message bodies
// are never stored; delivery retries are the client's job.
package relay
