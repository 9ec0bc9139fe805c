// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package client holds the client side of the rendezvous protocol: a
// WebSocket Connector speaking the msgs schema and a Controller owning the
// connection lifecycle, re-registration after reconnects and the delivery
// queue's retry loop.
package client
