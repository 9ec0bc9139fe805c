// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package queue implements the client-side durable delivery queue: outbound
// messages which could not yet be confirmed delivered survive process
// restarts and are retried with a bounded exponential backoff, in order per
// destination.
package queue
