// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package queue

import "time"

// StalledAttempts is the attempt count from which on a QueuedMessage is
// flagged as stalled. Retries continue; the flag is for the UI.
const StalledAttempts = 5

// RetryDelay is the bounded backoff schedule shared by message retries and
// the Controller's reconnect pacing: 1s, 5s, 15s, then a 60s ceiling.
func RetryDelay(attempt int) time.Duration {
	switch {
	case attempt <= 1:
		return time.Second
	case attempt == 2:
		return 5 * time.Second
	case attempt == 3:
		return 15 * time.Second
	default:
		return 60 * time.Second
	}
}
