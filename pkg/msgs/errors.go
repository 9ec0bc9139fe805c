// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package msgs

import "fmt"

// Error texts are part of the wire contract; clients match against them.
const (
	TextInvalidFormat = "Invalid message format"
	TextUnknownType   = "Unknown message type"
	TextMissingFields = "Missing required fields"
	TextMustRegister  = "Must register first"
)

// TextUserNotOnline is the routing error for an absent destination.
func TextUserNotOnline(userId string) string {
	return fmt.Sprintf("User %s is not online", userId)
}
