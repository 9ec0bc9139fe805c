// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"

	log "github.com/sirupsen/logrus"
)

// printUsage of volly-tool and exit with an error code afterwards.
func printUsage() {
	_, _ = fmt.Fprintf(os.Stderr, "Usage of %s discover|watch|send:\n\n", os.Args[0])

	_, _ = fmt.Fprintf(os.Stderr, "%s discover websocket own-id peer-id\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Registers as own-id at the relay and queries whether peer-id is online.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s watch websocket own-id\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Registers as own-id and prints every negotiation message relayed to it.\n\n")

	_, _ = fmt.Fprintf(os.Stderr, "%s send websocket own-id peer-id directory\n", os.Args[0])
	_, _ = fmt.Fprintf(os.Stderr, "  Registers as own-id and watches the directory; each new file is relayed\n")
	_, _ = fmt.Fprintf(os.Stderr, "  to peer-id as an offer payload.\n\n")

	os.Exit(1)
}

// printFatal logs the error with a message and exits.
func printFatal(err error, msg string) {
	log.WithError(err).Fatal(msg)
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
	}

	switch os.Args[1] {
	case "discover":
		startDiscover(os.Args[2:])

	case "watch":
		startWatch(os.Args[2:])

	case "send":
		startSend(os.Args[2:])

	default:
		printUsage()
	}
}
