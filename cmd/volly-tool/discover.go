// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	"github.com/volly/volly-go/pkg/client"
)

// toolPublicKey is the capability blob advertised by volly-tool. It is not a
// usable key; the tool never opens direct channels.
const toolPublicKey = "volly-tool"

const roundTripTimeout = 5 * time.Second

// startDiscover queries a peer's presence, for the "discover" CLI option.
func startDiscover(args []string) {
	if len(args) != 3 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		ownId         = args[1]
		peerId        = args[2]
	)

	c, err := client.DialConnector(websocketAddr)
	if err != nil {
		printFatal(err, "Connecting to the relay errored")
	}
	defer c.Close()

	if err := c.Register(ownId, toolPublicKey, roundTripTimeout); err != nil {
		printFatal(err, "Registering errored")
	}

	resp, err := c.Discover(peerId, roundTripTimeout)
	if err != nil {
		printFatal(err, "Discovery errored")
	}

	if resp.Online {
		fmt.Printf("%s is online, public key: %s\n", resp.UserId, resp.PublicKey)
	} else {
		fmt.Printf("%s is offline\n", resp.UserId)
	}
}
