// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"

	"github.com/volly/volly-go/pkg/client"
	"github.com/volly/volly-go/pkg/msgs"
)

// startWatch prints relayed negotiation messages, for the "watch" CLI option.
func startWatch(args []string) {
	if len(args) != 2 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		ownId         = args[1]
	)

	c, err := client.DialConnector(websocketAddr)
	if err != nil {
		printFatal(err, "Connecting to the relay errored")
	}
	defer c.Close()

	if err := c.Register(ownId, toolPublicKey, roundTripTimeout); err != nil {
		printFatal(err, "Registering errored")
	}

	closeChan := make(chan os.Signal, 1)
	signal.Notify(closeChan, os.Interrupt)

	log.WithField("user", ownId).Info("Watching for negotiation messages")

	for {
		select {
		case <-closeChan:
			log.Info("Received interrupt signal")
			return

		case m := <-c.Incoming():
			if m == nil {
				log.Error("Relay connection is gone")
				return
			}

			if data, err := msgs.Marshal(m); err != nil {
				log.WithError(err).Error("Marshalling message errored")
			} else {
				fmt.Println(string(data))
			}
		}
	}
}
