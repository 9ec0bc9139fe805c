// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"encoding/json"
	"math"
	"os"
	"os/signal"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fsnotify/fsnotify"

	"github.com/volly/volly-go/pkg/client"
	"github.com/volly/volly-go/pkg/msgs"
)

// sender relays each file dropped into a directory as an offer payload.
type sender struct {
	peerId        string
	websocketConn *client.Connector
	watcher       *fsnotify.Watcher

	closeChan chan os.Signal
}

// startSend spools a directory to a peer, for the "send" CLI option.
func startSend(args []string) {
	if len(args) != 4 {
		printUsage()
	}

	var (
		websocketAddr = args[0]
		ownId         = args[1]
		peerId        = args[2]
		directory     = args[3]

		err error
	)

	s := &sender{
		peerId:    peerId,
		closeChan: make(chan os.Signal),
	}

	signal.Notify(s.closeChan, os.Interrupt)

	if s.websocketConn, err = client.DialConnector(websocketAddr); err != nil {
		printFatal(err, "Connecting to the relay errored")
	}

	if err = s.websocketConn.Register(ownId, toolPublicKey, roundTripTimeout); err != nil {
		printFatal(err, "Registering errored")
	}

	if s.watcher, err = fsnotify.NewWatcher(); err != nil {
		printFatal(err, "Starting file watcher errored")
	}
	if err = s.watcher.Add(directory); err != nil {
		printFatal(err, "Adding directory to file watcher errored")
	}

	s.handler()
}

func (s *sender) handler() {
	defer func() {
		_ = s.watcher.Close()
		s.websocketConn.Close()
	}()

	for {
		select {
		case <-s.closeChan:
			log.Info("Received interrupt signal")
			return

		case e, ok := <-s.watcher.Events:
			if !ok {
				log.Error("fsnotify's Event channel was closed")
				return
			}

			if e.Op&fsnotify.Create == 0 {
				log.WithFields(log.Fields{
					"file":      e.Name,
					"operation": e.Op.String(),
				}).Debug("Ignoring fsnotify event")
				continue
			}

			s.relayNewFile(e)

		case err, ok := <-s.watcher.Errors:
			if !ok {
				log.Error("fsnotify's Errors channel was closed")
				return
			}

			log.WithError(err).Error("fsnotify errored")
			return

		case e := <-s.websocketConn.Errors():
			if e == nil {
				log.Error("Relay connection is gone")
				return
			}

			log.WithField("message", e.Message).Warn("Relay reported an error")
		}
	}
}

// relayNewFile reads a freshly created file and relays its content. Reading
// is retried a few times since the file might still be written to.
func (s *sender) relayNewFile(e fsnotify.Event) {
	for i := 0; i < 5; i++ {
		if data, err := os.ReadFile(e.Name); err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("Reading file errored, retrying..")
		} else if payload, err := json.Marshal(string(data)); err != nil {
			log.WithError(err).WithField("file", e.Name).Error("Encoding payload errored")
			return
		} else if err := s.websocketConn.Send(msgs.NewOffer("", s.peerId, payload)); err != nil {
			log.WithError(err).WithField("file", e.Name).Error("Relaying offer errored")
			return
		} else {
			log.WithFields(log.Fields{
				"file": e.Name,
				"peer": s.peerId,
			}).Info("Relayed offer")
			return
		}

		time.Sleep(time.Duration(math.Pow(2, float64(i))) * 100 * time.Millisecond)
	}

	log.WithField("file", e.Name).Error("Failed to process file, giving up.")
}
