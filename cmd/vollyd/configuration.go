// SPDX-FileCopyrightText: 2025, 2026 The Volly Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/BurntSushi/toml"

	"github.com/volly/volly-go/pkg/relay"
)

// tomlConfig describes the TOML-configuration.
type tomlConfig struct {
	Relay   relayConf
	Logging logConf
}

// relayConf describes the Relay-configuration block.
type relayConf struct {
	Listen    string
	Profiling bool
}

// logConf describes the Logging-configuration block.
type logConf struct {
	Level        string
	ReportCaller bool `toml:"report-caller"`
	Format       string
}

// parseServer creates the relay Server based on the given TOML configuration.
func parseServer(filename string) (server *relay.Server, profiling bool, err error) {
	var conf tomlConfig
	if _, err = toml.DecodeFile(filename, &conf); err != nil {
		return
	}

	// Logging
	if conf.Logging.Level != "" {
		if lvl, lvlErr := log.ParseLevel(conf.Logging.Level); lvlErr != nil {
			log.WithFields(log.Fields{
				"level":    conf.Logging.Level,
				"error":    lvlErr,
				"provided": "panic,fatal,error,warn,info,debug,trace",
			}).Warn("Failed to set log level. Please select one of the provided ones")
		} else {
			log.SetLevel(lvl)
		}
	}

	log.SetReportCaller(conf.Logging.ReportCaller)

	switch conf.Logging.Format {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "15:04:05.000",
		})

	case "json":
		log.SetFormatter(&log.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
		})

	default:
		log.Warn("Unknown logging format")
	}

	// Relay
	if conf.Relay.Listen == "" {
		err = fmt.Errorf("relay.listen is empty")
		return
	}

	if server, err = relay.NewServer(conf.Relay.Listen); err != nil {
		return
	}

	log.WithFields(log.Fields{
		"listen": conf.Relay.Listen,
	}).Info("Started rendezvous relay")

	profiling = conf.Relay.Profiling
	return
}
