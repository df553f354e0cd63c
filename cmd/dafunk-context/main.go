// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"os"
	"runtime/debug"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"

	"go.dafunk.io/terminal/app"
	"go.dafunk.io/terminal/config"
	"go.dafunk.io/terminal/logging"
	"go.dafunk.io/terminal/worker"
)

type options struct {
	LogLevel     string `long:"log-level" default:"info" description:"log level"`
	ConfigPath   string `long:"config" description:"path to a YAML settings file"`
	ParamsPath   string `long:"params" description:"path to the YAML terminal parameters, overrides the settings file"`
	TerminalCode string `long:"terminal-code" default:"LOCAL" description:"code reported by the loopback payment client"`
}

func main() {
	// More frequent GC reduces the tail latencies, equivalent to export GOGC=33
	debug.SetGCPercent(33)

	opts := getCLIArgs()
	logging.SetOutput(os.Stderr)
	logging.SetLogLevel(opts.LogLevel)

	settings, err := config.LoadFromPath(opts.ConfigPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load settings")
	}
	if opts.ParamsPath != "" {
		settings.ParamsPath = opts.ParamsPath
	}
	params, err := config.LoadParams(settings.ParamsPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to load parameters")
	}

	ctx, cancel := context.WithCancel(context.Background())
	terminal := app.NewBuilder(settings).
		SetParams(params).
		SetPaymentClient(worker.NewLoopbackClient(opts.TerminalCode)).
		AddShutdownFunc(cancel).
		Create()

	if err := terminal.Run(ctx); err != nil {
		log.WithError(err).Fatal("Terminal context stopped")
	}
	log.Info("Terminal context stopped")
}

func getCLIArgs() options {
	var opts options
	parser := flags.NewParser(&opts, flags.IgnoreUnknown)
	if _, err := parser.ParseArgs(os.Args); err != nil {
		log.WithError(err).Fatal("Failed to parse command line arguments:", os.Args)
	}
	return opts
}
