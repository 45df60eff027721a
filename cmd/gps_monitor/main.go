// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"

	"github.com/relabs-tech/field_logger/internal/app"
	"github.com/relabs-tech/field_logger/internal/config"
)

func main() {
	configPath := flag.String("config", "./field_logger.env", "path to configuration file")
	flag.Parse()

	log.Println("starting GPS monitor (receiver only, nothing is recorded)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := app.SetupLogging(config.Get().LogLevel); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunGPSMonitor(ctx); err != nil {
		log.Fatalf("fatal: %v", err)
	}
}
