// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"context"
	"errors"
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

	log.Println("starting field logger (GPS → SD card)")

	if err := config.InitGlobal(*configPath); err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := app.SetupLogging(config.Get().LogLevel); err != nil {
		log.Fatalf("fatal: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := app.RunLogger(ctx); err != nil {
		if errors.Is(err, app.ErrNoStorage) {
			// the diagnostic stays on the panel until power-off
			log.Errorf("fatal: %v", err)
			os.Exit(2)
		}
		log.Fatalf("fatal: %v", err)
	}
	log.Println("field logger stopped")
}
