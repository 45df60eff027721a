// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package main

import (
	"flag"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/relabs-tech/field_logger/internal/config"
	"github.com/relabs-tech/field_logger/internal/export"
)

func main() {
	configPath := flag.String("config", "./field_logger.env", "path to configuration file")
	dir := flag.String("dir", "", "directory holding the day logs (default LOG_DIR)")
	out := flag.String("out", "./export", "directory for the .xlsx workbooks")
	flag.Parse()

	if *dir == "" {
		if err := config.InitGlobal(*configPath); err != nil {
			log.Fatalf("failed to load config: %v", err)
		}
		*dir = config.Get().LogDir
	}

	written, err := export.Dir(afero.NewOsFs(), *dir, *out)
	if err != nil {
		log.Fatalf("fatal: %v", err)
	}
	log.Printf("exported %d day logs from %s", len(written), *dir)
}
