// Package main provides the ELD event ingestion service.
//
// This service exposes the HTTP ingestion API: single and batch event
// submission, per-scope listing, gap detection, chain verification,
// and the DLQ admin surface. See compose.go for how its collaborators
// are wired together.
package main

import (
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/eld-core/ingestor/internal/api"
)

// Version information.
const (
	version = "1.0.0-dev"
	name    = "ingester"
)

func main() {
	versionFlag := flag.Bool("version", false, "show version information")
	flag.Parse()

	if *versionFlag {
		log.Printf("%s v%s\n", name, version)
		os.Exit(0)
	}

	serverConfig := api.LoadServerConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: serverConfig.LogLevel,
	}))

	logger.Info("starting ingestion service",
		slog.String("service", name),
		slog.String("version", version),
	)

	server, cleanup, err := compose(&serverConfig, logger)
	if err != nil {
		logger.Error("failed to wire ingestion service", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	if err := server.Start(); err != nil {
		logger.Error("server failed to start", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("ingestion service stopped")
}
