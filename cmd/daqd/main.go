// cmd/daqd/main.go
package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prowave/prowavedaq/internal/config"
	"github.com/prowave/prowavedaq/internal/daq"
	"github.com/prowave/prowavedaq/internal/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: daqd <config.yaml>")
	}

	cfgPath := os.Args[1]

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if err := config.Validate(cfg); err != nil {
		log.Fatalf("config validation failed: %v", err)
	}

	config.Normalize(cfg)

	daq.ScanDevices()

	// --------------------
	// Build + start pipeline
	// --------------------

	svc, err := pipeline.NewService(cfg)
	if err != nil {
		log.Fatalf("pipeline build failed: %v", err)
	}

	if err := svc.Initialize(); err != nil {
		log.Fatalf("device init failed: %v", err)
	}

	if err := svc.Start(); err != nil {
		log.Fatalf("pipeline start failed: %v", err)
	}

	// --------------------
	// Run until interrupted, then drain and flush
	// --------------------

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	log.Printf("shutting down (batches processed: %d)", svc.Counter())

	if err := svc.Stop(); err != nil {
		log.Fatalf("shutdown finished with errors: %v", err)
	}
	log.Printf("shutdown complete")
}
