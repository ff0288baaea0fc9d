package main

import (
	"flag"
	"log"
	"os"

	"MT5Stream/internal/di"
	"MT5Stream/pkg/config"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "", "config file path (defaults only when empty)")
	flag.Parse()

	// Load config
	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	// Wire DI: Initialize all dependencies
	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("app initialization failed: %v", err)
	}

	// Run application (blocks until signal)
	if err := app.Run(); err != nil {
		log.Printf("app error: %v", err)
		os.Exit(1)
	}
}
