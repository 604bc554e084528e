package main

import (
	"errors"
	"flag"
	"io/fs"
	"log"
	"os"

	"SessionOverlay/internal/di"
	"SessionOverlay/pkg/config"

	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "config file path")
	dotenvFile := flag.String("dotenv", ".env", "dotenv file loaded before the config")
	flag.Parse()

	if err := godotenv.Load(*dotenvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("dotenv load failed: %v", err)
	}

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	log.Printf("env=%s symbol=%s timeframe=%s hub=%s", cfg.Environment, cfg.Viewer.Symbol, cfg.Viewer.Timeframe, cfg.Viewer.HubURL)

	app, err := di.InitializeViewer(cfg)
	if err != nil {
		log.Fatalf("viewer initialization failed: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("viewer error: %v", err)
		os.Exit(1)
	}
}
