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

	log.Printf("env=%s broker=%s port=%d", cfg.Environment, cfg.Broker.Type, cfg.Server.Port)

	app, err := di.InitializeHub(cfg)
	if err != nil {
		log.Fatalf("hub initialization failed: %v", err)
	}

	log.Printf("clickhouse: schema ready db=%s table=%s", cfg.ClickHouse.Database, cfg.ClickHouse.Table)

	if err := app.Run(); err != nil {
		log.Printf("hub error: %v", err)
		os.Exit(1)
	}
}
