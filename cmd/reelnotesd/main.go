package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"

	"github.com/joho/godotenv"

	"reelnotes/internal/config"
	"reelnotes/internal/daemonrun"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}

	cfg, _, _, err := config.Load(os.Getenv("REELNOTES_CONFIG"))
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		log.Fatalf("ensure directories: %v", err)
	}

	if err := daemonrun.Run(context.Background(), cfg, daemonrun.Options{
		LogLevel: os.Getenv("REELNOTES_LOG_LEVEL"),
	}); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatalf("reelnotesd: %v", err)
	}
}
