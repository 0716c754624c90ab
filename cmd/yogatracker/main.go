package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/aadiyog/yogatracker/internal/app"
	"github.com/aadiyog/yogatracker/internal/config"
	"github.com/aadiyog/yogatracker/internal/logger"
)

func main() {
	fmt.Println("Yogatracker - Yoga Motion Comparison")

	// A missing .env is fine; the environment and defaults still apply.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{File: cfg.LogFile, Production: cfg.Production()})
	defer log.Sync()

	if cfg.StaticDir == "" {
		cfg.StaticDir = findWebDir()
	}
	if cfg.StaticDir != "" {
		log.Info("serving static files", zap.String("dir", cfg.StaticDir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("failed to initialize application", zap.Error(err))
	}

	if err := a.Run(ctx); err != nil {
		log.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

// findWebDir searches for the web directory in common locations.
// It checks: "web", "../web", "../../web", and ~/.yogatracker/web.
// Returns the first existing directory or empty string if none found.
func findWebDir() string {
	relativePaths := []string{"web", "../web", "../../web"}
	for _, p := range relativePaths {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			absPath, err := filepath.Abs(p)
			if err == nil {
				return absPath
			}
			return p
		}
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	homeWebDir := filepath.Join(homeDir, ".yogatracker", "web")
	if info, err := os.Stat(homeWebDir); err == nil && info.IsDir() {
		return homeWebDir
	}

	return ""
}
