package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prperemyshlev/datahub-healthcheck/internal/app"
	"github.com/prperemyshlev/datahub-healthcheck/internal/config"
	"github.com/prperemyshlev/datahub-healthcheck/internal/utils"
	"go.uber.org/zap"
)

const apiKeyCost = 12

func main() {
	// "healthcheck hash-key <key>" prints the value for SECURITY_API_KEY_HASH
	if len(os.Args) == 3 && os.Args[1] == "hash-key" {
		hash, err := utils.HashAPIKey(os.Args[2], apiKeyCost)
		if err != nil {
			log.Fatalf("Failed to hash API key: %v", err)
		}
		fmt.Println(hash)
		return
	}

	ctx := context.Background()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	infra, err := app.NewInfrastructure(ctx, *cfg)
	if err != nil {
		log.Fatalf("Failed to initialize infrastructure: %v", err)
	}

	application, err := app.NewApp(infra, cfg)
	if err != nil {
		infra.Logger().Fatal("Failed to create application", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		infra.Logger().Info("Received shutdown signal")
		cancel()
	}()

	if cfg.Server.Enabled {
		if err := application.Run(ctx); err != nil {
			infra.Logger().Fatal("Application failed", zap.Error(err))
		}
		return
	}

	ok, err := application.RunOnce(ctx, os.Stdout)
	if shutdownErr := application.Shutdown(); shutdownErr != nil {
		err = errors.Join(err, shutdownErr)
	}
	if err != nil {
		infra.Logger().Error("Health check did not complete", zap.Error(err))
		os.Exit(2)
	}
	if !ok {
		os.Exit(1)
	}
}
