package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/config"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/database"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/handler"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/logger"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/repository"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/router"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/server"
	"github.com/MarkBenjamins/NHL-Stenden-RestAPI/internal/service"
	"github.com/spf13/cobra"
)

const DefaultContextTimeout = 30

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	loggerService := logger.NewLoggerService(cfg.Observability)
	defer loggerService.Shutdown()

	log := logger.NewLoggerWithService(cfg.Observability, loggerService)

	// Local databases are migrated by hand with the migrate command.
	if cfg.Store.Driver == config.StorePostgres && cfg.Primary.Env != "local" {
		if err := database.Migrate(ctx, &log, cfg); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	srv, err := server.New(cfg, &log, loggerService)
	if err != nil {
		return fmt.Errorf("failed to initialize server: %w", err)
	}

	repos := repository.NewRepositories(srv)

	if cfg.Store.SeedFile != "" {
		sets, err := repository.LoadSeedFile(cfg.Store.SeedFile)
		if err != nil {
			return err
		}
		if err := repository.Seed(ctx, repos.Records, sets, &log); err != nil {
			return fmt.Errorf("failed to seed store: %w", err)
		}
	}

	services, err := service.NewService(srv, repos)
	if err != nil {
		return fmt.Errorf("could not create services: %w", err)
	}

	handlers := handler.NewHandlers(srv, repos, services)
	r := router.NewRouter(srv, handlers)
	srv.SetupHTTPServer(r)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
	case <-sigCtx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultContextTimeout*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	log.Info().Msg("server exited properly")
	return nil
}
