package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/relaypoint/chat-server/internal/server"
)

func main() {
	root := &cobra.Command{
		Use:          "relaypoint-server",
		Short:        "Realtime multi-user chat relay with bounded history and typing presence",
		RunE:         run,
		SilenceUsage: true,
	}

	if err := root.Execute(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(); err == nil {
		log.Debug().Msg("loaded configuration from .env")
	}

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		return err
	}
	setupLogging(cfg.LogLevel)

	hub := server.NewHub(cfg)
	httpServer := server.CreateServer(cfg.Addr, server.SetupRoutes(hub))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		hub.Run()
		return nil
	})
	eg.Go(func() error {
		return server.StartServer(httpServer)
	})
	eg.Go(func() error {
		<-egCtx.Done()
		if err := server.ShutdownServer(httpServer, cfg.ShutdownTimeout); err != nil {
			log.Error().Err(err).Msg("http shutdown")
		}
		return hub.Shutdown(cfg.ShutdownTimeout)
	})

	return eg.Wait()
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || parsed == zerolog.NoLevel {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
}
