package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/dpetrov/couchsync/internal/adapters/http"
	signalws "github.com/dpetrov/couchsync/internal/adapters/signal"
	"github.com/dpetrov/couchsync/internal/app"
	"github.com/dpetrov/couchsync/internal/avatar"
	"github.com/dpetrov/couchsync/internal/config"
	"github.com/dpetrov/couchsync/internal/console"
	"github.com/dpetrov/couchsync/internal/core"
	"github.com/dpetrov/couchsync/internal/rooms"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	if err := godotenv.Load(); err != nil {
		log.Debug().Msg("no .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	var checker rooms.Checker = rooms.AllowAny{}
	if cfg.RoomsFile != "" {
		list, err := rooms.Load(cfg.RoomsFile)
		if err != nil {
			log.Fatal().Err(err).Str("file", cfg.RoomsFile).Msg("failed to load room allow-list")
		}
		if err := list.Watch(ctx); err != nil {
			log.Warn().Err(err).Msg("allow-list live reload disabled")
		}
		checker = list
	} else {
		log.Warn().Msg("no rooms_file configured, admitting any room")
	}

	var store *avatar.Store
	if cfg.AvatarDir != "" {
		store, err = avatar.NewStore(cfg.AvatarDir)
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.AvatarDir).Msg("failed to open avatar store")
		}
	}

	clock := clockwork.NewRealClock()
	orch := &app.Orchestrator{
		Registry:   core.NewRegistry(clock),
		Avatars:    app.NewAvatarCache(),
		Processor:  avatar.NewImageProcessor(),
		Fetcher:    avatar.NewHTTPFetcher(15 * time.Second),
		Store:      store,
		Clock:      clock,
		ServerName: cfg.ServerName,
	}

	heartbeat := &app.Heartbeat{Orch: orch, Interval: cfg.HeartbeatInterval, Clock: clock}
	go heartbeat.Run(ctx)

	if cfg.Console {
		c := &console.Console{Orch: orch, In: os.Stdin, Out: os.Stdout}
		go c.Run(ctx)
	}

	ctl := &signalws.Controller{
		Orch:       orch,
		Rooms:      checker,
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}

	r := router.SetupRouter(ctx, cfg, ctl, orch)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Str("name", cfg.ServerName).Msg("couchsync server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}
