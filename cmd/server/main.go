package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/jukebox/internal/adapters/decoder"
	router "github.com/dkeye/jukebox/internal/adapters/http"
	"github.com/dkeye/jukebox/internal/adapters/notify"
	"github.com/dkeye/jukebox/internal/adapters/resolver"
	sig "github.com/dkeye/jukebox/internal/adapters/signal"
	"github.com/dkeye/jukebox/internal/app"
	"github.com/dkeye/jukebox/internal/app/orch"
	"github.com/dkeye/jukebox/internal/app/playback"
	"github.com/dkeye/jukebox/internal/app/sfu"
	"github.com/dkeye/jukebox/internal/config"
	"github.com/dkeye/jukebox/internal/metrics"
	"github.com/dkeye/jukebox/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	zerolog.SetGlobalLevel(cfg.Level())

	if cfg.Metrics.Enabled {
		metrics.Register(prometheus.DefaultRegisterer)
	}

	lib, err := store.Open(cfg.Store.Path)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Store.Path).Msg("failed to open store")
	}

	relays := sfu.NewRelayManager()
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Rooms:    app.NewRoomManager(),
		Policy:   app.SimplePolicy{},
		Relays:   relays,
		Library:  lib,
	}

	deps := playback.Deps{
		Resolver: resolver.New(resolver.Config{
			Proxy:         cfg.Resolver.Proxy,
			DefaultSearch: cfg.Resolver.DefaultSearch,
			Timeout:       cfg.Resolver.Timeout,
		}),
		Decoder: decoder.New(decoder.Config{
			Binary:       cfg.Decoder.Binary,
			Bitrate:      cfg.Decoder.Bitrate,
			PageDuration: cfg.Decoder.PageDuration,
		}, relays),
		Notifier: notify.NewSink(o),
	}
	playbackCfg := playback.Config{
		DisconnectTimeout:  cfg.Playback.DisconnectTimeout,
		HistorySize:        cfg.Playback.HistorySize,
		DisableAutoplay:    !cfg.Playback.Autoplay,
		AutoplayCandidates: cfg.Playback.AutoplayCandidates,
		ResolveTimeout:     cfg.Resolver.Timeout,
	}
	o.UseSessions(app.NewSessionManager(ctx, playbackCfg, deps, lib))

	limiter := sig.NewRoomRateLimiter(cfg.RateLimit.Limit, cfg.RateLimit.Interval)
	if cfg.RateLimit.Limit > 0 {
		go limiter.Run(ctx, cfg.RateLimit.Interval)
	}

	ctl := sig.NewSignalWSController(o, limiter, sig.Options{
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
		ICEServers: cfg.ICEServers,
	})

	r := router.SetupRouter(ctx, cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("jukebox server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	o.Sessions.CloseAll()
	if err := lib.Close(); err != nil {
		log.Error().Err(err).Msg("store close")
	}
	log.Info().Msg("Server exited gracefully")
}
