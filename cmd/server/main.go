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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"

	"github.com/dkeye/Rendezvous/internal/adapters/bridge"
	router "github.com/dkeye/Rendezvous/internal/adapters/http"
	wssignal "github.com/dkeye/Rendezvous/internal/adapters/signal"
	"github.com/dkeye/Rendezvous/internal/app"
	"github.com/dkeye/Rendezvous/internal/app/orch"
	"github.com/dkeye/Rendezvous/internal/config"
	"github.com/dkeye/Rendezvous/internal/metrics"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	fs := pflag.NewFlagSet("rendezvous", pflag.ExitOnError)
	config.Flags(fs)
	_ = fs.Parse(os.Args[1:])

	cfg, err := config.Load(fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg.Log)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(lc config.LogConfig) {
	if lc.Format == "json" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

func run(ctx context.Context, cfg *config.Config) error {
	mode, err := app.ParseMatchMode(cfg.MatchMode)
	if err != nil {
		return err
	}
	policy, err := app.ParsePolicy(cfg.Backpressure)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	o := orch.New(mode, policy, metrics.New(reg))

	limiter := wssignal.NewRegisterRateLimiter(cfg.RegisterRate.Limit, cfg.RegisterRate.Interval)
	ctl := wssignal.NewSignalWSController(o, limiter, wssignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		SendBuffer:     cfg.SendBuffer,
		StrictPayloads: cfg.StrictPayloads,
	})

	r := router.SetupRouter(ctx, cfg, router.Deps{Orch: o, Signal: ctl, Gatherer: reg})
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var bridgeSrv *bridge.Server
	if cfg.BridgePort > 0 {
		bridgeSrv = &bridge.Server{
			ListenAddr: fmt.Sprintf(":%d", cfg.BridgePort),
			Orch:       o,
			SendBuffer: cfg.SendBuffer,
		}
		if err := bridgeSrv.Start(ctx); err != nil {
			return err
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Str("match_mode", string(mode)).Msg("Rendezvous server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if cfg.RegisterRate.Interval > 0 {
		g.Go(func() error {
			t := time.NewTicker(cfg.RegisterRate.Interval)
			defer t.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-t.C:
					limiter.Prune()
				}
			}
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		return shutdown(srv, bridgeSrv)
	})
	return g.Wait()
}

func shutdown(srv *http.Server, bridgeSrv *bridge.Server) error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var err error
	if e := srv.Shutdown(shutdownCtx); e != nil {
		err = multierr.Append(err, fmt.Errorf("http shutdown: %w", e))
	}
	if bridgeSrv != nil {
		bridgeSrv.Stop()
	}
	return err
}
