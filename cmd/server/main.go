// Package main runs the wallet core service: the HTTP API, the consistency
// verifier and the price cache updater.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"stellar-wallet-core/internal/api"
	"stellar-wallet-core/internal/app"
	"stellar-wallet-core/internal/config"
	"stellar-wallet-core/internal/observability"
	"stellar-wallet-core/internal/verification"
)

const shutdownTimeout = 10 * time.Second

func main() {
	os.Exit(run())
}

func run() int {

	// Command line parameter initialization. Flags override the environment.
	var flagConfig string
	flags := pflag.NewFlagSet("wallet-core", pflag.ExitOnError)
	flags.StringVarP(&flagConfig, "config", "c", "", "path to a YAML, JSON or TOML config file")
	flags.StringP("addr", "a", ":8080", "address to serve the HTTP API on")
	flags.StringP("level", "l", "info", "log output level")
	flags.Bool("verifier", false, "run the indexer consistency verifier")
	flags.Bool("prices", false, "run the price cache updater")
	_ = flags.Parse(os.Args[1:])

	v := config.NewViper()
	_ = v.BindPFlag("http.addr", flags.Lookup("addr"))
	_ = v.BindPFlag("log.level", flags.Lookup("level"))
	_ = v.BindPFlag("verifier.enabled", flags.Lookup("verifier"))
	_ = v.BindPFlag("prices.enabled", flags.Lookup("prices"))

	// Logger initialization.
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load(v, flagConfig)
	if err != nil {
		log.Error().Err(err).Msg("invalid configuration")
		return 1
	}
	log = log.Level(cfg.LogLevel())

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics("", reg)

	a, err := app.New(ctx, cfg, metrics, log)
	if err != nil {
		log.Error().Err(err).Msg("could not initialize components")
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("could not close stores")
		}
	}()

	opts := api.Options{
		Data:     a.Orchestrator,
		Gatherer: reg,
		Logger:   log,
	}

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Verifier.Enabled {
		verifier, err := a.Verifier(func(r verification.CheckResult) {
			if !r.Passed() && r.Err != nil {
				log.Debug().Str("check_id", r.CheckID).Err(r.Err).Msg("check did not pass")
			}
		})
		if err != nil {
			log.Error().Err(err).Msg("could not initialize verifier")
			return 1
		}
		opts.Auditor = verifier
		g.Go(func() error {
			return verifier.Run(gctx)
		})
	}

	if cfg.Prices.Enabled {
		feed := api.NewPriceFeed(log)
		defer feed.Close()
		prices, err := a.PriceCache(ctx, feed.Broadcast)
		if err != nil {
			log.Error().Err(err).Msg("could not initialize price cache")
			return 1
		}
		opts.Prices = prices
		opts.Feed = feed
		g.Go(func() error {
			return prices.Run(gctx, cfg.Prices.UpdateInterval)
		})
	}

	server := api.New(opts)
	g.Go(func() error {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("wallet core starting")
		return server.Start(cfg.HTTP.Addr)
	})

	// The server does not watch the context, so it is shut down explicitly once
	// a signal arrives or another component fails.
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("wallet core stopping")
		sctx, scancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer scancel()
		return server.Shutdown(sctx)
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		log.Error().Err(err).Msg("wallet core failed")
		return 1
	}
	log.Info().Msg("wallet core stopped")
	return 0
}
