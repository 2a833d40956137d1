package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"stellar-wallet-core/internal/app"
	"stellar-wallet-core/internal/config"
	"stellar-wallet-core/internal/pricecache"
)

type options struct {
	config string
	level  string
}

func newRootCmd() *cobra.Command {
	var opts options

	rootCmd := &cobra.Command{
		Use:           "pricecache",
		Short:         "Inspect and refresh the token price cache",
		Long:          "pricecache seeds the tracked token set from the top asset listing, runs update cycles and prints current prices from the configured price store.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.PersistentFlags().StringVarP(&opts.config, "config", "c", "", "path to a config file")
	rootCmd.PersistentFlags().StringVarP(&opts.level, "level", "l", "info", "log output level")

	rootCmd.AddCommand(
		newInitCmd(&opts),
		newUpdateCmd(&opts),
		newGetCmd(&opts),
	)
	return rootCmd
}

// withCache builds the price cache from configuration and runs fn with it.
func withCache(ctx context.Context, opts *options, fn func(*pricecache.Cache) error) error {
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }
	level, err := zerolog.ParseLevel(opts.level)
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger().Level(level)

	v := config.NewViper()
	v.Set("prices.enabled", true)
	cfg, err := config.Load(v, opts.config)
	if err != nil {
		return err
	}

	a, err := app.New(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	cache, err := a.PriceCache(ctx, nil)
	if err != nil {
		return err
	}
	return fn(cache)
}

func newInitCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Crawl the top asset listing and create price series",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd.Context(), opts, func(c *pricecache.Cache) error {
				n, err := c.Init(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "tracking %d tokens\n", n)
				return nil
			})
		},
	}
}

func newUpdateCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "update",
		Short: "Run one price update cycle",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withCache(cmd.Context(), opts, func(c *pricecache.Cache) error {
				report, err := c.UpdatePrices(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "updated %d of %d tokens in %d batches\n",
					len(report.Samples), report.Tracked, report.Batches)
				if ferr := report.Err(); ferr != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), ferr)
				}
				return nil
			})
		},
	}
}

func newGetCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <token>...",
		Short: "Print current prices as JSON",
		Long:  "Tokens are \"native\" or CODE:ISSUER. Missing prices are calculated and stored.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withCache(cmd.Context(), opts, func(c *pricecache.Cache) error {
				return printJSON(cmd.OutOrStdout(), c.GetPrices(cmd.Context(), args))
			})
		},
	}
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
