package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"MarketSignal/internal/di"
	"MarketSignal/internal/domain/models"
	"MarketSignal/internal/services/backtest"
	"MarketSignal/pkg/config"
	xhttp "MarketSignal/pkg/http"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "marketsignal",
		Short:         "Market signal analytics service",
		Long:          "Builds feature snapshots from market data, scores trading signals, trains the model overlay and backtests stored signals.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "config/config.yaml", "config file path")

	root.AddCommand(
		newServeCmd(opts),
		newTrainCmd(opts),
		newBacktestCmd(opts),
		newLabelCmd(opts),
	)
	return root
}

func (o *rootOptions) load() (*config.Config, error) {
	cfg, err := config.LoadWithEnv(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the snapshot recorder and the outcome labeler",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			app, cleanup, err := di.InitializeApp(cfg)
			if err != nil {
				return fmt.Errorf("app initialization failed: %w", err)
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return app.Run(ctx)
		},
	}
}

type rangeFlags struct {
	symbol string
	start  string
	end    string
}

func (f *rangeFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.symbol, "symbol", "", "asset symbol, e.g. BTC")
	cmd.Flags().StringVar(&f.start, "start", "", "range start (RFC3339, date or unix seconds)")
	cmd.Flags().StringVar(&f.end, "end", "", "range end, defaults to now")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("start")
}

func (f *rangeFlags) parse() (string, time.Time, time.Time, error) {
	start, end, err := xhttp.ParseRange(f.start, f.end, time.Now())
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return strings.ToUpper(f.symbol), start, end, nil
}

func newTrainCmd(opts *rootOptions) *cobra.Command {
	flags := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model from labelled snapshots and save it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			symbol, start, end, err := flags.parse()
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), opts, func(ctx context.Context, svc *di.Services) error {
				m, err := svc.Training.TrainFromHistory(ctx, symbol, start, end)
				if errors.Is(err, models.ErrInsufficientData) {
					return fmt.Errorf("not enough labelled snapshots for %s between %s and %s: %w",
						symbol, start.Format(time.RFC3339), end.Format(time.RFC3339), err)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), m)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newBacktestCmd(opts *rootOptions) *cobra.Command {
	flags := &rangeFlags{}
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay labelled snapshots and print the performance metrics",
		RunE: func(cmd *cobra.Command, _ []string) error {
			symbol, start, end, err := flags.parse()
			if err != nil {
				return err
			}
			return withServices(cmd.Context(), opts, func(ctx context.Context, svc *di.Services) error {
				res, err := svc.Backtest.Run(ctx, backtest.Params{Symbol: symbol, Start: start, End: end})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
	flags.bind(cmd)
	return cmd
}

func newLabelCmd(opts *rootOptions) *cobra.Command {
	var (
		symbols []string
		horizon time.Duration
	)
	cmd := &cobra.Command{
		Use:   "label",
		Short: "Fill realized outcomes of matured snapshots",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if len(symbols) == 0 {
				symbols = cfg.Signal.Symbols
			}
			if horizon <= 0 {
				horizon = cfg.Labeler.Horizon
			}
			svc, cleanup, err := di.InitializeServices(cfg)
			if err != nil {
				return fmt.Errorf("initialization failed: %w", err)
			}
			defer cleanup()

			out := make(map[string]any, len(symbols))
			for _, sym := range symbols {
				stats, err := svc.Labeler.LabelMatured(cmd.Context(), sym, horizon, time.Now().UTC())
				if err != nil {
					return fmt.Errorf("label %s: %w", sym, err)
				}
				out[strings.ToUpper(sym)] = stats
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().StringSliceVar(&symbols, "symbol", nil, "symbols to label, defaults to signal.symbols")
	cmd.Flags().DurationVar(&horizon, "horizon", 0, "outcome horizon, defaults to labeler.horizon")
	return cmd
}

func withServices(ctx context.Context, opts *rootOptions, run func(context.Context, *di.Services) error) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}
	svc, cleanup, err := di.InitializeServices(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	return run(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
