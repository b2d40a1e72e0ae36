package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/raykavin/pricepulse/config"
	"github.com/raykavin/pricepulse/core"
	"github.com/raykavin/pricepulse/exchange"
	"github.com/raykavin/pricepulse/exchange/binance"
	"github.com/raykavin/pricepulse/i18n"
	"github.com/raykavin/pricepulse/links"
	logruslogger "github.com/raykavin/pricepulse/logger/logrus"
	zerologger "github.com/raykavin/pricepulse/logger/zerolog"
	"github.com/raykavin/pricepulse/monitor"
	"github.com/raykavin/pricepulse/notification"
	"github.com/raykavin/pricepulse/storage"
	"github.com/spf13/cobra"
)

const dateTimeLayout = "2006-01-02 15:04:05"

var (
	configPath string

	// codes gen flags
	codeCount     int
	codeDays      int
	codeExpiresIn int
	codeKind      string
	codeNote      string
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "pricepulse",
		Short:   "Futures price alert bot",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")

	rootCmd.AddCommand(buildRunCmd())
	rootCmd.AddCommand(buildCodesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the price monitor daemon",
		RunE:  runDaemon,
	}
}

func runDaemon(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	log, err := newLogger(cfg.Log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewFromSQLite(cfg.Database.Path, storage.DefaultConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	loc := i18n.New()

	resolver, err := links.NewResolver(loc, log)
	if err != nil {
		return err
	}
	defer resolver.Close()

	messenger, err := notification.NewTelegram(cfg.Telegram.Token, log)
	if err != nil {
		return err
	}
	notification.RegisterCommands(messenger, store, loc, log)
	go messenger.Start()
	defer messenger.Stop()

	marketOptions := []binance.Option{
		binance.WithBatching(cfg.Feed.BatchSize, cfg.Feed.BatchDelay.Std()),
	}
	if cfg.Feed.UseTestnet {
		marketOptions = append(marketOptions, binance.WithTestnet())
	}
	market := binance.NewFutures(log, marketOptions...)

	feed := exchange.NewPriceFeed(market, log,
		exchange.WithDeadTime(cfg.Feed.DeadTime.Std()),
		exchange.WithReconnectPolicy(
			cfg.Feed.ReconnectMin.Std(),
			cfg.Feed.ReconnectMax.Std(),
			cfg.Feed.MaxReconnects,
		),
	)

	dispatcher := monitor.NewDispatcher(messenger, store, resolver, loc, log,
		monitor.WithQueueSize(cfg.Dispatcher.QueueSize),
		monitor.WithWorkers(cfg.Dispatcher.Workers),
		monitor.WithSendDelay(cfg.Dispatcher.SendDelay.Std()),
		monitor.WithDrainGrace(cfg.Dispatcher.DrainGrace.Std()),
	)
	tracker := monitor.NewTracker(dispatcher, log)
	synchronizer := monitor.NewSynchronizer(store, tracker, dispatcher, log,
		monitor.WithSyncInterval(cfg.Monitor.SyncInterval.Std()),
		monitor.WithStatsInterval(cfg.Monitor.StatsInterval.Std()),
	)

	supervisor := monitor.NewSupervisor(market, feed, tracker, dispatcher, synchronizer,
		store, resolver, log,
		monitor.WithHealthInterval(cfg.Monitor.HealthInterval.Std()),
	)

	log.Info("starting price monitor")
	if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}

	log.Info("price monitor stopped")
	return nil
}

// newLogger selects the log backend: logrus for plain JSON output, zerolog
// with the console writer otherwise.
func newLogger(cfg config.Log) (core.Logger, error) {
	if cfg.Format == "json" {
		return logruslogger.New(cfg.Level)
	}
	return zerologger.New(cfg.Level, dateTimeLayout, cfg.Colored, false)
}

func buildCodesCmd() *cobra.Command {
	codesCmd := &cobra.Command{
		Use:   "codes",
		Short: "Manage activation and promo codes",
	}

	genCmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate a batch of codes",
		RunE:  runCodesGen,
	}
	genCmd.Flags().IntVarP(&codeCount, "count", "n", 1, "Number of codes to generate")
	genCmd.Flags().IntVarP(&codeDays, "days", "d", 30, "Subscription days a promo code grants")
	genCmd.Flags().IntVarP(&codeExpiresIn, "expires-in", "e", 0, "Days until the codes expire (0 = never)")
	genCmd.Flags().StringVarP(&codeKind, "kind", "k", "promo", "Code kind: promo or activation")
	genCmd.Flags().StringVarP(&codeNote, "note", "m", "", "Description stored with the codes")

	codesCmd.AddCommand(genCmd)
	return codesCmd
}

func runCodesGen(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadUnvalidated(configPath)
	if err != nil {
		return err
	}

	store, err := storage.NewFromSQLite(cfg.Database.Path, storage.DefaultConfig())
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	var codes []string
	switch codeKind {
	case "promo":
		codes, err = store.GeneratePromoCodes(ctx, codeCount, codeDays, codeExpiresIn, codeNote, "cli")
	case "activation":
		codes, err = store.GenerateActivationCodes(ctx, codeCount, "cli")
	default:
		return fmt.Errorf("unknown code kind %q", codeKind)
	}
	if err != nil {
		return err
	}

	for _, code := range codes {
		fmt.Println(code)
	}
	return nil
}
