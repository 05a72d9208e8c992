package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/dlc"
	"github.com/myceliasignal/slo/internal/feeds"
	"github.com/myceliasignal/slo/internal/keystore"
)

var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "run the hourly DLC announce/attest loop",
	Run: func(cmd *cobra.Command, args []string) {
		runScheduler(cmd)
	},
}

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.Flags().String("pair", "BTCUSD", "asset pair this scheduler announces and attests events for")
}

func runScheduler(cmd *cobra.Command) {
	keys, err := keystore.Load(cfg.KeystoreDir)
	if err != nil {
		log.Error("load keystore", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	pair, _ := cmd.Flags().GetString("pair")

	priceEngine := aggregate.New(aggregate.Config{
		Domain: pair, Currency: "USD", Decimals: 0,
		Kind: aggregate.KindDirectMedian, Fetchers: feeds.BTCUSDUSDSources(), MinQuorum: 3,
	}, cfg.FetchDeadline, log, nil)

	store := dlc.NewStore()
	sched := dlc.NewScheduler(keys.ECDSA, priceEngine, pair, cfg.DigitCount, cfg.AnnouncementHorizon, store, log)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := sched.Start(ctx); err != nil {
		log.Error("start scheduler", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	log.Info("scheduler running", map[string]any{"pair": pair, "digits": cfg.DigitCount})

	<-ctx.Done()
	sched.Stop()
}
