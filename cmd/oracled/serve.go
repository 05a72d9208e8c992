package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/myceliasignal/slo/internal/aggregate"
	"github.com/myceliasignal/slo/internal/backend"
	"github.com/myceliasignal/slo/internal/feeds"
	"github.com/myceliasignal/slo/internal/keystore"
	"github.com/myceliasignal/slo/internal/metrics"
	"github.com/myceliasignal/slo/internal/signer"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "host the feed fetchers, aggregation engine, and attestation signer",
	Run: func(cmd *cobra.Command, args []string) {
		runServe(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 9100, "backend listen port")
}

// stations lists the asset pairs this deployment aggregates, mirroring
// original_source's per-port fetch scripts (BTCUSD, ETHUSD, XAUUSD, SOLUSD,
// EURUSD) as routes on one process. Each station signs with one fixed
// scheme: ECDSA (secp256k1) for BTCUSD, ETHUSD, SOLUSD and XAUUSD, Ed25519
// for EURUSD and USDCUSD. The scheme does not follow the payment rail a
// route is gated by, and the proxy forwards the signed bundle without
// re-signing it.
func stations(fetchDeadline time.Duration) []backend.Station {
	deadline := fetchDeadline
	return []backend.Station{
		{
			Path: "/btcusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "BTCUSD", Currency: "USD", Decimals: 2,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.BTCUSDUSDSources(), MinQuorum: 3,
			}, deadline, log, nil),
			Scheme: signer.SchemeECDSA,
		},
		{
			Path: "/ethusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "ETHUSD", Currency: "USD", Decimals: 2,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.ETHUSDSources(), MinQuorum: 2,
			}, deadline, log, nil),
			Scheme: signer.SchemeECDSA,
		},
		{
			Path: "/solusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "SOLUSD", Currency: "USD", Decimals: 2,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.SOLUSDUSDSources(), MinQuorum: 2,
			}, deadline, log, nil),
			Scheme: signer.SchemeECDSA,
		},
		{
			Path: "/xauusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "XAUUSD", Currency: "USD", Decimals: 2,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.XAUUSDTraditionalSources(), MinQuorum: 1,
			}, deadline, log, nil),
			Scheme: signer.SchemeECDSA,
		},
		{
			Path: "/eurusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "EURUSD", Currency: "USD", Decimals: 4,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.EURUSDSources(), MinQuorum: 1,
			}, deadline, log, nil),
			Scheme: signer.SchemeEd25519,
		},
		{
			Path: "/usdcusd",
			Engine: aggregate.New(aggregate.Config{
				Domain: "USDCUSD", Currency: "USD", Decimals: 4,
				Kind: aggregate.KindDirectMedian, Fetchers: feeds.USDCUSDSources(), MinQuorum: 1,
			}, deadline, log, nil),
			Scheme: signer.SchemeEd25519,
		},
	}
}

func runServe(parent context.Context, cmd *cobra.Command) {
	keys, err := keystore.Load(cfg.KeystoreDir)
	if err != nil {
		log.Error("load keystore", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	s := signer.New(keys.ECDSA, keys.Ed25519)

	srv := backend.New(stations(cfg.FetchDeadline), s, log, metrics.NewPrometheusRecorder())

	port, _ := cmd.Flags().GetInt("port")
	addr := fmt.Sprintf(":%d", port)

	httpServer := &http.Server{Addr: addr, Handler: srv.Handler()}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", map[string]any{"error": err.Error()})
		}
		close(done)
	}()

	log.Info("backend listening", map[string]any{"addr": addr})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("backend aborted", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	<-done
}
