package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/myceliasignal/slo/internal/evmclient"
	"github.com/myceliasignal/slo/internal/keystore"
	"github.com/myceliasignal/slo/internal/proxygw"
	"github.com/myceliasignal/slo/internal/rails/lightning"
	"github.com/myceliasignal/slo/internal/rails/stablecoin"
)

var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "host the payment-gating reverse proxy for both rails",
	Run: func(cmd *cobra.Command, args []string) {
		runProxy(cmd.Context(), cmd)
	},
}

func init() {
	rootCmd.AddCommand(proxyCmd)
	proxyCmd.Flags().IntP("port", "p", 8443, "proxy listen port")
}

func runProxy(parent context.Context, cmd *cobra.Command) {
	keys, err := keystore.Load(cfg.KeystoreDir)
	if err != nil {
		log.Error("load keystore", map[string]any{"error": err.Error()})
		os.Exit(1)
	}

	routes, err := cfg.Routes()
	if err != nil {
		log.Error("build route table", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	prefixes, err := cfg.PrefixRoutes()
	if err != nil {
		log.Error("build prefix route table", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	table := proxygw.NewTable(routes, cfg.FreeRouteTable, prefixes)

	// Lightning rail: macaroon minting keyed off the keystore's shared
	// root secret, invoices minted against the configured payment node.
	invoices, err := lightning.NewInvoiceClient(cfg.PaymentNodeBaseURL, cfg.PaymentNodeCredentialPath)
	if err != nil {
		log.Error("build invoice client", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	minter := lightning.NewMinter(keys.MacaroonRoot, cfg.OracleBaseURL)
	lightningGW := lightning.NewGateway(invoices, minter)

	// Stablecoin rail: EVM chain access, enforcement, depeg breaker,
	// nonce-gated challenges, and settlement via facilitator or self.
	evm, err := evmclient.Dial(cfg.EVMRPCURL, cfg.EVMRelayerKeyHex)
	if err != nil {
		log.Error("dial evm rpc", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	usdcDomain := evmclient.TokenDomain{Name: "USD Coin", Version: "2"}
	verifier := stablecoin.NewVerifier(evm, usdcDomain)

	enforcer := stablecoin.NewEnforcer(cfg.GraceCooldown, cfg.BlockedThreshold, cfg.BlockedWindow)
	settler := stablecoin.NewSettler(cfg.SettlementFacilitatorURL, evm, enforcer, 30*time.Second, log)

	tolerance := decimal.NewFromFloat(cfg.DepegTolerance)
	depeg := stablecoin.NewDepegBreaker(tolerance, 2, time.Minute, cfg.FetchDeadline, log)

	nonces := stablecoin.NewNonceStore(5 * time.Minute)
	challenger := stablecoin.NewChallenger(stablecoin.ChallengeConfig{
		Network:       cfg.StablecoinNetwork,
		AssetContract: cfg.USDCContract,
		PayTo:         cfg.StablecoinRecipient,
		BaseURL:       cfg.OracleBaseURL,
		NonceTTL:      5 * time.Minute,
	}, nonces)

	dispatcher := proxygw.NewDispatcher(table, challenger, verifier, settler, enforcer, depeg, nonces, lightningGW, 90*time.Second, log)

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go depeg.Run(ctx)
	// Reconciles settlements submitted optimistically by Settler.Submit:
	// polls the facilitator (or ages pending entries out via timeout when
	// self-settling) and feeds the outcome back into payer enforcement.
	go settler.RunConfirmations(ctx, 15*time.Second, nil)

	port, _ := cmd.Flags().GetInt("port")
	addr := fmt.Sprintf(":%d", port)
	httpServer := &http.Server{Addr: addr, Handler: dispatcher}

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

	log.Info("proxy listening", map[string]any{"addr": addr})
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("proxy aborted", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
	<-done
}
