package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/myceliasignal/slo/internal/keystore"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "generate (or report) the keystore's signing keys and macaroon root secret",
	Run: func(cmd *cobra.Command, args []string) {
		runKeygen()
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}

// runKeygen just calls keystore.Load, which generates any missing key
// material and persists it; existing keys are left untouched. This lets an
// operator provision keystore_dir once, out of band, before running serve
// or proxy against it.
func runKeygen() {
	keys, err := keystore.Load(cfg.KeystoreDir)
	if err != nil {
		fmt.Fprintln(os.Stderr, "oracled: keygen:", err)
		os.Exit(1)
	}

	fmt.Println("keystore:", cfg.KeystoreDir)
	fmt.Println("ecdsa/schnorr pubkey:", hex.EncodeToString(keys.ECDSA.PubKey().SerializeCompressed()))
	fmt.Println("ed25519 pubkey:", hex.EncodeToString(keys.Ed25519.Public().(ed25519.PublicKey)))
}
