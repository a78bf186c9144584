package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "0.1.0-dev"

var rootCmd = &cobra.Command{
	Use:   "txmanager",
	Short: "txmanager - a node-local private transaction manager",
	Long: `txmanager runs next to a blockchain client. It encrypts transaction
payloads for a set of recipient keys, stores them by content hash, forwards
them to the nodes owning those keys and decrypts them for local recipients.

Usage:
  txmanager <command> [flags]

Available Commands:
  run       Start the node
  keygen    Generate a key pair
  version   Print the version`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(runCmd, keygenCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
