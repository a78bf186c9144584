package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"txmanager/internal/cryptographic/kdf"
	"txmanager/internal/service/enclave"
)

var (
	keygenPassword   string
	keygenIterations uint32
	keygenMemory     uint32

	keygenCmd = &cobra.Command{
		Use:   "keygen <name>...",
		Short: "Generate a key pair",
		Long: `Generates one Curve25519 key pair per name and writes <name>.pub
(base64 public key) and <name>.key (JSON private key file).

With --password the private key is locked with an Argon2id derived key.

Examples:
  txmanager keygen node1
  txmanager keygen --password s3cret node1 node1-extra`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := kdf.DefaultArgon2Params()
			if keygenIterations > 0 {
				params.Iterations = keygenIterations
			}
			if keygenMemory > 0 {
				params.Memory = keygenMemory
			}

			for _, name := range args {
				kp, err := enclave.GenerateKeyPair()
				if err != nil {
					return err
				}
				pubPath, privPath, err := enclave.WriteKeyPair(name, kp, keygenPassword, params)
				if err != nil {
					return fmt.Errorf("write %s: %w", name, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", kp.Public, pubPath, privPath)
			}
			return nil
		},
	}
)

func init() {
	keygenCmd.Flags().StringVarP(&keygenPassword, "password", "p", "", "lock the private key with this password")
	keygenCmd.Flags().Uint32Var(&keygenIterations, "argon-iterations", 0, "argon2 iterations for locked keys")
	keygenCmd.Flags().Uint32Var(&keygenMemory, "argon-memory", 0, "argon2 memory in KiB for locked keys")
}
