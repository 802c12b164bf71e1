// Command burrow-keygen generates an Ed25519 keypair in OpenSSH format,
// suitable either as a developer's client key or as a gateway host key.
package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"

	"github.com/burrowhq/burrow/internal/sshgateway"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "burrow-keygen: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	var out string

	c := &cobra.Command{
		Use:           "burrow-keygen",
		Short:         "Generate an Ed25519 SSH keypair for burrow",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return generate(out)
		},
	}

	c.Flags().StringVar(&out, "out", "id_ed25519", "path to write the private key; the public key is written to <out>.pub")

	return c
}

func generate(out string) error {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	pemBytes, err := sshgateway.EncodeEd25519PEM(priv)
	if err != nil {
		return fmt.Errorf("encode private key: %w", err)
	}
	if err := os.WriteFile(out, pemBytes, 0o600); err != nil {
		return fmt.Errorf("write private key: %w", err)
	}

	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return fmt.Errorf("derive public key: %w", err)
	}
	if err := os.WriteFile(out+".pub", ssh.MarshalAuthorizedKey(sshPub), 0o644); err != nil {
		return fmt.Errorf("write public key: %w", err)
	}

	fmt.Printf("wrote %s and %s.pub\n", out, out)
	return nil
}
