package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"chat-insights/internal/pkg/term"
	"chat-insights/internal/security"
)

func newKeygenCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a server key pair for encrypted uploads",
		Long: `Generates an X25519 key pair. The private key goes to the server as
SERVER_PRIVATE_KEY (or security.private_key in the config); clients fetch the
public key from /api/v1/public-key.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			priv, pub, err := security.GenerateKeyPair()
			if err != nil {
				return err
			}

			if output == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "SERVER_PRIVATE_KEY=%s\n", priv)
				fmt.Fprintf(cmd.OutOrStdout(), "# public key: %s\n", pub)
				return nil
			}

			if _, err := os.Stat(output); err == nil {
				tty := term.NewTerminalFrom(cmd.InOrStdin(), cmd.ErrOrStderr())
				ok, err := tty.Confirm(fmt.Sprintf("%s already exists. Overwrite?", output))
				if err != nil {
					return err
				}
				if !ok {
					return errors.New("aborted")
				}
			} else if !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			content := fmt.Sprintf("SERVER_PRIVATE_KEY=%s\n", priv)
			if err := os.WriteFile(output, []byte(content), 0o600); err != nil {
				return fmt.Errorf("write key file: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Private key written to %s\nPublic key: %s\n", output, pub)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write SERVER_PRIVATE_KEY=... to this file instead of stdout")
	return cmd
}
