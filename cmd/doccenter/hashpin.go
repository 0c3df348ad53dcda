package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"doccenter/internal/auth"
)

func newHashPINCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-pin [pin]",
		Short: "Print the Argon2id hash of an access PIN for ADMIN_PIN or GUEST_PIN",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var pin string
			if len(args) == 1 {
				pin = args[0]
			} else {
				p, err := readPIN(cmd)
				if err != nil {
					return err
				}
				pin = p
			}
			if pin == "" {
				return fmt.Errorf("pin must not be empty")
			}
			hash, err := auth.HashPIN(pin)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

// readPIN reads without echo from a terminal, or a single line otherwise.
func readPIN(cmd *cobra.Command) (string, error) {
	f, ok := cmd.InOrStdin().(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		var line string
		if _, err := fmt.Fscanln(cmd.InOrStdin(), &line); err != nil {
			return "", fmt.Errorf("failed to read pin: %w", err)
		}
		return strings.TrimSpace(line), nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "PIN: ")
	raw, err := term.ReadPassword(int(f.Fd()))
	fmt.Fprintln(cmd.ErrOrStderr())
	if err != nil {
		return "", fmt.Errorf("failed to read pin: %w", err)
	}
	return strings.TrimSpace(string(raw)), nil
}
