// cmd/doccenter/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "doccenter",
		Short:         "School documentation center: books, readers, loans and materials",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "optional dotenv file read before the environment")

	root.AddCommand(
		newServeCmd(&envFile),
		newExportCmd(&envFile),
		newImportCmd(&envFile),
		newAuditCmd(&envFile),
		newHashPINCmd(),
	)
	return root
}
