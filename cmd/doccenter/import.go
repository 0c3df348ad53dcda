package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"doccenter/internal/config"
	"doccenter/internal/library"
	"doccenter/internal/persistence"
)

func newImportCmd(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>",
		Short: "Replace the stored state with a JSON export",
		Long: "Import validates the export (unique ids and reader numbers, loan capacity) " +
			"before overwriting the SQLite snapshot. Use - to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			var snap library.Snapshot
			if err := json.NewDecoder(r).Decode(&snap); err != nil {
				return fmt.Errorf("failed to decode %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			store := library.NewStore(library.WithLogger(newLogger(cmd.ErrOrStderr(), cfg.LogLevel)))
			if err := store.ImportState(ctx, snap); err != nil {
				return fmt.Errorf("rejected import: %w", err)
			}

			db, err := persistence.OpenSQLite(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			defer db.Close()
			imported := store.ExportState(ctx)
			if err := db.Save(ctx, imported, store.Version()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d books, %d loans, %d material loans into %s\n",
				len(imported.Books), len(imported.Loans), len(imported.MaterialLoans), db.Path())
			if skipped := len(snap.Loans) + len(snap.MaterialLoans) - len(imported.Loans) - len(imported.MaterialLoans); skipped > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "skipped %d open loans with missing references\n", skipped)
			}
			return nil
		},
	}
}
