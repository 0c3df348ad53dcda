package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"doccenter/internal/auth"
	"doccenter/internal/clients"
	"doccenter/internal/config"
	"doccenter/internal/library"
	"doccenter/internal/persistence"
)

func newExportCmd(envFile *string) *cobra.Command {
	var source, out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the stored state as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			snap, err := loadSnapshot(cmd.Context(), cfg, source)
			if err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return writeSnapshot(w, snap)
		},
	}
	cmd.Flags().StringVar(&source, "source", "sqlite", "where to read the state from: sqlite, s3 or remote")
	cmd.Flags().StringVarP(&out, "out", "o", "-", "output file, - for stdout")
	return cmd
}

func loadSnapshot(ctx context.Context, cfg config.Config, source string) (library.Snapshot, error) {
	switch source {
	case "sqlite":
		db, err := persistence.OpenSQLite(cfg.SnapshotPath)
		if err != nil {
			return library.Snapshot{}, err
		}
		defer db.Close()
		snap, _, _, err := db.Load(ctx)
		return snap, err
	case "s3":
		archive, err := persistence.NewS3Archive(ctx, persistence.S3Config{
			Region:    cfg.S3Region,
			Bucket:    cfg.S3Bucket,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			Prefix:    "doccenter",
		})
		if err != nil {
			return library.Snapshot{}, err
		}
		return archive.Latest(ctx)
	case "remote":
		if cfg.RemoteAPIURL == "" {
			return library.Snapshot{}, fmt.Errorf("REMOTE_API_URL is not set")
		}
		client := clients.NewRemoteClient(cfg.RemoteAPIURL, clients.WithCredentials(auth.RoleAdmin, cfg.RemoteAPIPIN))
		return client.FetchSnapshot(ctx)
	default:
		return library.Snapshot{}, fmt.Errorf("unknown source %q", source)
	}
}

func writeSnapshot(w io.Writer, snap library.Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}
