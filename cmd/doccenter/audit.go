package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/spf13/cobra"

	"doccenter/internal/config"
	"doccenter/internal/eventstore"
)

const auditBatch = 500

type eventReader interface {
	LoadEvents(ctx context.Context, aggregateID string, fromVersion, toVersion int) ([]eventstore.Event, error)
	StreamEvents(ctx context.Context, fromID int64, batchSize int) ([]eventstore.Event, error)
}

type auditQuery struct {
	id       string
	from, to int
	after    int64
	limit    int
}

func newAuditCmd(envFile *string) *cobra.Command {
	var q auditQuery
	cmd := &cobra.Command{
		Use:   "audit [entity-id]",
		Short: "Print journaled changes as JSON lines",
		Long: "Audit reads the Postgres change journal. With an entity id it prints that entity's " +
			"history; without one it prints the whole journal in append order.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return errors.New("audit needs DATABASE_URL")
			}
			if len(args) == 1 {
				q.id = args[0]
			}
			journal, err := eventstore.Open(cmd.Context(), cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer journal.Close()
			return runAudit(cmd.Context(), journal, cmd.OutOrStdout(), q)
		},
	}
	cmd.Flags().IntVar(&q.from, "from-version", 1, "first entity version to print")
	cmd.Flags().IntVar(&q.to, "to-version", 0, "last entity version to print, 0 for all")
	cmd.Flags().Int64Var(&q.after, "after", 0, "print journal entries with an id above this")
	cmd.Flags().IntVar(&q.limit, "limit", 0, "maximum journal entries to print, 0 for all")
	return cmd
}

func runAudit(ctx context.Context, j eventReader, w io.Writer, q auditQuery) error {
	enc := json.NewEncoder(w)
	if q.id != "" {
		events, err := j.LoadEvents(ctx, q.id, q.from, q.to)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		return nil
	}

	printed, after := 0, q.after
	for q.limit == 0 || printed < q.limit {
		batch := auditBatch
		if q.limit > 0 {
			batch = min(batch, q.limit-printed)
		}
		events, err := j.StreamEvents(ctx, after, batch)
		if err != nil {
			return err
		}
		for _, e := range events {
			if err := enc.Encode(e); err != nil {
				return err
			}
		}
		printed += len(events)
		if len(events) < batch {
			return nil
		}
		after = events[len(events)-1].ID
	}
	return nil
}
