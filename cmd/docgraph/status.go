package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/docgraph/internal/checkpoint"
	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/dlq"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show graph connectivity, sync checkpoints and dead letters",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	log := logger.Component("status")

	fmt.Fprintf(out, "Neo4j: %s (database %s)\n", cfg.Neo4j.URI, cfg.Neo4j.Database)
	if err := cfg.Require(config.ValidationContextRead); err != nil {
		fmt.Fprintf(out, "  connection: not configured (%v)\n", err)
	} else if store, err := openStore(ctx); err != nil {
		log.WithError(err).Debug("health check failed")
		fmt.Fprintf(out, "  connection: unreachable (%v)\n", err)
	} else {
		store.Close(context.Background())
		fmt.Fprintln(out, "  connection: ok")
	}

	fmt.Fprintf(out, "\nCheckpoints: %s\n", cfg.Sync.CheckpointPath)
	// Opening would create the file, so a missing one is reported as empty
	if _, err := os.Stat(cfg.Sync.CheckpointPath); err != nil {
		writeCheckpoints(out, nil)
	} else {
		store, err := checkpoint.Open(cfg.Sync.CheckpointPath)
		if err != nil {
			return err
		}
		all, err := store.All()
		store.Close()
		if err != nil {
			return err
		}
		writeCheckpoints(out, all)
	}

	fmt.Fprintln(out, "\nDead letters:")
	if cfg.DeadLetter.DSN == "" {
		fmt.Fprintln(out, "  disabled")
		return nil
	}
	queue, err := dlq.Open(ctx, cfg.DeadLetter.DSN, logger)
	if err != nil {
		return err
	}
	defer queue.Close()

	total, err := queue.Count(ctx, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %d pending (docgraph dead-letters to inspect)\n", total)
	return nil
}
