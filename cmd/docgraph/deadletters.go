package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/docgraph/internal/dlq"
)

var (
	deadLettersLimit      int
	deadLettersResolve    string
	deadLettersStatements bool
)

var deadLettersCmd = &cobra.Command{
	Use:   "dead-letters",
	Short: "List batches whose commit failed and was skipped",
	Example: `  docgraph dead-letters --limit 5 --statements
  docgraph dead-letters --resolve 3f0c...`,
	RunE: runDeadLetters,
}

func init() {
	deadLettersCmd.Flags().IntVar(&deadLettersLimit, "limit", 20, "maximum entries to show (0 = all)")
	deadLettersCmd.Flags().StringVar(&deadLettersResolve, "resolve", "", "remove the entry with this id")
	deadLettersCmd.Flags().BoolVar(&deadLettersStatements, "statements", false, "print the statements of each entry")
}

func runDeadLetters(cmd *cobra.Command, args []string) error {
	if cfg.DeadLetter.DSN == "" {
		return fmt.Errorf("dead letters are disabled (dead_letter.dsn is empty)")
	}

	ctx := cmd.Context()
	queue, err := dlq.Open(ctx, cfg.DeadLetter.DSN, logger)
	if err != nil {
		return err
	}
	defer queue.Close()

	if deadLettersResolve != "" {
		return queue.Resolve(ctx, deadLettersResolve)
	}

	total, err := queue.Count(ctx, "")
	if err != nil {
		return err
	}
	entries, err := queue.List(ctx, deadLettersLimit)
	if err != nil {
		return err
	}

	return writeDeadLetters(cmd.OutOrStdout(), total, entries, deadLettersStatements)
}
