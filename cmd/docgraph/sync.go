package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/docgraph/internal/changestream"
	"github.com/rohankatakam/docgraph/internal/checkpoint"
	"github.com/rohankatakam/docgraph/internal/config"
)

var (
	syncFile       string
	syncRate       float64
	syncCheckpoint string
	syncBulk       bool
	syncNoIndex    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay a change stream into the graph",
	Long: `Reads JSON change records (one per line) and applies them in order:
inserts upsert, updates patch existing nodes, deletes remove nodes with their relationships.
Records at or below the saved checkpoint of their namespace are skipped.`,
	Example: `  docgraph sync --file changes.jsonl
  cat changes.jsonl | docgraph sync --bulk --rate 200`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVarP(&syncFile, "file", "f", "-", "change records file ('-' reads stdin)")
	syncCmd.Flags().Float64Var(&syncRate, "rate", 0, "maximum write calls per second (0 = config value)")
	syncCmd.Flags().StringVar(&syncCheckpoint, "checkpoint", "", "checkpoint file (default from config)")
	syncCmd.Flags().BoolVar(&syncBulk, "bulk", false, "group consecutive inserts into bulk upserts")
	syncCmd.Flags().BoolVar(&syncNoIndex, "no-spatial", false, "skip spatial indexing")
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if syncNoIndex {
		cfg.Spatial.Enabled = false
	}
	if err := cfg.Require(config.ValidationContextSync); err != nil {
		return err
	}

	input, closeInput, err := openInput(syncFile)
	if err != nil {
		return err
	}
	defer closeInput()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close(context.Background())

	writer, queue, err := newWriter(ctx, store)
	if err != nil {
		return err
	}
	if queue != nil {
		defer queue.Close()
	}

	applierCfg := changestream.ApplierConfig{
		Writer:   writer,
		Bulk:     syncBulk || cfg.Sync.Bulk,
		BulkSize: cfg.Sync.BulkSize,
		Logger:   logger,
	}

	limit := cfg.Sync.RateLimit
	if syncRate > 0 {
		limit = syncRate
	}
	if limit > 0 {
		burst := cfg.Sync.Burst
		if burst <= 0 {
			burst = 1
		}
		applierCfg.Limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}

	path := cfg.Sync.CheckpointPath
	if syncCheckpoint != "" {
		path = syncCheckpoint
	}
	if path != "" {
		checkpoints, err := checkpoint.Open(path)
		if err != nil {
			return err
		}
		defer checkpoints.Close()
		applierCfg.Checkpoints = checkpoints
	}

	applier := changestream.NewApplier(applierCfg)
	stats, err := applier.Run(ctx, changestream.NewReader(input))

	logger.Component("sync").WithFields(logrus.Fields{
		"applied": stats.Applied,
		"skipped": stats.Skipped,
	}).Info("sync finished")
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d, skipped %d\n", stats.Applied, stats.Skipped)
	return err
}

func openInput(path string) (io.Reader, func(), error) {
	if path == "" || path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open change records: %w", err)
	}
	return f, func() { f.Close() }, nil
}
