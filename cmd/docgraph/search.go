package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/pipeline"
)

var (
	searchStart  int64
	searchEnd    int64
	searchFormat string
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "List nodes written within a timestamp range",
	Long:  `Returns every node whose _ts lies within [start, end], inclusive. There is no pagination.`,
	RunE:  runSearch,
}

var lastCmd = &cobra.Command{
	Use:   "last",
	Short: "Show the most recently written node",
	RunE:  runLast,
}

func init() {
	searchCmd.Flags().Int64Var(&searchStart, "start", 0, "range start (inclusive)")
	searchCmd.Flags().Int64Var(&searchEnd, "end", 0, "range end (inclusive)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "json", "output format: json or yaml")
	searchCmd.MarkFlagRequired("end")

	lastCmd.Flags().StringVar(&searchFormat, "format", "json", "output format: json or yaml")
}

func readWriter(ctx context.Context) (*pipeline.Writer, func(), error) {
	if err := cfg.Require(config.ValidationContextRead); err != nil {
		return nil, nil, err
	}
	store, err := openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	w, err := pipeline.NewWriter(pipeline.Config{Store: store, Logger: logger})
	if err != nil {
		store.Close(ctx)
		return nil, nil, err
	}
	return w, func() { store.Close(context.Background()) }, nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchEnd < searchStart {
		return fmt.Errorf("--end (%d) is before --start (%d)", searchEnd, searchStart)
	}

	ctx := cmd.Context()
	w, closeStore, err := readWriter(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	nodes, err := w.Search(ctx, searchStart, searchEnd)
	if err != nil {
		return err
	}
	return writeNodes(cmd.OutOrStdout(), nodes, searchFormat)
}

func runLast(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	w, closeStore, err := readWriter(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	node, err := w.LastDoc(ctx)
	if err != nil {
		return err
	}
	if node == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), "no documents")
		return nil
	}
	return writeNodes(cmd.OutOrStdout(), nodes(node), searchFormat)
}
