package main

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/spatial"
)

var layerCreate bool

var layerCmd = &cobra.Command{
	Use:   "layer",
	Short: "Check (or create) the spatial point layer",
	RunE:  runLayer,
}

func init() {
	layerCmd.Flags().BoolVar(&layerCreate, "create", false, "create the layer and geometry index when missing")
}

func runLayer(cmd *cobra.Command, args []string) error {
	if err := cfg.Require(config.ValidationContextSpatial); err != nil {
		return err
	}

	// Only HTTP calls are made here, so no Bolt store is needed
	idx := spatial.NewIndexer(nil, spatial.Config{
		BaseURL:    cfg.Spatial.HTTPURL,
		Credential: cfg.Spatial.Auth,
		Layer:      cfg.Spatial.Layer,
		Lat:        cfg.Spatial.Lat,
		Lon:        cfg.Spatial.Lon,
		HTTPClient: &http.Client{},
	}, logger)

	ctx := cmd.Context()
	exists, err := idx.LayerExists(ctx)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if exists {
		fmt.Fprintf(out, "layer %q exists\n", cfg.Spatial.Layer)
		return nil
	}
	if !layerCreate {
		fmt.Fprintf(out, "layer %q is missing (run with --create)\n", cfg.Spatial.Layer)
		return nil
	}

	created := idx.CreateLayer(ctx)
	indexed := idx.CreateGeometryIndex(ctx)
	fmt.Fprintf(out, "layer %q created=%v geometry_index=%v\n", cfg.Spatial.Layer, created, indexed)
	return nil
}
