package main

import (
	"context"
	"net/http"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/dlq"
	"github.com/rohankatakam/docgraph/internal/graph"
	"github.com/rohankatakam/docgraph/internal/pipeline"
	"github.com/rohankatakam/docgraph/internal/spatial"
)

// openStore connects to Bolt and fails fast when the server is unreachable
func openStore(ctx context.Context) (*graph.Neo4jStore, error) {
	driver, err := graph.NewDriver(graph.ConnectionConfig{
		URI:         cfg.Neo4j.URI,
		User:        cfg.Neo4j.User,
		Password:    cfg.Neo4j.Password,
		Database:    cfg.Neo4j.Database,
		MaxPoolSize: cfg.Neo4j.MaxPoolSize,
	})
	if err != nil {
		return nil, err
	}
	store := graph.NewNeo4jStore(driver, cfg.Neo4j.Database, logger)
	store.SetTransactionTimeout(cfg.Neo4j.TxTimeout)

	if err := store.HealthCheck(ctx); err != nil {
		store.Close(context.Background())
		return nil, err
	}
	return store, nil
}

func newIndexer(store graph.Store, c config.SpatialConfig) *spatial.Indexer {
	return spatial.NewIndexer(store, spatial.Config{
		BaseURL:        c.HTTPURL,
		Credential:     c.Auth,
		Layer:          c.Layer,
		Lat:            c.Lat,
		Lon:            c.Lon,
		StampBatchSize: c.StampBatchSize,
		HTTPClient:     &http.Client{},
	}, logger)
}

// newWriter builds the write pipeline. The returned queue is nil when dead letters are disabled.
func newWriter(ctx context.Context, store graph.Store) (*pipeline.Writer, *dlq.Queue, error) {
	wcfg := pipeline.Config{
		Store:  store,
		Logger: logger,
	}

	if cfg.Spatial.Enabled {
		wcfg.Indexer = newIndexer(store, cfg.Spatial)
	}

	var queue *dlq.Queue
	if cfg.DeadLetter.DSN != "" {
		var err error
		queue, err = dlq.Open(ctx, cfg.DeadLetter.DSN, logger)
		if err != nil {
			return nil, nil, err
		}
		wcfg.DeadLetters = queue
	}

	w, err := pipeline.NewWriter(wcfg)
	if err != nil {
		if queue != nil {
			queue.Close()
		}
		return nil, nil, err
	}
	return w, queue, nil
}
