// Package spatial registers freshly written nodes with the Neo4j spatial extension.
package spatial

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/graph"
)

// Spatial extension endpoints, relative to the HTTP base URL
const (
	createLayerPath   = "/ext/SpatialPlugin/graphdb/addSimplePointLayer"
	getLayerPath      = "/ext/SpatialPlugin/graphdb/getLayer"
	addNodePath       = "/ext/SpatialPlugin/graphdb/addNodeToLayer"
	geometryIndexPath = "/index/node"
)

// Defaults
const (
	DefaultLayer          = "geom"
	DefaultStampBatchSize = 1000
	GeometryPoint         = "point"
)

// Config is the explicit client configuration for the spatial extension
type Config struct {
	BaseURL        string // e.g. http://localhost:7474/db/data
	Credential     string // "user:password", base64-encoded into the authorization header
	Layer          string
	Lat            string
	Lon            string
	StampBatchSize int
	HTTPClient     *http.Client // shared across calls; no timeout is applied
}

// AddResult is the outcome of registering one node with the layer
type AddResult struct {
	NodeID int64
	Status int
	Err    error
}

// Indexer stamps ids and registers nodes with a point layer
type Indexer struct {
	store  graph.Store
	config Config
	auth   string
	logger logrus.FieldLogger
}

// NewIndexer creates an indexer. The credential is read once here.
func NewIndexer(store graph.Store, config Config, logger logrus.FieldLogger) *Indexer {
	if config.Layer == "" {
		config.Layer = DefaultLayer
	}
	if config.Lat == "" {
		config.Lat = "lat"
	}
	if config.Lon == "" {
		config.Lon = "lon"
	}
	if config.StampBatchSize <= 0 {
		config.StampBatchSize = DefaultStampBatchSize
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")

	return &Indexer{
		store:  store,
		config: config,
		auth:   "Basic " + base64.StdEncoding.EncodeToString([]byte(config.Credential)),
		logger: logger.WithField("component", "spatial"),
	}
}

// Index stamps each node with its own id, makes sure the layer and geometry index exist,
// then adds every node to the layer one request at a time.
// Stamping errors are returned; HTTP failures are logged and reported only through the results.
func (i *Indexer) Index(ctx context.Context, nodeIDs []int64) ([]AddResult, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}

	if err := i.StampIDs(ctx, nodeIDs); err != nil {
		return nil, err
	}

	i.CreateLayer(ctx)
	i.CreateGeometryIndex(ctx)

	results := i.AddNodes(ctx, nodeIDs)
	failed := 0
	for _, r := range results {
		if r.Err != nil || r.Status >= 300 {
			failed++
		}
	}
	i.logger.WithFields(logrus.Fields{
		"layer":  i.config.Layer,
		"nodes":  len(results),
		"failed": failed,
	}).Info("geospatial index creation finished")

	return results, nil
}

// StampIDs sets n.id = id(n) in sequential transactions of at most StampBatchSize statements.
// Each batch is committed before the next one starts.
func (i *Indexer) StampIDs(ctx context.Context, nodeIDs []int64) error {
	batchSize := i.config.StampBatchSize
	for start := 0; start < len(nodeIDs); start += batchSize {
		end := start + batchSize
		if end > len(nodeIDs) {
			end = len(nodeIDs)
		}

		tx, err := i.store.Begin(ctx, graph.OpStampIDs)
		if err != nil {
			return fmt.Errorf("begin id stamp batch %d-%d: %w", start, end, err)
		}
		for _, id := range nodeIDs[start:end] {
			tx.Append(graph.StampID(id))
		}
		if _, err := tx.Commit(ctx); err != nil {
			return errors.CommitFailure(err, graph.OpStampIDs).
				WithContext("batch_start", start).
				WithContext("batch_end", end)
		}
	}
	return nil
}

// CreateLayer issues the create call unconditionally; an existing layer is not an error
func (i *Indexer) CreateLayer(ctx context.Context) bool {
	status, body, err := i.post(ctx, createLayerPath, map[string]any{
		"layer": i.config.Layer,
		"lat":   i.config.Lat,
		"lon":   i.config.Lon,
	})
	if err != nil {
		i.logger.WithError(err).WithField("layer", i.config.Layer).Error("layer creation request failed")
		return false
	}
	if status != http.StatusOK {
		i.logger.WithFields(logrus.Fields{
			"layer":  i.config.Layer,
			"status": status,
			"body":   body,
		}).Warn("layer creation not acknowledged (it may already exist)")
		return false
	}
	i.logger.WithField("layer", i.config.Layer).Info("layer created")
	return true
}

// CreateGeometryIndex configures the layer's node index with a point provider on lat/lon
func (i *Indexer) CreateGeometryIndex(ctx context.Context) bool {
	status, body, err := i.post(ctx, geometryIndexPath, map[string]any{
		"name": i.config.Layer,
		"config": map[string]any{
			"provider":      "spatial",
			"geometry_type": GeometryPoint,
			"lat":           i.config.Lat,
			"lon":           i.config.Lon,
		},
	})
	if err != nil {
		i.logger.WithError(err).WithField("layer", i.config.Layer).Error("geometry index request failed")
		return false
	}
	if status != http.StatusCreated {
		i.logger.WithFields(logrus.Fields{
			"layer":  i.config.Layer,
			"status": status,
			"body":   body,
		}).Warn("geometry index not created")
		return false
	}
	i.logger.WithField("geometry", GeometryPoint).Info("geometry index created")
	return true
}

// AddNodes adds each node to the layer, sequentially
func (i *Indexer) AddNodes(ctx context.Context, nodeIDs []int64) []AddResult {
	results := make([]AddResult, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		status, body, err := i.post(ctx, addNodePath, map[string]any{
			"layer": i.config.Layer,
			"node":  fmt.Sprintf("%s/node/%d", i.config.BaseURL, id),
		})
		if err != nil {
			i.logger.WithError(err).WithField("node_id", id).Error("add node to layer failed")
		} else if status != http.StatusOK {
			i.logger.WithFields(logrus.Fields{"node_id": id, "status": status, "body": body}).Warn("add node to layer rejected")
		}
		results = append(results, AddResult{NodeID: id, Status: status, Err: err})
	}
	return results
}

// LayerExists asks the extension whether the layer is present. Index does not consult it.
func (i *Indexer) LayerExists(ctx context.Context) (bool, error) {
	status, _, err := i.post(ctx, getLayerPath, map[string]any{"layer": i.config.Layer})
	if err != nil {
		return false, err
	}
	return status == http.StatusOK, nil
}

func (i *Indexer) post(ctx context.Context, path string, payload map[string]any) (int, string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, "", fmt.Errorf("encode %s payload: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, i.config.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return 0, "", fmt.Errorf("build %s request: %w", path, err)
	}
	req.Header.Set("authorization", i.auth)
	req.Header.Set("content-type", "application/json")

	resp, err := i.config.HTTPClient.Do(req)
	if err != nil {
		return 0, "", errors.ExternalErrorf(err, "POST %s", path)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	// The rest is drained so the shared client can reuse the connection
	io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, string(respBody), nil
}
