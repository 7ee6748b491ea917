// Package pipeline commits translated documents to the graph store and hands new nodes to the spatial indexer.
package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/rohankatakam/docgraph/internal/dlq"
	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/graph"
	"github.com/rohankatakam/docgraph/internal/spatial"
	"github.com/rohankatakam/docgraph/internal/translator"
	"github.com/rohankatakam/docgraph/internal/update"
)

// Indexer registers committed nodes with a secondary index
type Indexer interface {
	Index(ctx context.Context, nodeIDs []int64) ([]spatial.AddResult, error)
}

// DeadLetters receives batches whose commit failure was swallowed
type DeadLetters interface {
	Enqueue(ctx context.Context, entry dlq.Entry) error
}

// Config wires a Writer. Store is required; the rest is optional.
type Config struct {
	Store       graph.Store
	Translator  *translator.Translator
	Updater     *update.Updater
	Indexer     Indexer
	Classifier  *errors.Classifier
	Policies    *Policies
	DeadLetters DeadLetters
	Logger      logrus.FieldLogger
}

// Writer applies change records to the graph store.
// Calls are synchronous; the constrained-label cache is the only shared state.
type Writer struct {
	store       graph.Store
	translator  *translator.Translator
	updater     *update.Updater
	indexer     Indexer
	classifier  *errors.Classifier
	policies    Policies
	deadLetters DeadLetters
	logger      logrus.FieldLogger

	constrained sync.Map // label -> struct{}
	creating    singleflight.Group
}

// NewWriter fills in defaults for every optional collaborator
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Store == nil {
		return nil, errors.ConfigErrorf("pipeline: graph store is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	tr := cfg.Translator
	if tr == nil {
		tr = translator.New(logger)
	}
	up := cfg.Updater
	if up == nil {
		up = update.New(tr)
	}
	classifier := cfg.Classifier
	if classifier == nil {
		classifier = errors.DefaultClassifier()
	}
	policies := DefaultPolicies()
	if cfg.Policies != nil {
		policies = *cfg.Policies
	}

	return &Writer{
		store:       cfg.Store,
		translator:  tr,
		updater:     up,
		indexer:     cfg.Indexer,
		classifier:  classifier,
		policies:    policies,
		deadLetters: cfg.DeadLetters,
		logger:      logger.WithField("component", "pipeline"),
	}, nil
}

// Policies returns the commit policies in effect
func (w *Writer) Policies() Policies {
	return w.policies
}

// Upsert writes one document: node merges, relationships, then properties, in a single transaction.
// On success the new node ids are passed to the spatial indexer; indexing failures are only logged.
func (w *Writer) Upsert(ctx context.Context, doc map[string]any, namespace string, ts int64) error {
	return w.classifier.Classify(w.upsert(ctx, doc, namespace, ts))
}

func (w *Writer) upsert(ctx context.Context, doc map[string]any, namespace string, ts int64) error {
	ns, err := ParseNamespace(namespace)
	if err != nil {
		return err
	}

	plan, err := w.translate(doc, ns, ts)
	if err != nil {
		return err
	}

	w.ensureConstraints(ctx, plan.Labels)

	statements := make([]graph.Statement, 0, len(plan.Nodes)+len(plan.Relationships)+len(plan.Properties))
	statements = append(statements, plan.Nodes...)
	statements = append(statements, plan.Relationships...)
	statements = append(statements, plan.Properties...)

	result, err := w.commit(ctx, graph.OpUpsert, ns, statements)
	if err != nil || result == nil {
		return err
	}

	w.index(ctx, result.NodeIDs())
	return nil
}

// BulkUpsert writes many documents in one transaction. Only node merges and relationships are
// sent; properties are not written and nothing is indexed.
func (w *Writer) BulkUpsert(ctx context.Context, docs []map[string]any, namespace string, ts int64) error {
	return w.classifier.Classify(w.bulkUpsert(ctx, docs, namespace, ts))
}

func (w *Writer) bulkUpsert(ctx context.Context, docs []map[string]any, namespace string, ts int64) error {
	if len(docs) == 0 {
		return nil
	}

	ns, err := ParseNamespace(namespace)
	if err != nil {
		return err
	}

	var statements []graph.Statement
	var labels []string
	for i, doc := range docs {
		plan, err := w.translate(doc, ns, ts)
		if err != nil {
			return fmt.Errorf("bulk document %d: %w", i, err)
		}
		labels = append(labels, plan.Labels...)
		statements = append(statements, plan.Nodes...)
		statements = append(statements, plan.Relationships...)
	}

	w.ensureConstraints(ctx, labels)

	_, err = w.commit(ctx, graph.OpBulkUpsert, ns, statements)
	return err
}

// Update applies a delta to an existing node. A missing target is not created,
// but nested documents in the delta still merge their own nodes.
func (w *Writer) Update(ctx context.Context, id any, delta map[string]any, namespace string, ts int64) error {
	return w.classifier.Classify(w.update(ctx, id, delta, namespace, ts))
}

func (w *Writer) update(ctx context.Context, id any, delta map[string]any, namespace string, ts int64) error {
	ns, err := ParseNamespace(namespace)
	if err != nil {
		return err
	}

	uid := identity(id)
	plan, err := w.updater.Translate(translator.Normalize(delta), uid, ns.Label(), metadata(ts))
	if err != nil {
		return err
	}
	if len(plan.Statements) == 0 {
		return nil
	}

	w.ensureConstraints(ctx, plan.Labels)

	_, err = w.commit(ctx, graph.OpUpdate, ns, plan.Statements)
	return err
}

// Remove deletes the node and every relationship touching it
func (w *Writer) Remove(ctx context.Context, id any, namespace string, ts int64) error {
	return w.classifier.Classify(w.remove(ctx, id, namespace))
}

func (w *Writer) remove(ctx context.Context, id any, namespace string) error {
	ns, err := ParseNamespace(namespace)
	if err != nil {
		return err
	}

	stmt, err := graph.DeleteNode(ns.Label(), identity(id))
	if err != nil {
		return errors.ValidationErrorf("remove from %s: %v", ns, err)
	}

	_, err = w.commit(ctx, graph.OpRemove, ns, []graph.Statement{stmt})
	return err
}

// Search returns every node whose _ts lies within [start, end]
func (w *Writer) Search(ctx context.Context, start, end int64) ([]graph.Node, error) {
	rows, err := w.store.Read(ctx, graph.OpSearch, graph.TimestampRange(start, end))
	if err != nil {
		return nil, w.classifier.Classify(err)
	}
	return nodesFromRows(rows), nil
}

// LastDoc returns the node with the highest _ts, or nil when the store is empty
func (w *Writer) LastDoc(ctx context.Context) (*graph.Node, error) {
	rows, err := w.store.Read(ctx, graph.OpLastDoc, graph.LatestByTimestamp())
	if err != nil {
		return nil, w.classifier.Classify(err)
	}
	nodes := nodesFromRows(rows)
	if len(nodes) == 0 {
		return nil, nil
	}
	return &nodes[0], nil
}

func (w *Writer) translate(doc map[string]any, ns Namespace, ts int64) (*translator.Translation, error) {
	normalized := translator.Normalize(doc)
	raw, ok := normalized[translator.IdentityKey]
	if !ok || raw == nil {
		return nil, errors.ValidationErrorf("document in %s has no %s", ns, translator.IdentityKey)
	}
	delete(normalized, translator.IdentityKey)

	return w.translator.Translate(normalized, ns.Label(), identity(raw), metadata(ts))
}

// ensureConstraints creates the uid constraint the first time a label is seen.
// Concurrent writers touching a new label share one schema call.
// A failed constraint is logged and retried on the next write touching the label.
func (w *Writer) ensureConstraints(ctx context.Context, labels []string) {
	for _, label := range labels {
		if _, ok := w.constrained.Load(label); ok {
			continue
		}
		_, err, _ := w.creating.Do(label, func() (any, error) {
			if _, ok := w.constrained.Load(label); ok {
				return nil, nil
			}
			stmt, err := graph.UniqueConstraint(label)
			if err != nil {
				return nil, err
			}
			if err := w.store.Exec(ctx, graph.OpConstraint, stmt); err != nil {
				return nil, err
			}
			w.constrained.Store(label, struct{}{})
			return nil, nil
		})
		if err != nil {
			w.logger.WithError(err).WithField("label", label).Warn("failed to create uid constraint")
		}
	}
}

// commit runs statements in one transaction and applies the operation's policy on failure.
// A swallowed failure returns (nil, nil).
func (w *Writer) commit(ctx context.Context, op string, ns Namespace, statements []graph.Statement) (*graph.CommitResult, error) {
	tx, err := w.store.Begin(ctx, op)
	if err != nil {
		return nil, fmt.Errorf("begin %s: %w", op, err)
	}
	for _, stmt := range statements {
		tx.Append(stmt)
	}

	result, err := tx.Commit(ctx)
	if err == nil {
		w.logger.WithFields(logrus.Fields{
			"operation":  op,
			"namespace":  ns.String(),
			"statements": len(statements),
		}).Debug("batch committed")
		return result, nil
	}

	failure := errors.CommitFailure(err, op).WithContext("namespace", ns.String())
	if w.policies.For(op) == PropagateCommitFailure {
		return nil, failure
	}

	w.logger.WithError(err).WithFields(logrus.Fields{
		"operation":  op,
		"namespace":  ns.String(),
		"statements": len(statements),
	}).Error("commit failed, batch dropped")
	w.recordDeadLetter(ctx, op, ns, err, statements)
	return nil, nil
}

func (w *Writer) recordDeadLetter(ctx context.Context, op string, ns Namespace, cause error, statements []graph.Statement) {
	if w.deadLetters == nil {
		return
	}
	rendered := make([]fmt.Stringer, 0, len(statements))
	for _, s := range statements {
		rendered = append(rendered, s)
	}
	entry, err := dlq.NewEntry(ns.String(), op, cause, rendered)
	if err == nil {
		err = w.deadLetters.Enqueue(ctx, entry)
	}
	if err != nil {
		w.logger.WithError(err).WithField("operation", op).Error("failed to record dead letter")
	}
}

func (w *Writer) index(ctx context.Context, nodeIDs []int64) {
	if w.indexer == nil || len(nodeIDs) == 0 {
		return
	}
	if _, err := w.indexer.Index(ctx, nodeIDs); err != nil {
		w.logger.WithError(err).WithField("nodes", len(nodeIDs)).Error("spatial indexing failed")
	}
}

func nodesFromRows(rows []graph.Record) []graph.Node {
	nodes := make([]graph.Node, 0, len(rows))
	for _, row := range rows {
		if n, ok := graph.NodeFromValue(row["d"]); ok {
			nodes = append(nodes, n)
		}
	}
	return nodes
}

// identity stringifies the top-level document id
func identity(id any) string {
	return fmt.Sprint(translator.NormalizeValue(id))
}

func metadata(ts int64) map[string]any {
	return map[string]any{graph.TimestampKey: ts}
}
