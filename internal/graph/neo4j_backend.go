package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// Neo4jStore implements Store over the Bolt driver.
// A session is opened per transaction and always closed before returning.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	logger   logrus.FieldLogger
	monitor  *TimeoutMonitor

	// txTimeout overrides the per-operation timeout when positive
	txTimeout time.Duration
}

// NewNeo4jStore wraps an existing driver
func NewNeo4jStore(driver neo4j.DriverWithContext, database string, logger logrus.FieldLogger) *Neo4jStore {
	return &Neo4jStore{
		driver:   driver,
		database: database,
		logger:   logger.WithField("component", "neo4j"),
		monitor:  NewTimeoutMonitor(logger),
	}
}

// SetTransactionTimeout applies timeout to every transaction and query the store runs
func (n *Neo4jStore) SetTransactionTimeout(timeout time.Duration) {
	n.txTimeout = timeout
}

func (n *Neo4jStore) transactionConfig(operation string) TransactionConfig {
	tc := GetConfigForOperation(operation)
	if n.txTimeout > 0 {
		tc = tc.WithTimeout(n.txTimeout)
	}
	return tc
}

// HealthCheck verifies Neo4j connectivity
func (n *Neo4jStore) HealthCheck(ctx context.Context) error {
	if err := n.driver.VerifyConnectivity(ctx); err != nil {
		return fmt.Errorf("neo4j health check failed: %w", err)
	}
	return nil
}

// Begin opens a buffered write transaction
func (n *Neo4jStore) Begin(ctx context.Context, operation string) (Tx, error) {
	return &neo4jTx{store: n, operation: operation}, nil
}

// Exec runs one statement in its own transaction, routed to the leader
func (n *Neo4jStore) Exec(ctx context.Context, operation string, stmt Statement) error {
	_, err := neo4j.ExecuteQuery(ctx, n.driver, stmt.Query, stmt.Params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(n.database),
		neo4j.ExecuteQueryWithWritersRouting(),
		neo4j.ExecuteQueryWithTransactionConfig(n.transactionConfig(operation).AsNeo4jConfig()...))
	if err != nil {
		return fmt.Errorf("%s statement failed: %w", operation, err)
	}
	return nil
}

// Read runs a read-only statement, routed to read replicas in cluster deployments
func (n *Neo4jStore) Read(ctx context.Context, operation string, stmt Statement) ([]Record, error) {
	tc := n.transactionConfig(operation)
	var result *neo4j.EagerResult
	err := n.monitor.Observe(operation, tc.Timeout, 1, func() error {
		var err error
		result, err = neo4j.ExecuteQuery(ctx, n.driver, stmt.Query, stmt.Params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(n.database),
			neo4j.ExecuteQueryWithReadersRouting(),
			neo4j.ExecuteQueryWithTransactionConfig(tc.AsNeo4jConfig()...))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", operation, err)
	}

	records := make([]Record, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, Record(record.AsMap()))
	}

	n.logger.WithFields(logrus.Fields{"operation": operation, "record_count": len(records)}).Debug("query executed")
	return records, nil
}

// Close closes the Neo4j driver connection
func (n *Neo4jStore) Close(ctx context.Context) error {
	if err := n.driver.Close(ctx); err != nil {
		return fmt.Errorf("failed to close neo4j driver: %w", err)
	}
	return nil
}

type neo4jTx struct {
	store      *Neo4jStore
	operation  string
	statements []Statement
}

func (t *neo4jTx) Append(stmt Statement) {
	t.statements = append(t.statements, stmt)
}

func (t *neo4jTx) Len() int {
	return len(t.statements)
}

// Commit uses an explicit transaction rather than ExecuteWrite so the driver never retries
func (t *neo4jTx) Commit(ctx context.Context) (*CommitResult, error) {
	tc := t.store.transactionConfig(t.operation)
	var result *CommitResult
	err := t.store.monitor.Observe(t.operation, tc.Timeout, len(t.statements), func() error {
		var err error
		result, err = t.commit(ctx, tc)
		return err
	})
	return result, err
}

func (t *neo4jTx) commit(ctx context.Context, tc TransactionConfig) (*CommitResult, error) {
	session := t.store.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: t.store.database,
	})
	defer session.Close(ctx)

	tx, err := session.BeginTransaction(ctx, tc.AsNeo4jConfig()...)
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s transaction: %w", t.operation, err)
	}
	defer tx.Close(ctx)

	result := &CommitResult{Results: make([][]Record, 0, len(t.statements))}
	for i, stmt := range t.statements {
		res, err := tx.Run(ctx, stmt.Query, stmt.Params)
		if err != nil {
			tx.Rollback(ctx)
			return nil, fmt.Errorf("batch command %d failed: %w", i, err)
		}
		rows, err := res.Collect(ctx)
		if err != nil {
			tx.Rollback(ctx)
			return nil, fmt.Errorf("batch command %d failed: %w", i, err)
		}
		records := make([]Record, 0, len(rows))
		for _, row := range rows {
			records = append(records, Record(row.AsMap()))
		}
		result.Results = append(result.Results, records)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit of %d statements failed: %w", len(t.statements), err)
	}

	t.store.logger.WithFields(logrus.Fields{
		"operation":  t.operation,
		"statements": len(t.statements),
	}).Debug("transaction committed")

	return result, nil
}
