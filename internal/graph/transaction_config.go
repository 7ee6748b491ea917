package graph

import (
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Operation names used for transaction metadata and logging
const (
	OpUpsert     = "upsert"
	OpBulkUpsert = "bulk_upsert"
	OpUpdate     = "update"
	OpRemove     = "remove"
	OpSearch     = "search"
	OpLastDoc    = "last_doc"
	OpStampIDs   = "stamp_ids"
	OpConstraint = "constraint"
)

// TransactionConfig defines timeout and metadata for transactions
//
// Transaction metadata is logged by Neo4j and visible in query.log,
// which ties a slow or failed transaction back to the connector operation.
// A zero Timeout leaves the server default in place.
type TransactionConfig struct {
	Timeout  time.Duration
	Metadata map[string]any
}

// DefaultTransactionConfigs returns configs per operation type
func DefaultTransactionConfigs() map[string]TransactionConfig {
	configs := map[string]TransactionConfig{}
	for op, kind := range map[string]string{
		OpUpsert:     "write",
		OpBulkUpsert: "write",
		OpUpdate:     "write",
		OpRemove:     "write",
		OpStampIDs:   "write",
		OpSearch:     "read",
		OpLastDoc:    "read",
		OpConstraint: "schema",
	} {
		configs[op] = TransactionConfig{
			Metadata: map[string]any{
				"app":       "docgraph",
				"operation": op,
				"type":      kind,
			},
		}
	}
	return configs
}

// AsNeo4jConfig converts to Neo4j transaction config functions
// Use with BeginTransaction or ExecuteRead/ExecuteWrite
func (tc TransactionConfig) AsNeo4jConfig() []func(*neo4j.TransactionConfig) {
	configs := []func(*neo4j.TransactionConfig){}

	if tc.Timeout > 0 {
		configs = append(configs, neo4j.WithTxTimeout(tc.Timeout))
	}

	if len(tc.Metadata) > 0 {
		configs = append(configs, neo4j.WithTxMetadata(tc.Metadata))
	}

	return configs
}

// GetConfigForOperation retrieves the appropriate transaction config
// Returns default config if operation not found
func GetConfigForOperation(operation string) TransactionConfig {
	configs := DefaultTransactionConfigs()
	if config, ok := configs[operation]; ok {
		return config
	}

	return TransactionConfig{
		Metadata: map[string]any{
			"app":       "docgraph",
			"operation": operation,
			"type":      "unknown",
		},
	}
}

// WithTimeout creates a config with a custom timeout
func (tc TransactionConfig) WithTimeout(timeout time.Duration) TransactionConfig {
	return TransactionConfig{
		Timeout:  timeout,
		Metadata: tc.Metadata,
	}
}
