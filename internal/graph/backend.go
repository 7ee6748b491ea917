package graph

import "context"

// Store is the transactional surface of the property-graph store
type Store interface {
	// Begin opens a buffered transaction; nothing reaches the store until Commit
	Begin(ctx context.Context, operation string) (Tx, error)

	// Exec runs a single auto-commit statement (schema changes cannot share a write transaction)
	Exec(ctx context.Context, operation string, stmt Statement) error

	// Read runs a read-only statement and returns every row
	Read(ctx context.Context, operation string, stmt Statement) ([]Record, error)

	// Close releases the underlying driver
	Close(ctx context.Context) error
}

// Tx is an ordered batch of statements committed atomically
type Tx interface {
	// Append queues a statement; order is preserved on commit
	Append(stmt Statement)

	// Len returns the number of queued statements
	Len() int

	// Commit runs every queued statement in one store transaction.
	// On error nothing is committed and the error is returned as-is; there is no retry.
	Commit(ctx context.Context) (*CommitResult, error)
}
