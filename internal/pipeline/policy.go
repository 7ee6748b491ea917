package pipeline

import "github.com/rohankatakam/docgraph/internal/graph"

// CommitPolicy decides what a failed commit means to the caller
type CommitPolicy int

const (
	// SwallowCommitFailure logs the failure, records it as a dead letter and reports success
	SwallowCommitFailure CommitPolicy = iota
	// PropagateCommitFailure returns the classified error
	PropagateCommitFailure
)

func (p CommitPolicy) String() string {
	switch p {
	case SwallowCommitFailure:
		return "swallow"
	case PropagateCommitFailure:
		return "propagate"
	default:
		return "unknown"
	}
}

// Policies holds the commit policy of each write operation
type Policies struct {
	Upsert     CommitPolicy
	BulkUpsert CommitPolicy
	Update     CommitPolicy
	Remove     CommitPolicy
}

// DefaultPolicies: inserts are best effort, updates and deletes must surface failures
func DefaultPolicies() Policies {
	return Policies{
		Upsert:     SwallowCommitFailure,
		BulkUpsert: SwallowCommitFailure,
		Update:     PropagateCommitFailure,
		Remove:     PropagateCommitFailure,
	}
}

// For returns the policy of an operation; unknown operations propagate
func (p Policies) For(operation string) CommitPolicy {
	switch operation {
	case graph.OpUpsert:
		return p.Upsert
	case graph.OpBulkUpsert:
		return p.BulkUpsert
	case graph.OpUpdate:
		return p.Update
	case graph.OpRemove:
		return p.Remove
	default:
		return PropagateCommitFailure
	}
}
