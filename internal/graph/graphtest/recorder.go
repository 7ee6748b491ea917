// Package graphtest provides an in-memory graph.Store that records every statement it receives.
package graphtest

import (
	"context"
	"strings"
	"sync"

	"github.com/rohankatakam/docgraph/internal/graph"
)

// Batch is one committed (or rejected) transaction
type Batch struct {
	Operation  string
	Statements []graph.Statement
	Committed  bool
}

// Recorder is a graph.Store for tests.
// Merge statements returning an "id" column are answered with sequential ids starting at 1.
type Recorder struct {
	mu sync.Mutex

	Batches []Batch
	Execs   []graph.Statement
	Reads   []graph.Statement

	// CommitErr, when set, is returned by Commit for the named operation ("" matches all)
	CommitErr map[string]error
	// ExecErr is returned by every Exec
	ExecErr error
	// ReadRows is returned by every Read
	ReadRows []graph.Record

	nextID int64
}

// NewRecorder creates an empty recorder
func NewRecorder() *Recorder {
	return &Recorder{CommitErr: map[string]error{}}
}

// FailCommits makes every commit of operation fail with err
func (r *Recorder) FailCommits(operation string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.CommitErr[operation] = err
}

// Begin implements graph.Store
func (r *Recorder) Begin(ctx context.Context, operation string) (graph.Tx, error) {
	return &tx{recorder: r, operation: operation}, nil
}

// Exec implements graph.Store
func (r *Recorder) Exec(ctx context.Context, operation string, stmt graph.Statement) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Execs = append(r.Execs, stmt)
	return r.ExecErr
}

// Read implements graph.Store
func (r *Recorder) Read(ctx context.Context, operation string, stmt graph.Statement) ([]graph.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Reads = append(r.Reads, stmt)
	return r.ReadRows, nil
}

// Close implements graph.Store
func (r *Recorder) Close(ctx context.Context) error {
	return nil
}

// Committed returns only the batches that committed successfully
func (r *Recorder) Committed() []Batch {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Batch
	for _, b := range r.Batches {
		if b.Committed {
			out = append(out, b)
		}
	}
	return out
}

type tx struct {
	recorder   *Recorder
	operation  string
	statements []graph.Statement
}

func (t *tx) Append(stmt graph.Statement) {
	t.statements = append(t.statements, stmt)
}

func (t *tx) Len() int {
	return len(t.statements)
}

func (t *tx) Commit(ctx context.Context) (*graph.CommitResult, error) {
	r := t.recorder
	r.mu.Lock()
	defer r.mu.Unlock()

	err, ok := r.CommitErr[t.operation]
	if !ok {
		err = r.CommitErr[""]
	}
	r.Batches = append(r.Batches, Batch{Operation: t.operation, Statements: t.statements, Committed: err == nil})
	if err != nil {
		return nil, err
	}

	result := &graph.CommitResult{}
	for _, stmt := range t.statements {
		var rows []graph.Record
		if returnsID(stmt.Query) {
			r.nextID++
			rows = append(rows, graph.Record{"id": r.nextID})
		}
		result.Results = append(result.Results, rows)
	}
	return result, nil
}

func returnsID(query string) bool {
	return strings.HasSuffix(query, "RETURN id(v) AS id")
}
