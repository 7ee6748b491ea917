// Package update turns a change-stream update delta into ordered mutation statements for one node.
package update

import (
	"strings"

	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/graph"
	"github.com/rohankatakam/docgraph/internal/translator"
)

// Supported update operators
const (
	OpSet   = "$set"
	OpUnset = "$unset"
	OpInc   = "$inc"
)

// Updater translates update deltas
type Updater struct {
	translator *translator.Translator
}

// New creates an updater that reuses tr for nested values
func New(tr *translator.Translator) *Updater {
	return &Updater{translator: tr}
}

// Plan is the translated form of one update delta
type Plan struct {
	Statements []graph.Statement
	// Labels holds the target label and every label the delta writes, first-seen order
	Labels []string
}

// Translate returns the statements that apply delta to the node (label, uid).
// An operator delta ($set/$unset/$inc) patches fields; a delta without operators replaces the document.
// Every statement addresses the target by label and uid equality, and the output order depends only on the delta.
func (u *Updater) Translate(delta map[string]any, uid any, label string, metadata map[string]any) (*Plan, error) {
	if isOperatorDelta(delta) {
		return u.patch(delta, uid, label, metadata)
	}
	return u.replace(delta, uid, label, metadata)
}

func isOperatorDelta(delta map[string]any) bool {
	for k := range delta {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func (u *Updater) patch(delta map[string]any, uid any, label string, metadata map[string]any) (*Plan, error) {
	for _, op := range translator.SortedKeys(delta) {
		switch op {
		case OpSet, OpUnset, OpInc:
		default:
			return nil, errors.ValidationErrorf("unsupported update operator %q", op)
		}
	}

	structure := translator.NewTranslation()
	structure.AddLabel(label)
	builder := graph.NewCypherBuilder()

	if set, ok := delta[OpSet]; ok {
		fields, err := operand(OpSet, set)
		if err != nil {
			return nil, err
		}
		props := map[string]any{}
		for _, field := range translator.Classify(translator.Normalize(fields)) {
			if err := u.translator.ApplyField(structure, label, uid, field, props, metadata); err != nil {
				return nil, err
			}
		}
		for _, key := range translator.SortedKeys(props) {
			if err := builder.Set(key, props[key]); err != nil {
				return nil, errors.ValidationErrorf("%s: %v", OpSet, err)
			}
		}
	}

	if inc, ok := delta[OpInc]; ok {
		fields, err := operand(OpInc, inc)
		if err != nil {
			return nil, err
		}
		fields = translator.Normalize(fields)
		for _, key := range translator.SortedKeys(fields) {
			switch fields[key].(type) {
			case int64, float64:
			default:
				return nil, errors.ValidationErrorf("%s %s: non-numeric amount %v", OpInc, key, fields[key])
			}
			if err := builder.Increment(key, fields[key]); err != nil {
				return nil, errors.ValidationErrorf("%s: %v", OpInc, err)
			}
		}
	}

	if unset, ok := delta[OpUnset]; ok {
		fields, err := operand(OpUnset, unset)
		if err != nil {
			return nil, err
		}
		for _, key := range translator.SortedKeys(fields) {
			if key == translator.IdentityKey {
				continue
			}
			if err := builder.Remove(key); err != nil {
				return nil, errors.ValidationErrorf("%s: %v", OpUnset, err)
			}
		}
	}

	for _, key := range translator.SortedKeys(metadata) {
		if err := builder.Set(key, metadata[key]); err != nil {
			return nil, errors.ValidationErrorf("metadata: %v", err)
		}
	}

	statements := collect(structure)
	stmt, ok, err := builder.BuildMatch(label, uid)
	if err != nil {
		return nil, errors.ValidationErrorf("update %s: %v", label, err)
	}
	if ok {
		statements = append(statements, stmt)
	}
	return &Plan{Statements: statements, Labels: structure.Labels}, nil
}

func (u *Updater) replace(doc map[string]any, uid any, label string, metadata map[string]any) (*Plan, error) {
	structure := translator.NewTranslation()
	structure.AddLabel(label)
	props := map[string]any{}
	for k, v := range metadata {
		props[k] = v
	}

	for _, field := range translator.Classify(translator.Normalize(doc)) {
		if err := u.translator.ApplyField(structure, label, uid, field, props, metadata); err != nil {
			return nil, err
		}
	}

	stmt, err := graph.ReplaceProperties(label, uid, props)
	if err != nil {
		return nil, errors.ValidationErrorf("replace %s: %v", label, err)
	}
	return &Plan{Statements: append(collect(structure), stmt), Labels: structure.Labels}, nil
}

// collect orders structural statements the same way an upsert does: nodes, relationships, properties
func collect(t *translator.Translation) []graph.Statement {
	statements := make([]graph.Statement, 0, len(t.Nodes)+len(t.Relationships)+len(t.Properties))
	statements = append(statements, t.Nodes...)
	statements = append(statements, t.Relationships...)
	statements = append(statements, t.Properties...)
	return statements
}

func operand(op string, value any) (map[string]any, error) {
	fields, ok := value.(map[string]any)
	if !ok {
		return nil, errors.ValidationErrorf("%s expects a document, got %T", op, value)
	}
	return fields, nil
}
