// Package changestream reads document change records and applies them to the graph pipeline.
package changestream

import (
	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/translator"
)

// Op is the kind of change
type Op string

const (
	OpInsert Op = "i"
	OpUpdate Op = "u"
	OpDelete Op = "d"
)

// Record is one change from the document database
type Record struct {
	Op        Op             `json:"op"`
	Namespace string         `json:"ns"`
	Timestamp int64          `json:"ts"`
	ID        any            `json:"id,omitempty"`
	Doc       map[string]any `json:"doc,omitempty"`
	Delta     map[string]any `json:"delta,omitempty"`
}

// DocumentID returns the explicit id, falling back to the document's uid
func (r Record) DocumentID() any {
	if r.ID != nil {
		return r.ID
	}
	if r.Doc != nil {
		return r.Doc[translator.IdentityKey]
	}
	return nil
}

// Validate checks that the record carries what its op needs
func (r Record) Validate() error {
	if r.Namespace == "" {
		return errors.ValidationErrorf("change record has no namespace")
	}
	switch r.Op {
	case OpInsert:
		if r.Doc == nil {
			return errors.ValidationErrorf("insert into %s has no document", r.Namespace)
		}
	case OpUpdate:
		if r.DocumentID() == nil || len(r.Delta) == 0 {
			return errors.ValidationErrorf("update in %s needs an id and a delta", r.Namespace)
		}
	case OpDelete:
		if r.DocumentID() == nil {
			return errors.ValidationErrorf("delete in %s has no id", r.Namespace)
		}
	default:
		return errors.ValidationErrorf("unknown change op %q", r.Op)
	}
	return nil
}
