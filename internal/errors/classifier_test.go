package errors

import (
	stderrors "errors"
	"fmt"
	"net/url"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifier_DefaultTable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantKind ErrorType
	}{
		{
			name:     "transient server error",
			err:      &neo4j.Neo4jError{Code: "Neo.TransientError.General.DatabaseUnavailable", Msg: "unavailable"},
			wantKind: ErrorTypeConnectionFailed,
		},
		{
			name:     "constraint violation",
			err:      &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed", Msg: "exists"},
			wantKind: ErrorTypeOperationFailed,
		},
		{
			name:     "wrapped server error",
			err:      fmt.Errorf("batch command 2 failed: %w", &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError"}),
			wantKind: ErrorTypeOperationFailed,
		},
		{
			name:     "driver misuse",
			err:      &neo4j.UsageError{Message: "session closed"},
			wantKind: ErrorTypeOperationFailed,
		},
		{
			name:     "http transport",
			err:      &url.Error{Op: "Post", URL: "http://localhost:7474/index/node", Err: stderrors.New("connection refused")},
			wantKind: ErrorTypeConnectionFailed,
		},
	}

	classifier := DefaultClassifier()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.Classify(tt.err)

			var classified *Error
			require.True(t, stderrors.As(got, &classified), "expected a classified error, got %T", got)
			assert.Equal(t, tt.wantKind, classified.Type)
			assert.ErrorIs(t, classified, tt.err)
		})
	}
}

func TestClassifier_UnmappedPassesThrough(t *testing.T) {
	original := stderrors.New("something odd")

	got := DefaultClassifier().Classify(original)

	assert.Same(t, original, got)
}

func TestClassifier_NilAndAlreadyClassified(t *testing.T) {
	classifier := DefaultClassifier()
	assert.NoError(t, classifier.Classify(nil))

	already := Wrap(stderrors.New("refused"), ErrorTypeConnectionFailed, SeverityHigh, "connection_failed")
	assert.Same(t, already, classifier.Classify(already))
}

func TestClassifier_CommitFailureKeepsOrigin(t *testing.T) {
	cause := &neo4j.Neo4jError{Code: "Neo.ClientError.Schema.ConstraintValidationFailed"}
	commitErr := CommitFailure(cause, "update")

	got := DefaultClassifier().Classify(commitErr)

	assert.ErrorIs(t, got, ErrOperationFailed)
	assert.ErrorIs(t, got, ErrCommitFailure)
	assert.Equal(t, "update", commitErr.Context["operation"])
}

func TestClassifier_CustomTable(t *testing.T) {
	sentinel := stderrors.New("layer missing")
	classifier := NewClassifier([]Rule{
		{Name: "layer", Kind: ErrorTypeExternal, Match: func(err error) bool { return stderrors.Is(err, sentinel) }},
	})

	got := classifier.Classify(fmt.Errorf("index: %w", sentinel))
	assert.Equal(t, ErrorTypeExternal, GetType(got))

	other := &neo4j.Neo4jError{Code: "Neo.ClientError.Statement.SyntaxError"}
	assert.Same(t, error(other), classifier.Classify(other))
}

func TestError_DetailedString(t *testing.T) {
	err := TranslationSkipf("nested field %q has no uid", "address").WithContext("label", "Person")

	out := err.DetailedString()
	assert.Contains(t, out, "[LOW] [TRANSLATION_SKIP]")
	assert.Contains(t, out, "label: Person")
	assert.False(t, err.IsFatal())
	assert.True(t, stderrors.Is(err, ErrTranslationSkip))
}
