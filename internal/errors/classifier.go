package errors

import (
	stderrors "errors"
	"net"
	"net/url"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Rule maps one family of transport/driver errors to a normalised kind
type Rule struct {
	Name  string
	Match func(err error) bool
	Kind  ErrorType
}

// Classifier normalises driver and transport errors through a fixed table.
// Rules are evaluated in order; the first match wins. Unmatched errors pass through unchanged.
type Classifier struct {
	rules []Rule
}

// NewClassifier creates a classifier over the given table
func NewClassifier(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// DefaultClassifier returns a classifier over DefaultRules
func DefaultClassifier() *Classifier {
	return NewClassifier(DefaultRules())
}

// DefaultRules is the exception table for the Neo4j driver and the spatial HTTP API
func DefaultRules() []Rule {
	return []Rule{
		{Name: "neo4j_connectivity", Kind: ErrorTypeConnectionFailed, Match: func(err error) bool {
			var target *neo4j.ConnectivityError
			return stderrors.As(err, &target)
		}},
		{Name: "neo4j_transient", Kind: ErrorTypeConnectionFailed, Match: func(err error) bool {
			var target *neo4j.Neo4jError
			return stderrors.As(err, &target) && strings.HasPrefix(target.Code, "Neo.TransientError")
		}},
		{Name: "neo4j_server", Kind: ErrorTypeOperationFailed, Match: func(err error) bool {
			var target *neo4j.Neo4jError
			return stderrors.As(err, &target)
		}},
		{Name: "neo4j_usage", Kind: ErrorTypeOperationFailed, Match: func(err error) bool {
			var target *neo4j.UsageError
			return stderrors.As(err, &target)
		}},
		{Name: "neo4j_execution_limit", Kind: ErrorTypeOperationFailed, Match: func(err error) bool {
			var target *neo4j.TransactionExecutionLimit
			return stderrors.As(err, &target)
		}},
		{Name: "http_transport", Kind: ErrorTypeConnectionFailed, Match: func(err error) bool {
			var target *url.Error
			return stderrors.As(err, &target)
		}},
		{Name: "network", Kind: ErrorTypeConnectionFailed, Match: func(err error) bool {
			var target net.Error
			return stderrors.As(err, &target)
		}},
	}
}

// Classify returns the normalised error for err, or err itself when no rule matches.
// Errors that already carry a normalised kind are returned as-is.
func (c *Classifier) Classify(err error) error {
	if err == nil {
		return nil
	}

	var classified *Error
	if stderrors.As(err, &classified) {
		switch classified.Type {
		case ErrorTypeConnectionFailed, ErrorTypeOperationFailed:
			return err
		}
	}

	for _, rule := range c.rules {
		if rule.Match(err) {
			return Wrap(err, rule.Kind, SeverityHigh, strings.ToLower(rule.Kind.String())).
				WithContext("rule", rule.Name)
		}
	}

	return err
}
