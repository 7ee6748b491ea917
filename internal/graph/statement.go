package graph

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Statement is a Cypher query plus its named parameters.
// Statements are the unit of transaction batching.
type Statement struct {
	Query  string
	Params map[string]any
}

// String renders the statement with parameters inlined, for logs only.
// String identities render as quoted literals, numeric identities as bare literals.
func (s Statement) String() string {
	if len(s.Params) == 0 {
		return s.Query
	}

	keys := make([]string, 0, len(s.Params))
	for k := range s.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+RenderLiteral(s.Params[k]))
	}
	return s.Query + " {" + strings.Join(parts, ", ") + "}"
}

// RenderLiteral formats a value the way it would appear as a Cypher literal
func RenderLiteral(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return strconv.Quote(val)
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+RenderLiteral(val[k]))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, RenderLiteral(item))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("%v", val)
	}
}

// Record is one result row keyed by column name
type Record map[string]any

// CommitResult holds the rows returned by each statement of a committed transaction, in append order
type CommitResult struct {
	Results [][]Record
}

// NodeIDs collects the internal node identifiers returned in "id" columns, in statement order
func (c *CommitResult) NodeIDs() []int64 {
	if c == nil {
		return nil
	}
	var ids []int64
	for _, rows := range c.Results {
		for _, row := range rows {
			switch id := row["id"].(type) {
			case int64:
				ids = append(ids, id)
			case int:
				ids = append(ids, int64(id))
			}
		}
	}
	return ids
}

// Node is a graph node returned by read statements
type Node struct {
	ID        int64
	ElementID string
	Labels    []string
	Props     map[string]any
}

// NodeFromValue converts a driver node value into a Node
func NodeFromValue(v any) (Node, bool) {
	switch n := v.(type) {
	case neo4j.Node:
		return Node{ID: n.Id, ElementID: n.ElementId, Labels: n.Labels, Props: n.Props}, true
	case *neo4j.Node:
		if n == nil {
			return Node{}, false
		}
		return Node{ID: n.Id, ElementID: n.ElementId, Labels: n.Labels, Props: n.Props}, true
	case Node:
		return n, true
	default:
		return Node{}, false
	}
}
