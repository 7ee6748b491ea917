package graph

import (
	"fmt"
	"strings"
	"unicode"
)

// Property and parameter names shared by every statement shape
const (
	UIDKey       = "uid"
	TimestampKey = "_ts"
)

// CypherBuilder accumulates SET/REMOVE clauses against one node, binding every value as a parameter.
// Labels and property names cannot be bound, so they are quoted with QuoteIdentifier.
type CypherBuilder struct {
	params  map[string]any
	clauses []string
	counter int
}

// NewCypherBuilder creates a query builder
func NewCypherBuilder() *CypherBuilder {
	return &CypherBuilder{
		params: make(map[string]any),
	}
}

// AddParam adds a parameter and returns its placeholder
func (b *CypherBuilder) AddParam(value any) string {
	paramName := fmt.Sprintf("p%d", b.counter)
	b.counter++
	b.params[paramName] = value
	return "$" + paramName
}

// Params returns all parameters for the query
func (b *CypherBuilder) Params() map[string]any {
	return b.params
}

// Set adds `SET n.key = $pN`
func (b *CypherBuilder) Set(key string, value any) error {
	quoted, err := QuoteIdentifier(key)
	if err != nil {
		return fmt.Errorf("invalid property key: %w", err)
	}
	b.clauses = append(b.clauses, fmt.Sprintf("SET n.%s = %s", quoted, b.AddParam(value)))
	return nil
}

// Increment adds `SET n.key = coalesce(n.key, 0) + $pN`
func (b *CypherBuilder) Increment(key string, delta any) error {
	quoted, err := QuoteIdentifier(key)
	if err != nil {
		return fmt.Errorf("invalid property key: %w", err)
	}
	b.clauses = append(b.clauses, fmt.Sprintf("SET n.%s = coalesce(n.%s, 0) + %s", quoted, quoted, b.AddParam(delta)))
	return nil
}

// Remove adds `REMOVE n.key`
func (b *CypherBuilder) Remove(key string) error {
	quoted, err := QuoteIdentifier(key)
	if err != nil {
		return fmt.Errorf("invalid property key: %w", err)
	}
	b.clauses = append(b.clauses, "REMOVE n."+quoted)
	return nil
}

// BuildMatch prefixes the accumulated clauses with a match on label+uid.
// Returns false when no clause was added.
func (b *CypherBuilder) BuildMatch(label string, uid any) (Statement, bool, error) {
	if len(b.clauses) == 0 {
		return Statement{}, false, nil
	}
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, false, fmt.Errorf("invalid node label: %w", err)
	}
	b.params[UIDKey] = uid
	query := fmt.Sprintf("MATCH (n:%s {uid: $uid}) %s", quoted, strings.Join(b.clauses, " "))
	return Statement{Query: query, Params: b.params}, true, nil
}

// QuoteIdentifier backtick-quotes a label, relationship type or property name.
// Empty names and names containing control characters are rejected.
// Reference: https://neo4j.com/docs/cypher-manual/current/syntax/naming/
func QuoteIdentifier(s string) (string, error) {
	if s == "" {
		return "", fmt.Errorf("empty identifier")
	}
	for _, r := range s {
		if unicode.IsControl(r) || r == unicode.ReplacementChar {
			return "", fmt.Errorf("identifier %q contains a control character", s)
		}
	}
	return "`" + strings.ReplaceAll(s, "`", "``") + "`", nil
}

// MergeNode creates or matches a node by label+uid and returns its internal id as column "id"
func MergeNode(label string, uid any) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid node label: %w", err)
	}
	return Statement{
		Query:  fmt.Sprintf("MERGE (v:%s {uid: $uid}) RETURN id(v) AS id", quoted),
		Params: map[string]any{UIDKey: uid},
	}, nil
}

// MergeReference creates or matches a node that another document points at by uid
func MergeReference(label string, uid any) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid reference label: %w", err)
	}
	return Statement{
		Query:  fmt.Sprintf("MERGE (d:%s {uid: $parameters.uid})", quoted),
		Params: map[string]any{"parameters": map[string]any{UIDKey: uid}},
	}, nil
}

// SetProperties merges the property map into the node matched by label+uid
func SetProperties(label string, uid any, properties map[string]any) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid node label: %w", err)
	}
	return Statement{
		Query:  fmt.Sprintf("MATCH (n:%s {uid: $uid}) SET n += $parameters", quoted),
		Params: map[string]any{UIDKey: uid, "parameters": properties},
	}, nil
}

// ReplaceProperties wipes every property except uid, then applies the property map.
// The id stamped by the spatial indexer survives the replacement.
func ReplaceProperties(label string, uid any, properties map[string]any) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid node label: %w", err)
	}
	props := make(map[string]any, len(properties)+1)
	for k, v := range properties {
		props[k] = v
	}
	props[UIDKey] = uid
	return Statement{
		Query: fmt.Sprintf(
			"MATCH (n:%s {uid: $uid}) WITH n, n.id AS stamp SET n = $parameters SET n.id = coalesce(stamp, n.id)",
			quoted),
		Params: map[string]any{UIDKey: uid, "parameters": props},
	}, nil
}

// RelationshipType is the edge type between two labels: <parent>_<child>
func RelationshipType(parentLabel, childLabel string) string {
	return parentLabel + "_" + childLabel
}

// MergeRelationship links parent (by uid) to child (by uid) with a <parent>_<child> edge
func MergeRelationship(parentLabel, childLabel string, parentUID, childUID any) (Statement, error) {
	from, err := QuoteIdentifier(parentLabel)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid parent label: %w", err)
	}
	to, err := QuoteIdentifier(childLabel)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid child label: %w", err)
	}
	relType, err := QuoteIdentifier(RelationshipType(parentLabel, childLabel))
	if err != nil {
		return Statement{}, fmt.Errorf("invalid relationship type: %w", err)
	}
	return Statement{
		Query: fmt.Sprintf(
			"MATCH (a:%s), (b:%s) WHERE a.uid = $doc_id AND b.uid = $explicit_id MERGE (a)-[r:%s]->(b)",
			from, to, relType),
		Params: map[string]any{"doc_id": parentUID, "explicit_id": childUID},
	}, nil
}

// UniqueConstraint makes uid unique per label. Idempotent.
func UniqueConstraint(label string) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid constraint label: %w", err)
	}
	return Statement{
		Query: fmt.Sprintf("CREATE CONSTRAINT IF NOT EXISTS FOR (d:%s) REQUIRE d.uid IS UNIQUE", quoted),
	}, nil
}

// DeleteNode removes a node and any incident relationships; isolated nodes delete too
func DeleteNode(label string, uid any) (Statement, error) {
	quoted, err := QuoteIdentifier(label)
	if err != nil {
		return Statement{}, fmt.Errorf("invalid node label: %w", err)
	}
	return Statement{
		Query:  fmt.Sprintf("MATCH (d:%s) WHERE d.uid = $doc_id OPTIONAL MATCH (d)-[r]-() DELETE d, r", quoted),
		Params: map[string]any{"doc_id": uid},
	}, nil
}

// TimestampRange selects nodes whose _ts lies within [start, end]
func TimestampRange(start, end int64) Statement {
	return Statement{
		Query:  "MATCH (d) WHERE d._ts >= $start_ts AND d._ts <= $end_ts RETURN d",
		Params: map[string]any{"start_ts": start, "end_ts": end},
	}
}

// LatestByTimestamp selects the most recently written node
func LatestByTimestamp() Statement {
	return Statement{
		Query: "MATCH (d) WHERE d._ts IS NOT NULL RETURN d ORDER BY d._ts DESC LIMIT 1",
	}
}

// StampID copies the internal node id onto the node as a visible property
func StampID(nodeID int64) Statement {
	return Statement{
		Query:  "MATCH (n) WHERE id(n) = $nodeid SET n.id = $nodeid",
		Params: map[string]any{"nodeid": nodeID},
	}
}
