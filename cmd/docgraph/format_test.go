package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/docgraph/internal/config"
	"github.com/rohankatakam/docgraph/internal/dlq"
	"github.com/rohankatakam/docgraph/internal/graph"
)

var sample = []graph.Node{
	{ID: 3, Labels: []string{"people"}, Props: map[string]any{"uid": "a1", "_ts": int64(9)}},
}

func TestWriteNodes_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNodes(&buf, sample, "json"))

	var got []nodeView
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, int64(3), got[0].ID)
	assert.Equal(t, "a1", got[0].Properties["uid"])
}

func TestWriteNodes_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNodes(&buf, sample, "yaml"))

	var got []nodeView
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, []string{"people"}, got[0].Labels)
	assert.Equal(t, 9, got[0].Properties["_ts"])
}

func TestWriteNodes_EmptyAndUnknown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeNodes(&buf, nil, "json"))
	assert.Equal(t, "[]\n", buf.String())

	assert.Error(t, writeNodes(&buf, sample, "xml"))
}

func TestNodes(t *testing.T) {
	n := graph.Node{ID: 1}
	assert.Equal(t, []graph.Node{n}, nodes(&n))
}

func TestWriteDeadLetters(t *testing.T) {
	entries := []dlq.Entry{
		{ID: "e1", Namespace: "people", Operation: "upsert", Error: "commit failed",
			Statements: `["MERGE (v:` + "`people`" + ` {uid: $uid}) {uid=\"a\"}"]`, CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)},
		{ID: "e2", Namespace: "people", Operation: "bulk_upsert", Error: "commit failed", Statements: "{"},
	}

	var table bytes.Buffer
	require.NoError(t, writeDeadLetters(&table, 7, entries, false))
	out := table.String()
	assert.True(t, strings.HasPrefix(out, "7 dead letters, showing 2\n"))
	assert.Contains(t, out, "2024-05-01 10:00:00")
	assert.NotContains(t, out, "MERGE")

	var detailed bytes.Buffer
	require.NoError(t, writeDeadLetters(&detailed, 2, entries, true))
	assert.Contains(t, detailed.String(), "e1:\n  MERGE (v:`people` {uid: $uid}) {uid=\"a\"}\n")
	assert.Contains(t, detailed.String(), "e2:\n  (unreadable:")

	var empty bytes.Buffer
	require.NoError(t, writeDeadLetters(&empty, 0, nil, true))
	assert.Equal(t, "0 dead letters, showing 0\n", empty.String())
}

func TestWriteCheckpoints(t *testing.T) {
	var buf bytes.Buffer
	writeCheckpoints(&buf, map[string]int64{"shop.people": 12, "crm.accounts": 3})
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "crm.accounts")
	assert.Contains(t, lines[1], "shop.people")

	buf.Reset()
	writeCheckpoints(&buf, nil)
	assert.Equal(t, "  (none)\n", buf.String())
}

func TestWriteConfig_MasksSecrets(t *testing.T) {
	c := config.Default()
	c.Neo4j.Password = "correct-horse"
	c.Spatial.Auth = "neo4j:correct-horse"

	var buf bytes.Buffer
	require.NoError(t, writeConfig(&buf, c))
	assert.NotContains(t, buf.String(), "correct-horse")
	assert.Contains(t, buf.String(), "co...se")
	assert.Contains(t, buf.String(), "uri: bolt://localhost:7687")
	assert.Equal(t, "correct-horse", c.Neo4j.Password)
}
