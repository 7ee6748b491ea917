package translator

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/docgraph/internal/errors"
	"github.com/rohankatakam/docgraph/internal/graph"
	"github.com/rohankatakam/docgraph/internal/logging"
)

func newTestTranslator() *Translator {
	return New(logging.Discard())
}

func propsOf(t *testing.T, stmt graph.Statement) map[string]any {
	t.Helper()
	props, ok := stmt.Params["parameters"].(map[string]any)
	require.True(t, ok, "statement has no parameters map: %s", stmt.Query)
	return props
}

func TestTranslate_FlatDocument(t *testing.T) {
	doc := Document{"name": "x", "age": int64(30), "active": true}

	out, err := newTestTranslator().Translate(doc, "Person", "a1", nil)
	require.NoError(t, err)

	require.Len(t, out.Nodes, 1)
	assert.Equal(t, "MERGE (v:`Person` {uid: $uid}) RETURN id(v) AS id", out.Nodes[0].Query)
	assert.Empty(t, out.Relationships)
	require.Len(t, out.Properties, 1)

	props := propsOf(t, out.Properties[0])
	assert.Len(t, props, len(doc)+1)
	assert.Equal(t, map[string]any{"uid": "a1", "name": "x", "age": int64(30), "active": true}, props)
	assert.Equal(t, []string{"Person"}, out.Labels)
}

func TestTranslate_EndToEndExample(t *testing.T) {
	doc := Document{"name": "x", "childuid": "b1"}
	metadata := map[string]any{"_ts": int64(1700000000)}

	out, err := newTestTranslator().Translate(doc, "Person", "a1", metadata)
	require.NoError(t, err)

	require.Len(t, out.Nodes, 2)
	assert.Equal(t, "MERGE (d:`child` {uid: $parameters.uid})", out.Nodes[0].Query)
	assert.Equal(t, map[string]any{"uid": "b1"}, out.Nodes[0].Params["parameters"])
	assert.Equal(t, "MERGE (v:`Person` {uid: $uid}) RETURN id(v) AS id", out.Nodes[1].Query)
	assert.Equal(t, "a1", out.Nodes[1].Params["uid"])

	require.Len(t, out.Relationships, 1)
	assert.Contains(t, out.Relationships[0].Query, "[r:`Person_child`]")
	assert.Equal(t, map[string]any{"doc_id": "a1", "explicit_id": "b1"}, out.Relationships[0].Params)

	require.Len(t, out.Properties, 1)
	props := propsOf(t, out.Properties[0])
	assert.Equal(t, map[string]any{"uid": "a1", "name": "x", "_ts": int64(1700000000)}, props)
	assert.NotContains(t, props, "childuid")
	assert.Equal(t, []string{"Person", "child"}, out.Labels)
}

func TestTranslate_ReferenceNeverRecursed(t *testing.T) {
	doc := Document{"owneruid": map[string]any{"uid": "o1", "name": "ignored"}}

	out, err := newTestTranslator().Translate(doc, "Car", "c1", nil)
	require.NoError(t, err)

	require.Len(t, out.Relationships, 1)
	assert.Contains(t, out.Relationships[0].Query, "[r:`Car_owner`]")
	// Only the root node gets a property statement; the map value is not a child document
	assert.Len(t, out.Properties, 1)
	for _, stmt := range out.Nodes {
		assert.NotContains(t, stmt.Query, "`owneruid`")
	}
}

func TestTranslate_NullReferenceDropped(t *testing.T) {
	out, err := newTestTranslator().Translate(Document{"childuid": nil, "gone": nil}, "Person", "a1", nil)
	require.NoError(t, err)

	assert.Len(t, out.Nodes, 1)
	assert.Empty(t, out.Relationships)
	assert.Equal(t, map[string]any{"uid": "a1"}, propsOf(t, out.Properties[0]))
}

func TestTranslate_GeoPair(t *testing.T) {
	tests := []struct {
		name      string
		geo       any
		wantLat   bool
		wantPlain bool
	}{
		{name: "two floats promoted", geo: []any{52.52, 13.405}, wantLat: true},
		{name: "wrong length kept", geo: []any{52.52, 13.405, 34.0}, wantPlain: true},
		{name: "wrong element type kept", geo: []any{"52.52", "13.405"}, wantPlain: true},
		{name: "integers kept", geo: []any{int64(52), int64(13)}, wantPlain: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := newTestTranslator().Translate(Document{"geo": tt.geo}, "Place", "p1", nil)
			require.NoError(t, err)

			props := propsOf(t, out.Properties[0])
			if tt.wantLat {
				assert.NotContains(t, props, "geo")
				assert.Equal(t, 52.52, props["lat"])
				assert.Equal(t, 13.405, props["lon"])
				assert.Len(t, props, 3)
			}
			if tt.wantPlain {
				assert.Contains(t, props, "geo")
				assert.NotContains(t, props, "lat")
				assert.NotContains(t, props, "lon")
			}
		})
	}
}

func TestTranslate_NestedDocument(t *testing.T) {
	doc := Document{
		"name": "x",
		"address": map[string]any{
			"uid":  int64(9),
			"city": "Berlin",
		},
	}

	out, err := newTestTranslator().Translate(doc, "Person", "a1", map[string]any{"_ts": int64(5)})
	require.NoError(t, err)

	// child merge first, then the parent
	require.Len(t, out.Nodes, 2)
	assert.Equal(t, "MERGE (v:`address` {uid: $uid}) RETURN id(v) AS id", out.Nodes[0].Query)
	assert.Equal(t, int64(9), out.Nodes[0].Params["uid"])
	assert.Equal(t, "a1", out.Nodes[1].Params["uid"])

	require.Len(t, out.Relationships, 1)
	assert.Contains(t, out.Relationships[0].Query, "[r:`Person_address`]")
	assert.Equal(t, map[string]any{"doc_id": "a1", "explicit_id": int64(9)}, out.Relationships[0].Params)

	require.Len(t, out.Properties, 2)
	assert.Equal(t, map[string]any{"uid": int64(9), "city": "Berlin", "_ts": int64(5)}, propsOf(t, out.Properties[0]))
	assert.Equal(t, map[string]any{"uid": "a1", "name": "x", "_ts": int64(5)}, propsOf(t, out.Properties[1]))
	assert.Equal(t, []string{"Person", "address"}, out.Labels)
}

func TestTranslate_NestedWithoutIdentitySkipped(t *testing.T) {
	doc := Document{
		"address": map[string]any{"city": "Berlin"},
		"name":    "x",
		"petuid":  "p7",
	}

	out, err := newTestTranslator().Translate(doc, "Person", "a1", nil)
	require.NoError(t, err)

	require.Len(t, out.Skipped, 1)
	assert.True(t, stderrors.Is(out.Skipped[0], errors.ErrTranslationSkip))
	assert.Equal(t, "address", out.Skipped[0].Context["field"])

	// siblings unaffected: the reference and the scalar still translate
	assert.Len(t, out.Nodes, 2)
	assert.Len(t, out.Relationships, 1)
	assert.Len(t, out.Properties, 1)
	assert.Equal(t, map[string]any{"uid": "a1", "name": "x"}, propsOf(t, out.Properties[0]))
	assert.NotContains(t, out.Labels, "address")
}

func TestTranslate_ArrayOfObjects(t *testing.T) {
	doc := Document{
		"items": []any{
			map[string]any{"sku": "A"},
			nil,
			map[string]any{"sku": "B"},
		},
	}

	out, err := newTestTranslator().Translate(doc, "Order", "o1", nil)
	require.NoError(t, err)

	require.Len(t, out.Nodes, 3)
	assert.Equal(t, "MERGE (v:`items0` {uid: $uid}) RETURN id(v) AS id", out.Nodes[0].Query)
	assert.Equal(t, "MERGE (v:`items2` {uid: $uid}) RETURN id(v) AS id", out.Nodes[1].Query)

	require.Len(t, out.Relationships, 2)
	assert.Contains(t, out.Relationships[0].Query, "[r:`Order_items0`]")
	assert.Contains(t, out.Relationships[1].Query, "[r:`Order_items2`]")
	// elements carry the parent's identity
	for _, rel := range out.Relationships {
		assert.Equal(t, map[string]any{"doc_id": "o1", "explicit_id": "o1"}, rel.Params)
	}

	assert.Equal(t, map[string]any{"uid": "o1", "sku": "A"}, propsOf(t, out.Properties[0]))
	assert.Equal(t, []string{"Order", "items0", "items2"}, out.Labels)
}

func TestTranslate_EmptyArrayProducesNoStructure(t *testing.T) {
	out, err := newTestTranslator().Translate(Document{"items": []any{}}, "Order", "o1", nil)
	require.NoError(t, err)

	assert.Len(t, out.Nodes, 1)
	assert.Empty(t, out.Relationships)
}

func TestTranslate_MultiDimensionalArray(t *testing.T) {
	doc := Document{
		"grid": []any{
			[]any{int64(1), int64(2)},
			[]any{[]any{int64(3)}, int64(4)},
		},
	}

	out, err := newTestTranslator().Translate(doc, "Board", "b1", nil)
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"uid":   "b1",
		"grid0": int64(1),
		"grid1": int64(2),
		"grid2": int64(3),
		"grid3": int64(4),
	}, propsOf(t, out.Properties[0]))
}

func TestTranslate_ScalarListDropsFalsy(t *testing.T) {
	doc := Document{"tags": []any{"a", "", nil, "b", false, int64(0), int64(3)}}

	out, err := newTestTranslator().Translate(doc, "Post", "p1", nil)
	require.NoError(t, err)

	assert.Equal(t, []any{"a", "b", int64(3)}, propsOf(t, out.Properties[0])["tags"])
}

func TestTranslate_NumericIdentityKeepsType(t *testing.T) {
	out, err := newTestTranslator().Translate(Document{"n": int64(1)}, "Counter", int64(42), nil)
	require.NoError(t, err)

	assert.Equal(t, int64(42), out.Nodes[0].Params["uid"])
	assert.Equal(t, int64(42), out.Properties[0].Params["uid"])
	assert.Contains(t, out.Nodes[0].String(), "uid=42")
}

func TestTranslate_InvalidLabelRejected(t *testing.T) {
	_, err := newTestTranslator().Translate(Document{}, "bad\nlabel", "a1", nil)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrValidation))
}

func TestClassify_Kinds(t *testing.T) {
	fields := Classify(Document{
		"uid":      "self",
		"a":        "scalar",
		"bref_uid": "r1",
		"c":        map[string]any{"uid": "n1"},
		"d":        []any{map[string]any{"x": int64(1)}},
		"e":        []any{[]any{int64(1)}},
		"geo":      []any{1.5, 2.5},
		"h":        map[string]any{"x": int64(1)},
		"z":        nil,
	})

	kinds := map[string]Kind{}
	for _, f := range fields {
		kinds[f.Key] = f.Kind
	}
	assert.Equal(t, map[string]Kind{
		"a":        KindScalar,
		"bref_uid": KindReference,
		"c":        KindNested,
		"d":        KindArrayOfObjects,
		"e":        KindMultiArray,
		"geo":      KindGeoPair,
		"h":        KindSkip,
	}, kinds)
	assert.Equal(t, "bref_", fields[1].RefLabel)
}
