package translator

import (
	"sort"
	"strconv"
	"strings"
)

// Reserved keys
const (
	IdentityKey     = "uid"
	ReferenceSuffix = "uid"
	GeoKey          = "geo"
	LatKey          = "lat"
	LonKey          = "lon"
)

// Document is a nested mapping of string keys to scalars, nested documents or sequences
type Document = map[string]any

// Kind tags a classified field
type Kind int

const (
	KindScalar Kind = iota
	KindReference
	KindNested
	KindArrayOfObjects
	KindMultiArray
	KindGeoPair
	KindSkip
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindReference:
		return "reference"
	case KindNested:
		return "nested"
	case KindArrayOfObjects:
		return "array_of_objects"
	case KindMultiArray:
		return "multi_array"
	case KindGeoPair:
		return "geo_pair"
	case KindSkip:
		return "skip"
	default:
		return "unknown"
	}
}

// Element is one object of an array-of-objects field, with its position in the source array
type Element struct {
	Index int
	Doc   Document
}

// Property is a flattened scalar produced from a multi-dimensional array
type Property struct {
	Name  string
	Value any
}

// Field is the typed classification of one document key.
// Only the members relevant to Kind are populated.
type Field struct {
	Key  string
	Kind Kind

	Value any // KindScalar: the (filtered) value; KindReference: the referenced uid

	RefLabel string // KindReference

	Nested    Document // KindNested
	NestedUID any

	Elements []Element // KindArrayOfObjects

	Leaves []Property // KindMultiArray

	Lat, Lon float64 // KindGeoPair

	Reason string // KindSkip
}

// Classify types every non-null field of doc, in key order.
// The document's own identity field is not a field.
func Classify(doc Document) []Field {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]Field, 0, len(keys))
	for _, key := range keys {
		if f, ok := classifyField(key, doc[key]); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func classifyField(key string, value any) (Field, bool) {
	if key == IdentityKey {
		return Field{}, false
	}

	if IsReference(key) {
		if value == nil {
			return Field{}, false
		}
		return Field{Key: key, Kind: KindReference, Value: value, RefLabel: ReferenceLabel(key)}, true
	}

	if value == nil {
		return Field{}, false
	}

	if key == GeoKey {
		if lat, lon, ok := geoPair(value); ok {
			return Field{Key: key, Kind: KindGeoPair, Lat: lat, Lon: lon}, true
		}
	}

	if nested, ok := asDocument(value); ok {
		uid, present := nested[IdentityKey]
		if !present || uid == nil {
			return Field{Key: key, Kind: KindSkip, Reason: "nested document has no uid"}, true
		}
		return Field{Key: key, Kind: KindNested, Nested: nested, NestedUID: uid}, true
	}

	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return Field{Key: key, Kind: KindScalar, Value: filterFalsy(value)}, true
	}

	if _, isDoc := asDocument(list[0]); isDoc {
		f := Field{Key: key, Kind: KindArrayOfObjects}
		for i, item := range list {
			if doc, ok := asDocument(item); ok && len(doc) > 0 {
				f.Elements = append(f.Elements, Element{Index: i, Doc: doc})
			}
		}
		return f, true
	}

	if _, isList := list[0].([]any); isList {
		f := Field{Key: key, Kind: KindMultiArray}
		for i, leaf := range flatten(list) {
			if leaf == nil {
				continue
			}
			f.Leaves = append(f.Leaves, Property{Name: key + strconv.Itoa(i), Value: leaf})
		}
		return f, true
	}

	return Field{Key: key, Kind: KindScalar, Value: filterFalsy(list)}, true
}

// IsReference reports whether key names a pointer to another node
func IsReference(key string) bool {
	return key != IdentityKey && strings.HasSuffix(key, ReferenceSuffix)
}

// ReferenceLabel strips the reference suffix: "childuid" -> "child"
func ReferenceLabel(key string) string {
	return strings.TrimSuffix(key, ReferenceSuffix)
}

func geoPair(value any) (float64, float64, bool) {
	list, ok := value.([]any)
	if !ok || len(list) != 2 {
		return 0, 0, false
	}
	lat, latOK := list[0].(float64)
	lon, lonOK := list[1].(float64)
	if !latOK || !lonOK {
		return 0, 0, false
	}
	return lat, lon, true
}

func asDocument(value any) (Document, bool) {
	doc, ok := value.(map[string]any)
	return doc, ok
}

func flatten(list []any) []any {
	var out []any
	for _, item := range list {
		if inner, ok := item.([]any); ok {
			out = append(out, flatten(inner)...)
			continue
		}
		out = append(out, item)
	}
	return out
}

// filterFalsy drops nil, false, zero, empty-string and empty-container elements from a sequence.
// Non-sequences are returned unchanged.
func filterFalsy(value any) any {
	list, ok := value.([]any)
	if !ok {
		return value
	}
	out := make([]any, 0, len(list))
	for _, item := range list {
		if !isFalsy(item) {
			out = append(out, item)
		}
	}
	return out
}

func isFalsy(v any) bool {
	switch val := v.(type) {
	case nil:
		return true
	case bool:
		return !val
	case string:
		return val == ""
	case int64:
		return val == 0
	case int:
		return val == 0
	case float64:
		return val == 0
	case []any:
		return len(val) == 0
	case map[string]any:
		return len(val) == 0
	default:
		return false
	}
}
