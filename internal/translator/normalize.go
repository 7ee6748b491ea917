package translator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// Normalize converts a decoded document into the value types the graph driver accepts:
// integers become int64, floats float64, byte slices base64 strings, UUIDs and Stringers strings,
// and typed slices and maps []any and Document, recursively.
func Normalize(doc map[string]any) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue normalises a single value; see Normalize
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case string, bool, float64, int64, time.Time:
		return val
	case int:
		return int64(val)
	case int8:
		return int64(val)
	case int16:
		return int64(val)
	case int32:
		return int64(val)
	case uint8:
		return int64(val)
	case uint16:
		return int64(val)
	case uint32:
		return int64(val)
	case uint:
		return normalizeUint(uint64(val))
	case uint64:
		return normalizeUint(val)
	case float32:
		return float64(val)
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case uuid.UUID:
		return val.String()
	case []byte:
		return base64.StdEncoding.EncodeToString(val)
	case map[string]any:
		return Normalize(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = NormalizeValue(item)
		}
		return out
	case fmt.Stringer:
		return val.String()
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer:
		if rv.IsNil() {
			return nil
		}
		return NormalizeValue(rv.Elem().Interface())
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = NormalizeValue(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		out := make(Document, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			out[fmt.Sprint(iter.Key().Interface())] = NormalizeValue(iter.Value().Interface())
		}
		return out
	case reflect.String:
		return rv.String()
	default:
		return fmt.Sprintf("%v", v)
	}
}

func normalizeUint(u uint64) any {
	if u > math.MaxInt64 {
		return float64(u)
	}
	return int64(u)
}
