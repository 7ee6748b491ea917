package changestream

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rohankatakam/docgraph/internal/translator"
)

// Reader decodes a stream of JSON change records, one per line.
// Numbers keep their integer or float form through json.Number.
type Reader struct {
	dec   *json.Decoder
	count int
}

// NewReader wraps r
func NewReader(r io.Reader) *Reader {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	return &Reader{dec: dec}
}

// Next returns the next record, or io.EOF once the stream is exhausted
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if err == io.EOF {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("decode change record %d: %w", r.count+1, err)
	}
	r.count++

	if rec.Doc != nil {
		rec.Doc = translator.Normalize(rec.Doc)
	}
	if rec.Delta != nil {
		rec.Delta = translator.Normalize(rec.Delta)
	}
	if rec.ID != nil {
		rec.ID = translator.NormalizeValue(rec.ID)
	}
	return rec, nil
}

// ReadAll drains the stream
func (r *Reader) ReadAll() ([]Record, error) {
	var out []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
}
