package content

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Entry is one key/value pair of a batch update.
type Entry struct {
	Key   string
	Value json.RawMessage
}

// Batch is an ordered list of entries as they appeared in the request.
type Batch []Entry

// ErrNotObject is returned by DecodeBatch when the document is not a JSON
// object.
var ErrNotObject = errors.New("batch body must be a JSON object")

// DecodeBatch reads a single JSON object and keeps its members in document
// order. A key repeated in the object keeps its first position and takes
// the last value, matching how a JSON object is usually read into a map.
func DecodeBatch(r io.Reader) (Batch, error) {
	dec := json.NewDecoder(r)
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotObject, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	var batch Batch
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("read key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("read key: unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("read value for %q: %w", key, err)
		}
		if i, dup := index[key]; dup {
			batch[i].Value = raw
			continue
		}
		index[key] = len(batch)
		batch = append(batch, Entry{Key: key, Value: raw})
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("read object end: %w", err)
	}
	// Trailing data after the object is rejected.
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrNotObject)
	}
	return batch, nil
}

// Keys lists the batch keys in order.
func (b Batch) Keys() []string {
	out := make([]string, len(b))
	for i, e := range b {
		out[i] = e.Key
	}
	return out
}

