package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

// ErrSerialization marks a payload that cannot be encoded or decoded.
var ErrSerialization = errors.New("serialization error")

// entryFields is the wire shape of the named Entry fields, in output order.
type entryFields struct {
	Category    string  `json:"category"`
	Subcategory string  `json:"subcategory,omitempty"`
	Value       string  `json:"value,omitempty"`
	Score       float64 `json:"score,omitempty"`
	Offset      int     `json:"offset,omitempty"`
	Length      int     `json:"length,omitempty"`
}

var entryKeys = []string{"category", "subcategory", "value", "score", "offset", "length"}

// recordFields is the wire shape of the named Record fields.
type recordFields struct {
	Entries []Entry `json:"entries"`
}

var recordKeys = []string{"entries"}

// Encode serializes r into its payload form.
//
// The output is compact JSON without HTML escaping, with named fields first
// and extra fields sorted by key, so equal records encode to equal bytes.
// SourceFingerprint is not part of the output.
func Encode(r *Record) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("encode record: %w: nil record", ErrSerialization)
	}
	data, err := marshalNoEscape(r)
	if err != nil {
		return nil, fmt.Errorf("encode record: %w: %w", ErrSerialization, err)
	}
	return data, nil
}

// Decode parses a payload produced by Encode (or any compatible writer).
func Decode(data []byte) (*Record, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("decode record: %w: empty payload", ErrSerialization)
	}

	var r Record
	if err := json.Unmarshal(trimmed, &r); err != nil {
		return nil, fmt.Errorf("decode record: %w: %w", ErrSerialization, err)
	}
	return &r, nil
}

// MarshalJSON implements json.Marshaler.
func (r Record) MarshalJSON() ([]byte, error) {
	entries := r.Entries
	if entries == nil {
		entries = []Entry{}
	}
	base, err := marshalNoEscape(recordFields{Entries: entries})
	if err != nil {
		return nil, err
	}
	return appendExtra(base, r.Extra, recordKeys)
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields recordFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := collectExtra(data, recordKeys)
	if err != nil {
		return err
	}
	r.Entries = fields.Entries
	r.Extra = extra
	return nil
}

// MarshalJSON implements json.Marshaler.
func (e Entry) MarshalJSON() ([]byte, error) {
	base, err := marshalNoEscape(entryFields{
		Category:    e.Category,
		Subcategory: e.Subcategory,
		Value:       e.Value,
		Score:       e.Score,
		Offset:      e.Offset,
		Length:      e.Length,
	})
	if err != nil {
		return nil, err
	}
	return appendExtra(base, e.Extra, entryKeys)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var fields entryFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	extra, err := collectExtra(data, entryKeys)
	if err != nil {
		return err
	}
	*e = Entry{
		Category:    fields.Category,
		Subcategory: fields.Subcategory,
		Value:       fields.Value,
		Score:       fields.Score,
		Offset:      fields.Offset,
		Length:      fields.Length,
		Extra:       extra,
	}
	return nil
}

// appendExtra splices extra members into the JSON object base.
// base always holds at least one member.
func appendExtra(base []byte, extra map[string]json.RawMessage, known []string) ([]byte, error) {
	if len(extra) == 0 {
		return base, nil
	}

	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !slices.Contains(known, k) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)

	var buf bytes.Buffer
	buf.Write(base[:len(base)-1])
	for _, k := range keys {
		keyJSON, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		var val bytes.Buffer
		if err := json.Compact(&val, extra[k]); err != nil {
			return nil, fmt.Errorf("extra field %q: %w", k, err)
		}
		buf.WriteByte(',')
		buf.Write(keyJSON)
		buf.WriteByte(':')
		buf.Write(val.Bytes())
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// collectExtra returns the members of the JSON object data not listed in known.
func collectExtra(data []byte, known []string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalNoEscape marshals v with HTML escaping disabled, so entity text
// like "AT&T <Legal>" is stored as written.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	// json.Encoder adds a trailing newline, remove it
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
