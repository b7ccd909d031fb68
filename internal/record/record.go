package record

import (
	"encoding/json"
	"maps"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
)

// Entry is one classification result: a category assigned to a span of text.
type Entry struct {
	Category    string
	Subcategory string
	Value       string
	Score       float64
	Offset      int
	Length      int

	// Extra holds entry fields without a dedicated struct field.
	Extra map[string]json.RawMessage
}

// Record is the classified form of one unit of text.
type Record struct {
	// SourceFingerprint is set by the store on records it returns.
	// It is never encoded into the payload.
	SourceFingerprint fingerprint.Fingerprint

	Entries []Entry

	// Extra holds top-level payload fields other than "entries".
	Extra map[string]json.RawMessage
}

// New returns a record holding entries.
func New(entries ...Entry) *Record {
	return &Record{Entries: entries}
}

// Len returns the number of entries.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Entries)
}

// Clone returns a copy that shares no slices or maps with r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{
		SourceFingerprint: r.SourceFingerprint,
		Extra:             maps.Clone(r.Extra),
	}
	if r.Entries != nil {
		out.Entries = make([]Entry, len(r.Entries))
		for i, e := range r.Entries {
			out.Entries[i] = e.clone()
		}
	}
	return out
}

func (e Entry) clone() Entry {
	e.Extra = maps.Clone(e.Extra)
	return e
}

// Merge combines existing and incoming into a new record.
//
// Entries are concatenated, existing first, and duplicates are kept: repeated
// classification of the same text accumulates evidence. Top-level extra
// fields are unioned with incoming values winning. The result carries no
// SourceFingerprint. Nil operands are treated as empty records; neither
// operand is modified.
func Merge(existing, incoming *Record) *Record {
	merged := &Record{
		Entries: make([]Entry, 0, existing.Len()+incoming.Len()),
	}

	for _, src := range []*Record{existing, incoming} {
		if src == nil {
			continue
		}
		for _, e := range src.Entries {
			merged.Entries = append(merged.Entries, e.clone())
		}
		for k, v := range src.Extra {
			if merged.Extra == nil {
				merged.Extra = make(map[string]json.RawMessage, len(src.Extra))
			}
			merged.Extra[k] = v
		}
	}

	return merged
}
