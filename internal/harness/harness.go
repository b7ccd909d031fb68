package harness

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"

	"github.com/UNCWMixedReality/NounExtractor/internal/fingerprint"
	"github.com/UNCWMixedReality/NounExtractor/internal/record"
	"github.com/UNCWMixedReality/NounExtractor/internal/store"
)

// Run executes scenario against rs and returns the trace and any mismatches.
//
// Every step runs even after a mismatch, so the trace shows the full
// behavior of the store. The returned error is non-nil only when ctx is
// canceled.
func Run(ctx context.Context, rs store.ResultStore, scenario *Scenario) (*Result, error) {
	result := NewResult(scenario.Name)

	for i, st := range scenario.Steps {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		event, got := execute(ctx, rs, st)
		event.Seq = i + 1
		result.Trace = append(result.Trace, event)

		if msg := check(st, event, got); msg != "" {
			result.AddError(fmt.Sprintf("step %d (%s %s): %s", event.Seq, st.Op, event.Key, msg))
		}
	}
	return result, nil
}

// RunEmbedded executes scenario against a fresh SQLite cache created in dir.
func RunEmbedded(ctx context.Context, scenario *Scenario, dir string, logger *slog.Logger) (*Result, error) {
	cfg := store.Config{
		Backend: store.BackendEmbedded,
		Path:    filepath.Join(dir, dbFileName(scenario.Name)),
	}
	s, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario store: %w", err)
	}
	defer s.Close()

	return Run(ctx, s, scenario)
}

func dbFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	return clean + ".db"
}

// execute runs one step and returns its trace event and the record a get
// step read.
func execute(ctx context.Context, rs store.ResultStore, st Step) (TraceEvent, *record.Record) {
	event := TraceEvent{Op: st.Op}
	if st.Op != OpBootstrap {
		event.Key = traceKey(st.Key())
	}

	var (
		got *record.Record
		err error
	)
	switch st.Op {
	case OpExists:
		var ok bool
		ok, err = rs.Exists(ctx, st.Key())
		if err == nil {
			event.Exists = &ok
		}
	case OpGet:
		got, err = rs.Get(ctx, st.Key())
		if err == nil {
			n := got.Len()
			event.Entries = &n
			event.Categories = categories(got)
		}
	case OpPut:
		err = rs.Put(ctx, st.Key(), st.rec, store.InsertOnly)
	case OpMerge:
		err = rs.Put(ctx, st.Key(), st.rec, store.UpsertMerge)
	case OpBootstrap:
		err = rs.Bootstrap(ctx)
	}

	event.Outcome = store.Outcome(err)
	return event, got
}

// traceKey shortens valid fingerprints for readable traces.
func traceKey(fp fingerprint.Fingerprint) string {
	if fingerprint.Validate(fp) != nil {
		return string(fp)
	}
	return fp.Short()
}

func categories(r *record.Record) []string {
	out := make([]string, 0, r.Len())
	for _, e := range r.Entries {
		out = append(out, e.Category)
	}
	return out
}

// check compares an executed step with its expectation and returns a
// mismatch description, or "" when the step behaved as expected.
func check(st Step, event TraceEvent, got *record.Record) string {
	want := st.Expect
	if want == nil {
		want = &Expect{}
	}

	wantOutcome := want.Error
	if wantOutcome == "" {
		wantOutcome = "ok"
	}
	if event.Outcome != wantOutcome {
		return fmt.Sprintf("expected outcome %s, got %s", wantOutcome, event.Outcome)
	}
	if event.Outcome != "ok" {
		return ""
	}

	if want.Exists != nil && *event.Exists != *want.Exists {
		return fmt.Sprintf("expected exists=%t, got %t", *want.Exists, *event.Exists)
	}
	if want.Entries != nil && got.Len() != *want.Entries {
		return fmt.Sprintf("expected %d entries, got %d", *want.Entries, got.Len())
	}
	if want.Categories != nil && !slices.Equal(event.Categories, want.Categories) {
		return fmt.Sprintf("expected categories %v, got %v", want.Categories, event.Categories)
	}
	return ""
}
