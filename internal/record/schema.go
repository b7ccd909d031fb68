package record

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed schema.cue
var schemaCUE string

// ErrSchema marks a record that does not satisfy the #Record definition.
var ErrSchema = errors.New("record does not match schema")

// recordDef is the compiled #Record definition. Its CUE context is shared,
// so checks against it are serialized by schemaMu.
var (
	recordDef = sync.OnceValues(func() (cue.Value, error) {
		ctx := cuecontext.New()
		schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
		if err := schema.Err(); err != nil {
			return cue.Value{}, fmt.Errorf("compile record schema: %w", err)
		}
		return schema.LookupPath(cue.ParsePath("#Record")), nil
	})
	schemaMu sync.Mutex
)

// CheckSchema validates a raw JSON record against the embedded CUE schema.
//
// It is meant for records arriving from outside the process (files, stdin)
// before they are decoded and stored. Decode alone accepts any structurally
// valid payload; CheckSchema additionally enforces non-empty categories and
// score/span ranges.
func CheckSchema(raw []byte) error {
	def, err := recordDef()
	if err != nil {
		return err
	}

	schemaMu.Lock()
	defer schemaMu.Unlock()

	data := def.Context().CompileBytes(raw, cue.Filename("record.json"))
	if err := data.Err(); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, cueerrors.Details(err, nil))
	}

	if err := def.Unify(data).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%w: %s", ErrSchema, cueerrors.Details(err, nil))
	}
	return nil
}
