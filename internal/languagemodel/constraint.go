package languagemodel

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const constraintURL = "mem://response-constraint.json"

// constraint is a compiled response schema.
type constraint struct {
	raw    []byte
	schema *jsonschema.Schema
}

// compileConstraint parses raw as a JSON Schema. Empty input means no constraint.
func compileConstraint(raw json.RawMessage) (*constraint, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(constraintURL, bytes.NewReader(raw)); err != nil {
		return nil, err
	}
	sch, err := c.Compile(constraintURL)
	if err != nil {
		return nil, err
	}
	return &constraint{raw: append([]byte(nil), raw...), schema: sch}, nil
}

// check reports whether text is JSON satisfying the schema.
func (c *constraint) check(text string) error {
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return fmt.Errorf("completion is not JSON: %w", err)
	}
	return c.schema.Validate(v)
}

// instruction is the text shown to the model for this constraint.
func (c *constraint) instruction() string {
	return "Respond only with JSON that satisfies this JSON Schema:\n" + string(c.raw)
}
