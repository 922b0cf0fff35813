package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// positionSchemaJSON is the structural contract an LLM's JSON output must
// satisfy before any semantic validation runs, per the pre-validation
// gate decision: schema first, semantics second.
const positionSchemaJSON = `{
  "type": "object",
  "required": ["stance", "justification", "doctrine_ids", "violations", "constraints", "confidence"],
  "properties": {
    "stance": {"type": "string", "enum": ["ADVANCE", "DELAY", "AVOID", "CONDITIONAL", "NEEDS_DATA", "ABSTAIN", "STOP"]},
    "justification": {"type": "string", "minLength": 1},
    "doctrine_ids": {"type": "array", "items": {"type": "string"}},
    "violations": {"type": "array", "items": {"type": "string"}},
    "constraints": {"type": "array", "items": {"type": "string"}},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "additionalProperties": false
}`

var positionSchema = mustCompileSchema(positionSchemaJSON)

func mustCompileSchema(src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("position.json", bytes.NewReader([]byte(src))); err != nil {
		panic(fmt.Sprintf("synth: compiling position schema: %v", err))
	}
	s, err := c.Compile("position.json")
	if err != nil {
		panic(fmt.Sprintf("synth: compiling position schema: %v", err))
	}
	return s
}

// validateSchema decodes raw into a generic value and checks it against
// positionSchema before any field is trusted semantically.
func validateSchema(_ context.Context, raw []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("synth: decoding LLM output: %w", err)
	}
	if err := positionSchema.Validate(v); err != nil {
		return nil, fmt.Errorf("synth: LLM output failed schema validation: %w", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("synth: LLM output is not a JSON object")
	}
	return m, nil
}
