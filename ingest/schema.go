package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// structureSchemaJSON constrains phase-1's raw LLM output before the
// semantic checks (dense 1..N indices, non-empty titles/texts) run.
const structureSchemaJSON = `{
  "type": "object",
  "required": ["chapters"],
  "properties": {
    "chapters": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["chapter_index", "chapter_title", "chapter_text"],
        "properties": {
          "chapter_index": {"type": "integer", "minimum": 1},
          "chapter_title": {"type": "string", "minLength": 1},
          "chapter_text": {"type": "string", "minLength": 1}
        },
        "additionalProperties": false
      }
    }
  },
  "additionalProperties": false
}`

// doctrineSchemaJSON constrains phase-2's raw LLM output before the
// semantic checks (domain enum membership, cross-reference resolution,
// non-empty list entries) run.
const doctrineSchemaJSON = `{
  "type": "object",
  "required": ["domains", "principles", "rules", "claims", "warnings", "cross_references"],
  "properties": {
    "domains": {"type": "array", "minItems": 1, "maxItems": 3, "items": {"type": "string"}},
    "principles": {"type": "array", "items": {"type": "string"}},
    "rules": {"type": "array", "items": {"type": "string"}},
    "claims": {"type": "array", "items": {"type": "string"}},
    "warnings": {"type": "array", "items": {"type": "string"}},
    "cross_references": {"type": "array", "items": {"type": "integer"}}
  },
  "additionalProperties": false
}`

var (
	structureSchema = mustCompileSchema("structure.json", structureSchemaJSON)
	doctrineSchema  = mustCompileSchema("doctrine.json", doctrineSchemaJSON)
)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader([]byte(src))); err != nil {
		panic(fmt.Sprintf("ingest: compiling %s: %v", name, err))
	}
	s, err := c.Compile(name)
	if err != nil {
		panic(fmt.Sprintf("ingest: compiling %s: %v", name, err))
	}
	return s
}

// decodeAndValidate decodes raw JSON and checks it against schema before
// any field is trusted — shape errors are caught here, before the
// caller's own semantic validation runs.
func decodeAndValidate(schema *jsonschema.Schema, raw []byte) (map[string]interface{}, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("ingest: decoding LLM output: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("ingest: LLM output failed schema validation: %w", err)
	}
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("ingest: LLM output is not a JSON object")
	}
	return m, nil
}
