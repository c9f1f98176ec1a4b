// Package jsonschema validates JSON payloads against JSON Schema documents.
package jsonschema

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// compiled caches compiled schemas keyed by schema text, so hot paths that
// validate many payloads against the same schema compile it once.
var compiled sync.Map // string -> *jsonschema.Schema

func compile(schemaStr string) (*jsonschema.Schema, error) {
	if s, ok := compiled.Load(schemaStr); ok {
		return s.(*jsonschema.Schema), nil
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled.Store(schemaStr, schema)
	return schema, nil
}

// Validate validates a JSON document against a JSON Schema. It returns
// false with a nil error when the document is well-formed JSON that does
// not satisfy the schema, and an error only for malformed schema or JSON.
func Validate(doc []byte, schemaStr string) (bool, error) {
	schema, err := compile(schemaStr)
	if err != nil {
		return false, err
	}

	var v interface{}
	if err := json.Unmarshal(doc, &v); err != nil {
		return false, fmt.Errorf("invalid JSON: %w", err)
	}

	if err := schema.Validate(v); err != nil {
		return false, nil
	}
	return true, nil
}
