package api

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Schema describes the JSON object a structured completion must return.
type Schema struct {
	// Name doubles as the forced tool name on providers that implement
	// structured output through tool use.
	Name        string
	Description string
	Properties  map[string]any
	Required    []string
}

// SchemaFor reflects a JSON schema from the struct v points to.
func SchemaFor(name, description string, v any) (*Schema, error) {
	r := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		ExpandedStruct:            true,
		DoNotReference:            true,
	}
	reflected := r.Reflect(v)

	data, err := json.Marshal(reflected)
	if err != nil {
		return nil, fmt.Errorf("marshal schema %s: %w", name, err)
	}

	var parsed struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("unmarshal schema %s: %w", name, err)
	}
	if len(parsed.Properties) == 0 {
		return nil, fmt.Errorf("schema %s: no properties", name)
	}

	return &Schema{
		Name:        name,
		Description: description,
		Properties:  parsed.Properties,
		Required:    parsed.Required,
	}, nil
}

// MustSchemaFor is SchemaFor for package-level schemas.
func MustSchemaFor(name, description string, v any) *Schema {
	s, err := SchemaFor(name, description, v)
	if err != nil {
		panic(err)
	}
	return s
}
