package api

import (
	"github.com/anthropics/anthropic-sdk-go"
)

// StructuredTool turns a schema into the single tool a structured request
// forces the model to call.
func StructuredTool(s *Schema) anthropic.ToolUnionParam {
	desc := s.Description
	if desc == "" {
		desc = "Return the answer as structured data."
	}
	return anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        s.Name,
			Description: anthropic.String(desc),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: s.Properties,
				Required:   s.Required,
			},
		},
	}
}
