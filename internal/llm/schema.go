package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/compliancedesk/filings/constants"
)

// BuildExtractionSchema returns the JSON schema the model response must
// satisfy: a files array of per-file record groups, record_type constrained
// to the closed vocabulary.
func BuildExtractionSchema() map[string]any {
	types := make([]any, 0, len(constants.RecordTypes))
	for _, rt := range constants.RecordTypes {
		types = append(types, string(rt))
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []any{"files"},
		"properties": map[string]any{
			"files": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []any{"file_name", "records"},
					"properties": map[string]any{
						"file_name": map[string]any{"type": "string"},
						"records": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type":                 "object",
								"additionalProperties": false,
								"required":             []any{"record_type", "data"},
								"properties": map[string]any{
									"record_type": map[string]any{
										"type": "string",
										"enum": types,
									},
									"data": map[string]any{"type": "object"},
								},
							},
						},
					},
				},
			},
		},
	}
}

// ValidateJSONAgainstSchema checks raw JSON bytes against a schema given as
// a map. Returns nil when the document validates.
func ValidateJSONAgainstSchema(data []byte, schemaMap map[string]any) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("unmarshal document: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
