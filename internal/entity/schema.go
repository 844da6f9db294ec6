package entity

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// SystemFields are set by the pipeline and are not editable through patches.
var SystemFields = map[string]struct{}{
	"filename":        {},
	"content_preview": {},
	"full_text":       {},
	"date_extracted":  {},
}

// BuildPatchJSONSchema returns a JSON-Schema (draft 2020-12 subset) as a
// generic map describing the editable fields of a DocumentRecord. It is used
// to validate field patches and to drive dynamic form generation.
func BuildPatchJSONSchema() map[string]any {
	props := map[string]any{
		"invoice_number":    map[string]any{"type": "string"},
		"customer_name":     map[string]any{"type": "string"},
		"customer_email":    map[string]any{"type": "string"},
		"order_date":        map[string]any{"type": "string"},
		"due_date":          map[string]any{"type": "string"},
		"total_amount":      map[string]any{"type": "number"},
		"tax_amount":        map[string]any{"type": "number"},
		"currency":          map[string]any{"type": "string", "minLength": 3, "maxLength": 3},
		"items_description": map[string]any{"type": "string"},
		"quantity":          map[string]any{"type": "integer", "minimum": 0},
		"unit_price":        map[string]any{"type": "number"},
		"billing_address":   map[string]any{"type": "string"},
		"shipping_address":  map[string]any{"type": "string"},
		"vendor_name":       map[string]any{"type": "string"},
		"payment_terms":     map[string]any{"type": "string"},
		"notes":             map[string]any{"type": "string"},
	}
	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties":           props,
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}

// ValidatePatch checks a field patch against the editable-field schema.
func ValidatePatch(patch map[string]any) error {
	b, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("marshal patch: %w", err)
	}
	return ValidateJSONAgainstSchema(BuildPatchJSONSchema(), b)
}
