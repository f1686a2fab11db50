package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// CapabilitiesValidator validates agent capabilities against the schema.
type CapabilitiesValidator struct {
	schema *gojsonschema.Schema
}

// NewCapabilitiesValidator compiles the capabilities schema, preferring
// docs/capabilities-schema.json and falling back to the embedded copy.
func NewCapabilitiesValidator() (*CapabilitiesValidator, error) {
	schemaData, err := os.ReadFile("docs/capabilities-schema.json")
	if err != nil {
		schemaData = []byte(embeddedSchema)
	}

	schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaData))
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &CapabilitiesValidator{schema: schema}, nil
}

// Validate checks one capabilities value against the schema.
func (cv *CapabilitiesValidator) Validate(capabilities interface{}) error {
	capabilitiesJSON, err := json.Marshal(capabilities)
	if err != nil {
		return fmt.Errorf("failed to marshal capabilities: %w", err)
	}

	result, err := cv.schema.Validate(gojsonschema.NewBytesLoader(capabilitiesJSON))
	if err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	if !result.Valid() {
		var errs []string
		for _, e := range result.Errors() {
			errs = append(errs, fmt.Sprintf("- %s", e))
		}
		return fmt.Errorf("capabilities validation failed:\n%s", strings.Join(errs, "\n"))
	}
	return nil
}

const embeddedSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["type", "skills", "version"],
  "properties": {
    "type": {
      "type": "string",
      "enum": ["nutrition", "welfare", "literature", "quiz", "trend"]
    },
    "skills": {
      "type": "array",
      "items": {"type": "string"},
      "minItems": 1
    },
    "version": {
      "type": "string",
      "pattern": "^[0-9]+\\.[0-9]+(\\.[0-9]+)?$"
    },
    "max_results": {
      "type": "object",
      "additionalProperties": {"type": "integer", "minimum": 1}
    }
  }
}`
