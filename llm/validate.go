package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
)

// validate is the shared validator instance used across the package.
var validate = validator.New()

// Validate checks s against its `validate` struct tags.
func Validate(s any) error {
	return validate.Struct(s)
}

var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: false,
}

// GenerateJSONSchema reflects a JSON schema from v's type. Struct tags
// `jsonschema:"..."` refine it (descriptions, minimum, maximum).
func GenerateJSONSchema(v any) *jsonschema.Schema {
	return reflector.Reflect(v)
}

// CleanJSONResponse strips Markdown code fences and any prose around the
// outermost JSON object.
func CleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	start := strings.Index(response, "{")
	end := strings.LastIndex(response, "}")
	if start != -1 && end > start {
		response = response[start : end+1]
	}
	return response
}

// ParseStructured decodes a model's JSON reply into T and validates it.
func ParseStructured[T any](raw string) (*T, error) {
	var out T
	if err := json.Unmarshal([]byte(CleanJSONResponse(raw)), &out); err != nil {
		return nil, fmt.Errorf("failed to decode structured response: %w", err)
	}
	if err := Validate(&out); err != nil {
		return nil, fmt.Errorf("structured response failed validation: %w", err)
	}
	return &out, nil
}
