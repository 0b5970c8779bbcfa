package llm

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/teilomillet/promptpilot/providers"
	"github.com/teilomillet/promptpilot/utils"
)

// Echo is an offline LLM. It answers with the prompt itself, or with a
// placeholder object when structured output is requested, and estimates
// usage with CountTokens. It lets the CLI and service run without an API key.
type Echo struct {
	logger utils.Logger
}

func NewEcho(logger utils.Logger) *Echo {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Echo{logger: logger}
}

func (e *Echo) Name() string { return "echo" }

func (e *Echo) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (*providers.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, NewLLMError(ErrorTypeRequest, "context done", err)
	}
	gc := newGenerateConfig("echo", opts)

	text := prompt
	if gc.StructuredResponseSchema != nil {
		placeholder, err := placeholderFor(gc.StructuredResponseSchema)
		if err != nil {
			return nil, NewLLMError(ErrorTypeInvalidInput, "unusable schema", err)
		}
		text = placeholder
	}

	in := e.count(prompt, gc.Model)
	out := e.count(text, gc.Model)
	return providers.NewTextResponse(text, providers.NewUsage(int64(in), 0, int64(out), 0)), nil
}

func (e *Echo) count(text, model string) int {
	n, err := CountTokens(text, model)
	if err != nil {
		e.logger.Debug("Token encoding unavailable, counting words", "error", err)
		return len(strings.Fields(text))
	}
	return n
}

// placeholderFor builds the smallest object satisfying the top-level schema:
// strings are "echo", numbers take their minimum (or 1), booleans false.
func placeholderFor(schema any) (string, error) {
	raw, err := json.Marshal(schema)
	if err != nil {
		return "", err
	}
	var s struct {
		Properties map[string]struct {
			Type    string   `json:"type"`
			Minimum *float64 `json:"minimum"`
		} `json:"properties"`
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		return "", err
	}

	obj := make(map[string]any, len(s.Properties))
	for name, prop := range s.Properties {
		switch prop.Type {
		case "integer", "number":
			v := 1.0
			if prop.Minimum != nil {
				v = *prop.Minimum
			}
			obj[name] = v
		case "boolean":
			obj[name] = false
		case "array":
			obj[name] = []any{}
		default:
			obj[name] = "echo"
		}
	}
	out, err := json.Marshal(obj)
	return string(out), err
}
