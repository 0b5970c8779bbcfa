package llm

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testStruct struct {
	Name  string `json:"name" validate:"required" jsonschema:"description=display name"`
	Value int    `json:"value" validate:"min=1,max=100" jsonschema:"minimum=1,maximum=100"`
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		wantErr bool
	}{
		{"valid struct", &testStruct{Name: "test", Value: 50}, false},
		{"missing required field", &testStruct{Name: "", Value: 50}, true},
		{"value below minimum", &testStruct{Name: "test", Value: 0}, true},
		{"value above maximum", &testStruct{Name: "test", Value: 101}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.input)
			assert.Equal(t, tt.wantErr, err != nil, "error: %v", err)
		})
	}
}

func TestGenerateJSONSchema(t *testing.T) {
	raw, err := json.Marshal(GenerateJSONSchema(&testStruct{}))
	require.NoError(t, err)

	var schema struct {
		Type       string                    `json:"type"`
		Properties map[string]map[string]any `json:"properties"`
		Required   []string                  `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "integer", schema.Properties["value"]["type"])
	assert.EqualValues(t, 1, schema.Properties["value"]["minimum"])
	assert.Equal(t, "display name", schema.Properties["name"]["description"])
	assert.ElementsMatch(t, []string{"name", "value"}, schema.Required)
}

func TestCleanJSONResponse(t *testing.T) {
	cases := map[string]string{
		`{"a": 1}`:                         `{"a": 1}`,
		"```json\n{\"a\": 1}\n```":         `{"a": 1}`,
		"```\n{\"a\": 1}\n```":             `{"a": 1}`,
		"Sure! Here it is: {\"a\": 1} :)": `{"a": 1}`,
		"no json here":                     "no json here",
	}
	for in, want := range cases {
		assert.Equal(t, want, CleanJSONResponse(in), in)
	}
}

func TestParseStructured(t *testing.T) {
	v, err := ParseStructured[testStruct]("```json\n{\"name\": \"x\", \"value\": 7}\n```")
	require.NoError(t, err)
	assert.Equal(t, testStruct{Name: "x", Value: 7}, *v)

	_, err = ParseStructured[testStruct](`{"name": "x", "value": 0}`)
	assert.ErrorContains(t, err, "validation")

	_, err = ParseStructured[testStruct](`not json`)
	assert.ErrorContains(t, err, "decode")
}
