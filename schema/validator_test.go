package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "port": {"type": "integer", "minimum": 1, "maximum": 65535}
  },
  "required": ["name"],
  "additionalProperties": false
}`

func TestValidator(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)

	testCases := []struct {
		name    string
		doc     interface{}
		wantErr string
	}{
		{name: "valid", doc: map[string]interface{}{"name": "db1", "port": 22}},
		{name: "struct input", doc: struct {
			Name string `json:"name"`
		}{Name: "db1"}},
		{name: "missing required", doc: map[string]interface{}{"port": 22}, wantErr: "- /: "},
		{name: "port out of range", doc: map[string]interface{}{"name": "db1", "port": 70000}, wantErr: "/port"},
		{name: "unknown key", doc: map[string]interface{}{"name": "db1", "extra": true}, wantErr: "extra"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := v.Validate(tc.doc)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestNewValidatorRejectsBrokenSchema(t *testing.T) {
	_, err := NewValidator("broken.json", []byte(`{"type": `))
	assert.Error(t, err)
}

func TestValidateUnmarshalableInput(t *testing.T) {
	v, err := NewValidator("test.json", []byte(testSchema))
	require.NoError(t, err)
	assert.Error(t, v.Validate(map[string]interface{}{"name": make(chan int)}))
}
