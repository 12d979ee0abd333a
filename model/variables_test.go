package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestVariables_JSONOrder(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "definition order preserved",
			input:    `{"zeta":1,"alpha":"a","mid":{"nested":true}}`,
			expected: []string{"zeta", "alpha", "mid"},
		},
		{
			name:     "duplicate keeps first position",
			input:    `{"b":1,"a":2,"b":3}`,
			expected: []string{"b", "a"},
		},
		{
			name:     "empty object",
			input:    `{}`,
			expected: []string{},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var variables Variables
			err := json.Unmarshal([]byte(tc.input), &variables)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, append([]string{}, variables.Names()...))

			data, err := json.Marshal(variables)
			require.NoError(t, err)
			var again Variables
			require.NoError(t, json.Unmarshal(data, &again))
			assert.Equal(t, variables.Names(), again.Names())
		})
	}
}

func TestVariables_JSONRoundTrip(t *testing.T) {
	var variables Variables
	variables.Add("score", 0.92)
	variables.Add("model", "gpt4")
	variables.Add("labels", []interface{}{"a", "b"})

	data, err := json.Marshal(variables)
	require.NoError(t, err)
	assert.Equal(t, `{"score":0.92,"model":"gpt4","labels":["a","b"]}`, string(data))

	var decoded Variables
	require.NoError(t, json.Unmarshal(data, &decoded))
	value, ok := decoded.Get("model")
	require.True(t, ok)
	assert.Equal(t, "gpt4", value)
	assert.Equal(t, []string{"score", "model", "labels"}, decoded.Names())
}

func TestVariables_InvalidJSON(t *testing.T) {
	var variables Variables
	err := json.Unmarshal([]byte(`["not","an","object"]`), &variables)
	assert.Error(t, err)
}

func TestVariables_YAMLOrder(t *testing.T) {
	input := `
zeta: 1
alpha: hello
nested:
  k: v
`
	var variables Variables
	require.NoError(t, yaml.Unmarshal([]byte(input), &variables))
	assert.Equal(t, []string{"zeta", "alpha", "nested"}, variables.Names())

	data, err := yaml.Marshal(variables)
	require.NoError(t, err)
	var again Variables
	require.NoError(t, yaml.Unmarshal(data, &again))
	assert.Equal(t, variables.Names(), again.Names())
	assert.EqualValues(t, map[string]interface{}{"k": "v"}, mustGet(t, again, "nested"))
}

func TestVariables_AddAndClone(t *testing.T) {
	var variables Variables
	variables.Add("a", 1)
	variables.Add("b", 2)
	variables.Add("a", 3)
	assert.Equal(t, []string{"a", "b"}, variables.Names())
	assert.Equal(t, 3, mustGet(t, variables, "a"))

	clone := variables.Clone()
	clone.Add("a", 4)
	assert.Equal(t, 3, mustGet(t, variables, "a"))
	assert.Equal(t, 4, mustGet(t, clone, "a"))
}

func TestVariablesFromMap_Deterministic(t *testing.T) {
	variables := VariablesFromMap(map[string]interface{}{"b": 2, "a": 1, "c": 3})
	assert.Equal(t, []string{"a", "b", "c"}, variables.Names())
}

func mustGet(t *testing.T, variables Variables, name string) interface{} {
	t.Helper()
	value, ok := variables.Get(name)
	require.True(t, ok, "variable %v", name)
	return value
}
