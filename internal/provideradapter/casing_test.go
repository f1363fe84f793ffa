package provideradapter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCamelToSnake(t *testing.T) {
	tests := map[string]string{
		"budgetTokens":     "budget_tokens",
		"thoughtSignature": "thought_signature",
		"includeThoughts":  "include_thoughts",
		"level":            "level",
	}
	for in, want := range tests {
		assert.Equal(t, want, camelToSnake(in))
	}
}

func TestSnakeToCamel(t *testing.T) {
	tests := map[string]string{
		"budget_tokens":     "budgetTokens",
		"thought_signature": "thoughtSignature",
		"level":             "level",
	}
	for in, want := range tests {
		assert.Equal(t, want, snakeToCamel(in))
	}
}

func TestKeyConversionIsDeep(t *testing.T) {
	in := map[string]interface{}{
		"thoughtSignature": "abc",
		"nestedConfig": map[string]interface{}{
			"budgetTokens": 1024,
			"innerList": []interface{}{
				map[string]interface{}{"includeThoughts": true},
				"plainString",
			},
		},
	}

	snake := toSnakeKeys(in)
	nested := snake["nested_config"].(map[string]interface{})
	assert.Equal(t, 1024, nested["budget_tokens"])
	inner := nested["inner_list"].([]interface{})
	assert.Equal(t, true, inner[0].(map[string]interface{})["include_thoughts"])
	assert.Equal(t, "plainString", inner[1])
}

func TestKeyConversionRoundTrips(t *testing.T) {
	in := map[string]interface{}{
		"thoughtSignature": "abc",
		"config": map[string]interface{}{
			"budgetTokens":    42,
			"includeThoughts": false,
		},
	}

	assert.Equal(t, in, toCamelKeys(toSnakeKeys(in)))
}
