package util

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	span, ok := ExtractJSONObject(`Here is the result: {"score": 5} hope it helps`)
	require.True(t, ok)
	assert.Equal(t, `{"score": 5}`, span)
}

func TestExtractJSONObjectNoBraces(t *testing.T) {
	_, ok := ExtractJSONObject("no json here")
	assert.False(t, ok)

	_, ok = ExtractJSONObject("} reversed {")
	assert.False(t, ok)
}

func TestExtractJSONObjectFirstToLastSpan(t *testing.T) {
	// Two objects with prose between: the span runs from the first '{' to
	// the last '}', which is deliberately not valid JSON.
	span, ok := ExtractJSONObject(`noise {"a":1} trailing {"b":2} noise`)
	require.True(t, ok)
	assert.Equal(t, `{"a":1} trailing {"b":2}`, span)

	var probe map[string]any
	assert.Error(t, json.Unmarshal([]byte(span), &probe))
}

func TestExtractJSONObjectNested(t *testing.T) {
	span, ok := ExtractJSONObject(`{"outer": {"inner": 1}}`)
	require.True(t, ok)
	assert.Equal(t, `{"outer": {"inner": 1}}`, span)
}
