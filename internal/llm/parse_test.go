package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONBareObject(t *testing.T) {
	got, err := extractJSON(`{"title": "x"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"title": "x"}`, got)
}

func TestExtractJSONMarkdownFence(t *testing.T) {
	content := "```json\n{\"claims\": [\"a\", \"b\"]}\n```"

	got, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"claims": ["a", "b"]}`, got)
}

func TestExtractJSONFenceWithoutLanguage(t *testing.T) {
	got, err := extractJSON("```\n[1, 2, 3]\n```")
	require.NoError(t, err)
	assert.Equal(t, "[1, 2, 3]", got)
}

func TestExtractJSONSurroundingChatter(t *testing.T) {
	content := `Sure! Here is the analysis you asked for:

{"conclusion": "it works"}

Let me know if you need anything else.`

	got, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"conclusion": "it works"}`, got)
}

func TestExtractJSONNestedObjects(t *testing.T) {
	content := `prefix {"a": {"b": [1, {"c": 2}]}} suffix {"ignored": true}`

	got, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, `{"a": {"b": [1, {"c": 2}]}}`, got)
}

func TestExtractJSONBracesInsideStrings(t *testing.T) {
	content := `{"text": "a closing brace } and an escaped quote \" inside"}`

	got, err := extractJSON(content)
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestExtractJSONArray(t *testing.T) {
	got, err := extractJSON(`noise [{"x": 1}, {"y": 2}] noise`)
	require.NoError(t, err)
	assert.Equal(t, `[{"x": 1}, {"y": 2}]`, got)
}

func TestExtractJSONNoJSON(t *testing.T) {
	_, err := extractJSON("I could not produce an answer.")
	assert.Error(t, err)
}

func TestExtractJSONUnbalanced(t *testing.T) {
	_, err := extractJSON(`{"truncated": [1, 2`)
	assert.Error(t, err)
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Claims []string `json:"claims"`
	}

	err := decodeJSON("```json\n{\"claims\": [\"one\"]}\n```", &out)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, out.Claims)
}

func TestDecodeJSONTypeMismatch(t *testing.T) {
	var out struct {
		Claims []string `json:"claims"`
	}

	err := decodeJSON(`{"claims": "not a list"}`, &out)
	assert.Error(t, err)
}
