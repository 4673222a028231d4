package body

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		name     string
		have     string
		expected map[string]any
	}{
		{"ShouldReturnEmptyForEmptyBody", "", map[string]any{}},
		{"ShouldParseJSON", `{"a":1}`, map[string]any{"a": float64(1)}},
		{"ShouldParseEncodedJSON", `%7B%22deviceId%22%3A%22x%22%7D`, map[string]any{"deviceId": "x"}},
		{"ShouldParseJSONWithSpaces", "  {\"a\":\"b\"}\n", map[string]any{"a": "b"}},
		{"ShouldParseForm", "a=1&b=2", map[string]any{"a": "1", "b": "2"}},
		{"ShouldDecodeFormValues", "name=%25E4%25BD%25A0", map[string]any{"name": "你"}},
		{"ShouldSkipEmptyPairs", "a=1&b=&=3&c", map[string]any{"a": "1"}},
		{"ShouldTakeSecondSegmentOnly", "a=b=c", map[string]any{"a": "b"}},
		{"ShouldWrapPlainText", "not-json-or-form", map[string]any{RawKey: "not-json-or-form"}},
		{"ShouldWrapBrokenJSON", `{"a":}`, map[string]any{RawKey: `{"a":}`}},
		{"ShouldWrapBadEscape", "a=%zz", map[string]any{RawKey: "a=%zz"}},
		{"ShouldWrapInvalidUTF8", "a=%FF", map[string]any{RawKey: "a=%FF"}},
		{"ShouldWrapInvalidUTF8InValue", "name=%25FF", map[string]any{RawKey: "name=%25FF"}},
		{"ShouldWrapTruncatedUTF8", "%E4%BD", map[string]any{RawKey: "%E4%BD"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Parse(tc.have))
		})
	}
}

func TestParseJSON(t *testing.T) {
	def := map[string]any{}
	assert.Equal(t, def, ParseJSON([]byte("oops"), def))
	assert.Equal(t, map[string]any{"code": float64(3001)}, ParseJSON([]byte(`{"code":3001}`), def))
}
