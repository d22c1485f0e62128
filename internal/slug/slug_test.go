package slug

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDerive(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "diacritics and punctuation", input: "Fundación Ñandú!!", expected: "fundacion-nandu"},
		{name: "plain", input: "Ayuda", expected: "ayuda"},
		{name: "collapses runs", input: "  Red   Solidaria -- Sur  ", expected: "red-solidaria-sur"},
		{name: "keeps digits", input: "Comedor 24/7", expected: "comedor-24-7"},
		{name: "no latin characters", input: "日本語", expected: "org"},
		{name: "only punctuation", input: "!!!", expected: "org"},
		{name: "empty", input: "", expected: "org"},
		{name: "mixed scripts", input: "Café 日本", expected: "cafe"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(tt.input)
			require.Equal(t, tt.expected, got)
			require.True(t, Valid(got))
		})
	}
}

func TestWithSuffix(t *testing.T) {
	require.Equal(t, "ayuda", WithSuffix("ayuda", 0))
	require.Equal(t, "ayuda-1", WithSuffix("ayuda", 1))
	require.Equal(t, "ayuda-12", WithSuffix("ayuda", 12))
}

func TestValid(t *testing.T) {
	require.True(t, Valid("a"))
	require.True(t, Valid("fundacion-nandu-2"))
	require.False(t, Valid(""))
	require.False(t, Valid("-a"))
	require.False(t, Valid("a-"))
	require.False(t, Valid("a--b"))
	require.False(t, Valid("A"))
	require.False(t, Valid("a_b"))
}
