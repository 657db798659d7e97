package parsers

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skyrag-assistant/server/internal/agent/model"
)

func TestParseClassification(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want model.Classification
	}{
		{"weather with city", `{"intent":"weather","city":"London"}`, model.Classification{Intent: model.IntentWeather, City: "London"}},
		{"pdf", `{"intent":"pdf","city":""}`, model.Classification{Intent: model.IntentPDF, City: model.BlankCity}},
		{"unknown intent", `{"intent":"unknown","city":""}`, model.Classification{Intent: model.IntentPDF, City: model.BlankCity}},
		{"missing fields", `{}`, model.Classification{Intent: model.IntentPDF, City: model.BlankCity}},
		{"weather without city", `{"intent":"weather"}`, model.Classification{Intent: model.IntentWeather, City: model.BlankCity}},
		{"intent label is exact", `{"intent":" Weather ","city":"  Paris "}`, model.Classification{Intent: model.IntentPDF, City: "Paris"}},
		{"fenced", "```json\n{\"intent\":\"weather\",\"city\":\"Tokyo\"}\n```", model.Classification{Intent: model.IntentWeather, City: "Tokyo"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseClassification(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestParseClassification_Malformed(t *testing.T) {
	for _, in := range []string{"", "weather", `{"intent":`, `["weather"]`, strings.Repeat("x", maxContentLen+1)} {
		_, err := ParseClassification(in)
		require.Error(t, err, "input %q", in)
	}
}

func TestStripCodeFence(t *testing.T) {
	require.Equal(t, `{"a":1}`, stripCodeFence("```\n{\"a\":1}\n```"))
	require.Equal(t, `{"a":1}`, stripCodeFence("```json{\"a\":1}```"))
	require.Equal(t, `{"a":1}`, stripCodeFence(` {"a":1} `))
}
