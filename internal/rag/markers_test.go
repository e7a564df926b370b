package rag

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeCitationMarkers(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "comma grouped pair",
			input: "Claim{{cite:c3, c5}} more text",
			want:  "Claim{{cite:c3}}{{cite:c5}} more text",
		},
		{
			name:  "three grouped ids",
			input: "{{cite:c1,c2 , c10}}",
			want:  "{{cite:c1}}{{cite:c2}}{{cite:c10}}",
		},
		{
			name:  "single marker untouched",
			input: "Claim{{cite:c1}}.",
			want:  "Claim{{cite:c1}}.",
		},
		{
			name:  "no markers",
			input: "Plain text answer.",
			want:  "Plain text answer.",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := NormalizeCitationMarkers(tc.input)
			require.Equal(t, tc.want, got)
			require.False(t, combinedMarker.MatchString(got), "no comma-grouped marker may remain")
		})
	}
}

func TestSplitAnswerParts(t *testing.T) {
	t.Parallel()

	parts := SplitAnswerParts("The capital is Paris{{cite:c1}}.")
	require.Equal(t, []ContentPart{
		{Kind: ContentPartText, Content: "The capital is Paris"},
		{Kind: ContentPartCitation, CitationID: "c1"},
		{Kind: ContentPartText, Content: "."},
	}, parts)
}

func TestSplitAnswerPartsNoMarkers(t *testing.T) {
	t.Parallel()

	parts := SplitAnswerParts("Nothing cited here.")
	require.Equal(t, []ContentPart{{Kind: ContentPartText, Content: "Nothing cited here."}}, parts)
}

func TestSplitAnswerPartsNormalizesFirst(t *testing.T) {
	t.Parallel()

	parts := SplitAnswerParts("Fact{{cite:c2, c4}}")
	require.Equal(t, []ContentPart{
		{Kind: ContentPartText, Content: "Fact"},
		{Kind: ContentPartCitation, CitationID: "c2"},
		{Kind: ContentPartCitation, CitationID: "c4"},
	}, parts)
}

func TestHasCitations(t *testing.T) {
	t.Parallel()

	require.True(t, HasCitations("x{{cite:c9}}"))
	require.False(t, HasCitations("no markers"))
	require.False(t, HasCitations("{{cite:}} malformed"))
}

func TestExtractCitationIDs(t *testing.T) {
	t.Parallel()

	ids := ExtractCitationIDs("a{{cite:c2}} b{{cite:c1}} c{{cite:c2}}")
	require.Equal(t, []string{"c2", "c1"}, ids, "unique, in order of first appearance")
	require.Empty(t, ExtractCitationIDs("none"))
}
