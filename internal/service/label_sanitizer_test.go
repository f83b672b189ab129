package service

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeLabels_FiltersNoise(t *testing.T) {
	input := []string{
		"Advanced Algebra II",
		"Coefficient: 4 TP Moyenne",
		"Semestre 1",
		"Unité d'enseignement fondamentale",
		"12.5",
		"ab",
		"xyz",
		"Analyse Mathématique",
		"Moyenne générale",
		"TP Physique",
		"Réseaux et Systèmes d'Exploitation",
		"Algorithmique et Programmation",
	}

	out := SanitizeLabels(input)

	assert.Equal(t, []string{"Advanced Algebra II", "Analyse Mathématique"}, out)
}

func TestSanitizeLabels_KeepsSurvivorsVerbatim(t *testing.T) {
	out := SanitizeLabels([]string{"  Base   de  Données  "})

	require.Len(t, out, 1)
	assert.Equal(t, "Base de Données", out[0], "whitespace collapsed but accents and case preserved")
}

func TestSanitizeLabels_DedupIsCaseInsensitive(t *testing.T) {
	out := SanitizeLabels([]string{"Programmation Web", "PROGRAMMATION WEB", "programmation web"})

	assert.Equal(t, []string{"Programmation Web"}, out)
}

func TestSanitizeLabels_CapsBatchSize(t *testing.T) {
	input := make([]string, 0, 60)
	for i := 0; i < 60; i++ {
		input = append(input, fmt.Sprintf("Course Number %d", i))
	}

	out := SanitizeLabels(input)

	require.Len(t, out, maxCandidateLabels)
	assert.Equal(t, "Course Number 0", out[0])
	assert.Equal(t, "Course Number 39", out[len(out)-1])
}

func TestSanitizeLabels_Idempotent(t *testing.T) {
	input := []string{
		"Mathématiques Discrètes",
		"  Génie   Logiciel ",
		"Semestre 2",
		"Théorie des Graphes.",
	}

	once := SanitizeLabels(input)
	twice := SanitizeLabels(once)

	assert.Equal(t, once, twice)
}

func TestSanitizeLabels_OutputIsFixpoint(t *testing.T) {
	// Edge punctuation used to be stripped after the short-token check, so a
	// parenthesized short word survived the first pass but not the second.
	cases := [][]string{
		{"(Maths)"},
		{"- Devoir 1"},
		{"  Probabilités,  ", "(Maths)", "Analyse Mathématique"},
	}
	for _, input := range cases {
		once := SanitizeLabels(input)
		assert.Equal(t, once, SanitizeLabels(once), "input %q", input)
	}
}

func TestSanitizeLabels_ShortWordLengthCountsRunes(t *testing.T) {
	// "mathé" is six bytes but five characters, still debris.
	out := SanitizeLabels([]string{"mathé", "mathés"})

	assert.Equal(t, []string{"mathés"}, out)
}

func TestSanitizeLabels_TrimsEdgePunctuation(t *testing.T) {
	out := SanitizeLabels([]string{"- Théorie des Langages -", "(Compilation)"})

	assert.Equal(t, []string{"Théorie des Langages", "Compilation"}, out)
}

func TestSanitizeLabels_RejectsShortSingleWordsWithoutDigits(t *testing.T) {
	out := SanitizeLabels([]string{"abcde", "abcdef", "CPI 1"})

	// Five letters alone is OCR debris; six survives. "CPI 1" is a header.
	assert.Equal(t, []string{"abcdef"}, out)
}

func TestExtractLabelsFromRaw(t *testing.T) {
	raw := "Semestre 1\n[Unité UEF 1.1]\nAnalyse Mathématique 1;\nAlgèbre Linéaire\r\nCoefficient: 3\n18.50\n"

	out := ExtractLabelsFromRaw(raw)

	assert.Equal(t, []string{"Analyse Mathématique 1", "Algèbre Linéaire"}, out)
}

func TestExtractLabelsFromRaw_EmptyInput(t *testing.T) {
	assert.Nil(t, ExtractLabelsFromRaw("   \n  "))
}

func TestNormalizeLabel(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Algèbre Linéaire", "algebre lineaire"},
		{"  Systèmes   d'Exploitation!  ", "systemes d exploitation"},
		{"BASE-DE-DONNÉES", "base de donnees"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeLabel(tc.in), "input %q", tc.in)
	}
}

func TestNormalizeLabel_Idempotent(t *testing.T) {
	once := NormalizeLabel("Théorie des Graphes (Avancée)")
	assert.Equal(t, once, NormalizeLabel(once))
}
