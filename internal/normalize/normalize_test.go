package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "foie", "foie"},
		{"uppercase", "FOIE", "foie"},
		{"acute", "Prostate - Épithélium", "prostate - epithelium"},
		{"grave and circumflex", "Pèlerin Crâne", "pelerin crane"},
		{"cedilla", "Glande Façonnée", "glande faconnee"},
		{"diaeresis", "Maïs", "mais"},
		{"ligature", "Œsophage", "oesophage"},
		{"decomposed input", "e\u0301tat", "etat"},
		{"empty", "", ""},
		{"digits and punctuation kept", "Estomac (cardia) 2", "estomac (cardia) 2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"Œsophage",
		"ÉTAT GÉNÉRAL",
		"Straße",
		"İstanbul",
		"e\u0301\u0300",
		"Ångström",
		"",
		"déjà vu",
	}

	for _, s := range inputs {
		once := Normalize(s)
		assert.Equal(t, once, Normalize(once), "Normalize not idempotent for %q", s)
	}
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal("Côlon", "colon"))
	assert.True(t, Equal("cœur", "COEUR"))
	assert.False(t, Equal("foie", "foies"))
}

func TestContains(t *testing.T) {
	assert.True(t, Contains("Estomac (cardia)", "estomac"))
	assert.True(t, Contains("Foie", "FOÎE"))
	assert.False(t, Contains("foie", "Foie gras"))
}
