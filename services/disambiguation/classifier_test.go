package disambiguation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	c := loadTestRules(t).Classifier

	cases := map[string]Label{
		"2":                     LabelNumeric,
		"opção 3":               LabelNumeric,
		"#1":                    LabelNumeric,
		"segunda":               LabelNumeric,
		"sim":                   LabelAffirmative,
		"Isso mesmo!":           LabelAffirmative,
		"não":                   LabelNegative,
		"nao quero esse":        LabelNegative,
		"cabelo":                LabelAmbiguous,
		"Quero cortar o cabelo": LabelAmbiguous,
		"corte masculino":       LabelNone,
		"abc":                   LabelNone,
	}
	for in, want := range cases {
		assert.Equal(t, want, c.Classify(in), "classify(%q)", in)
	}
}

func TestIsAmbiguous(t *testing.T) {
	c := loadTestRules(t).Classifier
	assert.True(t, c.IsAmbiguous("cabelo"))
	assert.True(t, c.IsAmbiguous("UNHAS!"))
	assert.True(t, c.IsAmbiguous("preciso fazer a sobrancelha"))
	assert.False(t, c.IsAmbiguous("corte masculino"))
	assert.False(t, c.IsAmbiguous("cabelo e barba"))
}

func TestCategory(t *testing.T) {
	c := loadTestRules(t).Classifier
	assert.Equal(t, "cabelo", c.Category("Quero cortar o cabelo"))
	assert.Equal(t, "cabelo", c.Category("CABELOS"))
	assert.Equal(t, "depilacao", c.Category("Depilação"))
	// Not ambiguous: the whole normalized input is the term.
	assert.Equal(t, "corte masculino", c.Category("corte masculino"))
}

func TestParseChoice(t *testing.T) {
	c := loadTestRules(t).Classifier

	for in, want := range map[string]int{"2": 2, " 3. ": 3, "opção 1": 1, "número 2": 2, "segunda": 2, "a primeira": 1, "0": 0} {
		got, ok := c.ParseChoice(in)
		assert.True(t, ok, "parse(%q)", in)
		assert.Equal(t, want, got, "parse(%q)", in)
	}
	for _, in := range []string{"abc", "", "sim", "2 ou 3"} {
		_, ok := c.ParseChoice(in)
		assert.False(t, ok, "parse(%q)", in)
	}
}
