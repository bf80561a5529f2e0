package disambiguation

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"disambiguator/models"
)

func TestCompose(t *testing.T) {
	rules := loadTestRules(t)
	c := NewComposer(rules.Renderer, rules.Limits.MaxOptions, nil)

	many := make([]models.ServiceOption, 5)
	for i := range many {
		many[i] = models.ServiceOption{ID: fmt.Sprint(i), Name: fmt.Sprintf("Serviço %d", i+1), Price: 10, DurationMinutes: 30}
	}

	cases := []struct {
		name      string
		options   []models.ServiceOption
		state     models.State
		template  string
		wantLines int
	}{
		{"none", nil, models.StateFallbackManualInput, TplNoOptions, 0},
		{"one", many[:1], models.StateCatalogWaitConfirmation, TplSingleOption, 0},
		{"two", many[:2], models.StateCatalogWaitChoice, "choice_2", 2},
		{"three", many[:3], models.StateCatalogWaitChoice, "choice_3", 3},
		{"truncated", many, models.StateCatalogWaitChoice, "choice_3", 3},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := c.Compose(tc.options, "cabelo")
			assert.Equal(t, tc.state, got.NextState)
			assert.Equal(t, tc.template, got.Template)
			assert.NotContains(t, got.ResponseText, "[?")

			numbered := 0
			for _, line := range strings.Split(got.ResponseText, "\n") {
				if len(line) > 2 && line[1] == '.' && line[0] >= '1' && line[0] <= '9' {
					numbered++
				}
			}
			assert.Equal(t, tc.wantLines, numbered)
		})
	}
}

func TestComposeNoOptionsEchoesInput(t *testing.T) {
	rules := loadTestRules(t)
	got := NewComposer(rules.Renderer, rules.Limits.MaxOptions, nil).Compose(nil, "massagem tântrica")
	assert.Contains(t, got.ResponseText, `"massagem tântrica"`)
}

func TestComposeTwoAndThreeDiffer(t *testing.T) {
	rules := loadTestRules(t)
	c := NewComposer(rules.Renderer, rules.Limits.MaxOptions, nil)
	opts := hairOptions()
	two := c.Compose(opts[:2], "cabelo").ResponseText
	three := c.Compose(opts, "cabelo").ResponseText
	assert.NotEqual(t, two, three)
	assert.True(t, strings.HasPrefix(three, strings.Split(two, "\n")[0]))
}
