package disambiguation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disambiguator/models"
)

func TestRenderPersisted(t *testing.T) {
	r := loadTestRules(t).Renderer
	text, errs := r.Render(TplPersisted, RenderContext{Options: []models.ServiceOption{maleCut()}})
	assert.Empty(t, errs)
	assert.Equal(t, "Perfeito! Serviço selecionado: Corte Masculino.", text)
}

func TestRenderChoiceList(t *testing.T) {
	r := loadTestRules(t).Renderer
	opts := hairOptions()
	text, errs := r.Render(ChoiceTemplateName(3), RenderContext{Options: opts})
	assert.Empty(t, errs)
	assert.Contains(t, text, "1. Escova - 40 min - R$ 50,00\n")
	assert.Contains(t, text, "2. Corte Feminino - 60 min - R$ 80,00\n")
	assert.Contains(t, text, "3. Hidratação - 45 min - R$ 90,00\n")
}

func TestRenderUnknownPlaceholderIsVisible(t *testing.T) {
	tpl, unknown, err := compileTemplate(TplPersisted, "Ok {name}, {colour}!")
	require.NoError(t, err)
	assert.Equal(t, []string{"colour"}, unknown)

	r := &Renderer{templates: map[string]*Template{TplPersisted: tpl}}
	text, errs := r.Render(TplPersisted, RenderContext{Options: []models.ServiceOption{{Name: "Escova", Price: 50.5}}})
	assert.Equal(t, "Ok Escova, [?colour]!", text)
	require.Len(t, errs, 1)
	var tre *TemplateRenderError
	require.ErrorAs(t, errs[0], &tre)
	assert.Equal(t, "colour", tre.Placeholder)
}

func TestRenderIndexBeyondOptions(t *testing.T) {
	r := loadTestRules(t).Renderer
	text, errs := r.Render(ChoiceTemplateName(3), RenderContext{Options: hairOptions()[:2]})
	assert.Contains(t, text, "3. [?name_3] - [?duration_3] min - R$ [?price_3]")
	assert.Len(t, errs, 3)
}

func TestRenderMissingTemplate(t *testing.T) {
	r := loadTestRules(t).Renderer
	text, errs := r.Render("choice_9", RenderContext{})
	assert.Equal(t, "[?choice_9]", text)
	assert.Len(t, errs, 1)
}

func TestCompileTemplateRequiredFields(t *testing.T) {
	_, _, err := compileTemplate(TplSingleOption, "Encontrei um serviço. Confirma?")
	var cle *ConfigLoadError
	require.ErrorAs(t, err, &cle)
	assert.Equal(t, "templates.single_option", cle.Field)

	_, _, err = compileTemplate(ChoiceTemplateName(2), "1. {name_1}")
	require.ErrorAs(t, err, &cle)
	assert.Contains(t, cle.Message, "name_2")

	_, _, err = compileTemplate(TplCatalogError, "Sem campos obrigatórios")
	assert.NoError(t, err)
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "45,90", (&Renderer{decimalComma: true}).formatPrice(45.9))
	assert.Equal(t, "45.90", (&Renderer{}).formatPrice(45.9))
	assert.Equal(t, "1200,00", (&Renderer{decimalComma: true}).formatPrice(1200))
}

func TestRenderCountUsesMaxChoice(t *testing.T) {
	r := loadTestRules(t).Renderer
	opts := hairOptions()

	text, _ := r.Render(TplInvalidChoice, RenderContext{Options: opts})
	assert.Equal(t, "Não entendi. Responda com um número de 1 a 3.", text)

	text, _ = r.Render(TplInvalidChoice, RenderContext{Options: opts, MaxChoice: 2})
	assert.Equal(t, "Não entendi. Responda com um número de 1 a 2.", text)

	text, _ = r.Render(TplInvalidChoice, RenderContext{Options: opts, MaxChoice: 9})
	assert.Equal(t, "Não entendi. Responda com um número de 1 a 3.", text)
}
