package disambiguation

import (
	"go.uber.org/zap"

	"disambiguator/models"
)

// Composition is the composer's output.
type Composition struct {
	NextState    models.State
	ResponseText string
	Template     string
}

// Composer turns a candidate list into one of three response shapes.
type Composer struct {
	renderer   *Renderer
	maxOptions int
	logger     *zap.Logger
}

// NewComposer builds a composer. Lists longer than maxOptions are truncated.
func NewComposer(renderer *Renderer, maxOptions int, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{renderer: renderer, maxOptions: maxOptions, logger: logger}
}

// Compose is a pure function of its inputs apart from logging render problems.
func (c *Composer) Compose(options []models.ServiceOption, originalInput string) Composition {
	if len(options) > c.maxOptions {
		options = options[:c.maxOptions]
	}
	var (
		state models.State
		name  string
	)
	switch len(options) {
	case 0:
		state, name = models.StateFallbackManualInput, TplNoOptions
	case 1:
		state, name = models.StateCatalogWaitConfirmation, TplSingleOption
	default:
		state, name = models.StateCatalogWaitChoice, ChoiceTemplateName(len(options))
	}
	text := c.render(name, RenderContext{Input: originalInput, Options: options})
	return Composition{NextState: state, ResponseText: text, Template: name}
}

func (c *Composer) render(name string, rc RenderContext) string {
	text, errs := c.renderer.Render(name, rc)
	for _, err := range errs {
		c.logger.Warn("template rendered with unresolved placeholder", zap.String("template", name), zap.Error(err))
	}
	return text
}
