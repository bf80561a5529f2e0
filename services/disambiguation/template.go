package disambiguation

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/valyala/fasttemplate"

	"disambiguator/models"
)

const (
	tagStart = "{"
	tagEnd   = "}"
)

// Template names in the rules document.
const (
	TplNoOptions         = "no_options"
	TplSingleOption      = "single_option"
	TplInvalidChoice     = "invalid_choice"
	TplConfirmReprompt   = "confirm_reprompt"
	TplManualPrompt      = "manual_prompt"
	TplManualAck         = "manual_ack"
	TplPersisted         = "persisted"
	TplCatalogError      = "catalog_error"
	TplAttemptsExhausted = "attempts_exhausted"
)

// ChoiceTemplateName is the numbered-list variant for exactly n options.
func ChoiceTemplateName(n int) string {
	return "choice_" + strconv.Itoa(n)
}

// requiredFields declares, per template, the placeholders it must contain.
func requiredFields(name string) []string {
	switch name {
	case TplNoOptions, TplManualAck:
		return []string{"input"}
	case TplSingleOption, TplConfirmReprompt, TplPersisted:
		return []string{"name"}
	}
	if n, ok := choiceCount(name); ok {
		fields := make([]string, 0, n)
		for i := 1; i <= n; i++ {
			fields = append(fields, "name_"+strconv.Itoa(i))
		}
		return fields
	}
	return nil
}

func choiceCount(name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, "choice_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 2 {
		return 0, false
	}
	return n, true
}

// RenderContext is the structured input every template is rendered from.
type RenderContext struct {
	Input       string
	Options     []models.ServiceOption
	Attempts    int
	MaxAttempts int
	// MaxChoice is the highest number accepted as a choice. Zero means
	// every option can be picked.
	MaxChoice int
}

// Template is a compiled response template.
type Template struct {
	name string
	tpl  *fasttemplate.Template
	tags []string
}

// compileTemplate parses text and checks it against the declared fields.
// Unknown tags are tolerated here; they render as visible markers.
func compileTemplate(name, text string) (*Template, []string, error) {
	tpl, err := fasttemplate.NewTemplate(text, tagStart, tagEnd)
	if err != nil {
		return nil, nil, &ConfigLoadError{Field: "templates." + name, Message: "unparseable template", Err: err}
	}
	var tags []string
	tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		tags = append(tags, strings.TrimSpace(tag))
		return 0, nil
	})
	present := make(map[string]bool, len(tags))
	for _, t := range tags {
		present[t] = true
	}
	for _, field := range requiredFields(name) {
		if !present[field] {
			return nil, nil, newConfigError("templates."+name, "missing required placeholder {%s}", field)
		}
	}
	var unknown []string
	for _, t := range tags {
		if !knownPlaceholder(t) {
			unknown = append(unknown, t)
		}
	}
	return &Template{name: name, tpl: tpl, tags: tags}, unknown, nil
}

func knownPlaceholder(tag string) bool {
	switch tag {
	case "input", "count", "attempts", "max_attempts",
		"name", "price", "duration", "category":
		return true
	}
	field, idx, ok := splitIndexed(tag)
	if !ok || idx < 1 {
		return false
	}
	switch field {
	case "name", "price", "duration", "category":
		return true
	}
	return false
}

func splitIndexed(tag string) (string, int, bool) {
	i := strings.LastIndex(tag, "_")
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.Atoi(tag[i+1:])
	if err != nil {
		return "", 0, false
	}
	return tag[:i], n, true
}

// Renderer renders compiled templates with the configured number format.
type Renderer struct {
	templates    map[string]*Template
	decimalComma bool
}

// Render fills the template. Placeholders that cannot be resolved are
// written as "[?tag]" and reported through the returned errors.
func (r *Renderer) Render(name string, rc RenderContext) (string, []error) {
	t, ok := r.templates[name]
	if !ok {
		return "[?" + name + "]", []error{&TemplateRenderError{Template: name, Placeholder: name}}
	}
	var errs []error
	out := t.tpl.ExecuteFuncString(func(w io.Writer, tag string) (int, error) {
		key := strings.TrimSpace(tag)
		val, ok := r.resolve(key, rc)
		if !ok {
			errs = append(errs, &TemplateRenderError{Template: name, Placeholder: key})
			return w.Write([]byte("[?" + key + "]"))
		}
		return w.Write([]byte(val))
	})
	return out, errs
}

func (r *Renderer) resolve(key string, rc RenderContext) (string, bool) {
	switch key {
	case "input":
		return rc.Input, true
	case "count":
		if rc.MaxChoice > 0 && rc.MaxChoice < len(rc.Options) {
			return strconv.Itoa(rc.MaxChoice), true
		}
		return strconv.Itoa(len(rc.Options)), true
	case "attempts":
		return strconv.Itoa(rc.Attempts), true
	case "max_attempts":
		return strconv.Itoa(rc.MaxAttempts), true
	case "name", "price", "duration", "category":
		return r.optionField(key, 1, rc.Options)
	}
	field, idx, ok := splitIndexed(key)
	if !ok {
		return "", false
	}
	return r.optionField(field, idx, rc.Options)
}

func (r *Renderer) optionField(field string, idx int, options []models.ServiceOption) (string, bool) {
	if idx < 1 || idx > len(options) {
		return "", false
	}
	opt := options[idx-1]
	switch field {
	case "name":
		return opt.Name, true
	case "price":
		return r.formatPrice(opt.Price), true
	case "duration":
		return strconv.Itoa(opt.DurationMinutes), true
	case "category":
		return opt.Category, true
	}
	return "", false
}

func (r *Renderer) formatPrice(p float64) string {
	s := fmt.Sprintf("%.2f", p)
	if r.decimalComma {
		s = strings.Replace(s, ".", ",", 1)
	}
	return s
}
