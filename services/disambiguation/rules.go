package disambiguation

import (
	"bytes"
	"fmt"
	"os"
	"regexp"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// RulesDocument is the on-disk shape of the disambiguation rules.
type RulesDocument struct {
	Patterns struct {
		NumericChoice     []string `yaml:"numeric_choice"`
		CategoryAmbiguous []string `yaml:"category_ambiguous"`
		Affirmative       []string `yaml:"affirmative"`
		Negative          []string `yaml:"negative"`
		StopWords         []string `yaml:"stop_words"`
	} `yaml:"patterns"`
	Normalization struct {
		AllowedChars string            `yaml:"allowed_chars"`
		Synonyms     map[string]string `yaml:"synonyms"`
		Ordinals     map[string]int    `yaml:"ordinals"`
	} `yaml:"normalization"`
	Templates map[string]string `yaml:"templates"`
	Limits    Limits            `yaml:"limits"`
	Cache     CacheSettings     `yaml:"cache"`
}

// Limits are the UX limits of the rules document.
type Limits struct {
	MaxOptions           int           `yaml:"max_options"`
	NumericMin           int           `yaml:"numeric_min"`
	NumericMax           int           `yaml:"numeric_max"`
	MaxAttempts          int           `yaml:"max_attempts"`
	SimilarityThreshold  float64       `yaml:"similarity_threshold"`
	PopularityWindowDays int           `yaml:"popularity_window_days"`
	QueryTimeout         time.Duration `yaml:"query_timeout"`
	DefaultReturnState   string        `yaml:"default_return_state"`
	DecimalComma         bool          `yaml:"decimal_comma"`
}

// CacheSettings holds TTLs and the categories pre-warmed by the worker.
type CacheSettings struct {
	CandidateTTL   time.Duration `yaml:"candidate_ttl"`
	SessionTTL     time.Duration `yaml:"session_ttl"`
	WarmCategories []string      `yaml:"warm_categories"`
}

func (l *Limits) applyDefaults() {
	if l.MaxOptions == 0 {
		l.MaxOptions = 3
	}
	if l.NumericMin == 0 {
		l.NumericMin = 1
	}
	if l.NumericMax == 0 {
		l.NumericMax = l.MaxOptions
	}
	if l.MaxAttempts == 0 {
		l.MaxAttempts = 3
	}
	if l.SimilarityThreshold == 0 {
		l.SimilarityThreshold = 0.3
	}
	if l.PopularityWindowDays == 0 {
		l.PopularityWindowDays = 30
	}
	if l.QueryTimeout == 0 {
		l.QueryTimeout = 2 * time.Second
	}
}

func (c *CacheSettings) applyDefaults() {
	if c.CandidateTTL == 0 {
		c.CandidateTTL = 5 * time.Minute
	}
	if c.SessionTTL == 0 {
		c.SessionTTL = 15 * time.Minute
	}
}

// Rules is the compiled, immutable form of a RulesDocument.
type Rules struct {
	Normalizer *Normalizer
	Classifier *RegexClassifier
	Renderer   *Renderer
	Limits     Limits
	Cache      CacheSettings
	// Warnings lists non-fatal problems found while compiling, such as
	// placeholders no renderer field matches.
	Warnings []string
}

// LoadRules reads and compiles the rules document at path.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Message: "cannot read rules document", Err: err}
	}
	rules, err := ParseRules(data)
	if err != nil {
		if cle, ok := err.(*ConfigLoadError); ok {
			cle.Path = path
		}
		return nil, err
	}
	return rules, nil
}

// ParseRules compiles a rules document. Any malformed pattern or template
// fails here so that matching and rendering never fail at call time.
func ParseRules(data []byte) (*Rules, error) {
	var doc RulesDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, &ConfigLoadError{Message: "invalid YAML", Err: err}
	}
	return compileRules(doc)
}

func compileRules(doc RulesDocument) (*Rules, error) {
	doc.Limits.applyDefaults()
	doc.Cache.applyDefaults()
	if err := validateLimits(doc.Limits); err != nil {
		return nil, err
	}

	numeric, err := compilePatterns("patterns.numeric_choice", doc.Patterns.NumericChoice, true)
	if err != nil {
		return nil, err
	}
	ambiguous, err := compilePatterns("patterns.category_ambiguous", doc.Patterns.CategoryAmbiguous, false)
	if err != nil {
		return nil, err
	}
	affirmative, err := compilePatterns("patterns.affirmative", doc.Patterns.Affirmative, true)
	if err != nil {
		return nil, err
	}
	negative, err := compilePatterns("patterns.negative", doc.Patterns.Negative, true)
	if err != nil {
		return nil, err
	}
	stopWords, err := compilePatterns("patterns.stop_words", doc.Patterns.StopWords, false)
	if err != nil {
		return nil, err
	}

	normalizer, err := NewNormalizer(doc.Normalization.AllowedChars, stopWords, doc.Normalization.Synonyms)
	if err != nil {
		return nil, err
	}
	for from, to := range doc.Normalization.Synonyms {
		if to == "" || normalizer.Normalize(to) != to {
			return nil, newConfigError("normalization.synonyms", "target %q of %q is not in normalized form", to, from)
		}
	}
	for word, idx := range doc.Normalization.Ordinals {
		if normalizer.Normalize(word) != word {
			return nil, newConfigError("normalization.ordinals", "key %q is not in normalized form", word)
		}
		if idx < 1 {
			return nil, newConfigError("normalization.ordinals", "index for %q must be >= 1", word)
		}
	}

	renderer := &Renderer{templates: make(map[string]*Template), decimalComma: doc.Limits.DecimalComma}
	var warnings []string
	for _, name := range requiredTemplateNames(doc.Limits.MaxOptions) {
		text, ok := doc.Templates[name]
		if !ok {
			return nil, newConfigError("templates."+name, "template is missing")
		}
		tpl, unknown, err := compileTemplate(name, text)
		if err != nil {
			return nil, err
		}
		for _, tag := range unknown {
			warnings = append(warnings, fmt.Sprintf("template %s: unknown placeholder {%s}", name, tag))
		}
		renderer.templates[name] = tpl
	}

	classifier := NewRegexClassifier(PatternSet{
		NumericChoice:     numeric,
		CategoryAmbiguous: ambiguous,
		Affirmative:       affirmative,
		Negative:          negative,
	}, doc.Normalization.Ordinals, normalizer)

	return &Rules{
		Normalizer: normalizer,
		Classifier: classifier,
		Renderer:   renderer,
		Limits:     doc.Limits,
		Cache:      doc.Cache,
		Warnings:   warnings,
	}, nil
}

func requiredTemplateNames(maxOptions int) []string {
	names := []string{
		TplNoOptions, TplSingleOption, TplInvalidChoice, TplConfirmReprompt,
		TplManualPrompt, TplManualAck, TplPersisted, TplCatalogError, TplAttemptsExhausted,
	}
	for n := 2; n <= maxOptions; n++ {
		names = append(names, ChoiceTemplateName(n))
	}
	return names
}

func validateLimits(l Limits) error {
	switch {
	case l.MaxOptions < 2:
		return newConfigError("limits.max_options", "must be >= 2, got %d", l.MaxOptions)
	case l.NumericMin < 1 || l.NumericMax < l.NumericMin:
		return newConfigError("limits.numeric_min", "invalid numeric range [%d,%d]", l.NumericMin, l.NumericMax)
	case l.MaxAttempts < 1:
		return newConfigError("limits.max_attempts", "must be >= 1, got %d", l.MaxAttempts)
	case l.SimilarityThreshold <= 0 || l.SimilarityThreshold > 1:
		return newConfigError("limits.similarity_threshold", "must be in (0,1], got %v", l.SimilarityThreshold)
	case l.PopularityWindowDays < 1:
		return newConfigError("limits.popularity_window_days", "must be >= 1, got %d", l.PopularityWindowDays)
	case l.QueryTimeout < 0:
		return newConfigError("limits.query_timeout", "must be positive")
	case l.DefaultReturnState == "":
		return newConfigError("limits.default_return_state", "must be set")
	}
	return nil
}

func compilePatterns(field string, patterns []string, required bool) ([]*regexp.Regexp, error) {
	if required && len(patterns) == 0 {
		return nil, newConfigError(field, "at least one pattern is required")
	}
	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for i, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, &ConfigLoadError{Field: fmt.Sprintf("%s[%d]", field, i), Message: "malformed pattern", Err: err}
		}
		compiled = append(compiled, re)
	}
	return compiled, nil
}

// RulesStore serves the current rules and swaps them atomically on reload.
type RulesStore struct {
	path    string
	current atomic.Pointer[Rules]
	logger  *zap.Logger
}

// NewRulesStore loads the document at path. A failure here is fatal for startup.
func NewRulesStore(path string, logger *zap.Logger) (*RulesStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &RulesStore{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewStaticRulesStore wraps already compiled rules; Reload is a no-op error.
func NewStaticRulesStore(rules *Rules) *RulesStore {
	s := &RulesStore{logger: zap.NewNop()}
	s.current.Store(rules)
	return s
}

// Current returns the active rules snapshot.
func (s *RulesStore) Current() *Rules {
	return s.current.Load()
}

// Reload recompiles the document and swaps it in only if it compiles.
func (s *RulesStore) Reload() error {
	if s.path == "" {
		return &ConfigLoadError{Message: "rules store has no backing document"}
	}
	rules, err := LoadRules(s.path)
	if err != nil {
		s.logger.Error("disambiguation rules rejected", zap.String("path", s.path), zap.Error(err))
		return err
	}
	for _, w := range rules.Warnings {
		s.logger.Warn("disambiguation rules warning", zap.String("path", s.path), zap.String("warning", w))
	}
	s.current.Store(rules)
	s.logger.Info("disambiguation rules loaded", zap.String("path", s.path),
		zap.Int("maxOptions", rules.Limits.MaxOptions), zap.Int("maxAttempts", rules.Limits.MaxAttempts))
	return nil
}
