package disambiguation

import (
	"regexp"
	"strconv"
	"strings"
)

// Label is the class a user utterance falls into.
type Label string

const (
	LabelNone        Label = "none"
	LabelNumeric     Label = "numeric"
	LabelAffirmative Label = "affirmative"
	LabelNegative    Label = "negative"
	LabelAmbiguous   Label = "ambiguous"
)

// Classifier hides the matching strategy from the state machine.
type Classifier interface {
	// Classify returns the first matching label in precedence order
	// numeric, affirmative, negative, ambiguous.
	Classify(text string) Label
	// Is reports whether text belongs to label, independent of precedence.
	Is(text string, label Label) bool
}

// PatternSet holds the ordered regex lists of the rules document.
type PatternSet struct {
	NumericChoice     []*regexp.Regexp
	CategoryAmbiguous []*regexp.Regexp
	Affirmative       []*regexp.Regexp
	Negative          []*regexp.Regexp
}

// RegexClassifier evaluates raw input against configured patterns.
type RegexClassifier struct {
	patterns   PatternSet
	ordinals   map[string]int
	normalizer *Normalizer
}

// NewRegexClassifier builds a classifier. ordinals map normalized words to
// 1-based indexes and count as numeric choices.
func NewRegexClassifier(patterns PatternSet, ordinals map[string]int, normalizer *Normalizer) *RegexClassifier {
	return &RegexClassifier{patterns: patterns, ordinals: ordinals, normalizer: normalizer}
}

var _ Classifier = (*RegexClassifier)(nil)

func (c *RegexClassifier) Classify(text string) Label {
	for _, label := range []Label{LabelNumeric, LabelAffirmative, LabelNegative, LabelAmbiguous} {
		if c.Is(text, label) {
			return label
		}
	}
	return LabelNone
}

func (c *RegexClassifier) Is(text string, label Label) bool {
	switch label {
	case LabelNumeric:
		return c.IsNumericChoice(text)
	case LabelAffirmative:
		return firstMatch(c.patterns.Affirmative, text) != nil
	case LabelNegative:
		return firstMatch(c.patterns.Negative, text) != nil
	case LabelAmbiguous:
		return c.IsAmbiguous(text)
	}
	return false
}

// IsAmbiguous reports whether text names a broad category.
func (c *RegexClassifier) IsAmbiguous(text string) bool {
	return firstMatch(c.patterns.CategoryAmbiguous, text) != nil
}

// IsNumericChoice reports whether text selects an option by position.
func (c *RegexClassifier) IsNumericChoice(text string) bool {
	if firstMatch(c.patterns.NumericChoice, text) != nil {
		return true
	}
	_, ok := c.ordinal(text)
	return ok
}

// Category extracts the category term from an ambiguous input: the
// normalized "category" group of the first matching pattern if it has one,
// the whole normalized input otherwise.
func (c *RegexClassifier) Category(text string) string {
	re := firstMatch(c.patterns.CategoryAmbiguous, text)
	if re != nil {
		if idx := re.SubexpIndex("category"); idx > 0 {
			m := re.FindStringSubmatch(text)
			if idx < len(m) && m[idx] != "" {
				if cat := c.normalizer.Normalize(m[idx]); cat != "" {
					return cat
				}
			}
		}
	}
	return c.normalizer.Normalize(text)
}

var digitsRe = regexp.MustCompile(`\d+`)

// ParseChoice returns the 1-based index a numeric choice refers to.
func (c *RegexClassifier) ParseChoice(text string) (int, bool) {
	if !c.IsNumericChoice(text) {
		return 0, false
	}
	if d := digitsRe.FindString(text); d != "" {
		n, err := strconv.Atoi(d)
		if err != nil {
			return 0, false
		}
		return n, true
	}
	return c.ordinal(text)
}

func (c *RegexClassifier) ordinal(text string) (int, bool) {
	if len(c.ordinals) == 0 {
		return 0, false
	}
	normalized := c.normalizer.Normalize(text)
	if n, ok := c.ordinals[normalized]; ok {
		return n, true
	}
	for _, tok := range strings.Fields(normalized) {
		if n, ok := c.ordinals[tok]; ok {
			return n, true
		}
	}
	return 0, false
}

func firstMatch(patterns []*regexp.Regexp, text string) *regexp.Regexp {
	for _, re := range patterns {
		if re.MatchString(text) {
			return re
		}
	}
	return nil
}
