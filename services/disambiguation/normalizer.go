package disambiguation

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxNormalizePasses bounds the fixed-point loop in Normalize. Stop-word
// removal can expose new multi-word matches, so one pass is not always enough.
const maxNormalizePasses = 4

var whitespaceRe = regexp.MustCompile(`\s+`)

// Normalizer turns free text into the canonical form used for catalog lookups.
type Normalizer struct {
	disallowed *regexp.Regexp
	stopWords  []*regexp.Regexp
	synonyms   map[string]string
}

// NewNormalizer compiles a normalizer. allowedChars is the body of a regex
// character class, e.g. "a-z0-9".
func NewNormalizer(allowedChars string, stopWords []*regexp.Regexp, synonyms map[string]string) (*Normalizer, error) {
	if allowedChars == "" {
		allowedChars = "a-z0-9"
	}
	disallowed, err := regexp.Compile(`[^` + allowedChars + `\s]+`)
	if err != nil {
		return nil, &ConfigLoadError{Field: "normalization.allowed_chars", Message: "invalid character class", Err: err}
	}
	syn := make(map[string]string, len(synonyms))
	for k, v := range synonyms {
		syn[k] = v
	}
	return &Normalizer{disallowed: disallowed, stopWords: stopWords, synonyms: syn}, nil
}

// stripAccents removes combining marks after compatibility decomposition, so
// ligatures and full-width forms fold to plain letters. Case folding maps
// ß to ss.
func stripAccents(s string) string {
	t := transform.Chain(norm.NFKD, cases.Fold(), runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Normalize is deterministic and never fails; the result may be empty.
func (n *Normalizer) Normalize(text string) string {
	s := text
	for i := 0; i < maxNormalizePasses; i++ {
		next := n.pass(s)
		if next == s {
			break
		}
		s = next
	}
	return s
}

func (n *Normalizer) pass(text string) string {
	s := strings.ToLower(text)
	s = stripAccents(s)
	s = n.disallowed.ReplaceAllString(s, " ")
	for _, re := range n.stopWords {
		s = re.ReplaceAllString(s, " ")
	}
	if len(n.synonyms) > 0 {
		tokens := strings.Fields(s)
		for i, tok := range tokens {
			if canonical, ok := n.synonyms[tok]; ok {
				tokens[i] = canonical
			}
		}
		s = strings.Join(tokens, " ")
	}
	s = whitespaceRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
