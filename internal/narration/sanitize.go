package narration

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"
)

// DefaultMaxRunes is the longest text handed to a speech provider.
const DefaultMaxRunes = 1000

// DefaultPhonetics maps terms the voice mispronounces to their spoken form.
// Acronym keys also match dotted and undotted spellings in any case.
var DefaultPhonetics = map[string]string{
	"S.C.A.A.M": "Scam",
}

// markdown is the emphasis punctuation removed before synthesis. Underscores
// are handled by [splitUnderscores].
var markdown = strings.NewReplacer("*", "", "`", "", "#", "", "~", "")

// newTokenizer is replaced in tests.
var newTokenizer = english.NewSentenceTokenizer

type phonetic struct {
	re  *regexp.Regexp
	say string
}

// Sanitizer turns assistant text into something a voice can read aloud.
// It is safe for concurrent use.
type Sanitizer struct {
	maxRunes  int
	phonetics []phonetic
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewSanitizer builds a Sanitizer. maxRunes <= 0 selects [DefaultMaxRunes];
// a nil phonetics map selects [DefaultPhonetics].
func NewSanitizer(maxRunes int, phonetics map[string]string) *Sanitizer {
	if maxRunes <= 0 {
		maxRunes = DefaultMaxRunes
	}
	if phonetics == nil {
		phonetics = DefaultPhonetics
	}
	s := &Sanitizer{maxRunes: maxRunes}
	for term, say := range phonetics {
		if re := phoneticPattern(term); re != nil {
			s.phonetics = append(s.phonetics, phonetic{re: re, say: say})
		}
	}
	tok, err := newTokenizer(nil)
	if err != nil {
		slog.Warn("sentence tokenizer unavailable, truncation will hard-cut", "err", err)
		return s
	}
	s.tokenizer = tok
	return s
}

// phoneticPattern compiles a case-insensitive matcher for term. Acronyms
// (letters optionally separated by dots) match with or without the dots and
// capture a trailing period so it can be kept as sentence punctuation.
func phoneticPattern(term string) *regexp.Regexp {
	letters := strings.ReplaceAll(term, ".", "")
	if letters == "" {
		return nil
	}
	if isAcronym(letters) {
		parts := strings.Split(letters, "")
		return regexp.MustCompile(`(?i)\b` + strings.Join(parts, `\.?`) + `\b(\.)?`)
	}
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(term) + `\b()`)
}

func isAcronym(s string) bool {
	for _, r := range s {
		if !unicode.IsUpper(r) {
			return false
		}
	}
	return utf8.RuneCountInString(s) > 1
}

var defaultSanitizer = NewSanitizer(DefaultMaxRunes, nil)

// Sanitize applies the default [Sanitizer].
func Sanitize(text string) string { return defaultSanitizer.Sanitize(text) }

// Sanitize strips markdown emphasis, respells terms from the phonetics map,
// collapses whitespace and truncates to the rune limit.
func (s *Sanitizer) Sanitize(text string) string {
	text = markdown.Replace(splitUnderscores(text))
	for _, p := range s.phonetics {
		text = p.re.ReplaceAllString(text, strings.ReplaceAll(p.say, "$", "$$")+"${1}")
	}
	text = strings.Join(strings.Fields(text), " ")
	return s.truncate(text)
}

// splitUnderscores turns a run of underscores joining two words into a space,
// so TEAM_SCAAM reads as two words, and drops any other underscore.
func splitUnderscores(text string) string {
	if !strings.Contains(text, "_") {
		return text
	}
	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i := 0; i < len(runes); i++ {
		if runes[i] != '_' {
			b.WriteRune(runes[i])
			continue
		}
		j := i
		for j < len(runes) && runes[j] == '_' {
			j++
		}
		if i > 0 && j < len(runes) && isWordRune(runes[i-1]) && isWordRune(runes[j]) {
			b.WriteByte(' ')
		}
		i = j - 1
	}
	return b.String()
}

func isWordRune(r rune) bool { return unicode.IsLetter(r) || unicode.IsDigit(r) }

// truncate cuts text to maxRunes. When a sentence ends inside the limit and
// past its half, the cut is made there; otherwise it is a hard rune cut.
func (s *Sanitizer) truncate(text string) string {
	if utf8.RuneCountInString(text) <= s.maxRunes {
		return text
	}
	if end := s.sentenceCut(text); end > 0 {
		return strings.TrimSpace(text[:end])
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:s.maxRunes]))
}

// sentenceCut returns the byte offset of the last usable sentence end, or 0.
func (s *Sanitizer) sentenceCut(text string) int {
	if s.tokenizer == nil {
		return 0
	}
	best, cursor := 0, 0
	for _, sent := range s.tokenizer.Tokenize(text) {
		trimmed := strings.TrimSpace(sent.Text)
		if trimmed == "" {
			continue
		}
		i := strings.Index(text[cursor:], trimmed)
		if i < 0 {
			break
		}
		end := cursor + i + len(trimmed)
		n := utf8.RuneCountInString(text[:end])
		if n > s.maxRunes {
			break
		}
		if n > s.maxRunes/2 {
			best = end
		}
		cursor = end
	}
	return best
}
