package service

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxCandidateLabels bounds how many labels one document batch may contribute
// downstream.
const maxCandidateLabels = 40

var (
	bracketNoiseRe   = regexp.MustCompile(`[{}\[\]]`)
	punctRunRe       = regexp.MustCompile(`[,:;]+`)
	whitespaceRe     = regexp.MustCompile(`\s+`)
	edgePunctRe      = regexp.MustCompile(`^[^\p{L}\p{N}]+|[^\p{L}\p{N}]+$`)
	pureNumericRe    = regexp.MustCompile(`^[0-9.,\s]+$`)
	hasDigitRe       = regexp.MustCompile(`[0-9]`)
	hasLetterRe      = regexp.MustCompile(`\p{L}`)
	gradeKeywordRe   = regexp.MustCompile(`^(coefficient|coef|examen|travaux|projet|moyenne|credit|crédit|rattrapage|devoir|tp|td)`)
	nonAlnumRunRe    = regexp.MustCompile(`[^\p{L}\p{N}\s]+`)
	diacriticRemover = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Transcript section headers that OCR reads back as lines but that never name
// a course.
var headerFragments = []string{
	"semestre",
	"unite/matiere",
	"cpi",
	"algorithmique et programmation",
	"langues, communication",
	"science fondamental",
	"systeme d'information",
	"aux et systemes d'exploitation",
}

// SanitizeLabels cleans a structured course list: per-label noise filtering,
// case-insensitive dedup, order preserved, capped at maxCandidateLabels.
// Deterministic and idempotent on its own output.
func SanitizeLabels(labels []string) []string {
	seen := make(map[string]struct{}, len(labels))
	out := make([]string, 0, len(labels))
	for _, label := range labels {
		cleaned, ok := sanitizeCourseLabel(label, seen)
		if !ok {
			continue
		}
		out = append(out, cleaned)
		if len(out) == maxCandidateLabels {
			break
		}
	}
	return out
}

// ExtractLabelsFromRaw is the fallback parser for when OCR returned text but
// no structured course list: split into lines, strip bracket and punctuation
// noise, then sanitize like any other label batch.
func ExtractLabelsFromRaw(rawText string) []string {
	if strings.TrimSpace(rawText) == "" {
		return nil
	}
	lines := strings.FieldsFunc(rawText, func(r rune) bool { return r == '\n' || r == '\r' })
	candidates := make([]string, 0, len(lines))
	for _, line := range lines {
		cleaned := bracketNoiseRe.ReplaceAllString(line, " ")
		cleaned = punctRunRe.ReplaceAllString(cleaned, " ")
		cleaned = strings.TrimSpace(cleaned)
		if cleaned != "" {
			candidates = append(candidates, cleaned)
		}
	}
	return SanitizeLabels(candidates)
}

// sanitizeCourseLabel returns the cleaned label, or ok=false when the line is
// a header, grade row or other non-subject noise. seen carries the
// case-insensitive dedup state across one batch.
func sanitizeCourseLabel(input string, seen map[string]struct{}) (string, bool) {
	// Cleanup first, noise checks on the cleaned form: emitted labels are
	// already cleaned, so feeding the output back in changes nothing.
	cleaned := whitespaceRe.ReplaceAllString(strings.TrimSpace(input), " ")
	cleaned = edgePunctRe.ReplaceAllString(cleaned, "")
	if utf8.RuneCountInString(cleaned) < 3 {
		return "", false
	}

	lower := strings.ToLower(cleaned)
	if strings.Contains(lower, "unité") {
		return "", false
	}
	normalizedLower := stripDiacritics(lower)
	for _, fragment := range headerFragments {
		if strings.Contains(normalizedLower, fragment) {
			return "", false
		}
	}
	if gradeKeywordRe.MatchString(lower) {
		return "", false
	}
	if pureNumericRe.MatchString(cleaned) {
		return "", false
	}
	// Ultra-short single-word tokens without digits are OCR debris, not
	// course names.
	if !hasDigitRe.MatchString(cleaned) {
		if !strings.ContainsAny(cleaned, " \t") && utf8.RuneCountInString(cleaned) <= 5 {
			return "", false
		}
	}
	if !hasLetterRe.MatchString(cleaned) {
		return "", false
	}

	key := lower
	if _, dup := seen[key]; dup {
		return "", false
	}
	seen[key] = struct{}{}
	return cleaned, true
}

// NormalizeLabel produces the diacritic-insensitive lookup key used for
// matcher payloads, suggestion dedup and alias cleanup: strip accents, squash
// non-alphanumeric runs to single spaces, trim, lowercase.
func NormalizeLabel(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	s := stripDiacritics(raw)
	s = nonAlnumRunRe.ReplaceAllString(s, " ")
	s = whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
	return strings.ToLower(s)
}

func stripDiacritics(s string) string {
	out, _, err := transform.String(diacriticRemover, s)
	if err != nil {
		return s
	}
	return out
}
