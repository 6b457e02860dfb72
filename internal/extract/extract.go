package extract

import (
	"regexp"
	"strings"
)

// Source pages are uncontrolled markup; values are located by scanning for
// numeric tokens rather than parsing document structure. All functions are
// total: no match is an empty result, never an error.

var (
	percentPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*\s*%`)
	decimalPattern = regexp.MustCompile(`\d+(?:[.,]\d+)*`)
)

// Percentages returns every percentage token in text, left to right,
// normalized with the % suffix preserved (e.g. "62.5%").
func Percentages(text string) []string {
	matches := percentPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, Normalize(m))
	}
	return out
}

// Decimals returns every decimal token in text, left to right, normalized
// without a suffix (e.g. "1480.50").
func Decimals(text string) []string {
	matches := decimalPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return nil
	}
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, Normalize(m))
	}
	return out
}

// Normalize strips everything but digits and separators from a token,
// resolves thousands separators, and converts a comma decimal separator to a
// period. A trailing percent sign in the input is preserved. "1.234,50" is
// read as the Spanish-locale form of 1234.50.
func Normalize(token string) string {
	hasPercent := strings.Contains(token, "%")
	var b strings.Builder
	for _, r := range token {
		if (r >= '0' && r <= '9') || r == '.' || r == ',' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if strings.Contains(s, ".") && strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
	}
	s = strings.ReplaceAll(s, ",", ".")
	if hasPercent {
		s += "%"
	}
	return s
}

// NearLabel returns the first numeric token (percentage or plain decimal)
// found within window characters after the first occurrence of label.
// Matching is case-insensitive.
func NearLabel(text, label string, window int) (string, bool) {
	if label == "" || window <= 0 {
		return "", false
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(label))
	if idx < 0 {
		return "", false
	}

	start := idx + len(label)
	if start >= len(text) {
		return "", false
	}
	end := start + window
	if end > len(text) {
		end = len(text)
	}
	scope := text[start:end]

	if m := percentPattern.FindString(scope); m != "" {
		return Normalize(m), true
	}
	if m := decimalPattern.FindString(scope); m != "" {
		return Normalize(m), true
	}
	return "", false
}

// Cells are deliberately absent: the unit of interest is the row or list
// item holding the label together with its values.
var blockTags = []string{"tr", "li", "div", "p"}

// EnclosingBlock returns the nearest enclosing markup block (table row, list
// item, div or paragraph) that contains label, falling back to the line
// containing it. Matching is case-insensitive.
func EnclosingBlock(text, label string) (string, bool) {
	if label == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	idx := strings.Index(lower, strings.ToLower(label))
	if idx < 0 {
		return "", false
	}

	// Pick the opening block tag closest before the label.
	openStart := -1
	openTag := ""
	for _, tag := range blockTags {
		if pos := strings.LastIndex(lower[:idx], "<"+tag); pos > openStart {
			openStart = pos
			openTag = tag
		}
	}
	if openStart >= 0 {
		closing := "</" + openTag + ">"
		if rel := strings.Index(lower[idx:], closing); rel >= 0 {
			return text[openStart : idx+rel+len(closing)], true
		}
	}

	// No surrounding markup: fall back to the label's line.
	lineStart := strings.LastIndexByte(text[:idx], '\n') + 1
	lineEnd := strings.IndexByte(text[idx:], '\n')
	if lineEnd < 0 {
		lineEnd = len(text)
	} else {
		lineEnd += idx
	}
	return text[lineStart:lineEnd], true
}
