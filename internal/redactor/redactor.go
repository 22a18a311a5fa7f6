// Package redactor masks sensitive substrings in log text. It is pure:
// no I/O, and the absence of a match is a normal outcome, not an error.
package redactor

import (
	"regexp"
	"sort"
	"strings"
)

// MaskToken replaces every matched span. It contains no digits and no
// address characters, so redacted output never matches a pattern again.
const MaskToken = "[REDACTED]"

// Matcher pairs a pattern with a name used in metrics and failure reasons.
type Matcher struct {
	Name    string
	Pattern *regexp.Regexp
}

var (
	ssnPattern   = regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)
	phonePattern = regexp.MustCompile(`(\+?\d{1,2}[\s.-]?)?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}\b`)
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)
)

// DefaultMatchers returns the built-in matcher set in priority order.
// An SSN-shaped sequence wins over a phone match on the same digits; a
// span claimed by a higher-priority matcher is never rescanned. The set
// is not a completeness guarantee for any category; callers with
// stricter requirements should pass their own matchers to New.
func DefaultMatchers() []Matcher {
	return []Matcher{
		{Name: "ssn", Pattern: ssnPattern},
		{Name: "phone", Pattern: phonePattern},
		{Name: "email", Pattern: emailPattern},
	}
}

// Redactor applies an ordered matcher set over text.
type Redactor struct {
	matchers []Matcher
}

// New constructs a Redactor. With no arguments the default matcher set is
// used; otherwise matchers are applied in the order given, highest
// priority first.
func New(matchers ...Matcher) *Redactor {
	if len(matchers) == 0 {
		matchers = DefaultMatchers()
	}
	return &Redactor{matchers: matchers}
}

type span struct {
	start, end int
}

// Redact returns text with every sensitive span replaced by MaskToken,
// and whether at least one replacement occurred. Matching is single-pass:
// each matcher scans the original text, and overlapping claims are
// resolved in matcher priority order.
func (r *Redactor) Redact(text string) (string, bool) {
	var claimed []span
	for _, m := range r.matchers {
		for _, loc := range m.Pattern.FindAllStringIndex(text, -1) {
			c := span{start: loc[0], end: loc[1]}
			if overlapsAny(claimed, c) {
				continue
			}
			claimed = append(claimed, c)
		}
	}

	if len(claimed) == 0 {
		return text, false
	}

	sort.Slice(claimed, func(i, j int) bool { return claimed[i].start < claimed[j].start })

	var b strings.Builder
	prev := 0
	for _, s := range claimed {
		b.WriteString(text[prev:s.start])
		b.WriteString(MaskToken)
		prev = s.end
	}
	b.WriteString(text[prev:])

	return b.String(), true
}

func overlapsAny(spans []span, c span) bool {
	for _, s := range spans {
		if c.start < s.end && s.start < c.end {
			return true
		}
	}
	return false
}
