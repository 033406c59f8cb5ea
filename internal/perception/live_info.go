package perception

import (
	"strings"
)

// LiveInfoDetector decides whether a question needs live (search-grounded) information.
// It is swappable so an intent model can replace the keyword list without
// touching the selection policy.
type LiveInfoDetector interface {
	NeedsLiveInfo(text string) bool
}

// KeywordDetector matches a fixed allow-list of trigger terms, case-insensitively.
type KeywordDetector struct {
	terms []string
}

// NewKeywordDetector builds a detector over terms. Blank terms are dropped.
func NewKeywordDetector(terms []string) *KeywordDetector {
	d := &KeywordDetector{terms: make([]string, 0, len(terms))}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			d.terms = append(d.terms, t)
		}
	}
	return d
}

// NeedsLiveInfo reports whether text contains any trigger term.
func (d *KeywordDetector) NeedsLiveInfo(text string) bool {
	lower := strings.ToLower(text)
	for _, t := range d.terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}

// Terms returns a copy of the trigger list.
func (d *KeywordDetector) Terms() []string {
	out := make([]string, len(d.terms))
	copy(out, d.terms)
	return out
}

// DetectorFunc adapts a plain function to LiveInfoDetector.
type DetectorFunc func(text string) bool

// NeedsLiveInfo calls f.
func (f DetectorFunc) NeedsLiveInfo(text string) bool { return f(text) }
