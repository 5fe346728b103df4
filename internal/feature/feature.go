// Package feature turns raw text into a fixed-length numeric vector used both
// for heuristic credibility scoring and for similarity lookup in the result
// cache. Extraction is pure and deterministic: the same text always produces a
// bit-identical vector.
package feature

import (
	"math"
	"regexp"
	"strings"
)

// Slot indexes into a Vector. Dim is the fixed vector length for the lifetime
// of the process; similarity comparisons rely on it never changing.
const (
	SlotSuspiciousDensity = iota
	SlotEmotionalDensity
	SlotUncertaintyDensity
	SlotExclamationRuns
	SlotAllCapsRuns
	SlotQuestionRuns
	SlotSharePressure
	SlotCensorshipClaim
	SlotLongText
	SlotDatePatterns
	SlotPercentClaims
	Dim
)

// Vector is a fixed-length feature vector. Every slot is clamped to [0,1].
type Vector [Dim]float64

const (
	// maxInputLen caps the amount of text inspected so extraction cost is
	// bounded regardless of input size.
	maxInputLen = 512

	// longTextThreshold marks articles long enough to carry substantive
	// content, as opposed to headline-only blurbs.
	longTextThreshold = 300
)

// suspiciousTerms are phrases characteristic of misinformation framing.
// Matched against normalized text, so multi-word phrases must be written in
// normalized form (lowercase, punctuation stripped).
var suspiciousTerms = []string{
	"secretly",
	"shocking",
	"exposed",
	"cover up",
	"coverup",
	"hoax",
	"conspiracy",
	"sheeple",
	"wake up",
	"miracle cure",
	"doctors hate",
	"want you to know",
	"the truth about",
	"hidden truth",
	"mainstream media won t",
	"big pharma",
}

// emotionalTerms are emotionally charged words that pressure the reader
// instead of informing them.
var emotionalTerms = []string{
	"shocking",
	"breaking",
	"urgent",
	"terrifying",
	"horrifying",
	"devastating",
	"unbelievable",
	"outrage",
	"fury",
	"disaster",
	"chaos",
	"explosive",
	"bombshell",
	"slams",
	"destroys",
}

// uncertaintyTerms hedge a claim without attributing it.
var uncertaintyTerms = []string{
	"allegedly",
	"reportedly",
	"some say",
	"sources say",
	"rumor",
	"rumour",
	"unconfirmed",
	"could be",
	"might be",
	"possibly",
	"claims",
}

var (
	nonWordRe    = regexp.MustCompile(`[^a-z0-9]+`)
	allCapsRunRe = regexp.MustCompile(`[A-Z]{3,}`)
	dateRe       = regexp.MustCompile(`\b\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}\b|\b(january|february|march|april|may|june|july|august|september|october|november|december|monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b`)
	percentRe    = regexp.MustCompile(`\d+(\.\d+)?\s*(%|percent)`)
)

// sharePhrases signal virality pressure: the text asks to be spread rather
// than read.
var sharePhrases = []string{
	"share this",
	"share if",
	"share before",
	"retweet this",
	"tell everyone",
}

// censorPhrases claim imminent suppression, another virality-pressure tactic.
var censorPhrases = []string{
	"censored",
	"before it s removed",
	"before they delete",
	"before it gets deleted",
	"being silenced",
	"they are hiding",
}

// Extract computes the feature vector for text. It never fails: empty input
// yields the zero vector and oversized input is truncated to a fixed bound.
func Extract(text string) Vector {
	var v Vector

	raw := text
	if len(raw) > maxInputLen {
		raw = truncateUTF8(raw, maxInputLen)
	}

	norm := Normalize(raw)
	lower := strings.ToLower(raw)

	// Lexicon densities: hits per normalized character.
	n := len(norm)
	if n > 0 {
		v[SlotSuspiciousDensity] = clip(float64(countHits(norm, suspiciousTerms)) / float64(n))
		v[SlotEmotionalDensity] = clip(float64(countHits(norm, emotionalTerms)) / float64(n))
		v[SlotUncertaintyDensity] = clip(float64(countHits(norm, uncertaintyTerms)) / float64(n))
	}

	// Structural signals, computed on the raw (pre-normalization) text since
	// normalization destroys casing and punctuation.
	v[SlotExclamationRuns] = clip(float64(strings.Count(raw, "!!")))
	v[SlotAllCapsRuns] = clip(float64(len(allCapsRunRe.FindAllString(raw, -1))))
	v[SlotQuestionRuns] = clip(float64(strings.Count(raw, "???")))

	v[SlotSharePressure] = clip(float64(countHits(norm, sharePhrases)))
	v[SlotCensorshipClaim] = clip(float64(countHits(norm, censorPhrases)))

	if n > longTextThreshold {
		v[SlotLongText] = 1
	}

	v[SlotDatePatterns] = clip(float64(len(dateRe.FindAllString(lower, -1))))
	v[SlotPercentClaims] = clip(float64(len(percentRe.FindAllString(lower, -1))))

	return v
}

// Normalize lowercases text, replaces runs of non-word characters with a
// single space, and trims the result. Lexicon phrases are matched against this
// form.
func Normalize(text string) string {
	lower := strings.ToLower(text)
	return strings.TrimSpace(nonWordRe.ReplaceAllString(lower, " "))
}

// countHits counts non-overlapping occurrences of every term in the text.
func countHits(text string, terms []string) int {
	total := 0
	for _, term := range terms {
		total += strings.Count(text, term)
	}
	return total
}

// clip bounds a raw feature to [0,1].
func clip(f float64) float64 {
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

// truncateUTF8 cuts s to at most n bytes without splitting a rune.
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && s[n]&0xC0 == 0x80 {
		n--
	}
	return s[:n]
}

// Cosine computes cosine similarity between two vectors, returning 0 when
// either vector has zero norm.
func Cosine(a, b Vector) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
