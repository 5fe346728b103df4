package feature

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractDeterministic(t *testing.T) {
	texts := []string{
		"",
		"BREAKING!!! Scientists SECRETLY discover shocking truth they don't want you to know!!!",
		"The central bank raised interest rates by 0.25% on Tuesday.",
		strings.Repeat("a very long article body ", 500),
		"unicode: héllo wörld — ”quotes” 日本語",
	}

	for _, text := range texts {
		a := Extract(text)
		b := Extract(text)
		assert.Equal(t, a, b, "extraction must be bit-identical for %q", text)
	}
}

func TestExtractBounds(t *testing.T) {
	texts := []string{
		"",
		"!!!!!!!!!!!!!!!!!!!!!!!!",
		"SHARE THIS share this share this ??? ??? ??? CENSORED censored",
		strings.Repeat("shocking secretly hoax conspiracy ", 100),
	}

	for _, text := range texts {
		v := Extract(text)
		for slot, f := range v {
			assert.GreaterOrEqual(t, f, 0.0, "slot %d for %q", slot, text)
			assert.LessOrEqual(t, f, 1.0, "slot %d for %q", slot, text)
		}
	}
}

func TestExtractEmptyInput(t *testing.T) {
	v := Extract("")
	assert.Equal(t, Vector{}, v)
}

func TestExtractOversizedInput(t *testing.T) {
	// Must not fail and must only consider the truncated prefix: a lexicon hit
	// far past the bound contributes nothing.
	huge := strings.Repeat("x", 100_000) + " secretly shocking"
	v := Extract(huge)
	assert.Zero(t, v[SlotSuspiciousDensity])
	assert.Equal(t, 1.0, v[SlotLongText])
}

func TestExtractSensationalText(t *testing.T) {
	v := Extract("BREAKING!!! Scientists SECRETLY discover shocking truth they don't want you to know!!!")

	assert.Greater(t, v[SlotSuspiciousDensity], 0.02, "suspicious density")
	assert.Greater(t, v[SlotEmotionalDensity], 0.015, "emotional density")
	assert.Equal(t, 1.0, v[SlotExclamationRuns], "repeated exclamation marks")
	assert.Equal(t, 1.0, v[SlotAllCapsRuns], "all-caps runs")
	assert.Zero(t, v[SlotSharePressure])
	assert.Zero(t, v[SlotCensorshipClaim])
}

func TestExtractNeutralText(t *testing.T) {
	v := Extract("The central bank raised interest rates by 0.25% on Tuesday.")

	assert.Zero(t, v[SlotSuspiciousDensity])
	assert.Zero(t, v[SlotEmotionalDensity])
	assert.Zero(t, v[SlotUncertaintyDensity])
	assert.Zero(t, v[SlotExclamationRuns])
	assert.Zero(t, v[SlotAllCapsRuns])
	assert.Zero(t, v[SlotQuestionRuns])
	assert.Zero(t, v[SlotSharePressure])
	assert.Zero(t, v[SlotCensorshipClaim])
	assert.Equal(t, 1.0, v[SlotPercentClaims], "0.25%% is a percentage claim")
	assert.Equal(t, 1.0, v[SlotDatePatterns], "Tuesday is a date pattern")
}

func TestExtractViralityPhrases(t *testing.T) {
	v := Extract("Share this before it's removed! They are hiding the evidence.")
	assert.Equal(t, 1.0, v[SlotSharePressure])
	assert.Equal(t, 1.0, v[SlotCensorshipClaim])
}

func TestExtractUncertaintyTerms(t *testing.T) {
	v := Extract("Sources say the deal allegedly collapsed, reportedly over unconfirmed rumors.")
	assert.Greater(t, v[SlotUncertaintyDensity], 0.01)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Hello, World!", "hello world"},
		{"  multiple   spaces  ", "multiple spaces"},
		{"don't", "don t"},
		{"COVER-UP", "cover up"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Normalize(tt.in), "Normalize(%q)", tt.in)
	}
}

func TestCosine(t *testing.T) {
	var a, b Vector
	a[0] = 1
	b[0] = 1
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-9)

	b[0] = 0
	b[1] = 1
	assert.InDelta(t, 0.0, Cosine(a, b), 1e-9)

	// Zero-norm guard: never divides by zero.
	var zero Vector
	assert.Equal(t, 0.0, Cosine(zero, a))
	assert.Equal(t, 0.0, Cosine(zero, zero))
}

func TestCosineIdenticalExtraction(t *testing.T) {
	text := "Shocking claims reportedly exposed!!! Share this before it's removed."
	a := Extract(text)
	b := Extract(text)
	require.InDelta(t, 1.0, Cosine(a, b), 1e-12)
}
