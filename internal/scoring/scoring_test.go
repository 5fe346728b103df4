package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"veracity/internal/feature"
)

func TestScoreCleanVector(t *testing.T) {
	v := Score(feature.Vector{})

	assert.Equal(t, 100, v.Score)
	assert.Equal(t, StatusCredible, v.Status)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, SeverityTrue, v.Findings[0].Severity)
}

func TestScoreBounds(t *testing.T) {
	// Every signal maxed out: the sum of penalties exceeds 100, the score must
	// still clamp at 0.
	var all feature.Vector
	for i := range all {
		all[i] = 1
	}
	v := Score(all)

	assert.Equal(t, 0, v.Score)
	assert.Equal(t, StatusExtremelyMisleading, v.Status)
	assert.LessOrEqual(t, len(v.Findings), 3, "rationales are capped at three")
}

func TestScoreStatusBands(t *testing.T) {
	tests := []struct {
		name string
		vec  func() feature.Vector
		want Status
	}{
		{
			name: "no signals is credible",
			vec:  func() feature.Vector { return feature.Vector{} },
			want: StatusCredible,
		},
		{
			name: "uncertainty alone stays credible",
			vec: func() feature.Vector {
				var v feature.Vector
				v[feature.SlotUncertaintyDensity] = 0.02
				return v
			},
			want: StatusCredible, // 100-15 = 85
		},
		{
			name: "uncertainty plus virality is questionable",
			vec: func() feature.Vector {
				var v feature.Vector
				v[feature.SlotUncertaintyDensity] = 0.02
				v[feature.SlotSharePressure] = 1
				return v
			},
			want: StatusQuestionable, // 100-15-25 = 60
		},
		{
			name: "suspicious plus formatting is misleading",
			vec: func() feature.Vector {
				var v feature.Vector
				v[feature.SlotSuspiciousDensity] = 0.05
				v[feature.SlotExclamationRuns] = 1
				return v
			},
			want: StatusMisleading, // 100-30-20 = 50
		},
		{
			name: "everything triggered is extremely misleading",
			vec: func() feature.Vector {
				var v feature.Vector
				v[feature.SlotSuspiciousDensity] = 1
				v[feature.SlotEmotionalDensity] = 1
				v[feature.SlotUncertaintyDensity] = 1
				v[feature.SlotAllCapsRuns] = 1
				v[feature.SlotSharePressure] = 1
				return v
			},
			want: StatusExtremelyMisleading, // 100-115 -> 0
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Score(tt.vec())
			assert.Equal(t, statusFor(v.Score), v.Status, "status must match the documented band for the score")
			assert.GreaterOrEqual(t, v.Score, 0)
			assert.LessOrEqual(t, v.Score, 100)
			assert.Equal(t, tt.want, v.Status)
		})
	}
}

func TestScoreMonotonicPenalty(t *testing.T) {
	// Raising any single signal past its threshold, holding the rest fixed,
	// never increases the score.
	slots := []int{
		feature.SlotSuspiciousDensity,
		feature.SlotEmotionalDensity,
		feature.SlotUncertaintyDensity,
		feature.SlotExclamationRuns,
		feature.SlotAllCapsRuns,
		feature.SlotQuestionRuns,
		feature.SlotSharePressure,
		feature.SlotCensorshipClaim,
	}

	base := feature.Vector{}
	baseScore := Score(base).Score

	for _, slot := range slots {
		raised := base
		raised[slot] = 1
		assert.LessOrEqual(t, Score(raised).Score, baseScore, "raising slot %d must not raise the score", slot)
	}
}

func TestScoreScenarioSensational(t *testing.T) {
	text := "BREAKING!!! Scientists SECRETLY discover shocking truth they don't want you to know!!!"
	v := Score(feature.Extract(text))

	assert.LessOrEqual(t, v.Score, 30)
	assert.Equal(t, StatusExtremelyMisleading, v.Status)
	assert.NotEmpty(t, v.Findings)
}

func TestScoreScenarioNeutral(t *testing.T) {
	text := "The central bank raised interest rates by 0.25% on Tuesday."
	v := Score(feature.Extract(text))

	assert.GreaterOrEqual(t, v.Score, 80)
	assert.Equal(t, StatusCredible, v.Status)
}

func TestScoreDeterministic(t *testing.T) {
	text := "Share this shocking report before it's removed!!!"
	a := Score(feature.Extract(text))
	b := Score(feature.Extract(text))
	assert.Equal(t, a, b)
}

func TestDegraded(t *testing.T) {
	v := Degraded()
	assert.Equal(t, StatusQuestionable, v.Status)
	assert.GreaterOrEqual(t, v.Score, 0)
	assert.LessOrEqual(t, v.Score, 100)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, SeverityCaution, v.Findings[0].Severity)
}

func TestSeverityMapping(t *testing.T) {
	assert.Equal(t, SeverityFalse, severityFor(30))
	assert.Equal(t, SeverityFalse, severityFor(25))
	assert.Equal(t, SeverityCaution, severityFor(20))
	assert.Equal(t, SeverityCaution, severityFor(15))
}
