// Package scoring maps a feature vector to a credibility verdict using
// documented rule thresholds. Scoring is a pure transform: no I/O, no shared
// state, total over every input vector.
package scoring

import (
	"sort"

	"veracity/internal/feature"
)

// Status is the credibility band for a verdict.
type Status string

const (
	StatusCredible            Status = "credible"
	StatusQuestionable        Status = "questionable"
	StatusMisleading          Status = "misleading"
	StatusExtremelyMisleading Status = "extremely_misleading"
)

// Severity grades a single finding.
type Severity string

const (
	SeverityTrue    Severity = "true"
	SeverityCaution Severity = "caution"
	SeverityFalse   Severity = "false"
)

// Citation points at supporting reference material for a finding.
type Citation struct {
	URL   string `json:"url"`
	Label string `json:"label"`
}

// Finding is one rationale entry in a verdict.
type Finding struct {
	Section     string     `json:"section"`
	Severity    Severity   `json:"severity"`
	Explanation string     `json:"explanation"`
	Citations   []Citation `json:"citations,omitempty"`
}

// Verdict is the structured credibility judgment for a piece of content.
type Verdict struct {
	Score    int       `json:"score"`
	Status   Status    `json:"status"`
	Summary  string    `json:"summary"`
	Findings []Finding `json:"findings"`
}

// rule is one penalty applied when a feature signal exceeds its threshold.
type rule struct {
	section     string
	threshold   float64
	penalty     int
	explanation string
	signal      func(feature.Vector) float64
	citation    *Citation
}

var mediaLiteracyCitation = Citation{
	URL:   "https://www.ifcn.org/",
	Label: "International Fact-Checking Network",
}

var rules = []rule{
	{
		section:     "suspicious language",
		threshold:   0.02,
		penalty:     30,
		explanation: "Contains language patterns typical of misinformation (hidden-truth framing, miracle claims).",
		signal: func(v feature.Vector) float64 {
			return v[feature.SlotSuspiciousDensity]
		},
		citation: &mediaLiteracyCitation,
	},
	{
		section:     "emotional language",
		threshold:   0.015,
		penalty:     25,
		explanation: "High density of emotionally charged wording that pressures rather than informs.",
		signal: func(v feature.Vector) float64 {
			return v[feature.SlotEmotionalDensity]
		},
	},
	{
		section:     "unattributed claims",
		threshold:   0.01,
		penalty:     15,
		explanation: "Relies on hedged, unattributed sourcing (\"allegedly\", \"sources say\").",
		signal: func(v feature.Vector) float64 {
			return v[feature.SlotUncertaintyDensity]
		},
	},
	{
		section:     "sensational formatting",
		threshold:   0,
		penalty:     20,
		explanation: "Uses sensational formatting: repeated punctuation or all-caps shouting.",
		signal: func(v feature.Vector) float64 {
			return v[feature.SlotExclamationRuns] + v[feature.SlotAllCapsRuns] + v[feature.SlotQuestionRuns]
		},
	},
	{
		section:     "virality pressure",
		threshold:   0,
		penalty:     25,
		explanation: "Pushes the reader to spread the content or claims imminent censorship.",
		signal: func(v feature.Vector) float64 {
			return v[feature.SlotSharePressure] + v[feature.SlotCensorshipClaim]
		},
		citation: &mediaLiteracyCitation,
	},
}

// Score computes a verdict for the given feature vector. It never fails and
// never performs I/O.
func Score(v feature.Vector) Verdict {
	score := 100
	var triggered []rule

	for _, r := range rules {
		if r.signal(v) > r.threshold {
			score -= r.penalty
			triggered = append(triggered, r)
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	status := statusFor(score)

	// Heaviest penalties first; cap at the top three rationales.
	sort.SliceStable(triggered, func(i, j int) bool {
		return triggered[i].penalty > triggered[j].penalty
	})
	if len(triggered) > 3 {
		triggered = triggered[:3]
	}

	findings := make([]Finding, 0, len(triggered))
	for _, r := range triggered {
		f := Finding{
			Section:     r.section,
			Severity:    severityFor(r.penalty),
			Explanation: r.explanation,
		}
		if r.citation != nil {
			f.Citations = []Citation{*r.citation}
		}
		findings = append(findings, f)
	}
	if len(findings) == 0 {
		findings = append(findings, Finding{
			Section:     "overall",
			Severity:    SeverityTrue,
			Explanation: "No credibility red flags detected by heuristic analysis.",
		})
	}

	return Verdict{
		Score:    score,
		Status:   status,
		Summary:  summaryFor(status),
		Findings: findings,
	}
}

// Degraded returns the neutral fallback verdict used when analysis could not
// complete. The offline path always answers, so internal failures surface as
// an explicit degraded finding instead of an error.
func Degraded() Verdict {
	return Verdict{
		Score:   50,
		Status:  StatusQuestionable,
		Summary: "Analysis degraded: a full credibility assessment could not be completed.",
		Findings: []Finding{
			{
				Section:     "analysis degraded",
				Severity:    SeverityCaution,
				Explanation: "The credibility engine hit an internal error and returned a neutral verdict. Treat this content with normal skepticism.",
			},
		},
	}
}

func statusFor(score int) Status {
	switch {
	case score >= 80:
		return StatusCredible
	case score >= 60:
		return StatusQuestionable
	case score >= 30:
		return StatusMisleading
	default:
		return StatusExtremelyMisleading
	}
}

func severityFor(penalty int) Severity {
	if penalty >= 25 {
		return SeverityFalse
	}
	return SeverityCaution
}

func summaryFor(status Status) string {
	switch status {
	case StatusCredible:
		return "No significant credibility concerns detected."
	case StatusQuestionable:
		return "Some credibility concerns detected; verify against a second source."
	case StatusMisleading:
		return "Multiple misinformation signals detected; this content is likely misleading."
	default:
		return "Strong misinformation signals detected; this content is very likely misleading."
	}
}
