// Package scoring reduces Pattern Detector indicator results to a weighted
// threat score and escalation level. It is a pure function over its inputs:
// no state, no I/O.
package scoring

import "github.com/tarekazabou/ransomguard/internal/pattern"

// DefaultWeight is the contribution of one triggered indicator to the raw
// score. The set sums to 120, so three strong indicators alone cross the
// action-required threshold of 71. A tuning overrides file may replace any
// subset of these (see internal/tuning).
var DefaultWeight = map[string]int{
	pattern.MassModification:      25,
	pattern.EntropySpike:          30,
	pattern.ExtensionManipulation: 25,
	pattern.DirectoryTraversal:    10,
	pattern.SuspiciousProcess:     10,
	pattern.DeletionPattern:       20,
}

// Level is the classification band derived from a clamped score.
type Level string

const (
	Normal     Level = "NORMAL"
	Suspicious Level = "SUSPICIOUS"
	Likely     Level = "LIKELY"
	Critical   Level = "CRITICAL"
)

// Score is the derived threat assessment for one PID.
type Score struct {
	PID                 int32
	ProcessName         string
	Value               int // clamped to [0, 100]
	Level               Level
	TriggeredIndicators map[string]string // indicator -> detail
	ActionRequired      bool
}

// Classify maps a clamped score to its escalation band.
func Classify(score int) Level {
	switch {
	case score <= 30:
		return Normal
	case score <= 50:
		return Suspicious
	case score <= 70:
		return Likely
	default:
		return Critical
	}
}

// ScoreIndicators reduces indicators to a Score for the given process,
// using weights (nil selects DefaultWeight). Indicators that didn't
// trigger contribute nothing and are omitted from TriggeredIndicators.
func ScoreIndicators(pid int32, processName string, indicators map[string]pattern.IndicatorResult, weights map[string]int) Score {
	if weights == nil {
		weights = DefaultWeight
	}

	raw := 0
	triggered := make(map[string]string)
	for name, result := range indicators {
		if !result.Triggered {
			continue
		}
		raw += weights[name]
		triggered[name] = result.Detail
	}

	value := raw
	if value > 100 {
		value = 100
	}

	return Score{
		PID:                 pid,
		ProcessName:         processName,
		Value:               value,
		Level:               Classify(value),
		TriggeredIndicators: triggered,
		ActionRequired:      value >= 71,
	}
}
