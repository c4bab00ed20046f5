package tuning

import (
	"strings"

	"github.com/tarekazabou/ransomguard/internal/pattern"
	"github.com/tarekazabou/ransomguard/internal/scoring"
)

// Thresholds builds pattern.Thresholds starting from the compiled-in
// defaults and applying any values o sets.
func (o Overrides) Thresholds() pattern.Thresholds {
	th := pattern.DefaultThresholds()

	if v := o.Thresholds.MassModificationCount; v != nil {
		th.MassModificationCount = *v
	}
	if v := o.Thresholds.EntropySpikeCount; v != nil {
		th.EntropySpikeCount = *v
	}
	if v := o.Thresholds.EntropyDelta; v != nil {
		th.EntropyDeltaMin = *v
	}
	if v := o.Thresholds.DirectoryCount; v != nil {
		th.DirectoryCount = *v
	}
	if v := o.Thresholds.ExtensionRenameCount; v != nil {
		th.ExtensionRenameCount = *v
	}

	if len(o.SuspiciousExtensions) > 0 {
		ext := make(map[string]struct{}, len(o.SuspiciousExtensions))
		for _, e := range o.SuspiciousExtensions {
			ext[strings.ToLower(e)] = struct{}{}
		}
		th.Extensions = ext
	}
	if len(o.TempDirMarkers) > 0 {
		th.TempMarkers = append([]string(nil), o.TempDirMarkers...)
	}

	return th
}

// Weights builds the indicator->weight map starting from
// scoring.DefaultWeight and applying any values o sets.
func (o Overrides) Weights() map[string]int {
	w := make(map[string]int, len(scoring.DefaultWeight))
	for k, v := range scoring.DefaultWeight {
		w[k] = v
	}

	set := func(key string, v *int) {
		if v != nil {
			w[key] = *v
		}
	}
	set(pattern.MassModification, o.Weights.MassModification)
	set(pattern.EntropySpike, o.Weights.EntropySpike)
	set(pattern.ExtensionManipulation, o.Weights.ExtensionManipulation)
	set(pattern.DirectoryTraversal, o.Weights.DirectoryTraversal)
	set(pattern.SuspiciousProcess, o.Weights.SuspiciousProcess)
	set(pattern.DeletionPattern, o.Weights.DeletionPattern)

	return w
}
