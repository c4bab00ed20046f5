package entropy

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Result is the outcome of one entropy evaluation.
type Result struct {
	Path       string
	Before     *float64
	After      float64
	Delta      float64
	Suspicious bool
}

// Analyzer ties byte-sampled entropy scoring to the durable baseline store,
// classifying each modification as a spike or not.
type Analyzer struct {
	store          *BaselineStore
	deltaThreshold float64
	sampleSize     int
	log            *logrus.Entry
}

// NewAnalyzer builds an Analyzer over an already-open BaselineStore. A
// deltaThreshold <= 0 uses DefaultDeltaThreshold.
func NewAnalyzer(store *BaselineStore, deltaThreshold float64) *Analyzer {
	if deltaThreshold <= 0 {
		deltaThreshold = DefaultDeltaThreshold
	}
	return &Analyzer{
		store:          store,
		deltaThreshold: deltaThreshold,
		sampleSize:     DefaultSampleSize,
		log:            logrus.WithField("component", "entropy"),
	}
}

// AnalyzeModification computes the current entropy of path, compares it to
// the prior baseline, records an alert, and updates the baseline. The
// durable write is committed before this returns.
func (a *Analyzer) AnalyzeModification(path string) (Result, error) {
	after, err := FileEntropy(path, a.sampleSize)
	now := time.Now()
	if err != nil {
		return Result{}, err
	}

	prior, had, err := a.store.Lookup(path)
	if err != nil {
		return Result{}, err
	}

	var before *float64
	var delta float64
	var suspicious bool
	if had {
		b := prior
		before = &b
		delta = after - prior
		suspicious = delta >= a.deltaThreshold
	} else {
		delta = 0
		suspicious = after >= HighEntropyAbsolute
	}

	if err := a.store.Set(path, after, now); err != nil {
		return Result{}, err
	}
	if _, err := a.store.RecordAlert(Alert{
		Timestamp:  now,
		Path:       path,
		Before:     before,
		After:      after,
		Delta:      delta,
		Suspicious: suspicious,
	}); err != nil {
		return Result{}, err
	}

	if suspicious {
		a.log.WithFields(logrus.Fields{
			"path":  path,
			"after": after,
			"delta": delta,
		}).Warn("entropy spike detected")
	}

	return Result{Path: path, Before: before, After: after, Delta: delta, Suspicious: suspicious}, nil
}

// OnCreate initializes the baseline for a newly created file. A file
// created already at high entropy is logged as suspicious even though there
// is no prior sample to diff against.
func (a *Analyzer) OnCreate(path string) (Result, error) {
	after, err := FileEntropy(path, a.sampleSize)
	now := time.Now()
	if err != nil {
		return Result{}, err
	}

	suspicious := after >= HighEntropyAbsolute
	if err := a.store.Set(path, after, now); err != nil {
		return Result{}, err
	}
	if _, err := a.store.RecordAlert(Alert{
		Timestamp:  now,
		Path:       path,
		After:      after,
		Suspicious: suspicious,
	}); err != nil {
		return Result{}, err
	}
	if suspicious {
		a.log.WithFields(logrus.Fields{"path": path, "after": after}).Warn("high-entropy file created")
	}
	return Result{Path: path, After: after, Suspicious: suspicious}, nil
}

// OnDelete purges path's baseline; a deleted file carries no further
// entropy history.
func (a *Analyzer) OnDelete(path string) error {
	return a.store.Delete(path)
}
