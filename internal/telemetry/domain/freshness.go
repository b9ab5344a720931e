package telemetry

import "time"

// DefaultStaleThreshold is the age past which a snapshot is stale.
const DefaultStaleThreshold = 2 * time.Minute

// Freshness is the staleness verdict over a merged snapshot.
type Freshness struct {
	IsFresh bool
	// Age is measured from the single most recent contributing
	// timestamp; meaningless when HasData is false.
	Age     time.Duration
	HasData bool
}

// AgeSeconds returns the age in whole seconds, or nil when the snapshot
// has no contributing timestamps (encoding/json cannot represent +Inf).
func (f Freshness) AgeSeconds() *int64 {
	if !f.HasData {
		return nil
	}
	seconds := int64(f.Age.Round(time.Second) / time.Second)
	return &seconds
}

// EvaluateFreshness computes the verdict from heterogeneous timestamps
// across both sensor populations. One fresh moisture reading is enough to
// consider the feed live even when the shared room cluster lags.
func EvaluateFreshness(timestamps []time.Time, now time.Time, threshold time.Duration) Freshness {
	if threshold <= 0 {
		threshold = DefaultStaleThreshold
	}
	var latest time.Time
	for _, ts := range timestamps {
		if ts.After(latest) {
			latest = ts
		}
	}
	if latest.IsZero() {
		return Freshness{IsFresh: false, HasData: false}
	}
	age := now.Sub(latest)
	return Freshness{
		IsFresh: age < threshold,
		Age:     age,
		HasData: true,
	}
}
