package poller

import "github.com/restockwatch/worker/internal/domain"

// Verdict compares the previously stored availability against a fresh
// observation. Both sides are reduced with the OR rule: available online or
// in any monitored store.
type Verdict struct {
	Was bool
	Now bool
}

// Changed reports whether the overall availability verdict flipped.
func (v Verdict) Changed() bool { return v.Was != v.Now }

// Diff is the pure comparison between two observations.
func Diff(prev, now domain.AvailabilityState) Verdict {
	return Verdict{Was: prev.Overall(), Now: now.Overall()}
}
