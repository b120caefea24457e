package analytics

import (
	"math"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// SessionEstimate summarises the activity of one user in a window.
type SessionEstimate struct {
	Sessions int
	Minutes  float64
}

// SessionEstimator turns one user's event times, sorted ascending, into a
// session count and total session time.
type SessionEstimator interface {
	Estimate(timestamps []time.Time) SessionEstimate
}

// FirstLastEstimator treats the span from a user's first to last event as
// their session time and counts every event as a session. It is an
// approximation without session boundaries.
type FirstLastEstimator struct{}

func (FirstLastEstimator) Estimate(timestamps []time.Time) SessionEstimate {
	estimate := SessionEstimate{Sessions: len(timestamps)}
	if len(timestamps) < 2 {
		return estimate
	}
	estimate.Minutes = math.Max(0, timestamps[len(timestamps)-1].Sub(timestamps[0]).Minutes())
	return estimate
}

// IdleGapEstimator starts a new session whenever two consecutive events are
// more than Gap apart.
type IdleGapEstimator struct {
	Gap time.Duration
}

func (e IdleGapEstimator) Estimate(timestamps []time.Time) SessionEstimate {
	if len(timestamps) == 0 {
		return SessionEstimate{}
	}

	estimate := SessionEstimate{Sessions: 1}
	sessionStart := timestamps[0]
	for i := 1; i < len(timestamps); i++ {
		if timestamps[i].Sub(timestamps[i-1]) > e.Gap {
			estimate.Minutes += timestamps[i-1].Sub(sessionStart).Minutes()
			estimate.Sessions++
			sessionStart = timestamps[i]
		}
	}
	estimate.Minutes += timestamps[len(timestamps)-1].Sub(sessionStart).Minutes()
	estimate.Minutes = math.Max(0, estimate.Minutes)

	return estimate
}

// NewSessionEstimator picks an estimator by its configuration name, falling
// back to FirstLastEstimator.
func NewSessionEstimator(name string, idleGap time.Duration) SessionEstimator {
	if name == "idle_gap" && idleGap > 0 {
		return IdleGapEstimator{Gap: idleGap}
	}
	return FirstLastEstimator{}
}

// maxTrackedSeconds bounds the session histogram at one year.
const maxTrackedSeconds = 365 * 24 * 60 * 60

type sessionHistogram struct {
	hist *hdrhistogram.Histogram
}

func newSessionHistogram() *sessionHistogram {
	return &sessionHistogram{hist: hdrhistogram.New(1, maxTrackedSeconds, 3)}
}

func (h *sessionHistogram) record(minutes float64) {
	seconds := int64(math.Round(minutes * 60))
	if seconds < 0 {
		seconds = 0
	}
	if seconds > maxTrackedSeconds {
		seconds = maxTrackedSeconds
	}
	// RecordValue only errors above the trackable maximum, which the clamp
	// rules out.
	_ = h.hist.RecordValue(seconds)
}

// percentiles reports p50/p90/p99 in minutes.
func (h *sessionHistogram) percentiles() Percentiles {
	if h.hist.TotalCount() == 0 {
		return Percentiles{}
	}
	toMinutes := func(q float64) float64 {
		return round2(float64(h.hist.ValueAtQuantile(q)) / 60)
	}
	return Percentiles{
		P50: toMinutes(50),
		P90: toMinutes(90),
		P99: toMinutes(99),
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
