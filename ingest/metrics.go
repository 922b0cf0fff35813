package ingest

import "time"

// Metrics is the advisory progress artifact: it never affects
// correctness, only what an operator watching a long ingest sees.
// Recomputed after each extracted chapter is embedded; Total, Completed
// and Skipped count chapters (requested, extracted, failed extraction),
// not chunks.
type Metrics struct {
	Total           int      `json:"total"`
	Completed       int      `json:"completed"`
	Skipped         int      `json:"skipped"`
	RatePerSec      float64  `json:"rate_per_sec"`
	ETASeconds      *float64 `json:"eta_seconds"`
	PercentComplete float64  `json:"percent_complete"`
}

// computeMetrics derives the advisory progress artifact from raw
// counters and elapsed wall-clock time. rate_per_sec is completed /
// elapsed; eta_seconds is null until rate_per_sec > 0, matching the
// spec's exact formula so an idle-looking run never reports a
// misleadingly precise ETA.
func computeMetrics(total, completed, skipped int, elapsed time.Duration) Metrics {
	m := Metrics{Total: total, Completed: completed, Skipped: skipped}
	if total > 0 {
		m.PercentComplete = float64(completed+skipped) / float64(total) * 100
	}
	secs := elapsed.Seconds()
	if secs > 0 {
		m.RatePerSec = float64(completed) / secs
	}
	if m.RatePerSec > 0 {
		remaining := total - completed - skipped
		if remaining < 0 {
			remaining = 0
		}
		eta := float64(remaining) / m.RatePerSec
		m.ETASeconds = &eta
	}
	return m
}
