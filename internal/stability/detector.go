package stability

import "time"

// Detector decides when a descriptor file has stopped changing and is safe
// to read. The policy is size-based: a file is stable once its size has been
// observed unchanged for at least the configured window, which means two
// consecutive polls spaced by the window saw the same size.
type Detector struct {
	window time.Duration
}

// NewDetector builds a detector with the given observation window. A
// non-positive window falls back to one second so a misconfigured caller
// can never admit a file on a single observation.
func NewDetector(window time.Duration) *Detector {
	if window <= 0 {
		window = time.Second
	}
	return &Detector{window: window}
}

// Window returns the configured observation window.
func (d *Detector) Window() time.Duration {
	return d.window
}

// Stable reports whether a file currently of the given size, whose size has
// not changed since unchangedSince, is safe to read. Zero-byte files are
// never stable: the producer either has not written anything yet or the
// file is corrupt, and both cases warrant waiting.
func (d *Detector) Stable(size int64, unchangedSince time.Time, now time.Time) bool {
	if size <= 0 {
		return false
	}
	if unchangedSince.IsZero() {
		return false
	}
	return now.Sub(unchangedSince) >= d.window
}
