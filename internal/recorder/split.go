// internal/recorder/split.go
package recorder

import "github.com/prowave/prowavedaq/internal/daq"

// SplitAtSampleBoundary cuts batch at the largest whole-sample boundary
// not exceeding maxLen. The prefix length is always a multiple of the
// channel count; prefix and remainder concatenate back to batch.
func SplitAtSampleBoundary(batch []float64, maxLen int) (prefix, remainder []float64) {
	n := maxLen
	if n > len(batch) {
		n = len(batch)
	}
	n = daq.AlignDown(n)
	return batch[:n], batch[n:]
}
