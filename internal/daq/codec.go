// internal/daq/codec.go
package daq

// scale converts raw fixed-point counts to physical units (g).
const scale = 8192.0

// AlignDown rounds n down to a whole-sample boundary.
func AlignDown(n int) int {
	if n < 0 {
		return 0
	}
	return (n / ChannelCount) * ChannelCount
}

// DecodeWords converts raw 16-bit register words into physical values,
// keeping only complete X/Y/Z triples. A trailing partial sample is
// dropped so channel alignment can never drift.
func DecodeWords(words []uint16) []float64 {
	n := AlignDown(len(words))
	if n == 0 {
		return nil
	}

	out := make([]float64, n)
	for i, w := range words[:n] {
		signed := int32(w)
		if w >= 32768 {
			signed = int32(w) - 65536
		}
		out[i] = float64(signed) / scale
	}
	return out
}
