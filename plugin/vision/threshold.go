package vision

import "math"

// DefaultThreshold is the similarity a match must reach when nothing else is configured.
const DefaultThreshold = 0.82

// HighConfidenceMargin is how far above the threshold a similarity must be to count as "alto".
const HighConfidenceMargin = 0.1

// ClampThreshold maps non-finite values to DefaultThreshold and clamps the rest into [0, 1].
func ClampThreshold(value float64) float64 {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return DefaultThreshold
	}
	return math.Min(math.Max(value, 0), 1)
}
