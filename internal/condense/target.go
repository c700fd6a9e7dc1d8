// Package condense implements the chunk-dispatch/condense/reassemble core:
// length targeting, fixed-window chunking, the per-chunk condense worker with
// escalating length-contract retries, the globally capped worker pool, and
// deterministic index-ordered reassembly.
package condense

// LengthTarget is the character-length band a condensed chunk must land in.
// Invariant: 0 < MinChars <= IdealChars <= MaxChars, except for the
// all-zero target produced by an empty source.
type LengthTarget struct {
	MinChars   int `json:"min_chars"`
	IdealChars int `json:"ideal_chars"`
	MaxChars   int `json:"max_chars"`
}

// NewTarget derives the target band from a source length and a ratio range.
// Ratios are percentages; callers guarantee 0 < minRatioPct <= maxRatioPct <= 100.
// A zero sourceLen yields an all-zero target; callers skip condensation for
// such units.
func NewTarget(sourceLen, minRatioPct, maxRatioPct int) LengthTarget {
	minChars := sourceLen * minRatioPct / 100
	maxChars := sourceLen * maxRatioPct / 100
	return LengthTarget{
		MinChars:   minChars,
		IdealChars: (minChars + maxChars) / 2,
		MaxChars:   maxChars,
	}
}
