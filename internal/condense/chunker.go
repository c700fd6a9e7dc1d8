package condense

import "unicode/utf8"

// SubUnit is one bounded-size slice of a unit's body, processed by a single
// worker invocation. ChunkIndex is 0-based and dense for a given ParentIndex.
type SubUnit struct {
	ParentIndex int          `json:"parent_index"`
	ChunkIndex  int          `json:"chunk_index"`
	TotalChunks int          `json:"total_chunks"`
	Body        string       `json:"body"`
	Target      LengthTarget `json:"target"`
}

// Split slices body into contiguous, non-overlapping windows of up to
// maxChunkSize bytes in original order; the last window may be shorter. A
// window end that would land inside a multi-byte rune is snapped back to the
// rune's start, so every chunk of valid UTF-8 input is itself valid UTF-8.
// Each window gets its own LengthTarget scaled to the window's length using
// the parent's ratio bounds. Boundaries are offset-based, not
// sentence-aware; reassembly joins chunk outputs with a divider, so
// paragraph structure is not guaranteed to survive a boundary exactly.
func Split(parentIndex int, body string, maxChunkSize, minRatioPct, maxRatioPct int) []SubUnit {
	if maxChunkSize <= 0 || len(body) <= maxChunkSize {
		return []SubUnit{{
			ParentIndex: parentIndex,
			ChunkIndex:  0,
			TotalChunks: 1,
			Body:        body,
			Target:      NewTarget(len(body), minRatioPct, maxRatioPct),
		}}
	}

	var windows []string
	for start := 0; start < len(body); {
		end := start + maxChunkSize
		if end >= len(body) {
			end = len(body)
		} else {
			for end > start && !utf8.RuneStart(body[end]) {
				end--
			}
			if end == start {
				// Invalid encoding: no rune start inside the window.
				// Keep the fixed-size boundary rather than stall.
				end = start + maxChunkSize
			}
		}
		windows = append(windows, body[start:end])
		start = end
	}

	subs := make([]SubUnit, len(windows))
	for i, window := range windows {
		subs[i] = SubUnit{
			ParentIndex: parentIndex,
			ChunkIndex:  i,
			TotalChunks: len(windows),
			Body:        window,
			Target:      NewTarget(len(window), minRatioPct, maxRatioPct),
		}
	}
	return subs
}
