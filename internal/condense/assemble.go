package condense

import (
	"sort"
	"strings"
)

// ChunkSeparator is the divider joined between condensed chunks of a
// multi-chunk unit, matching the scene-break convention used on disk.
const ChunkSeparator = "\n\n* * *\n\n"

// Reassemble orders a complete result set by chunk index and concatenates
// the bodies: no separator for a single chunk, ChunkSeparator between chunks
// otherwise. Output is identical for any completion-order permutation of the
// same results; restoring program order here is the correctness property the
// concurrent dispatch relies on.
func Reassemble(results []Result) string {
	if len(results) == 0 {
		return ""
	}
	if len(results) == 1 {
		return results[0].Body
	}

	sorted := make([]Result, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].ChunkIndex < sorted[j].ChunkIndex
	})

	bodies := make([]string, len(sorted))
	for i, res := range sorted {
		bodies[i] = res.Body
	}
	return strings.Join(bodies, ChunkSeparator)
}
