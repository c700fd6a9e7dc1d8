// Package types holds the data model shared across the condensation
// pipeline: source text units, per-unit outcomes, and run reports.
package types

// TextUnit is one independently condensable piece of a source document,
// typically a chapter. Indices are zero-based and dense in reading order.
type TextUnit struct {
	Index int
	Title string
	Body  string
}

// UnitOutcome is the condensed form of one unit. A non-empty Errors slice
// marks a degraded unit: some of its text fell back to the original because
// generation failed or never met the length contract.
type UnitOutcome struct {
	Index  int
	Title  string
	Body   string
	Errors []string
}

// Degraded reports whether any chunk of this unit fell back.
func (o UnitOutcome) Degraded() bool {
	return len(o.Errors) > 0
}

// Report summarizes one pipeline run.
type Report struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Skipped   int
	Errors    []string
}

// Degraded reports whether the run completed with any fallen-back units.
func (r Report) Degraded() bool {
	return r.Failed > 0
}
