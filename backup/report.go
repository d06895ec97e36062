package backup

import "time"

// SourceReport holds per source counts of a run
type SourceReport struct {
	Discovered int
	Mirrored   int
	Updated    int
	UpToDate   int
	Failed     int

	// Skipped repositories map to a path already used by another repository
	Skipped int

	// DiscoveryPanicked is set when discovery of the source panicked. Discovery
	// errors are logged by providers and leave Discovered at 0
	DiscoveryPanicked bool
}

// Report is the summary of a single run
type Report struct {
	Sources  map[string]SourceReport
	Duration time.Duration
}

// Total returns counts summed over all sources
func (r Report) Total() SourceReport {
	var t SourceReport
	for _, s := range r.Sources {
		t.Discovered += s.Discovered
		t.Mirrored += s.Mirrored
		t.Updated += s.Updated
		t.UpToDate += s.UpToDate
		t.Failed += s.Failed
		t.Skipped += s.Skipped
		t.DiscoveryPanicked = t.DiscoveryPanicked || s.DiscoveryPanicked
	}
	return t
}
