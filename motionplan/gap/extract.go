package gap

// Config describes how scan indices map onto gaps.
type Config struct {
	// Threshold is the range jump, in meters, between neighboring samples that marks an edge.
	Threshold float64
	// BearingOffsetDeg is the scan bearing of canonical index 0.
	BearingOffsetDeg float64
	// StepDeg is the angle between neighboring samples.
	StepDeg float64
}

// Gap is a free interval with its edges resolved to scan bearings, in degrees, and ranges.
type Gap struct {
	Interval
	StartBearing float64
	EndBearing   float64
	StartRange   float64
	EndRange     float64
}

// Result is the outcome of segmenting one scan.
type Result struct {
	Gaps []Gap
	// Available is false exactly when no boundary pair survived reconciliation.
	Available bool
}

// Bearing is the scan bearing of a canonical index.
func (cfg Config) Bearing(index int) float64 {
	return cfg.BearingOffsetDeg + float64(index)*cfg.StepDeg
}

// Extract segments canonical ranges into gaps.
func Extract(ranges []float64, cfg Config) Result {
	if len(ranges) < 2 {
		return Result{}
	}
	lastIndex := len(ranges) - 1
	intervals := Reconcile(Boundaries(ranges, cfg.Threshold), lastIndex)
	if len(intervals) == 0 {
		return Result{}
	}

	gaps := make([]Gap, 0, len(intervals))
	for _, iv := range intervals {
		startRange, endRange := edgeRanges(ranges, iv, lastIndex)
		gaps = append(gaps, Gap{
			Interval:     iv,
			StartBearing: cfg.Bearing(iv.Start),
			EndBearing:   cfg.Bearing(iv.End),
			StartRange:   startRange,
			EndRange:     endRange,
		})
	}
	return Result{Gaps: gaps, Available: true}
}

// edgeRanges reads the obstacle range at each edge. An edge on the first or last sample was not
// produced by a discontinuity, so it borrows the range of the other edge when that one was.
func edgeRanges(ranges []float64, iv Interval, lastIndex int) (float64, float64) {
	startRange, endRange := ranges[iv.Start], ranges[iv.End]
	startOnBorder := iv.Start == 0 || iv.Start == lastIndex
	endOnBorder := iv.End == 0 || iv.End == lastIndex
	switch {
	case startOnBorder && !endOnBorder:
		startRange = endRange
	case endOnBorder && !startOnBorder:
		endRange = startRange
	}
	return startRange, endRange
}
