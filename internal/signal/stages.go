package signal

import "math"

// dayRow is one (group, trading date) aggregate under construction. Metric
// fields use NaN for "not yet computed / undefined"; sanitization to NULL or
// zero happens only at persist time.
type dayRow struct {
	ds           string
	nDocs        int
	meanScore    float64
	weightedMean float64
	ewma20       float64
	zscore30     float64
	cum30        float64
	surprise     float64
}

// groupFrame is one group's chronologically ordered daily rows plus the
// per-source daily mean scores the surprise stage needs.
type groupFrame struct {
	key  string
	rows []dayRow
	// source name -> ds -> that source's plain mean score for the day
	bySource map[string]map[string]float64
}

// stage is one named transform applied to a group frame. The driver applies
// stages strictly in the order listed; the denoise-before-rolling ordering is
// load-bearing because every rolling statistic must be computed on the
// denoised series.
type stage struct {
	name  string
	apply func(p Params, f *groupFrame)
}

func pipelineStages() []stage {
	return []stage{
		{name: "denoise", apply: denoiseStage},
		{name: "rolling", apply: rollingStage},
		{name: "surprise", apply: surpriseStage},
	}
}

// meanSeries extracts the mean_score column in ds order.
func (f *groupFrame) meanSeries() []float64 {
	s := make([]float64, len(f.rows))
	for i := range f.rows {
		s[i] = f.rows[i].meanScore
	}
	return s
}

func newDayRow(ds string) dayRow {
	return dayRow{
		ds:           ds,
		meanScore:    math.NaN(),
		weightedMean: math.NaN(),
		ewma20:       math.NaN(),
		zscore30:     math.NaN(),
		cum30:        math.NaN(),
		surprise:     math.NaN(),
	}
}
