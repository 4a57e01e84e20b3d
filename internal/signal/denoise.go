package signal

import "github.com/dmarche/newsquant/internal/quant"

// denoiseStage winsorizes mean_score to the group's own quantile range and
// then smooths single-day spikes with a small centered median filter. It
// mutates mean_score in place; weighted_mean and n_docs are left untouched.
// Must run before any rolling statistic so outliers cannot leak into the
// smoothed baseline used for surprise detection.
func denoiseStage(p Params, f *groupFrame) {
	s := f.meanSeries()
	s = quant.Winsorize(s, p.WinsorLow, p.WinsorHigh)
	s = quant.MedianFilter(s, p.MedianWindow)
	for i := range f.rows {
		f.rows[i].meanScore = s[i]
	}
}
