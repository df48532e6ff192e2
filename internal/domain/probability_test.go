package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flatProbSeries builds an exceedance series holding the same probability at
// every time and threshold.
func flatProbSeries(param string, thresholds []float64, times []time.Time, prob float64) ProbabilitySeries {
	s := ProbabilitySeries{Site: "bodensee", Parameter: param, Thresholds: thresholds, Times: times}
	for range times {
		row := make([]float64, len(thresholds))
		for ki := range row {
			row[ki] = prob
		}
		s.Values = append(s.Values, row)
	}
	return s
}

func TestExceedanceProbability(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	members := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	f := NewField("TOT_PREC", hoursFrom(base, 0, 1), members, []float64{47.0, 47.5}, []float64{8.0, 8.5})

	// Member mi holds mi+1 at the target cell for the first valid time; the
	// second valid time stays all zero.
	for mi := range members {
		f.Set(0, mi, 1, 1, float64(mi+1))
	}
	site := Site{Name: "bodensee", Lon: 8.5, Lat: 47.5}

	series, err := ExceedanceProbability(f, site, []float64{6, 9})

	require.NoError(t, err)
	assert.Equal(t, "bodensee", series.Site)
	assert.Equal(t, "TOT_PREC", series.Parameter)
	assert.Equal(t, []float64{6, 9}, series.Thresholds)
	require.Len(t, series.Values, 2)
	assert.InDelta(t, 5.0/11.0, series.Values[0][0], 1e-9) // values 7..11 exceed 6
	assert.InDelta(t, 2.0/11.0, series.Values[0][1], 1e-9) // values 10..11 exceed 9
	assert.InDelta(t, 0.0, series.Values[1][0], 1e-9)
	assert.InDelta(t, 0.0, series.Values[1][1], 1e-9)
}

func TestExceedanceProbability_ThresholdIsStrict(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewField("VMAX_10M", hoursFrom(base, 0), []int{0}, []float64{47.0}, []float64{8.0})
	f.Set(0, 0, 0, 0, 5)
	site := Site{Name: "alpstein", Lon: 8.0, Lat: 47.0}

	series, err := ExceedanceProbability(f, site, []float64{4.9, 5})

	require.NoError(t, err)
	assert.Equal(t, 1.0, series.Values[0][0])
	assert.Equal(t, 0.0, series.Values[0][1])
}

func TestExceedanceProbability_NoThresholds(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewField("T_2M", hoursFrom(base, 0), []int{0}, []float64{47.0}, []float64{8.0})

	_, err := ExceedanceProbability(f, Site{Name: "bodensee"}, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no thresholds")
}

func TestExceedanceProbability_InvalidField(t *testing.T) {
	_, err := ExceedanceProbability(&Field{Parameter: "T_2M"}, Site{Name: "bodensee"}, []float64{0})
	require.Error(t, err)
}

func TestBlendProbabilities_RampsAcrossWindow(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	thresholds := []float64{25}
	short := flatProbSeries("VMAX_10M", thresholds, hoursFrom(base, 0, 3, 6, 9, 12, 15, 18, 21, 24, 27, 30, 33), 0.2)
	mid := flatProbSeries("VMAX_10M", thresholds, hoursFrom(base, 27, 30, 33, 39, 45, 51), 0.8)

	out, err := BlendProbabilities(short, mid, DefaultBlendSpec())

	require.NoError(t, err)
	require.Len(t, out.Times, 14, "9 short-only + 3 blended + 2 mid-only")
	assert.Equal(t, "bodensee", out.Site)
	assert.Equal(t, thresholds, out.Thresholds)
	assert.InDelta(t, 0.2, out.Values[0][0], 1e-9)
	assert.InDelta(t, 0.35, out.Values[9][0], 1e-9)
	assert.InDelta(t, 0.5, out.Values[10][0], 1e-9)
	assert.InDelta(t, 0.65, out.Values[11][0], 1e-9)
	assert.InDelta(t, 0.8, out.Values[13][0], 1e-9)
}

func TestBlendProbabilities_ThresholdMismatch(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	times := hoursFrom(base, 0, 3, 6)
	short := flatProbSeries("TOT_PREC", []float64{0.1}, times, 0.5)
	mid := flatProbSeries("TOT_PREC", []float64{1}, times, 0.5)

	_, err := BlendProbabilities(short, mid, BlendSpec{Window: 1, Weights: []float64{0.5}})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "threshold vectors differ")
}
