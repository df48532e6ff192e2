package domain

import (
	"fmt"
	"time"
)

// BlendSpec controls the hand-off between the short-range and mid-range
// models: how many shared valid times to blend across and the weight the
// mid-range model gets at each of them.
type BlendSpec struct {
	Window  int
	Weights []float64 // mid-range weight per window step
}

// DefaultBlendSpec ramps the mid-range model in over the last three shared
// valid times.
func DefaultBlendSpec() BlendSpec {
	return BlendSpec{Window: 3, Weights: []float64{0.25, 0.5, 0.75}}
}

// Validate checks the window is positive, weights match it one to one, and
// every weight is in [0, 1]. Weights must be non-decreasing so the hand-off
// never swings back toward the short-range model.
func (b BlendSpec) Validate() error {
	if b.Window < 1 {
		return fmt.Errorf("blend window must be at least 1, got %d", b.Window)
	}
	if len(b.Weights) != b.Window {
		return fmt.Errorf("blend needs one weight per window step: window %d, %d weights", b.Window, len(b.Weights))
	}
	for i, w := range b.Weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("blend weight %d out of range [0, 1]: %v", i, w)
		}
		if i > 0 && w < b.Weights[i-1] {
			return fmt.Errorf("blend weights must be non-decreasing: weight %d (%v) below weight %d (%v)",
				i, w, i-1, b.Weights[i-1])
		}
	}
	return nil
}

// Blend splices a short-range and a mid-range quantile series into one
// continuous forecast. The blend window is the last Window valid times the
// two series share; inside it the value is (1-w)*short + w*mid per the spec
// weights. Short-range values strictly before the window are kept as-is and
// mid-range values strictly after it extend the horizon.
//
// Returns an [InsufficientOverlapError] when the series share fewer valid
// times than the window needs.
func Blend(short, mid SiteSeries, spec BlendSpec) (SiteSeries, error) {
	if err := spec.Validate(); err != nil {
		return SiteSeries{}, err
	}
	if !sameFloats(short.Quantiles, mid.Quantiles) {
		return SiteSeries{}, fmt.Errorf("cannot blend %s: quantile vectors differ (%v vs %v)",
			short.Parameter, short.Quantiles, mid.Quantiles)
	}
	times, values, err := splice(short.Parameter, short.Times, short.Values, mid.Times, mid.Values, spec)
	if err != nil {
		return SiteSeries{}, err
	}
	return SiteSeries{
		Site:      short.Site,
		Parameter: short.Parameter,
		Quantiles: short.Quantiles,
		Times:     times,
		Values:    values,
	}, nil
}

// splice is the cross-fade shared by [Blend] and [BlendProbabilities]: rows
// of the short series strictly before the window, weighted combinations
// inside it, rows of the mid series strictly after it. Rows are value
// vectors of any width as long as both series agree on it.
func splice(parameter string, shortTimes []time.Time, shortValues [][]float64, midTimes []time.Time, midValues [][]float64, spec BlendSpec) ([]time.Time, [][]float64, error) {
	shortIdx := timeIndex(shortTimes)
	midIdx := timeIndex(midTimes)
	overlap := make([]time.Time, 0, len(midTimes))
	for _, t := range midTimes {
		if _, ok := shortIdx[t.Unix()]; ok {
			overlap = append(overlap, t)
		}
	}
	if len(overlap) < spec.Window {
		e := &InsufficientOverlapError{Overlap: len(overlap), Required: spec.Window}
		if len(shortTimes) > 0 && len(midTimes) > 0 {
			e.Reason = fmt.Sprintf("short range ends %s, mid range starts %s",
				shortTimes[len(shortTimes)-1].Format(time.RFC3339),
				midTimes[0].Format(time.RFC3339))
		}
		return nil, nil, e
	}

	window := overlap[len(overlap)-spec.Window:]
	windowStart, windowEnd := window[0], window[len(window)-1]

	var times []time.Time
	var values [][]float64
	for ti, t := range shortTimes {
		if !t.Before(windowStart) {
			break
		}
		times = append(times, t)
		values = append(values, shortValues[ti])
	}
	for wi, t := range window {
		w := spec.Weights[wi]
		si := shortIdx[t.Unix()]
		mi := midIdx[t.Unix()]
		row := make([]float64, len(shortValues[si]))
		for ci := range row {
			row[ci] = (1-w)*shortValues[si][ci] + w*midValues[mi][ci]
		}
		times = append(times, t)
		values = append(values, row)
	}
	for ti, t := range midTimes {
		if !t.After(windowEnd) {
			continue
		}
		times = append(times, t)
		values = append(values, midValues[ti])
	}

	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			return nil, nil, fmt.Errorf("blend of %s produced a non-chronological series at %s",
				parameter, times[i].Format(time.RFC3339))
		}
	}
	return times, values, nil
}

func timeIndex(ts []time.Time) map[int64]int {
	idx := make(map[int64]int, len(ts))
	for i, t := range ts {
		idx[t.Unix()] = i
	}
	return idx
}

func sameFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
