package domain

import (
	"fmt"
	"time"
)

// ProbabilitySeries holds per-site exceedance probabilities, one column per
// threshold, aligned with Times.
type ProbabilitySeries struct {
	Site       string
	Parameter  string
	Thresholds []float64
	Times      []time.Time
	Values     [][]float64 // indexed [time][threshold]
}

// ExceedanceProbability reduces the member dimension of a field to the
// fraction of ensemble members strictly exceeding each threshold, at the
// grid cell nearest the site. The divisor is the field's own member count.
func ExceedanceProbability(f *Field, site Site, thresholds []float64) (ProbabilitySeries, error) {
	if err := f.Validate(); err != nil {
		return ProbabilitySeries{}, err
	}
	if len(thresholds) == 0 {
		return ProbabilitySeries{}, fmt.Errorf("no thresholds requested for %s at %s", f.Parameter, site.Name)
	}

	yi, xi := NearestCell(f, site.Lon, site.Lat)
	series := ProbabilitySeries{
		Site:       site.Name,
		Parameter:  f.Parameter,
		Thresholds: thresholds,
		Times:      f.Times,
		Values:     make([][]float64, len(f.Times)),
	}
	n := float64(len(f.Members))
	for ti := range f.Times {
		row := make([]float64, len(thresholds))
		for ki, threshold := range thresholds {
			exceeding := 0
			for mi := range f.Members {
				if f.At(ti, mi, yi, xi) > threshold {
					exceeding++
				}
			}
			row[ki] = float64(exceeding) / n
		}
		series.Values[ti] = row
	}
	return series, nil
}

// BlendProbabilities splices a short-range and a mid-range exceedance series
// the way [Blend] splices quantile series, with the same window and weights.
func BlendProbabilities(short, mid ProbabilitySeries, spec BlendSpec) (ProbabilitySeries, error) {
	if err := spec.Validate(); err != nil {
		return ProbabilitySeries{}, err
	}
	if !sameFloats(short.Thresholds, mid.Thresholds) {
		return ProbabilitySeries{}, fmt.Errorf("cannot blend %s: threshold vectors differ (%v vs %v)",
			short.Parameter, short.Thresholds, mid.Thresholds)
	}
	times, values, err := splice(short.Parameter, short.Times, short.Values, mid.Times, mid.Values, spec)
	if err != nil {
		return ProbabilitySeries{}, err
	}
	return ProbabilitySeries{
		Site:       short.Site,
		Parameter:  short.Parameter,
		Thresholds: short.Thresholds,
		Times:      times,
		Values:     values,
	}, nil
}
