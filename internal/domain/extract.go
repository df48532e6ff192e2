package domain

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// SiteSeries is a quantile time series at one site, reduced from an ensemble
// field. Values is indexed [time][quantile], aligned with Times and
// Quantiles.
type SiteSeries struct {
	Site      string
	Parameter string
	Quantiles []float64
	Times     []time.Time
	Values    [][]float64
}

// BlendedForecast is a publishable site series with display metadata.
type BlendedForecast struct {
	SiteSeries
	Unit        string
	Description string
}

// AttachMetadata pairs a series with the unit and description consumers see.
func AttachMetadata(s SiteSeries, unit, description string) BlendedForecast {
	return BlendedForecast{SiteSeries: s, Unit: unit, Description: description}
}

// NearestCell returns the grid indices of the cell closest to (lon, lat) by
// Euclidean distance in degrees. Ties resolve to the lowest latitude index,
// then the lowest longitude index.
func NearestCell(f *Field, lon, lat float64) (yi, xi int) {
	best := math.Inf(1)
	for j, gridLat := range f.Lats {
		for i, gridLon := range f.Lons {
			d := (gridLat-lat)*(gridLat-lat) + (gridLon-lon)*(gridLon-lon)
			if d < best {
				best = d
				yi, xi = j, i
			}
		}
	}
	return yi, xi
}

// Quantile returns the q-th quantile of a sorted sample by linear
// interpolation between order statistics (Hyndman-Fan type 7, the numpy
// default). q must be in [0, 1] and sorted must be ascending.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	h := q * float64(n-1)
	lo := int(math.Floor(h))
	if lo >= n-1 {
		return sorted[n-1]
	}
	return sorted[lo] + (h-float64(lo))*(sorted[lo+1]-sorted[lo])
}

// ExtractSite reduces the member dimension of a field to quantile series at
// the grid cell nearest the site. The output preserves the field's valid
// times and is monotone across quantiles at every time.
func ExtractSite(f *Field, site Site, quantiles []float64) (SiteSeries, error) {
	if err := f.Validate(); err != nil {
		return SiteSeries{}, err
	}
	if len(quantiles) == 0 {
		return SiteSeries{}, fmt.Errorf("no quantiles requested for %s at %s", f.Parameter, site.Name)
	}
	for _, q := range quantiles {
		if q < 0 || q > 1 {
			return SiteSeries{}, fmt.Errorf("quantile %v out of range [0, 1]", q)
		}
	}

	yi, xi := NearestCell(f, site.Lon, site.Lat)
	series := SiteSeries{
		Site:      site.Name,
		Parameter: f.Parameter,
		Quantiles: quantiles,
		Times:     f.Times,
		Values:    make([][]float64, len(f.Times)),
	}
	sample := make([]float64, len(f.Members))
	for ti := range f.Times {
		for mi := range f.Members {
			sample[mi] = f.At(ti, mi, yi, xi)
		}
		sort.Float64s(sample)
		row := make([]float64, len(quantiles))
		for qi, q := range quantiles {
			row[qi] = Quantile(sample, q)
		}
		series.Values[ti] = row
	}
	return series, nil
}
