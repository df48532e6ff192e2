package domain

import (
	"fmt"
	"time"
)

// ModelRun identifies one initialization of an NWP model.
type ModelRun struct {
	Model string    // model identifier, e.g. "ICON1"
	Init  time.Time // initialization time, UTC
	Freq  int       // hours between successive initializations
}

// InitID formats the initialization time with the given layout, yielding
// the run's directory and file-name id (e.g. "2026012409").
func (r ModelRun) InitID(layout string) string {
	return r.Init.UTC().Format(layout)
}

// AlignInit floors t to the most recent initialization time of a model
// that starts a run every freq hours, counted from midnight UTC.
func AlignInit(t time.Time, freq int) time.Time {
	t = t.UTC().Truncate(time.Hour)
	return t.Add(-time.Duration(t.Hour()%freq) * time.Hour)
}

// Site is a fixed location forecasts are extracted for.
type Site struct {
	Name string
	Lon  float64
	Lat  float64
}

// Field is a single-parameter ensemble forecast of one model run on a
// regular lat/lon grid. Values are stored row-major over
// (valid time, member, latitude, longitude); all four axes are strictly
// ascending. Unit and Description are optional attribute metadata carried
// through storage; they do not participate in validation.
type Field struct {
	Parameter   string
	Unit        string
	Description string
	Times       []time.Time
	Members     []int
	Lats        []float64
	Lons        []float64
	Values      []float32
}

// NewField allocates a field with a zeroed value cube sized to the axes.
func NewField(parameter string, times []time.Time, members []int, lats, lons []float64) *Field {
	return &Field{
		Parameter: parameter,
		Times:     times,
		Members:   members,
		Lats:      lats,
		Lons:      lons,
		Values:    make([]float32, len(times)*len(members)*len(lats)*len(lons)),
	}
}

func (f *Field) index(ti, mi, yi, xi int) int {
	return ((ti*len(f.Members)+mi)*len(f.Lats)+yi)*len(f.Lons) + xi
}

// At returns the value at the given (time, member, lat, lon) indices.
func (f *Field) At(ti, mi, yi, xi int) float64 {
	return float64(f.Values[f.index(ti, mi, yi, xi)])
}

// Set stores a value at the given (time, member, lat, lon) indices.
func (f *Field) Set(ti, mi, yi, xi int, v float64) {
	f.Values[f.index(ti, mi, yi, xi)] = float32(v)
}

// Validate checks the structural invariants: a parameter name, non-empty
// strictly ascending axes, and a value cube sized to match.
func (f *Field) Validate() error {
	if f.Parameter == "" {
		return fmt.Errorf("field has no parameter name")
	}
	if len(f.Times) == 0 || len(f.Members) == 0 || len(f.Lats) == 0 || len(f.Lons) == 0 {
		return fmt.Errorf("field %s has an empty axis", f.Parameter)
	}
	for i := 1; i < len(f.Times); i++ {
		if !f.Times[i].After(f.Times[i-1]) {
			return fmt.Errorf("field %s: valid times not strictly increasing at index %d", f.Parameter, i)
		}
	}
	for i := 1; i < len(f.Members); i++ {
		if f.Members[i] <= f.Members[i-1] {
			return fmt.Errorf("field %s: member ids not strictly increasing at index %d", f.Parameter, i)
		}
	}
	if err := ascending(f.Lats); err != nil {
		return fmt.Errorf("field %s: latitude axis: %w", f.Parameter, err)
	}
	if err := ascending(f.Lons); err != nil {
		return fmt.Errorf("field %s: longitude axis: %w", f.Parameter, err)
	}
	want := len(f.Times) * len(f.Members) * len(f.Lats) * len(f.Lons)
	if len(f.Values) != want {
		return fmt.Errorf("field %s: %d values for %d cells", f.Parameter, len(f.Values), want)
	}
	return nil
}

func ascending(xs []float64) error {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return fmt.Errorf("not strictly increasing at index %d", i)
		}
	}
	return nil
}

// sameGrid reports whether two fields share identical time, member and
// spatial axes.
func sameGrid(a, b *Field) bool {
	if len(a.Times) != len(b.Times) || len(a.Members) != len(b.Members) ||
		len(a.Lats) != len(b.Lats) || len(a.Lons) != len(b.Lons) {
		return false
	}
	for i := range a.Times {
		if !a.Times[i].Equal(b.Times[i]) {
			return false
		}
	}
	for i := range a.Members {
		if a.Members[i] != b.Members[i] {
			return false
		}
	}
	for i := range a.Lats {
		if a.Lats[i] != b.Lats[i] {
			return false
		}
	}
	for i := range a.Lons {
		if a.Lons[i] != b.Lons[i] {
			return false
		}
	}
	return true
}
