package nwpstore

import (
	"fmt"
	"os"
	"slices"
	"sort"
	"time"

	"bitbucket.org/ctessum/cdf"

	"github.com/lakewx/nwp-blend/internal/domain"
)

// NetCDF classic dimension and attribute names shared by all field files.
const (
	dimTime = "valid_time"
	dimEps  = "eps"
	dimLat  = "lat"
	dimLon  = "lon"

	attrUnit        = "unit"
	attrDescription = "description"
)

// encodeField writes a field as a NetCDF classic dataset: double coordinate
// variables (valid_time as unix seconds), int32 member ids and a float32
// data cube over (valid_time, eps, lat, lon).
func encodeField(w *os.File, f *domain.Field) error {
	h := cdf.NewHeader(
		[]string{dimTime, dimEps, dimLat, dimLon},
		[]int{len(f.Times), len(f.Members), len(f.Lats), len(f.Lons)},
	)
	h.AddVariable(dimTime, []string{dimTime}, []float64{0})
	h.AddAttribute(dimTime, attrUnit, "seconds since 1970-01-01 00:00:00 UTC")
	h.AddVariable(dimEps, []string{dimEps}, []int32{0})
	h.AddVariable(dimLat, []string{dimLat}, []float64{0})
	h.AddAttribute(dimLat, attrUnit, "degrees_north")
	h.AddVariable(dimLon, []string{dimLon}, []float64{0})
	h.AddAttribute(dimLon, attrUnit, "degrees_east")
	h.AddVariable(f.Parameter, []string{dimTime, dimEps, dimLat, dimLon}, []float32{0})
	if f.Unit != "" {
		h.AddAttribute(f.Parameter, attrUnit, f.Unit)
	}
	if f.Description != "" {
		h.AddAttribute(f.Parameter, attrDescription, f.Description)
	}
	h.Define()
	for _, err := range h.Check() {
		if err != nil {
			return fmt.Errorf("netcdf header: %w", err)
		}
	}

	cf, err := cdf.Create(w, h)
	if err != nil {
		return fmt.Errorf("create netcdf: %w", err)
	}

	times := make([]float64, len(f.Times))
	for i, t := range f.Times {
		times[i] = float64(t.Unix())
	}
	members := make([]int32, len(f.Members))
	for i, m := range f.Members {
		members[i] = int32(m)
	}
	if err := writeVar(cf, dimTime, times, len(times)); err != nil {
		return err
	}
	if err := writeVar(cf, dimEps, members, len(members)); err != nil {
		return err
	}
	if err := writeVar(cf, dimLat, f.Lats, len(f.Lats)); err != nil {
		return err
	}
	if err := writeVar(cf, dimLon, f.Lons, len(f.Lons)); err != nil {
		return err
	}

	begin := []int{0, 0, 0, 0}
	end := []int{len(f.Times), 0, 0, 0}
	if _, err := cf.Writer(f.Parameter, begin, end).Write(f.Values); err != nil {
		return fmt.Errorf("write variable %s: %w", f.Parameter, err)
	}
	return nil
}

func writeVar(cf *cdf.File, name string, buf interface{}, n int) error {
	if _, err := cf.Writer(name, []int{0}, []int{n}).Write(buf); err != nil {
		return fmt.Errorf("write variable %s: %w", name, err)
	}
	return nil
}

// decodeField reads one parameter variable with its coordinate axes and
// attribute metadata.
func decodeField(r *os.File, parameter string) (*domain.Field, error) {
	cf, err := cdf.Open(r)
	if err != nil {
		return nil, fmt.Errorf("open netcdf: %w", err)
	}

	vars := cf.Header.Variables()
	if !slices.Contains(vars, parameter) {
		return nil, &domain.MissingParameterError{Parameter: parameter, Available: dataVariables(vars)}
	}

	lengths := cf.Header.Lengths(parameter)
	if len(lengths) != 4 {
		return nil, fmt.Errorf("variable %s has %d dimensions, want 4", parameter, len(lengths))
	}
	nt, ne, ny, nx := lengths[0], lengths[1], lengths[2], lengths[3]

	timesRaw := make([]float64, nt)
	if err := readVar(cf, dimTime, timesRaw, nt); err != nil {
		return nil, err
	}
	membersRaw := make([]int32, ne)
	if err := readVar(cf, dimEps, membersRaw, ne); err != nil {
		return nil, err
	}
	lats := make([]float64, ny)
	if err := readVar(cf, dimLat, lats, ny); err != nil {
		return nil, err
	}
	lons := make([]float64, nx)
	if err := readVar(cf, dimLon, lons, nx); err != nil {
		return nil, err
	}
	values := make([]float32, nt*ne*ny*nx)
	if _, err := cf.Reader(parameter, []int{0, 0, 0, 0}, []int{nt, 0, 0, 0}).Read(values); err != nil {
		return nil, fmt.Errorf("read variable %s: %w", parameter, err)
	}

	field := &domain.Field{
		Parameter: parameter,
		Times:     make([]time.Time, nt),
		Members:   make([]int, ne),
		Lats:      lats,
		Lons:      lons,
		Values:    values,
	}
	for i, sec := range timesRaw {
		field.Times[i] = time.Unix(int64(sec), 0).UTC()
	}
	for i, m := range membersRaw {
		field.Members[i] = int(m)
	}
	if u, ok := cf.Header.GetAttribute(parameter, attrUnit).(string); ok {
		field.Unit = u
	}
	if d, ok := cf.Header.GetAttribute(parameter, attrDescription).(string); ok {
		field.Description = d
	}
	if err := field.Validate(); err != nil {
		return nil, fmt.Errorf("decoded field: %w", err)
	}
	return field, nil
}

func readVar(cf *cdf.File, name string, buf interface{}, n int) error {
	if _, err := cf.Reader(name, []int{0}, []int{n}).Read(buf); err != nil {
		return fmt.Errorf("read variable %s: %w", name, err)
	}
	return nil
}

// dataVariables filters the coordinate variables out of a variable list,
// leaving the parameters a file actually carries.
func dataVariables(vars []string) []string {
	out := make([]string, 0, len(vars))
	for _, v := range vars {
		switch v {
		case dimTime, dimEps, dimLat, dimLon:
		default:
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
