package domain

import "fmt"

// Deaggregate converts a since-init accumulated field (TOT_PREC, DURSUN)
// into per-interval increments by first difference along the valid time
// axis. Each increment is labeled with the earlier valid time of the pair:
// the value stored at T is the amount accumulated between T and the next
// valid time. The result has one valid time fewer than the input.
func Deaggregate(f *Field) (*Field, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if len(f.Times) < 2 {
		return nil, fmt.Errorf("cannot de-aggregate %s: need at least 2 valid times, have %d", f.Parameter, len(f.Times))
	}

	nt := len(f.Times) - 1
	out := NewField(f.Parameter, f.Times[:nt], f.Members, f.Lats, f.Lons)
	out.Unit = f.Unit
	out.Description = f.Description
	stride := len(f.Members) * len(f.Lats) * len(f.Lons)
	for ti := 0; ti < nt; ti++ {
		cur := f.Values[ti*stride : (ti+1)*stride]
		next := f.Values[(ti+1)*stride : (ti+2)*stride]
		slab := out.Values[ti*stride : (ti+1)*stride]
		for i := range slab {
			slab[i] = next[i] - cur[i]
		}
	}
	return out, nil
}
