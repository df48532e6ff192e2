package domain

import (
	"fmt"
	"math"
)

// ICON parameter names for the 10 m wind components and the fields derived
// from them.
const (
	ParamWindU     = "U_10M"
	ParamWindV     = "V_10M"
	ParamWindDir   = "WIND_DIR"
	ParamWindSpeed = "WIND_SPEED"
)

// DeriveWind computes wind direction and speed fields from the 10 m
// component fields. Direction is the compass bearing in degrees clockwise
// from north, atan2(east, north) normalized to [0, 360). Speed is the
// Euclidean norm sqrt(u*u + v*v), in the component unit (m/s).
func DeriveWind(u, v *Field) (dir, speed *Field, err error) {
	if u.Parameter != ParamWindU || v.Parameter != ParamWindV {
		return nil, nil, fmt.Errorf("wind derivation wants %s and %s, got %s and %s",
			ParamWindU, ParamWindV, u.Parameter, v.Parameter)
	}
	if err := u.Validate(); err != nil {
		return nil, nil, err
	}
	if err := v.Validate(); err != nil {
		return nil, nil, err
	}
	if !sameGrid(u, v) {
		return nil, nil, fmt.Errorf("wind components %s and %s are on different grids", u.Parameter, v.Parameter)
	}

	dir = NewField(ParamWindDir, u.Times, u.Members, u.Lats, u.Lons)
	dir.Unit = "deg"
	speed = NewField(ParamWindSpeed, u.Times, u.Members, u.Lats, u.Lons)
	speed.Unit = u.Unit
	for i, uc := range u.Values {
		vc := v.Values[i]
		deg := math.Atan2(float64(uc), float64(vc)) * 180 / math.Pi
		deg = math.Mod(deg, 360)
		if deg < 0 {
			deg += 360
		}
		dir.Values[i] = float32(deg)
		speed.Values[i] = float32(math.Hypot(float64(uc), float64(vc)))
	}
	return dir, speed, nil
}
