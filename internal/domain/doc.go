// Package domain models gridded ensemble forecasts from the ICON numerical
// weather prediction family and the per-site quantile products derived from
// them.
//
// # Model Pairing
//
// Forecasts come from two ensemble models with complementary horizons:
//
//	ICON1: short range, lead hours 0–33, new run every 3 hours.
//	ICON2: mid range, lead hours 34–120, new run every 6 hours.
//
// The short-range model is more skillful where the horizons meet, so the
// published product follows ICON1 early on and ramps over to ICON2 across
// the last few valid times both models share. See [Blend].
//
// # Field Conventions
//
// A [Field] holds one parameter of one model run on a regular lat/lon grid,
// stored row-major over (valid time, ensemble member, latitude, longitude).
// All four axes are strictly ascending. Parameter names follow the ICON
// output vocabulary:
//
//	VMAX_10M  wind gust at 10 m
//	U_10M     eastward wind component at 10 m
//	V_10M     northward wind component at 10 m
//	T_2M      air temperature at 2 m
//	TD_2M     dew point at 2 m
//	HZEROCL   height of the 0 °C isotherm
//	DURSUN    sunshine duration, accumulated since initialization
//	PMSL      mean sea level pressure
//	TOT_PREC  total precipitation, accumulated since initialization
//
// Wind direction and speed are not model outputs; they are derived from the
// component fields and stored under WIND_DIR and WIND_SPEED. See [DeriveWind].
//
// # Accumulated Parameters
//
// DURSUN and TOT_PREC accumulate from initialization time, so the raw values
// at consecutive valid times are running totals, not amounts. [Deaggregate]
// converts them to per-interval increments by first difference, labeling
// each increment with the earlier valid time of the pair: the value stored
// at T is the amount that falls between T and the next valid time.
//
// De-aggregation consumes one valid time per series, so a run pair feeding
// accumulated targets must share one more valid time than the blend window
// needs. The mid-range extract reaches back across the hand-off to provide
// it.
//
// # Quantile Products
//
// Consumers get quantile time series at named sites rather than raw member
// grids. [ExtractSite] picks the grid cell nearest the site (Euclidean
// distance in degrees, ties to the lower index) and reduces the member
// dimension to the requested quantiles by linear interpolation between order
// statistics.
//
// # Artifact Naming
//
// Published artifacts carry deterministic names derived from their
// [ArtifactKey]:
//
//	local:  "<site>-<init>-<parameter>.json"  →  e.g. "bodensee-2026012409-T_2M.json"
//	remote: "<site>-<parameter>.json"         →  e.g. "bodensee-T_2M.json"
//
// The local name keeps the initialization id so every processed run leaves
// an archival copy, and so a run can detect it already published an item.
// The remote name drops it so each upload replaces the forecast in place.
package domain
