// Command genfields writes synthetic gridded ensemble forecasts into the
// local store so the service can be exercised end to end without real model
// output. It uses the service's own configuration and store, so the
// generated runs are discovered and blended exactly like real ones.
//
// Usage:
//
//	go run ./cmd/genfields -config config.yaml
//	go run ./cmd/genfields -config config.yaml -init 2026012406
//
// The mid-range run is written at -init (default: the latest cycle for the
// current time) and the short-range run one short-range cycle later, which
// gives the two runs the overlap the blend window needs.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand"
	"os"
	"time"

	"github.com/lakewx/nwp-blend/internal/adapter/nwpstore"
	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
	"github.com/lakewx/nwp-blend/internal/observability"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	initID := flag.String("init", "", "mid-range init id (default: latest cycle for the current time)")
	members := flag.Int("members", 11, "ensemble members per field")
	coarsen := flag.Int("coarsen", 5, "multiply the native grid step; keeps fixture files small")
	seed := flag.Int64("seed", 1, "noise seed, fixed for reproducible fixtures")
	flag.Parse()

	// The generator never talks to the FTP server; satisfy the secret check
	// so the one config file serves both the service and this tool.
	if os.Getenv(config.EnvFTPPassword) == "" {
		_ = os.Setenv(config.EnvFTPPassword, "unused")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *members < 2 {
		return fmt.Errorf("at least 2 members required, got %d", *members)
	}
	if *coarsen < 1 {
		return fmt.Errorf("-coarsen must be >= 1, got %d", *coarsen)
	}

	logger := observability.NewLogger(cfg)
	store := nwpstore.New(cfg.Storage.Root, cfg.Storage.DateLayout, logger)

	midTime := domain.AlignInit(time.Now(), cfg.NWP.MidRange.Freq)
	if *initID != "" {
		if midTime, err = store.ParseInit(*initID); err != nil {
			return fmt.Errorf("parse -init: %w", err)
		}
	}
	shortTime := midTime.Add(time.Duration(cfg.NWP.ShortRange.Freq) * time.Hour)

	rng := rand.New(rand.NewSource(*seed))
	memberIDs := make([]int, *members)
	for i := range memberIDs {
		memberIDs[i] = i
	}

	runs := []struct {
		model config.ModelConfig
		init  time.Time
	}{
		{cfg.NWP.ShortRange, shortTime},
		{cfg.NWP.MidRange, midTime},
	}
	for _, r := range runs {
		id := store.FormatInit(r.init)
		lats, lons := siteGrid(cfg.Sites, r.model.GridStep*float64(*coarsen))
		for _, parameter := range cfg.NWP.Parameters {
			f := buildField(rng, parameter, r.model, r.init, memberIDs, lats, lons)
			if err := store.WriteField(r.model.Name, id, f); err != nil {
				return fmt.Errorf("write %s %s %s: %w", r.model.Name, id, parameter, err)
			}
		}
		log.Printf("%s %s: %d parameters, %d leads, %dx%d grid, %d members",
			r.model.Name, id, len(cfg.NWP.Parameters), r.model.Stop-r.model.Start,
			len(lats), len(lons), *members)
	}
	return nil
}

// siteGrid spans a regular grid over the configured sites with half a degree
// of margin, so every site has cells around it without storing a full model
// domain.
func siteGrid(sites []config.Site, step float64) (lats, lons []float64) {
	lonMin, lonMax := sites[0].Lon, sites[0].Lon
	latMin, latMax := sites[0].Lat, sites[0].Lat
	for _, s := range sites[1:] {
		lonMin, lonMax = math.Min(lonMin, s.Lon), math.Max(lonMax, s.Lon)
		latMin, latMax = math.Min(latMin, s.Lat), math.Max(latMax, s.Lat)
	}
	const margin = 0.5
	return axis(latMin-margin, latMax+margin, step), axis(lonMin-margin, lonMax+margin, step)
}

func axis(lo, hi, step float64) []float64 {
	var xs []float64
	for v := lo; v <= hi+1e-9; v += step {
		xs = append(xs, v)
	}
	return xs
}

// buildField fills one parameter of one run with physically plausible values:
// diurnal cycles where they belong, ensemble spread growing with lead time,
// and non-decreasing series for the accumulated parameters.
func buildField(rng *rand.Rand, parameter string, model config.ModelConfig, init time.Time, members []int, lats, lons []float64) *domain.Field {
	n := model.Stop - model.Start
	times := make([]time.Time, n)
	for i := range times {
		times[i] = init.Add(time.Duration(model.Start+i) * time.Hour)
	}

	f := domain.NewField(parameter, times, members, lats, lons)
	f.Unit, f.Description = attributes(parameter)

	for ti, t := range times {
		lead := model.Start + ti
		spread := 1 + float64(lead)/36 // ensemble disperses with lead time
		hour := float64(t.Hour())
		diurnal := math.Sin((hour - 9) * math.Pi / 12)
		daylight := math.Max(0, math.Sin((hour-6)*math.Pi/12))

		for mi := range members {
			for yi, lat := range lats {
				for xi, lon := range lons {
					noise := rng.NormFloat64() * spread
					var v float64
					switch parameter {
					case "T_2M":
						v = 276.5 + 7*diurnal - 6*(lat-46.5) + 0.9*noise
					case "TD_2M":
						v = 273.0 + 4*diurnal - 5*(lat-46.5) - math.Abs(0.8*noise)
					case domain.ParamWindU:
						v = 2.2*math.Sin(hour*math.Pi/12+lon) + 0.7*noise
					case domain.ParamWindV:
						v = -1.4*math.Cos(hour*math.Pi/12+lat) + 0.7*noise
					case "VMAX_10M":
						v = 4.5 + 3.5*math.Abs(diurnal) + math.Abs(1.5*noise)
					case "HZEROCL":
						v = 2400 + 420*math.Sin(2*math.Pi*float64(lead)/72) + 110*noise
					case "PMSL":
						v = 101325 + 340*math.Sin(2*math.Pi*float64(lead)/96+lon/3) + 35*noise
					case "DURSUN":
						v = previous(f, ti, mi, yi, xi) + 2900*daylight
					case "TOT_PREC":
						shower := math.Max(0, 0.6*noise+math.Sin(float64(lead)/5)-0.8)
						v = previous(f, ti, mi, yi, xi) + shower
					default:
						v = noise
					}
					f.Set(ti, mi, yi, xi, v)
				}
			}
		}
	}
	return f
}

// previous reads the already-filled prior step of an accumulated parameter.
func previous(f *domain.Field, ti, mi, yi, xi int) float64 {
	if ti == 0 {
		return 0
	}
	return f.At(ti-1, mi, yi, xi)
}

func attributes(parameter string) (unit, description string) {
	switch parameter {
	case "T_2M":
		return "K", "air temperature 2 m above ground"
	case "TD_2M":
		return "K", "dew point temperature 2 m above ground"
	case domain.ParamWindU:
		return "m s-1", "U component of wind 10 m above ground"
	case domain.ParamWindV:
		return "m s-1", "V component of wind 10 m above ground"
	case "VMAX_10M":
		return "m s-1", "maximum wind gust 10 m above ground"
	case "HZEROCL":
		return "m", "height of freezing level"
	case "PMSL":
		return "Pa", "mean sea level pressure"
	case "DURSUN":
		return "s", "sunshine duration"
	case "TOT_PREC":
		return "kg m-2", "total precipitation"
	default:
		return "", ""
	}
}
