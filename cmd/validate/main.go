// Command validate runs pre-flight integrity checks on a forecast run pair
// before the blend pipeline consumes it: run completeness per model, field
// geometry against the model configuration, physical plausibility of the
// stored values, and blend feasibility for every configured site and target.
// It checks the raw parameter vocabulary; derived wind fields share the
// component fields' geometry and need no separate check.
//
// Usage:
//
//	go run ./cmd/validate -config config.yaml
//	go run ./cmd/validate -config config.yaml -init-short 2026012409 -init-mid 2026012406
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"
	"time"

	"github.com/lakewx/nwp-blend/internal/adapter/nwpstore"
	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration")
	initShort := flag.String("init-short", "", "short-range init id (default: newest complete run)")
	initMid := flag.String("init-mid", "", "mid-range init id (default: newest complete run)")
	flag.Parse()

	// The checker never talks to the FTP server; satisfy the secret check so
	// the one config file serves both the service and this tool.
	if os.Getenv(config.EnvFTPPassword) == "" {
		_ = os.Setenv(config.EnvFTPPassword, "unused")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load config: %v\n", err)
		os.Exit(1)
	}

	if code := run(cfg, *initShort, *initMid); code != 0 {
		os.Exit(code)
	}
}

func run(cfg *config.Config, initShort, initMid string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := nwpstore.New(cfg.Storage.Root, cfg.Storage.DateLayout, logger)

	if (initShort == "") != (initMid == "") {
		fmt.Fprintln(os.Stderr, "FATAL: -init-short and -init-mid must be given together")
		return 1
	}
	if initShort == "" {
		models := []string{cfg.NWP.ShortRange.Name, cfg.NWP.MidRange.Name}
		inits, err := store.LatestComplete(models, cfg.NWP.Parameters)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: discover runs: %v\n", err)
			return 1
		}
		initShort = inits[cfg.NWP.ShortRange.Name]
		initMid = inits[cfg.NWP.MidRange.Name]
		if initShort == "" || initMid == "" {
			fmt.Fprintf(os.Stderr, "FATAL: no complete run pair to validate (short=%q, mid=%q)\n",
				initShort, initMid)
			return 1
		}
	}

	// ── Load the run pair ──
	fmt.Println("=== Forecast Store Validation ===")
	fmt.Println()

	short := loadRun(store, cfg.NWP.ShortRange, initShort, cfg.NWP.Parameters)
	mid := loadRun(store, cfg.NWP.MidRange, initMid, cfg.NWP.Parameters)
	fmt.Printf("short range: %s %s\n", short.model.Name, short.init)
	fmt.Printf("mid range:   %s %s\n", mid.model.Name, mid.init)
	fmt.Println()

	// ── Run validation phases ──
	phases := []*phase{
		validateCompleteness(store, cfg.NWP.Parameters, short, mid),
		validateGeometry(short, mid),
		validatePlausibility(cfg.Targets, short, mid),
		validateFeasibility(cfg, short, mid),
	}

	// ── Report results ──
	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Fields: %d of %d short-range, %d of %d mid-range; %d sites, %d targets\n",
		len(short.fields), len(cfg.NWP.Parameters), len(mid.fields), len(cfg.NWP.Parameters),
		len(cfg.Sites), len(cfg.Targets))

	// Print detailed errors.
	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// runData is one model run with whatever fields could be loaded from it.
type runData struct {
	model    config.ModelConfig
	init     string
	run      domain.ModelRun // zero Init when the id does not parse
	params   []string
	fields   map[string]*domain.Field
	loadErrs []string
}

func loadRun(store *nwpstore.Store, model config.ModelConfig, init string, parameters []string) *runData {
	r := &runData{
		model:  model,
		init:   init,
		params: parameters,
		fields: map[string]*domain.Field{},
	}
	if t, err := store.ParseInit(init); err == nil {
		r.run = domain.ModelRun{Model: model.Name, Init: t, Freq: model.Freq}
	}
	for _, param := range parameters {
		if !store.FieldExists(model.Name, init, param) {
			continue // the completeness phase reports it
		}
		f, err := store.ReadField(model.Name, init, param)
		if err != nil {
			r.loadErrs = append(r.loadErrs, fmt.Sprintf("%s: %v", param, err))
			continue
		}
		r.fields[param] = f
	}
	return r
}

// reference returns the loaded field of the first configured parameter that
// has one. All fields of a run must share its axes (phase 2).
func (r *runData) reference() *domain.Field {
	for _, param := range r.params {
		if f := r.fields[param]; f != nil {
			return f
		}
	}
	return nil
}

// ── Phase 1: Run Completeness ──
// Every configured parameter must have a readable field file in both runs.

func validateCompleteness(store *nwpstore.Store, parameters []string, runs ...*runData) *phase {
	p := &phase{name: "Phase 1: Run Completeness"}

	for _, r := range runs {
		if r.run.Init.IsZero() {
			p.errorf("%s: init id %q does not parse with the configured date layout", r.model.Name, r.init)
		} else if age := time.Since(r.run.Init); age > 2*time.Duration(r.run.Freq)*time.Hour {
			fmt.Printf("  Note: %s run %s is %.0f h old (a new run starts every %d h)\n",
				r.model.Name, r.init, age.Hours(), r.run.Freq)
		}
		for _, param := range parameters {
			if !store.FieldExists(r.model.Name, r.init, param) {
				p.errorf("%s %s: missing field file for %s", r.model.Name, r.init, param)
			}
		}
		for _, e := range r.loadErrs {
			p.errorf("%s %s: %s", r.model.Name, r.init, e)
		}
	}
	return p
}

// ── Phase 2: Field Geometry ──
// All fields of a run share one set of axes, the valid-time axis covers the
// configured lead range hour by hour, and the ensemble is an ensemble.

func validateGeometry(runs ...*runData) *phase {
	p := &phase{name: "Phase 2: Field Geometry"}

	for _, r := range runs {
		ref := r.reference()
		if ref == nil {
			p.errorf("%s %s: no readable fields to check", r.model.Name, r.init)
			continue
		}
		if len(ref.Members) < 2 {
			p.errorf("%s %s: %d ensemble member(s), quantiles need at least 2", r.model.Name, r.init, len(ref.Members))
		}
		checkLeadCoverage(p, r, ref)
		for _, param := range r.params {
			f := r.fields[param]
			if f == nil || f == ref {
				continue
			}
			if !sameAxes(ref, f) {
				p.errorf("%s %s: %s axes differ from %s", r.model.Name, r.init, param, ref.Parameter)
			}
		}
	}
	return p
}

// checkLeadCoverage verifies the valid times run hourly from init+start
// through init+stop-1, per the model configuration.
func checkLeadCoverage(p *phase, r *runData, ref *domain.Field) {
	if r.run.Init.IsZero() {
		return // unparseable init already reported in phase 1
	}
	steps := r.model.Stop - r.model.Start
	if len(ref.Times) != steps {
		p.errorf("%s %s: %d valid times, config wants %d (leads %d..%d)",
			r.model.Name, r.init, len(ref.Times), steps, r.model.Start, r.model.Stop-1)
		return
	}
	for i, tm := range ref.Times {
		expect := r.run.Init.Add(time.Duration(r.model.Start+i) * time.Hour)
		if !tm.Equal(expect) {
			p.errorf("%s %s: valid time %d is %s, want %s", r.model.Name, r.init, i,
				tm.Format(time.RFC3339), expect.Format(time.RFC3339))
			return // one drifted step implies the rest; no need to flood
		}
	}
}

func sameAxes(a, b *domain.Field) bool {
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

// ── Phase 3: Physical Plausibility ──
// No NaN/Inf cells anywhere; accumulated parameters never decrease along the
// valid-time axis.

func validatePlausibility(targets []config.Target, runs ...*runData) *phase {
	p := &phase{name: "Phase 3: Physical Plausibility"}

	accumulated := map[string]bool{}
	for _, t := range targets {
		if t.Accumulated {
			accumulated[t.Parameter] = true
		}
	}

	for _, r := range runs {
		for _, param := range r.params {
			f := r.fields[param]
			if f == nil {
				continue
			}
			if n := countNonFinite(f); n > 0 {
				p.errorf("%s %s: %s holds %d NaN/Inf cell(s)", r.model.Name, r.init, param, n)
			}
			if accumulated[param] {
				if n, first := countAccumulationDips(f); n > 0 {
					p.errorf("%s %s: accumulated %s decreases in %d cell step(s), first at %s",
						r.model.Name, r.init, param, n, first.Format(time.RFC3339))
				}
			}
		}
	}
	return p
}

func countNonFinite(f *domain.Field) int {
	n := 0
	for _, v := range f.Values {
		fv := float64(v)
		if math.IsNaN(fv) || math.IsInf(fv, 0) {
			n++
		}
	}
	return n
}

// countAccumulationDips counts cells where an accumulated value falls below
// its predecessor by more than float32 storage noise allows.
func countAccumulationDips(f *domain.Field) (int, time.Time) {
	const slack = 1e-3
	stride := len(f.Members) * len(f.Lats) * len(f.Lons)
	dips := 0
	var first time.Time
	for ti := 1; ti < len(f.Times); ti++ {
		prev := f.Values[(ti-1)*stride : ti*stride]
		cur := f.Values[ti*stride : (ti+1)*stride]
		for i := range cur {
			if float64(cur[i]) < float64(prev[i])-slack {
				if dips == 0 {
					first = f.Times[ti]
				}
				dips++
			}
		}
	}
	return dips, first
}

// ── Phase 4: Blend Feasibility ──
// Every site lies inside both grids and every target keeps a full blend
// window of shared valid times, accounting for the step de-aggregation
// consumes.

func validateFeasibility(cfg *config.Config, short, mid *runData) *phase {
	p := &phase{name: "Phase 4: Blend Feasibility"}

	shortRef, midRef := short.reference(), mid.reference()
	if shortRef == nil || midRef == nil {
		p.errorf("need readable fields from both runs to check the blend window")
		return p
	}

	for _, site := range cfg.Sites {
		for _, r := range []*runData{short, mid} {
			ref := r.reference()
			if !insideGrid(ref, site.Lon, site.Lat) {
				p.errorf("site %s (lon %.3f, lat %.3f) is outside the %s grid (lon %.3f..%.3f, lat %.3f..%.3f)",
					site.Name, site.Lon, site.Lat, r.model.Name,
					ref.Lons[0], ref.Lons[len(ref.Lons)-1], ref.Lats[0], ref.Lats[len(ref.Lats)-1])
			}
		}
	}

	window := cfg.Blend.Window
	raw := sharedTimes(shortRef.Times, midRef.Times)
	// De-aggregation drops the last valid time of each series before the
	// blend sees them.
	deagg := sharedTimes(trimLast(shortRef.Times), trimLast(midRef.Times))
	for _, target := range cfg.Targets {
		overlap, kind := raw, "shared"
		if target.Accumulated {
			overlap, kind = deagg, "shared-after-de-aggregation"
		}
		if overlap < window {
			p.errorf("target %s: %d %s valid time(s), blend window needs %d",
				target.Parameter, overlap, kind, window)
		}
	}
	return p
}

func insideGrid(f *domain.Field, lon, lat float64) bool {
	return lon >= f.Lons[0] && lon <= f.Lons[len(f.Lons)-1] &&
		lat >= f.Lats[0] && lat <= f.Lats[len(f.Lats)-1]
}

func sharedTimes(a, b []time.Time) int {
	in := make(map[int64]bool, len(a))
	for _, t := range a {
		in[t.Unix()] = true
	}
	n := 0
	for _, t := range b {
		if in[t.Unix()] {
			n++
		}
	}
	return n
}

func trimLast(ts []time.Time) []time.Time {
	if len(ts) == 0 {
		return ts
	}
	return ts[:len(ts)-1]
}
