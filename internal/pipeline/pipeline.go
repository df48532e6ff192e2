// Package pipeline orchestrates one forecast batch: discover the newest
// complete model runs, derive wind fields, then blend and publish a quantile
// forecast per site and target parameter.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lakewx/nwp-blend/internal/config"
	"github.com/lakewx/nwp-blend/internal/domain"
	"github.com/lakewx/nwp-blend/internal/observability"
)

// Store is the slice of the forecast store the pipeline depends on.
type Store interface {
	LatestComplete(models, parameters []string) (map[string]string, error)
	ParseInit(id string) (time.Time, error)
	FieldExists(model, init, parameter string) bool
	ReadField(model, init, parameter string) (*domain.Field, error)
	WriteField(model, init string, field *domain.Field) error
	ArtifactPublished(key domain.ArtifactKey) bool
	StageArtifact(key domain.ArtifactKey, data []byte) error
	CommitArtifact(key domain.ArtifactKey) error
	DiscardArtifact(key domain.ArtifactKey)
}

// RemoteStore transmits a named artifact to the delivery server.
type RemoteStore interface {
	Upload(ctx context.Context, name string, data []byte) error
}

// Notifier announces committed artifacts downstream.
type Notifier interface {
	Publish(ctx context.Context, pub domain.Publication) error
}

// Stage labels for the item error counter.
const (
	stageLoad    = "load"
	stageDerive  = "derive"
	stageCompute = "compute"
	stageBlend   = "blend"
	stagePublish = "publish"
)

// Pipeline runs the blend-and-publish batch.
type Pipeline struct {
	store    Store
	remote   RemoteStore
	notifier Notifier // nil when notifications are disabled
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *observability.Metrics
	ready    atomic.Bool

	mu        sync.Mutex
	lastShort string
	lastMid   string
	lastBatch time.Time
	published int
	skipped   int
	failed    int
}

// New wires the pipeline stages. notifier may be nil when downstream
// notification is disabled.
func New(store Store, remote RemoteStore, notifier Notifier, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		store:    store,
		remote:   remote,
		notifier: notifier,
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once the pipeline has completed at least one
// batch, or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no batch completed yet")
	}
	return nil
}

// StatusSnapshot reports the outcome of the last batch for operators.
func (p *Pipeline) StatusSnapshot() map[string]any {
	p.mu.Lock()
	defer p.mu.Unlock()

	status := map[string]any{"ready": p.ready.Load()}
	if !p.lastBatch.IsZero() {
		status["last_batch_at"] = p.lastBatch.UTC().Format(time.RFC3339)
		status["last_short_init"] = p.lastShort
		status["last_mid_init"] = p.lastMid
		status["last_published"] = p.published
		status["last_skipped"] = p.skipped
		status["last_failed"] = p.failed
	}
	return status
}

// Run executes one batch against the newest complete run pair. Finding no
// complete pair is not an error: the batch logs and returns, and the next
// scheduled invocation tries again.
func (p *Pipeline) Run(ctx context.Context) error {
	models := []string{p.cfg.NWP.ShortRange.Name, p.cfg.NWP.MidRange.Name}
	inits, err := p.store.LatestComplete(models, p.cfg.NWP.Parameters)
	if err != nil {
		return fmt.Errorf("discover runs: %w", err)
	}

	shortInit := inits[p.cfg.NWP.ShortRange.Name]
	midInit := inits[p.cfg.NWP.MidRange.Name]
	if shortInit == "" || midInit == "" {
		p.logger.Info("no complete run pair available",
			"short_init", shortInit, "mid_init", midInit)
		return nil
	}
	return p.RunInits(ctx, shortInit, midInit)
}

// RunInits executes one batch against explicit initialization ids, bypassing
// discovery. Item failures are scoped: they are logged and counted, and the
// batch continues with the next site and target.
func (p *Pipeline) RunInits(ctx context.Context, shortInit, midInit string) error {
	start := time.Now()
	p.metrics.BatchRunning.Set(1)
	defer p.metrics.BatchRunning.Set(0)
	defer func() {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	p.logger.Info("batch started", "short_init", shortInit, "mid_init", midInit)
	p.recordRunAge(p.cfg.NWP.ShortRange.Name, shortInit)
	p.recordRunAge(p.cfg.NWP.MidRange.Name, midInit)

	runs := []struct{ model, init string }{
		{p.cfg.NWP.ShortRange.Name, shortInit},
		{p.cfg.NWP.MidRange.Name, midInit},
	}
	for _, r := range runs {
		if err := p.PreprocessWind(r.model, r.init); err != nil {
			// Wind targets of this run will fail at load; everything
			// else in the batch is unaffected.
			p.logger.Error("wind pre-processing failed",
				"model", r.model, "init", r.init, "error", err)
			p.metrics.ItemErrors.WithLabelValues(stageDerive).Inc()
		}
	}

	var published, skipped, failed int
	for _, site := range p.cfg.Sites {
		for _, target := range p.cfg.Targets {
			if err := ctx.Err(); err != nil {
				p.logger.Warn("batch interrupted", "error", err)
				return err
			}

			ok, err := p.processItem(ctx, shortInit, midInit, site, target)
			switch {
			case err != nil:
				failed++
				p.logger.Error("item failed",
					"site", site.Name, "parameter", target.Parameter, "error", err)
				p.metrics.ItemErrors.WithLabelValues(errorStage(err)).Inc()
			case ok:
				published++
			default:
				skipped++
			}
		}
	}

	p.mu.Lock()
	p.lastShort, p.lastMid = shortInit, midInit
	p.lastBatch = time.Now()
	p.published, p.skipped, p.failed = published, skipped, failed
	p.mu.Unlock()
	p.ready.Store(true)

	p.logger.Info("batch finished",
		"published", published, "skipped", skipped, "failed", failed,
		"duration", time.Since(start))
	return nil
}

// PreprocessWind derives the wind direction and speed fields for one run.
// It is idempotent: a run already carrying both derived files is left alone,
// so re-running a batch never recomputes them.
func (p *Pipeline) PreprocessWind(model, init string) error {
	if p.store.FieldExists(model, init, domain.ParamWindDir) &&
		p.store.FieldExists(model, init, domain.ParamWindSpeed) {
		p.logger.Debug("wind fields already derived", "model", model, "init", init)
		return nil
	}

	u, err := p.store.ReadField(model, init, domain.ParamWindU)
	if err != nil {
		return err
	}
	v, err := p.store.ReadField(model, init, domain.ParamWindV)
	if err != nil {
		return err
	}

	dir, speed, err := domain.DeriveWind(u, v)
	if err != nil {
		return err
	}
	if err := p.store.WriteField(model, init, dir); err != nil {
		return err
	}
	return p.store.WriteField(model, init, speed)
}

// processItem blends and publishes one site and target combination. It
// returns (true, nil) when a new artifact was published and (false, nil)
// when the artifact already existed.
func (p *Pipeline) processItem(ctx context.Context, shortInit, midInit string, site config.Site, target config.Target) (bool, error) {
	key := domain.ArtifactKey{Site: site.Name, Init: shortInit, Parameter: target.Parameter}
	if p.store.ArtifactPublished(key) {
		p.logger.Debug("artifact already published", "artifact", key.FileName())
		p.metrics.ArtifactsSkipped.Inc()
		return false, nil
	}

	shortField, err := p.loadField(p.cfg.NWP.ShortRange.Name, shortInit, target)
	if err != nil {
		return false, err
	}
	midField, err := p.loadField(p.cfg.NWP.MidRange.Name, midInit, target)
	if err != nil {
		return false, err
	}

	shortSeries, err := domain.ExtractSite(shortField, domain.Site(site), target.Quantiles)
	if err != nil {
		return false, err
	}
	midSeries, err := domain.ExtractSite(midField, domain.Site(site), target.Quantiles)
	if err != nil {
		return false, err
	}

	blended, err := domain.Blend(shortSeries, midSeries, p.cfg.BlendSpec())
	if err != nil {
		return false, err
	}

	// Display metadata from the target, falling back to the attributes the
	// short-range field was stored with.
	unit, description := target.Unit, target.Description
	if unit == "" {
		unit = shortField.Unit
	}
	if description == "" {
		description = shortField.Description
	}

	doc := domain.BuildDocument(key, domain.AttachMetadata(blended, unit, description))
	if len(target.Thresholds) > 0 {
		probs, err := p.blendProbabilities(shortField, midField, site, target)
		if err != nil {
			return false, err
		}
		doc.AttachProbabilities(probs)
	}
	data, err := doc.Encode()
	if err != nil {
		return false, err
	}

	if err := p.store.StageArtifact(key, data); err != nil {
		return false, err
	}
	if err := p.remote.Upload(ctx, key.RemoteName(), data); err != nil {
		p.store.DiscardArtifact(key)
		return false, err
	}
	if err := p.store.CommitArtifact(key); err != nil {
		return false, err
	}

	p.metrics.ArtifactsPublished.Inc()
	p.logger.Info("artifact published",
		"artifact", key.FileName(), "remote", key.RemoteName())

	p.notify(ctx, key)
	return true, nil
}

// blendProbabilities computes the exceedance probability columns for targets
// that request them, cross-faded with the same spec as the quantiles.
func (p *Pipeline) blendProbabilities(shortField, midField *domain.Field, site config.Site, target config.Target) (domain.ProbabilitySeries, error) {
	shortProbs, err := domain.ExceedanceProbability(shortField, domain.Site(site), target.Thresholds)
	if err != nil {
		return domain.ProbabilitySeries{}, err
	}
	midProbs, err := domain.ExceedanceProbability(midField, domain.Site(site), target.Thresholds)
	if err != nil {
		return domain.ProbabilitySeries{}, err
	}
	return domain.BlendProbabilities(shortProbs, midProbs, p.cfg.BlendSpec())
}

// loadField reads one parameter of one run, de-aggregating accumulated
// parameters into per-interval values.
func (p *Pipeline) loadField(model, init string, target config.Target) (*domain.Field, error) {
	f, err := p.store.ReadField(model, init, target.Parameter)
	if err != nil {
		return nil, err
	}
	if !target.Accumulated {
		return f, nil
	}
	return domain.Deaggregate(f)
}

// notify announces the publication. Failures are logged and dropped: the
// artifact is already committed and is never rolled back over a missed
// notification.
func (p *Pipeline) notify(ctx context.Context, key domain.ArtifactKey) {
	if p.notifier == nil {
		return
	}
	if err := p.notifier.Publish(ctx, domain.NewPublication(key)); err != nil {
		p.logger.Warn("publish notification failed",
			"artifact", key.FileName(), "error", err)
	}
}

func (p *Pipeline) recordRunAge(model, init string) {
	t, err := p.store.ParseInit(init)
	if err != nil {
		p.logger.Warn("unparseable init id", "model", model, "init", init, "error", err)
		return
	}
	p.metrics.RunAge.WithLabelValues(model).Set(time.Since(t).Hours())
}

// errorStage maps an item error onto the stage label of the error counter.
func errorStage(err error) string {
	var missingInput *domain.MissingInputError
	var missingParam *domain.MissingParameterError
	var overlap *domain.InsufficientOverlapError
	var remote *domain.RemoteTransmissionError
	switch {
	case errors.As(err, &missingInput), errors.As(err, &missingParam):
		return stageLoad
	case errors.As(err, &overlap):
		return stageBlend
	case errors.As(err, &remote):
		return stagePublish
	default:
		return stageCompute
	}
}
