package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// ValidTimeLayout is the key format for series entries in published
// documents: ISO 8601 without a zone suffix, valid times being UTC.
const ValidTimeLayout = "2006-01-02T15:04:05"

// ArtifactKey identifies one published forecast: the site, the short-range
// run it was computed from, and the target parameter.
type ArtifactKey struct {
	Site      string
	Init      string // short-range initialization id, e.g. "2026012409"
	Parameter string
}

// FileName is the local artifact name, unique per run.
func (k ArtifactKey) FileName() string {
	return fmt.Sprintf("%s-%s-%s.json", k.Site, k.Init, k.Parameter)
}

// RemoteName is the published name. The init id is dropped so each upload
// replaces the previous forecast for the same site and parameter.
func (k ArtifactKey) RemoteName() string {
	return fmt.Sprintf("%s-%s.json", k.Site, k.Parameter)
}

// Document is the JSON artifact consumers download. Series maps valid time
// (in [ValidTimeLayout]) to quantile key to value. Thresholds and
// Probabilities mirror Quantiles and Series for targets that also publish
// exceedance probabilities; both are omitted otherwise.
type Document struct {
	Site          string                        `json:"site"`
	Parameter     string                        `json:"parameter"`
	Init          string                        `json:"init"`
	Unit          string                        `json:"unit"`
	Description   string                        `json:"description"`
	Quantiles     []float64                     `json:"quantiles"`
	GeneratedAt   string                        `json:"generated_at"`
	Series        map[string]map[string]float64 `json:"series"`
	Thresholds    []float64                     `json:"thresholds,omitempty"`
	Probabilities map[string]map[string]float64 `json:"probabilities,omitempty"`
}

// BuildDocument shapes a blended forecast for publication. The generated_at
// stamp comes from the package clock so tests can freeze it.
func BuildDocument(key ArtifactKey, fc BlendedForecast) Document {
	doc := Document{
		Site:        key.Site,
		Parameter:   key.Parameter,
		Init:        key.Init,
		Unit:        fc.Unit,
		Description: fc.Description,
		Quantiles:   fc.Quantiles,
		GeneratedAt: clock.Now().UTC().Format(time.RFC3339),
		Series:      make(map[string]map[string]float64, len(fc.Times)),
	}
	for ti, t := range fc.Times {
		row := make(map[string]float64, len(fc.Quantiles))
		for qi, q := range fc.Quantiles {
			row[QuantileKey(q)] = fc.Values[ti][qi]
		}
		doc.Series[t.UTC().Format(ValidTimeLayout)] = row
	}
	return doc
}

// AttachProbabilities adds the per-threshold exceedance columns of a blended
// probability series to the document.
func (d *Document) AttachProbabilities(ps ProbabilitySeries) {
	d.Thresholds = ps.Thresholds
	d.Probabilities = make(map[string]map[string]float64, len(ps.Times))
	for ti, t := range ps.Times {
		row := make(map[string]float64, len(ps.Thresholds))
		for ki, threshold := range ps.Thresholds {
			row[ThresholdKey(threshold)] = ps.Values[ti][ki]
		}
		d.Probabilities[t.UTC().Format(ValidTimeLayout)] = row
	}
}

// QuantileKey formats a quantile as a JSON object key, shortest decimal form
// ("0.5", not "0.50").
func QuantileKey(q float64) string {
	return floatKey(q)
}

// ThresholdKey formats a threshold the same way.
func ThresholdKey(t float64) string {
	return floatKey(t)
}

func floatKey(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Encode renders the document as indented JSON.
func (d Document) Encode() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// Publication records a committed artifact for downstream notification.
type Publication struct {
	Key         ArtifactKey
	RemoteName  string
	PublishedAt time.Time
}

// NewPublication stamps a publication record for an artifact that has been
// transmitted and committed.
func NewPublication(key ArtifactKey) Publication {
	return Publication{
		Key:         key,
		RemoteName:  key.RemoteName(),
		PublishedAt: clock.Now().UTC(),
	}
}
