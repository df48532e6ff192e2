package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArtifactKey_Names(t *testing.T) {
	key := ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "T_2M"}

	assert.Equal(t, "bodensee-2026012409-T_2M.json", key.FileName())
	assert.Equal(t, "bodensee-T_2M.json", key.RemoteName())
}

func TestQuantileKey(t *testing.T) {
	assert.Equal(t, "0.5", QuantileKey(0.5))
	assert.Equal(t, "0.1", QuantileKey(0.1))
	assert.Equal(t, "0.975", QuantileKey(0.975))
	assert.Equal(t, "1", QuantileKey(1))
}

func TestBuildDocument(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2026, 1, 24, 10, 30, 0, 0, time.UTC)))
	defer SetClock(nil)

	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	fc := AttachMetadata(SiteSeries{
		Site:      "bodensee",
		Parameter: "T_2M",
		Quantiles: []float64{0.1, 0.5, 0.9},
		Times:     hoursFrom(base, 0, 3),
		Values: [][]float64{
			{271.2, 273.6, 275.9},
			{270.8, 272.9, 275.2},
		},
	}, "K", "air temperature at 2 m")
	key := ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "T_2M"}

	doc := BuildDocument(key, fc)

	assert.Equal(t, "bodensee", doc.Site)
	assert.Equal(t, "T_2M", doc.Parameter)
	assert.Equal(t, "2026012409", doc.Init)
	assert.Equal(t, "K", doc.Unit)
	assert.Equal(t, "air temperature at 2 m", doc.Description)
	assert.Equal(t, "2026-01-24T10:30:00Z", doc.GeneratedAt)

	require.Len(t, doc.Series, 2)
	first := doc.Series["2026-01-24T09:00:00"]
	require.NotNil(t, first, "series keys use ISO 8601 without zone suffix")
	assert.InDelta(t, 271.2, first["0.1"], 1e-9)
	assert.InDelta(t, 273.6, first["0.5"], 1e-9)
	assert.InDelta(t, 275.9, first["0.9"], 1e-9)
	second := doc.Series["2026-01-24T12:00:00"]
	require.NotNil(t, second)
	assert.InDelta(t, 272.9, second["0.5"], 1e-9)
}

func TestDocument_AttachProbabilities(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	doc := Document{Site: "alpstein", Parameter: "VMAX_10M"}

	doc.AttachProbabilities(ProbabilitySeries{
		Site:       "alpstein",
		Parameter:  "VMAX_10M",
		Thresholds: []float64{16.7, 25},
		Times:      hoursFrom(base, 0, 3),
		Values: [][]float64{
			{0.6, 0.15},
			{0.3, 0.0},
		},
	})

	assert.Equal(t, []float64{16.7, 25}, doc.Thresholds)
	require.Len(t, doc.Probabilities, 2)
	first := doc.Probabilities["2026-01-24T09:00:00"]
	require.NotNil(t, first, "probability keys match the series key format")
	assert.InDelta(t, 0.6, first["16.7"], 1e-9)
	assert.InDelta(t, 0.15, first["25"], 1e-9)
	assert.InDelta(t, 0.3, doc.Probabilities["2026-01-24T12:00:00"]["16.7"], 1e-9)
}

func TestDocument_EncodeOmitsEmptyProbabilities(t *testing.T) {
	doc := Document{Site: "bodensee", Parameter: "T_2M"}

	data, err := doc.Encode()

	require.NoError(t, err)
	assert.NotContains(t, string(data), "probabilities")
	assert.NotContains(t, string(data), "thresholds")
}

func TestDocument_Encode(t *testing.T) {
	doc := Document{
		Site:      "alpstein",
		Parameter: "VMAX_10M",
		Init:      "2026012409",
		Unit:      "m/s",
		Quantiles: []float64{0.5},
		Series: map[string]map[string]float64{
			"2026-01-24T09:00:00": {"0.5": 14.2},
		},
	}

	data, err := doc.Encode()

	require.NoError(t, err)
	var decoded Document
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, doc.Site, decoded.Site)
	assert.Equal(t, doc.Series, decoded.Series)
}

func TestNewPublication(t *testing.T) {
	stamp := time.Date(2026, 1, 24, 11, 0, 0, 0, time.UTC)
	SetClock(clockwork.NewFakeClockAt(stamp))
	defer SetClock(nil)

	key := ArtifactKey{Site: "bodensee", Init: "2026012409", Parameter: "TOT_PREC"}
	pub := NewPublication(key)

	assert.Equal(t, key, pub.Key)
	assert.Equal(t, "bodensee-TOT_PREC.json", pub.RemoteName)
	assert.Equal(t, stamp, pub.PublishedAt)
}
