package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hoursFrom(base time.Time, hours ...int) []time.Time {
	ts := make([]time.Time, len(hours))
	for i, h := range hours {
		ts[i] = base.Add(time.Duration(h) * time.Hour)
	}
	return ts
}

func TestDeaggregate(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewField("TOT_PREC", hoursFrom(base, 0, 3, 6, 9), []int{0}, []float64{47.0}, []float64{8.0})
	for i, accumulated := range []float64{0, 1.5, 4.0, 4.0} {
		f.Set(i, 0, 0, 0, accumulated)
	}

	out, err := Deaggregate(f)

	require.NoError(t, err)
	require.Len(t, out.Times, 3)
	assert.Equal(t, f.Times[:3], out.Times, "increments take the earlier timestamp of each pair")
	assert.InDelta(t, 1.5, out.At(0, 0, 0, 0), 1e-6)
	assert.InDelta(t, 2.5, out.At(1, 0, 0, 0), 1e-6)
	assert.InDelta(t, 0.0, out.At(2, 0, 0, 0), 1e-6, "flat accumulation means a dry interval")
}

func TestDeaggregate_IncrementsSumToTotal(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	accumulated := []float64{0, 0.25, 0.25, 2.0, 5.5, 5.75, 9.0}
	f := NewField("DURSUN", hoursFrom(base, 0, 1, 2, 3, 4, 5, 6), []int{0}, []float64{47.0}, []float64{8.0})
	for i, v := range accumulated {
		f.Set(i, 0, 0, 0, v)
	}

	out, err := Deaggregate(f)

	require.NoError(t, err)
	var sum float64
	for ti := range out.Times {
		sum += out.At(ti, 0, 0, 0)
	}
	assert.InDelta(t, accumulated[len(accumulated)-1]-accumulated[0], sum, 1e-6)
}

func TestDeaggregate_PerMember(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewField("TOT_PREC", hoursFrom(base, 0, 3), []int{0, 1}, []float64{47.0}, []float64{8.0})
	f.Set(0, 0, 0, 0, 1.0)
	f.Set(1, 0, 0, 0, 3.0)
	f.Set(0, 1, 0, 0, 2.0)
	f.Set(1, 1, 0, 0, 2.5)

	out, err := Deaggregate(f)

	require.NoError(t, err)
	assert.InDelta(t, 2.0, out.At(0, 0, 0, 0), 1e-6)
	assert.InDelta(t, 0.5, out.At(0, 1, 0, 0), 1e-6)
}

func TestDeaggregate_TooFewTimes(t *testing.T) {
	base := time.Date(2026, 1, 24, 9, 0, 0, 0, time.UTC)
	f := NewField("TOT_PREC", hoursFrom(base, 0), []int{0}, []float64{47.0}, []float64{8.0})

	_, err := Deaggregate(f)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 valid times")
}
