package series

import (
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/days"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minutes(start time.Time, n int) []time.Time {
	ts := make([]time.Time, n)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Minute)
	}
	return ts
}

func TestColumnAbsentVersusZero(t *testing.T) {
	f := NewFrame(minutes(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), 3))
	require.NoError(t, f.Set(PanelInput, []float64{0, 0, 0}))

	assert.True(t, f.Column(PanelInput).IsValid())
	assert.False(t, f.Column(Inverter).IsValid())
	assert.Equal(t, []float64{0, 0, 0}, f.ColumnOrZero(Inverter))
}

func TestSetRejectsLengthMismatch(t *testing.T) {
	f := NewFrame(minutes(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), 3))
	assert.Error(t, f.Set(Grid, []float64{1, 2}))
}

func TestIntegrate(t *testing.T) {
	f := NewFrame(minutes(time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), 4))
	require.NoError(t, f.Set(Grid, []float64{60, -120, 60, -60}))

	assert.InDelta(t, -1.0, f.Integrate(Grid, SignAll), 1e-9)
	assert.InDelta(t, 2.0, f.Integrate(Grid, SignPositive), 1e-9)
	assert.InDelta(t, -3.0, f.Integrate(Grid, SignNegative), 1e-9)
	assert.Zero(t, f.Integrate(Inverter, SignAll))
}

func TestPositiveWindow(t *testing.T) {
	start := time.Date(2025, 6, 15, 5, 0, 0, 0, time.UTC)
	f := NewFrame(minutes(start, 5))
	require.NoError(t, f.Set(PanelInput, []float64{0, 3, 0, 7, 0}))

	first, last, ok := f.PositiveWindow(PanelInput)
	require.True(t, ok)
	assert.Equal(t, start.Add(time.Minute), first)
	assert.Equal(t, start.Add(3*time.Minute), last)

	require.NoError(t, f.Set(PanelInput, []float64{0, 0, 0, 0, 0}))
	_, _, ok = f.PositiveWindow(PanelInput)
	assert.False(t, ok)
}

func TestRangeAndThrough(t *testing.T) {
	start := time.Date(2025, 6, 15, 5, 0, 0, 0, time.UTC)
	f := NewFrame(minutes(start, 10))
	require.NoError(t, f.Set(Grid, make([]float64, 10)))

	assert.Equal(t, 3, f.Range(start.Add(2*time.Minute), start.Add(5*time.Minute)).Len())
	assert.Equal(t, 4, f.Through(start.Add(2*time.Minute), start.Add(5*time.Minute)).Len())
	assert.Equal(t, 0, f.Range(start.Add(time.Hour), start.Add(2*time.Hour)).Len())
}

func TestReanchor(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	f := NewFrame(minutes(time.Date(2024, 6, 10, 12, 0, 0, 0, loc), 3))
	require.NoError(t, f.Set(PanelInput, []float64{1, 2, 3}))

	out, err := f.Reanchor(days.Day("250615"), loc)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 6, 15, 12, 1, 0, 0, loc), out.Time[1])
	assert.Equal(t, []float64{1, 2, 3}, out.ColumnOrZero(PanelInput))
}

func TestReanchorDetectsClockChangeArtifacts(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)

	// 02:30 and 02:40 CEST are re-anchored onto a day without 02:xx
	f := NewFrame([]time.Time{
		time.Date(2025, 6, 15, 1, 59, 0, 0, loc),
		time.Date(2025, 6, 15, 2, 30, 0, 0, loc),
		time.Date(2025, 6, 15, 3, 0, 0, 0, loc),
	})
	_, err = f.Reanchor(days.Day("250330"), loc)
	assert.ErrorIs(t, err, ErrNonMonotonic)
}

func TestConcat(t *testing.T) {
	start := time.Date(2025, 6, 15, 5, 0, 0, 0, time.UTC)
	a := NewFrame(minutes(start, 2))
	require.NoError(t, a.Set(Grid, []float64{1, 2}))
	b := NewFrame(minutes(start.Add(2*time.Minute), 2))
	require.NoError(t, b.Set(PanelInput, []float64{3, 4}))

	out, err := Concat(a, b)
	require.NoError(t, err)
	assert.Equal(t, 4, out.Len())
	assert.Equal(t, []float64{1, 2, 0, 0}, out.ColumnOrZero(Grid))
	assert.Equal(t, []float64{0, 0, 3, 4}, out.ColumnOrZero(PanelInput))

	_, err = Concat(b, a)
	assert.ErrorIs(t, err, ErrNonMonotonic)
}

func TestIsOptional(t *testing.T) {
	assert.True(t, Inverter.IsOptional())
	assert.True(t, Channel("PLUG2").IsOptional())
	assert.False(t, PanelInput.IsOptional())
}

func TestBuckets(t *testing.T) {
	start := time.Date(2025, 6, 15, 9, 45, 0, 0, time.UTC)
	ts := make([]time.Time, 90)
	for i := range ts {
		ts[i] = start.Add(time.Duration(i) * time.Minute)
	}
	f := NewFrame(ts)

	buckets := f.Buckets(time.UTC, time.Hour)
	require.Len(t, buckets, 3)
	assert.Equal(t, 15, buckets[0].Len())
	assert.Equal(t, 60, buckets[1].Len())
	assert.Equal(t, 15, buckets[2].Len())
	assert.Equal(t, time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC), buckets[1].First())

	assert.Len(t, f.Buckets(time.UTC, 0), 1)
	assert.Nil(t, Frame{}.Buckets(time.UTC, time.Hour))
}
