package main

import (
	"context"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ts    time.Time
	name  string
	value float64
}

type fakeRows struct {
	rows []row
	i    int
}

func (f *fakeRows) Next() bool {
	f.i++
	return f.i <= len(f.rows)
}

func (f *fakeRows) Scan(dest ...any) error {
	r := f.rows[f.i-1]
	*dest[0].(*time.Time) = r.ts
	*dest[1].(*string) = r.name
	*dest[2].(*float64) = r.value
	return nil
}

func (f *fakeRows) Err() error {
	return nil
}

type fakeSink struct {
	samples []database.Sample
}

func (f *fakeSink) SaveSamples(_ context.Context, samples []database.Sample) error {
	f.samples = append(f.samples, samples...)
	return nil
}

func at(minute, second int) time.Time {
	return time.Date(2024, 6, 15, 10, minute, second, 0, time.UTC)
}

func TestCopySamples(t *testing.T) {
	rows := &fakeRows{rows: []row{
		{at(0, 0), "sbpi", 100},
		{at(0, 0), "sbsb", 0.5},
		{at(0, 30), "sbpi", 200},
		{at(1, 0), "sbpi", 50},
	}}
	sink := &fakeSink{}

	n, err := copySamples(context.Background(), rows, sink)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []database.Sample{
		{Time: at(0, 0), Channel: series.PanelInput, Value: 150},
		{Time: at(0, 0), Channel: series.StateOfCharge, Value: 0.5},
		{Time: at(1, 0), Channel: series.PanelInput, Value: 50},
	}, sink.samples)
}

func TestCopySamplesRejectsUnorderedRows(t *testing.T) {
	rows := &fakeRows{rows: []row{
		{at(5, 0), "sbpi", 100},
		{at(4, 0), "sbpi", 100},
	}}
	_, err := copySamples(context.Background(), rows, &fakeSink{})
	assert.Error(t, err)
}

func TestIdentifier(t *testing.T) {
	assert.True(t, identifier.MatchString("public.metrics"))
	assert.False(t, identifier.MatchString("metrics; DROP TABLE x"))
}
