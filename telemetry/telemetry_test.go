package telemetry

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/icodeforyou/solarbank-forecast/database"
	"github.com/icodeforyou/solarbank-forecast/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu      sync.Mutex
	samples []database.Sample
}

func (f *fakeSink) SaveSamples(_ context.Context, samples []database.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = append(f.samples, samples...)
	return nil
}

func at(minute, second int) time.Time {
	return time.Date(2025, 6, 15, 10, minute, second, 0, time.UTC)
}

func TestAggregatorAveragesPerMinute(t *testing.T) {
	a := NewAggregator(10)

	flushed, ok := a.Add(at(0, 5), map[series.Channel]float64{series.PanelInput: 100, series.StateOfCharge: 0.5})
	assert.True(t, ok)
	assert.Empty(t, flushed)
	flushed, ok = a.Add(at(0, 35), map[series.Channel]float64{series.PanelInput: 200})
	assert.True(t, ok)
	assert.Empty(t, flushed)

	flushed, ok = a.Add(at(1, 5), map[series.Channel]float64{series.PanelInput: 300})
	assert.True(t, ok)
	require.Len(t, flushed, 2)
	assert.Equal(t, database.Sample{Time: at(0, 0), Channel: series.PanelInput, Value: 150}, flushed[0])
	assert.Equal(t, database.Sample{Time: at(0, 0), Channel: series.StateOfCharge, Value: 0.5}, flushed[1])

	rest := a.Flush()
	require.Len(t, rest, 1)
	assert.Equal(t, database.Sample{Time: at(1, 0), Channel: series.PanelInput, Value: 300}, rest[0])
	assert.Empty(t, a.Flush())
}

func TestAggregatorDropsLateReadings(t *testing.T) {
	a := NewAggregator(10)
	a.Add(at(5, 0), map[series.Channel]float64{series.PanelInput: 100})

	flushed, ok := a.Add(at(4, 59), map[series.Channel]float64{series.PanelInput: 900})
	assert.False(t, ok)
	assert.Empty(t, flushed)

	rest := a.Flush()
	require.Len(t, rest, 1)
	assert.Equal(t, 100.0, rest[0].Value)
}

func TestClientHandle(t *testing.T) {
	sink := &fakeSink{}
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)), Options{Host: "localhost", Port: 1883, Prefix: "solarbank/"}, sink)

	assert.Equal(t, "solarbank/samples", c.samplesTopic())
	assert.Equal(t, "solarbank/forecast/today", c.forecastTopic("today"))

	c.handle([]byte(`{"ts":"2025-06-15T10:00:10Z","values":{"sbpi":120,"SBSB":0.4}}`))
	c.handle([]byte(`not json`))
	c.handle([]byte(`{"values":{"SBPI":1}}`))
	c.handle([]byte(`{"ts":"2025-06-15T10:01:10Z","values":{"SBPI":80}}`))

	require.Len(t, sink.samples, 2)
	assert.Equal(t, series.PanelInput, sink.samples[0].Channel)
	assert.Equal(t, 120.0, sink.samples[0].Value)
	assert.Equal(t, at(0, 0), sink.samples[0].Time.UTC())
	assert.Equal(t, series.StateOfCharge, sink.samples[1].Channel)
}

func TestActivity(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	a := NewActivity(func() time.Time { return now })

	assert.False(t, a.Idle(time.Minute))
	now = now.Add(time.Minute)
	assert.True(t, a.Idle(time.Minute))

	a.Touch()
	assert.False(t, a.Idle(time.Minute))
}
