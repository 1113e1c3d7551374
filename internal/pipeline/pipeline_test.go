package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/air-quality-fusion/internal/domain"
	"github.com/couchcryptid/air-quality-fusion/internal/observability"
	"github.com/couchcryptid/air-quality-fusion/internal/pipeline"
	"github.com/couchcryptid/air-quality-fusion/internal/store"
)

// --- mocks ---

type mockExtractor struct {
	events []domain.RawEvent
	index  atomic.Int64
	err    error
	calls  atomic.Int64
}

func (m *mockExtractor) ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	i := int(m.index.Load())
	if i >= len(m.events) {
		// block until context cancelled to simulate waiting for messages
		<-ctx.Done()
		return nil, ctx.Err()
	}
	end := min(i+batchSize, len(m.events))
	m.index.Store(int64(end))
	return m.events[i:end], nil
}

type mockTransformer struct {
	err error
}

func (m *mockTransformer) Transform(_ context.Context, raw domain.RawEvent) (domain.Envelope, error) {
	if m.err != nil {
		return domain.Envelope{}, m.err
	}
	return domain.Envelope{Kind: domain.EnvelopeMeasurements, Provider: string(raw.Key)}, nil
}

type mockLoader struct {
	mu     sync.Mutex
	loaded []domain.Envelope
	err    error
}

func (m *mockLoader) LoadBatch(_ context.Context, envelopes []domain.Envelope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.loaded = append(m.loaded, envelopes...)
	return nil
}

type mockEngine struct {
	batches  []domain.ProviderBatch
	weather  []domain.WeatherCondition
	warnings map[domain.Gas][]domain.Warning
	computed int
}

func (m *mockEngine) IngestBatches(_ context.Context, batches ...domain.ProviderBatch) store.FusionReport {
	m.batches = append(m.batches, batches...)
	accepted := 0
	for _, b := range batches {
		accepted += len(b.Records)
	}
	return store.FusionReport{Sources: map[domain.Source]store.SourceCounts{
		domain.SourceGroundStation: {Accepted: accepted},
	}}
}

func (m *mockEngine) UpdateWeather(conds ...domain.WeatherCondition) int {
	m.weather = append(m.weather, conds...)
	return len(conds)
}

func (m *mockEngine) ComputeWarnings(_ context.Context, gas domain.Gas) []domain.Warning {
	m.computed++
	return m.warnings[gas]
}

type mockPublisher struct {
	published []domain.OutputEvent
	err       error
}

func (m *mockPublisher) Publish(_ context.Context, events []domain.OutputEvent) error {
	if m.err != nil {
		return m.err
	}
	m.published = append(m.published, events...)
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rawEvent(key string) domain.RawEvent {
	return domain.RawEvent{Key: []byte(key), Value: []byte(`{}`)}
}

// --- pipeline loop ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	ext := &mockExtractor{events: []domain.RawEvent{rawEvent("cpcb"), rawEvent("sentinel5p")}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), metrics, 50)
	require.Error(t, p.CheckReadiness(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	require.Len(t, ldr.loaded, 2)
	assert.Equal(t, "cpcb", ldr.loaded[0].Provider)
	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.MessagesConsumed), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.PipelineRunning), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	ext := &mockExtractor{}
	ldr := &mockLoader{}

	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
}

func TestPipeline_Run_DecodeErrorSkipsAndCommits(t *testing.T) {
	var commits atomic.Int64
	raw := rawEvent("poison")
	raw.Commit = func(_ context.Context) error {
		commits.Add(1)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{}
	metrics := observability.NewMetricsForTesting()

	p := pipeline.New(ext, &mockTransformer{err: errors.New("bad envelope")}, ldr, discardLogger(), metrics, 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.Empty(t, ldr.loaded)
	assert.Equal(t, int64(1), commits.Load())
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.DecodeErrors), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_CommitsAfterLoad(t *testing.T) {
	commitCalled := atomic.Bool{}

	raw := rawEvent("cpcb")
	raw.Topic = "raw-air-quality"
	raw.Commit = func(_ context.Context) error {
		commitCalled.Store(true)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.True(t, commitCalled.Load())
}

func TestPipeline_Run_LoadFailureDoesNotCommit(t *testing.T) {
	commitCalled := atomic.Bool{}
	raw := rawEvent("cpcb")
	raw.Commit = func(_ context.Context) error {
		commitCalled.Store(true)
		return nil
	}

	ext := &mockExtractor{events: []domain.RawEvent{raw}}
	ldr := &mockLoader{err: errors.New("broker down")}
	p := pipeline.New(ext, &mockTransformer{}, ldr, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	assert.False(t, commitCalled.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_ExtractErrorBacksOff(t *testing.T) {
	ext := &mockExtractor{err: errors.New("connection refused")}
	p := pipeline.New(ext, &mockTransformer{}, &mockLoader{}, discardLogger(), observability.NewMetricsForTesting(), 50)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx))
	// 200ms then 400ms backoff: at most three attempts fit in the window.
	assert.LessOrEqual(t, ext.calls.Load(), int64(3))
	assert.GreaterOrEqual(t, ext.calls.Load(), int64(2))
}

// --- transformer ---

func TestEnvelopeTransformer_Transform(t *testing.T) {
	value, err := json.Marshal(domain.Envelope{
		Kind:     domain.EnvelopeMeasurements,
		Provider: "cpcb",
		Records: []domain.RawRecord{{
			Source: "ground_station", Gas: "pm25",
			Lat: domain.Float(28.6), Lon: domain.Float(77.2), Value: domain.Float(180),
			LocationName: "Delhi",
		}},
	})
	require.NoError(t, err)

	env, err := pipeline.NewTransformer(discardLogger()).Transform(context.Background(), domain.RawEvent{Value: value})
	require.NoError(t, err)
	assert.Equal(t, "cpcb", env.Provider)
	require.Len(t, env.Records, 1)
	assert.Equal(t, "Delhi", env.Records[0].LocationName)

	_, err = pipeline.NewTransformer(discardLogger()).Transform(context.Background(), domain.RawEvent{Value: []byte("not json")})
	assert.Error(t, err)
}

// --- loader ---

func TestFusionLoader_RoutesEnvelopes(t *testing.T) {
	eng := &mockEngine{}
	pub := &mockPublisher{}
	l := pipeline.NewLoader(eng, pub, discardLogger(), observability.NewMetricsForTesting())

	err := l.LoadBatch(context.Background(), []domain.Envelope{
		{Kind: domain.EnvelopeMeasurements, Provider: "cpcb", Records: []domain.RawRecord{{Source: "ground_station"}}},
		{Kind: domain.EnvelopeWeather, Provider: "imd", Conditions: []domain.WeatherCondition{{WindSpeed: 3}}},
		{Kind: domain.EnvelopeMeasurements, Provider: "modis", Error: "upstream timeout"},
	})
	require.NoError(t, err)

	require.Len(t, eng.batches, 2)
	assert.Equal(t, "cpcb", eng.batches[0].Provider)
	require.NoError(t, eng.batches[0].Err)
	assert.Equal(t, "modis", eng.batches[1].Provider)
	require.ErrorIs(t, eng.batches[1].Err, domain.ErrProviderUnavailable)
	assert.Contains(t, eng.batches[1].Err.Error(), "upstream timeout")
	assert.Len(t, eng.weather, 1)
	assert.Equal(t, len(domain.Gases), eng.computed)
}

func TestFusionLoader_PublishesWarnings(t *testing.T) {
	w := domain.Warning{ID: "w-1", Kind: domain.WarningDispersion, Severity: domain.SeverityHigh, Gas: domain.GasPM25}
	eng := &mockEngine{warnings: map[domain.Gas][]domain.Warning{domain.GasPM25: {w}}}
	pub := &mockPublisher{}
	metrics := observability.NewMetricsForTesting()
	l := pipeline.NewLoader(eng, pub, discardLogger(), metrics)

	require.NoError(t, l.LoadBatch(context.Background(), []domain.Envelope{
		{Kind: domain.EnvelopeWeather, Conditions: []domain.WeatherCondition{{WindSpeed: 1}}},
	}))

	require.Len(t, pub.published, 1)
	assert.Equal(t, []byte("w-1"), pub.published[0].Key)
	assert.Equal(t, "high", pub.published[0].Headers["severity"])
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.WarningsProduced), 0)
}

func TestFusionLoader_NoChangeSkipsWarnings(t *testing.T) {
	eng := &mockEngine{}
	l := pipeline.NewLoader(eng, &mockPublisher{}, discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, l.LoadBatch(context.Background(), []domain.Envelope{
		{Kind: domain.EnvelopeMeasurements, Provider: "modis", Error: "upstream timeout"},
	}))
	assert.Zero(t, eng.computed)
}

func TestFusionLoader_PublishErrorIsReturned(t *testing.T) {
	w := domain.Warning{ID: "w-1", Kind: domain.WarningWashout, Gas: domain.GasPM10}
	eng := &mockEngine{warnings: map[domain.Gas][]domain.Warning{domain.GasPM10: {w}}}
	l := pipeline.NewLoader(eng, &mockPublisher{err: errors.New("leader not available")}, discardLogger(), observability.NewMetricsForTesting())

	err := l.LoadBatch(context.Background(), []domain.Envelope{
		{Kind: domain.EnvelopeWeather, Conditions: []domain.WeatherCondition{{Precip: 2}}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish 1 warnings")
}

func TestFusionLoader_NilPublisher(t *testing.T) {
	w := domain.Warning{ID: "w-1", Kind: domain.WarningDispersion, Gas: domain.GasPM25}
	eng := &mockEngine{warnings: map[domain.Gas][]domain.Warning{domain.GasPM25: {w}}}
	l := pipeline.NewLoader(eng, nil, discardLogger(), observability.NewMetricsForTesting())

	require.NoError(t, l.LoadBatch(context.Background(), []domain.Envelope{
		{Kind: domain.EnvelopeWeather, Conditions: []domain.WeatherCondition{{WindSpeed: 1}}},
	}))
	assert.Equal(t, len(domain.Gases), eng.computed)
}

func TestToProviderBatch_KeepsRecordOrder(t *testing.T) {
	eng := &mockEngine{}
	l := pipeline.NewLoader(eng, nil, discardLogger(), observability.NewMetricsForTesting())
	records := []domain.RawRecord{{Gas: "pm25"}, {Gas: "no2"}, {Gas: "o3"}}

	require.NoError(t, l.LoadBatch(context.Background(), []domain.Envelope{{Provider: "cpcb", Records: records}}))
	require.Len(t, eng.batches, 1)
	if diff := cmp.Diff(records, eng.batches[0].Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}
