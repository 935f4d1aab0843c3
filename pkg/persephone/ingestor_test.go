package persephone

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockCollector struct {
	obs   []*Observation
	err   error
	start time.Time
	end   time.Time
}

func (m *mockCollector) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) ([]*Observation, error) {
	m.start, m.end = start, end
	return m.obs, m.err
}

// mockStore is an in-memory HistoryStore.
type mockStore struct {
	mu    sync.Mutex
	saved []*Observation
	err   error
}

func (m *mockStore) Save(ctx context.Context, obs []*Observation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.saved = append(m.saved, obs...)
	return nil
}

func (m *mockStore) Load(ctx context.Context, seriesID string, start, end time.Time) ([]*Observation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []*Observation{}
	for _, o := range m.saved {
		if o.SeriesID == seriesID && !o.Timestamp.Before(start) && !o.Timestamp.After(end) {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *mockStore) QueryRecent(ctx context.Context, seriesID string, count int) ([]*Observation, error) {
	return nil, nil
}

func (m *mockStore) Series(ctx context.Context) ([]string, error) {
	return nil, nil
}

func (m *mockStore) Prune(ctx context.Context, retentionDays int) error {
	return nil
}

func (m *mockStore) Close() error {
	return nil
}

type recordingLogger struct {
	mu     sync.Mutex
	errors []string
	infos  []string
}

func (l *recordingLogger) Info(ctx context.Context, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Warn(ctx context.Context, msg string, fields map[string]any) {}

func (l *recordingLogger) Error(ctx context.Context, msg string, fields map[string]any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

func TestIngestor_Ingest(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	collector := &mockCollector{
		obs: []*Observation{
			{SeriesID: "cpu", Timestamp: now.Add(-time.Minute), Value: 10},
			{SeriesID: "cpu", Timestamp: now, Value: 12},
		},
	}
	store := &mockStore{}

	ingestor, err := NewIngestor(IngestorConfig{
		Collector: collector,
		Store:     store,
		Interval:  time.Minute,
		Query:     "up",
	})
	require.NoError(t, err)

	n, err := ingestor.ingest(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, store.saved, 2)
	assert.Equal(t, 10.0, store.saved[0].Value)
	assert.Equal(t, now.Add(-time.Minute), collector.start)
	assert.Equal(t, now, collector.end)
}

func TestIngestor_Errors(t *testing.T) {
	_, err := NewIngestor(IngestorConfig{Store: &mockStore{}, Query: "up"})
	assert.Error(t, err)
	_, err = NewIngestor(IngestorConfig{Collector: &mockCollector{}, Query: "up"})
	assert.Error(t, err)
	_, err = NewIngestor(IngestorConfig{Collector: &mockCollector{}, Store: &mockStore{}})
	assert.Error(t, err)

	ingestor, err := NewIngestor(IngestorConfig{
		Collector: &mockCollector{obs: []*Observation{{SeriesID: "cpu"}}},
		Store:     &mockStore{err: errors.New("disk full")},
		Query:     "up",
	})
	require.NoError(t, err)
	_, err = ingestor.ingest(context.Background(), time.Now())
	assert.ErrorContains(t, err, "disk full")
}

func TestIngestor_StartLogsAndStops(t *testing.T) {
	logger := &recordingLogger{}
	ingestor, err := NewIngestor(IngestorConfig{
		Collector: &mockCollector{err: errors.New("connection refused")},
		Store:     &mockStore{},
		Interval:  time.Hour,
		Query:     "up",
		Logger:    logger,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	assert.NoError(t, ingestor.Start(ctx))

	logger.mu.Lock()
	defer logger.mu.Unlock()
	assert.Equal(t, []string{"ingestion failed"}, logger.errors)
	assert.Empty(t, logger.infos)
}
