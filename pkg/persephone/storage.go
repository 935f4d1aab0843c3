package persephone

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HistoryStore persists observations per series for forecasting and
// backtesting.
type HistoryStore interface {
	// Save stores a batch of observations, possibly spanning series
	Save(ctx context.Context, obs []*Observation) error

	// Load returns a series' observations in [start, end], oldest first
	Load(ctx context.Context, seriesID string, start, end time.Time) ([]*Observation, error)

	// QueryRecent returns the count most recent observations, oldest first
	QueryRecent(ctx context.Context, seriesID string, count int) ([]*Observation, error)

	// Series lists the known series IDs in lexical order
	Series(ctx context.Context) ([]string, error)

	// Prune removes observations older than the retention period
	Prune(ctx context.Context, retentionDays int) error

	Close() error
}

const (
	redisSeriesKey  = "persephone:series"
	redisHistoryKey = "persephone:history:"
)

// RedisHistoryStore keeps one sorted set per series, scored by unix time,
// plus a set of series IDs.
type RedisHistoryStore struct {
	client *redis.Client
}

func NewRedisHistoryStore(addr string, db int, password string) (*RedisHistoryStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		DB:       db,
		Password: password,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisHistoryStore{client: client}, nil
}

func (s *RedisHistoryStore) Save(ctx context.Context, obs []*Observation) error {
	if len(obs) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, o := range obs {
		data, err := json.Marshal(o)
		if err != nil {
			return fmt.Errorf("failed to marshal observation: %w", err)
		}
		pipe.ZAdd(ctx, redisHistoryKey+o.SeriesID, redis.Z{
			Score:  float64(o.Timestamp.Unix()),
			Member: data,
		})
		pipe.SAdd(ctx, redisSeriesKey, o.SeriesID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save observations: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Load(ctx context.Context, seriesID string, start, end time.Time) ([]*Observation, error) {
	results, err := s.client.ZRangeByScore(ctx, redisHistoryKey+seriesID, &redis.ZRangeBy{
		Min: strconv.FormatInt(start.Unix(), 10),
		Max: strconv.FormatInt(end.Unix(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", seriesID, err)
	}
	return decodeObservations(results), nil
}

func (s *RedisHistoryStore) QueryRecent(ctx context.Context, seriesID string, count int) ([]*Observation, error) {
	if count <= 0 {
		return []*Observation{}, nil
	}
	results, err := s.client.ZRevRange(ctx, redisHistoryKey+seriesID, 0, int64(count-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", seriesID, err)
	}

	obs := decodeObservations(results)
	for i, j := 0, len(obs)-1; i < j; i, j = i+1, j-1 {
		obs[i], obs[j] = obs[j], obs[i]
	}
	return obs, nil
}

func (s *RedisHistoryStore) Series(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, redisSeriesKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list series: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *RedisHistoryStore) Prune(ctx context.Context, retentionDays int) error {
	ids, err := s.Series(ctx)
	if err != nil {
		return err
	}

	cutoff := strconv.FormatInt(time.Now().AddDate(0, 0, -retentionDays).Unix(), 10)
	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.ZRemRangeByScore(ctx, redisHistoryKey+id, "-inf", "("+cutoff)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) Close() error {
	return s.client.Close()
}

// decodeObservations skips malformed members.
func decodeObservations(members []string) []*Observation {
	obs := make([]*Observation, 0, len(members))
	for _, data := range members {
		var o Observation
		if err := json.Unmarshal([]byte(data), &o); err != nil {
			continue
		}
		obs = append(obs, &o)
	}
	return obs
}

// LocalHistoryStore keeps every series in one JSON file.
type LocalHistoryStore struct {
	file string
	mu   sync.Mutex
}

func NewLocalHistoryStore(dataDir string) (*LocalHistoryStore, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &LocalHistoryStore{file: filepath.Join(dataDir, "persephone_history.json")}, nil
}

func (s *LocalHistoryStore) Save(ctx context.Context, obs []*Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.read()
	if err != nil {
		return err
	}
	existing = append(existing, obs...)
	sort.SliceStable(existing, func(i, j int) bool {
		return existing[i].Timestamp.Before(existing[j].Timestamp)
	})
	return s.write(existing)
}

func (s *LocalHistoryStore) Load(ctx context.Context, seriesID string, start, end time.Time) ([]*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}

	filtered := make([]*Observation, 0)
	for _, o := range all {
		if o.SeriesID == seriesID && !o.Timestamp.Before(start) && !o.Timestamp.After(end) {
			filtered = append(filtered, o)
		}
	}
	return filtered, nil
}

func (s *LocalHistoryStore) QueryRecent(ctx context.Context, seriesID string, count int) ([]*Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}

	series := make([]*Observation, 0)
	for _, o := range all {
		if o.SeriesID == seriesID {
			series = append(series, o)
		}
	}
	if count <= 0 {
		return []*Observation{}, nil
	}
	if len(series) <= count {
		return series, nil
	}
	return series[len(series)-count:], nil
}

func (s *LocalHistoryStore) Series(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	ids := make([]string, 0)
	for _, o := range all {
		if _, ok := seen[o.SeriesID]; !ok {
			seen[o.SeriesID] = struct{}{}
			ids = append(ids, o.SeriesID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *LocalHistoryStore) Prune(ctx context.Context, retentionDays int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.read()
	if err != nil {
		return err
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	kept := make([]*Observation, 0, len(all))
	for _, o := range all {
		if !o.Timestamp.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	return s.write(kept)
}

func (s *LocalHistoryStore) Close() error {
	return nil
}

// read returns nothing for a missing file.
func (s *LocalHistoryStore) read() ([]*Observation, error) {
	data, err := os.ReadFile(s.file)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var obs []*Observation
	if err := json.Unmarshal(data, &obs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}
	return obs, nil
}

func (s *LocalHistoryStore) write(obs []*Observation) error {
	data, err := json.MarshalIndent(obs, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal history: %w", err)
	}
	return os.WriteFile(s.file, data, 0644)
}
