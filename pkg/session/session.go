package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"FaceLens/internal/entity"
	"FaceLens/pkg/redis"

	jsoniter "github.com/json-iterator/go"
	"github.com/patrickmn/go-cache"
)

const (
	CookieName = "facelens_session"
	DefaultTTL = time.Hour
)

var (
	ErrNoAnalysis = errors.New("no analysis stored for session")

	json = jsoniter.ConfigCompatibleWithStandardLibrary
)

// Store remembers the last analysis of every UI session so the report can be downloaded later.
type Store interface {
	SaveAnalysis(ctx context.Context, sessionID string, analysis entity.Analysis) error
	LastAnalysis(ctx context.Context, sessionID string) (entity.Analysis, error)
}

func AnalysisKey(sessionID string) string {
	return fmt.Sprintf("facelens:session:%s:analysis", sessionID)
}

type redisStore struct {
	rdb redis.IRedis
	ttl time.Duration
}

func NewRedisStore(rdb redis.IRedis, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{rdb: rdb, ttl: ttl}
}

func (s *redisStore) SaveAnalysis(ctx context.Context, sessionID string, analysis entity.Analysis) error {
	data, err := json.Marshal(analysis)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, AnalysisKey(sessionID), data, s.ttl)
}

func (s *redisStore) LastAnalysis(ctx context.Context, sessionID string) (entity.Analysis, error) {
	data, err := s.rdb.Get(ctx, AnalysisKey(sessionID))
	if errors.Is(err, redis.ErrNotFound) {
		return entity.Analysis{}, ErrNoAnalysis
	}
	if err != nil {
		return entity.Analysis{}, err
	}

	var analysis entity.Analysis
	if err := json.Unmarshal(data, &analysis); err != nil {
		return entity.Analysis{}, err
	}
	return analysis, nil
}

type memoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore keeps analyses in process, for single instance deployments without Redis.
func NewMemoryStore(ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &memoryStore{cache: cache.New(ttl, 2*ttl)}
}

func (s *memoryStore) SaveAnalysis(_ context.Context, sessionID string, analysis entity.Analysis) error {
	s.cache.SetDefault(AnalysisKey(sessionID), analysis)
	return nil
}

func (s *memoryStore) LastAnalysis(_ context.Context, sessionID string) (entity.Analysis, error) {
	v, ok := s.cache.Get(AnalysisKey(sessionID))
	if !ok {
		return entity.Analysis{}, ErrNoAnalysis
	}
	return v.(entity.Analysis), nil
}
