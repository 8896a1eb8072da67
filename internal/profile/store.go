package profile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/2beens/fitcoach/internal/telemetry/metrics"
	"github.com/2beens/fitcoach/internal/telemetry/tracing"

	"github.com/coocood/freecache"
	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

const (
	profileKeyPrefix = "fitcoach::profile::"
	// seconds a profile stays in the local mirror
	cacheExpire = 5 * 60
	lockStripes = 64
)

var ErrNotFound = errors.New("profile not found")

// Store keeps user profiles in Redis as JSON, mirrored in a local freecache
// for reads. Writes of one user are serialized in process.
type Store struct {
	redisClient    *redis.Client
	cache          *freecache.Cache
	metricsManager *metrics.Manager
	locks          [lockStripes]sync.Mutex
}

func NewStore(redisClient *redis.Client, cacheSizeMB int, metricsManager *metrics.Manager) *Store {
	megabyte := 1024 * 1024
	return &Store{
		redisClient:    redisClient,
		cache:          freecache.NewCache(cacheSizeMB * megabyte),
		metricsManager: metricsManager,
	}
}

func profileKey(userID string) string {
	return profileKeyPrefix + userID
}

func (s *Store) lock(userID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	mu := &s.locks[h.Sum32()%lockStripes]
	mu.Lock()
	return mu.Unlock
}

func (s *Store) Get(ctx context.Context, userID string) (_ Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profile.store.get")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	key := profileKey(userID)
	if cached, err := s.cache.Get([]byte(key)); err == nil {
		var p Profile
		if err := json.Unmarshal(cached, &p); err == nil {
			return p, nil
		}
		log.Errorf("unmarshal cached profile [%s]", userID)
	}

	data, err := s.redisClient.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("redis get profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("unmarshal profile: %w", err)
	}
	s.mirror(key, data)
	return p, nil
}

// Init returns the stored profile, creating the default one on first use.
func (s *Store) Init(ctx context.Context, userID string) (_ Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profile.store.init")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	unlock := s.lock(userID)
	defer unlock()
	return s.getOrDefault(ctx, userID, true)
}

func (s *Store) getOrDefault(ctx context.Context, userID string, persist bool) (Profile, error) {
	p, err := s.Get(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Profile{}, err
	}

	p = Default(userID)
	if persist {
		if err := s.save(ctx, p); err != nil {
			return Profile{}, err
		}
		log.Debugf("profile [%s] created with defaults", userID)
	}
	return p, nil
}

// Update merges u into the stored profile. Invalid values leave the stored
// profile untouched and return ErrInvalidProfile.
func (s *Store) Update(ctx context.Context, userID string, u Update) (_ Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profile.store.update")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	unlock := s.lock(userID)
	defer unlock()

	current, err := s.getOrDefault(ctx, userID, false)
	if err != nil {
		return Profile{}, err
	}
	updated, err := current.Apply(u)
	if err != nil {
		return Profile{}, err
	}
	if err := s.save(ctx, updated); err != nil {
		return Profile{}, err
	}
	return updated, nil
}

// LogWorkoutCompletion counts a finished workout and its calories and updates
// the streak for the day of now.
func (s *Store) LogWorkoutCompletion(ctx context.Context, userID string, calories int, now time.Time) (_ Profile, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "profile.store.logWorkoutCompletion")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	if calories < 0 {
		return Profile{}, fmt.Errorf("%w: negative calories %d", ErrInvalidProfile, calories)
	}

	unlock := s.lock(userID)
	defer unlock()

	current, err := s.getOrDefault(ctx, userID, false)
	if err != nil {
		return Profile{}, err
	}
	updated := LogWorkout(current, calories, now)
	if err := s.save(ctx, updated); err != nil {
		return Profile{}, err
	}

	if s.metricsManager != nil {
		s.metricsManager.CounterWorkoutsCompleted.Inc()
	}
	return updated, nil
}

func (s *Store) save(ctx context.Context, p Profile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}

	key := profileKey(p.UserID)
	if err := s.redisClient.Set(ctx, key, data, 0).Err(); err != nil {
		s.cache.Del([]byte(key))
		return fmt.Errorf("redis set profile: %w", err)
	}
	s.mirror(key, data)
	return nil
}

func (s *Store) mirror(key string, data []byte) {
	if err := s.cache.Set([]byte(key), data, cacheExpire); err != nil {
		log.Errorf("mirror profile [%s]: %s", key, err)
	}
}
