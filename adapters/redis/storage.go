package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loyaltykit/core"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration
type Config struct {
	Addr         string        `json:"addr" env:"LOYALTYKIT_REDIS_ADDR"`
	Password     string        `json:"password,omitempty" env:"LOYALTYKIT_REDIS_PASSWORD"`
	DB           int           `json:"db" env:"LOYALTYKIT_REDIS_DB"`
	PoolSize     int           `json:"pool_size" env:"LOYALTYKIT_REDIS_POOL_SIZE"`
	MinIdleConns int           `json:"min_idle_conns" env:"LOYALTYKIT_REDIS_MIN_IDLE_CONNS"`
	DialTimeout  time.Duration `json:"dial_timeout" env:"LOYALTYKIT_REDIS_DIAL_TIMEOUT"`
	ReadTimeout  time.Duration `json:"read_timeout" env:"LOYALTYKIT_REDIS_READ_TIMEOUT"`
	WriteTimeout time.Duration `json:"write_timeout" env:"LOYALTYKIT_REDIS_WRITE_TIMEOUT"`
}

// DefaultConfig returns sensible defaults for Redis configuration
func DefaultConfig() Config {
	return Config{
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
}

// Store implements engine.Repository using Redis as the backend.
// Data structure:
// - participant:{id}:{track}:{field} -> string (points, stats, achievements)
// - participant:{id}:{track}:history -> list of JSON ledger entries
// - participant:{id}:{field} -> string or list (profile, notifications)
// - participants -> list of ids in first-write order
// - participants:seen -> set guarding the list against duplicates
type Store struct {
	client *redis.Client
}

// New creates a new Redis-backed storage with the provided configuration
func New(config Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewWithClient creates a Store using an existing Redis client (useful for testing)
func NewWithClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

const (
	participantsKey     = "participants"
	participantsSeenKey = "participants:seen"
)

// redisKey generates the Redis key for a repository key
func redisKey(k core.Key) string {
	if k.Track == "" {
		return fmt.Sprintf("participant:%s:%s", k.Participant, k.Field)
	}
	return fmt.Sprintf("participant:%s:%s:%s", k.Participant, k.Track, k.Field)
}

// Every write registers the participant in the same script so the
// participants list never misses a writer.
const registerLua = `
if redis.call('SADD', KEYS[2], ARGV[1]) == 1 then
	redis.call('RPUSH', KEYS[3], ARGV[1])
end
`

var (
	setScript = redis.NewScript(registerLua + `
redis.call('SET', KEYS[1], ARGV[2])
return 1
`)
	incrScript = redis.NewScript(registerLua + `
return redis.call('INCRBY', KEYS[1], ARGV[2])
`)
	appendScript = redis.NewScript(registerLua + `
return redis.call('RPUSH', KEYS[1], ARGV[2])
`)
)

func (s *Store) run(ctx context.Context, script *redis.Script, k core.Key, arg any) (any, error) {
	keys := []string{redisKey(k), participantsSeenKey, participantsKey}
	return script.Run(ctx, s.client, keys, string(k.Participant), arg).Result()
}

// Get returns the value at key or core.ErrNotFound
func (s *Store) Get(ctx context.Context, key core.Key) (string, error) {
	v, err := s.client.Get(ctx, redisKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get %s: %w", key, err)
	}
	return v, nil
}

func (s *Store) Set(ctx context.Context, key core.Key, value string) error {
	if _, err := s.run(ctx, setScript, key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	return nil
}

// IncrBy atomically adds delta; Redis rejects overflow and non-integer values
func (s *Store) IncrBy(ctx context.Context, key core.Key, delta int64) (int64, error) {
	result, err := s.run(ctx, incrScript, key, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to add points: %w", err)
	}
	total, ok := result.(int64)
	if !ok {
		return 0, errors.New("unexpected result type from Redis script")
	}
	return total, nil
}

func (s *Store) Append(ctx context.Context, key core.Key, value string) error {
	if _, err := s.run(ctx, appendScript, key, value); err != nil {
		return fmt.Errorf("failed to append to %s: %w", key, err)
	}
	return nil
}

func (s *Store) Range(ctx context.Context, key core.Key, limit int) ([]string, error) {
	if limit == 0 {
		return []string{}, nil
	}
	start := int64(0)
	if limit > 0 {
		start = -int64(limit)
	}
	vals, err := s.client.LRange(ctx, redisKey(key), start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return vals, nil
}

func (s *Store) Participants(ctx context.Context) ([]core.ParticipantID, error) {
	vals, err := s.client.LRange(ctx, participantsKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	out := make([]core.ParticipantID, len(vals))
	for i, v := range vals {
		out[i] = core.ParticipantID(v)
	}
	return out, nil
}
