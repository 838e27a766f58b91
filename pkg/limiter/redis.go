package limiter

import (
	"context"
	_ "embed"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

//go:embed leaky_bucket.lua
var leakyBucketScript string

// RedisClient is the subset of go-redis used by RedisStore. *redis.Client,
// *redis.ClusterClient and *redis.Ring all satisfy it.
type RedisClient interface {
	redis.Scripter
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// ClientProvider resolves the client to use for one call.
type ClientProvider func(ctx context.Context) (RedisClient, error)

// Dispatcher submits script to Redis and returns its raw reply.
type Dispatcher func(ctx context.Context, c redis.Scripter, script *redis.Script, keys []string, args ...interface{}) (interface{}, error)

// DispatchByReference runs the script by its SHA1 and only sends the full
// source when Redis answers NOSCRIPT. Every other error is returned as is.
func DispatchByReference(ctx context.Context, c redis.Scripter, script *redis.Script, keys []string, args ...interface{}) (interface{}, error) {
	res, err := script.EvalSha(ctx, c, keys, args...).Result()
	if err != nil && redis.HasErrorPrefix(err, "NOSCRIPT") {
		return script.Eval(ctx, c, keys, args...).Result()
	}
	return res, err
}

// RedisStore runs the admission step as a Lua script, which Redis executes
// atomically. Bucket state only ever lives in Redis.
type RedisStore struct {
	provider ClientProvider
	script   *redis.Script
	dispatch Dispatcher
}

type RedisOption func(*RedisStore)

// WithScript replaces the admission script source.
func WithScript(src string) RedisOption {
	return func(s *RedisStore) {
		s.script = redis.NewScript(src)
	}
}

// WithDispatcher replaces DispatchByReference.
func WithDispatcher(d Dispatcher) RedisOption {
	return func(s *RedisStore) {
		if d != nil {
			s.dispatch = d
		}
	}
}

func NewRedisStore(client RedisClient, opts ...RedisOption) *RedisStore {
	return NewRedisStoreFromProvider(func(context.Context) (RedisClient, error) {
		return client, nil
	}, opts...)
}

func NewRedisStoreFromProvider(provider ClientProvider, opts ...RedisOption) *RedisStore {
	s := &RedisStore{
		provider: provider,
		script:   redis.NewScript(leakyBucketScript),
		dispatch: DispatchByReference,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Preload pings Redis and loads the script so the first call does not pay
// for the NOSCRIPT round trip.
func (s *RedisStore) Preload(ctx context.Context) error {
	client, err := s.provider(ctx)
	if err != nil {
		return err
	}
	return s.script.Load(ctx, client).Err()
}

func (s *RedisStore) Admit(ctx context.Context, key string, cost float64, limits LimitSet) (Reply, error) {
	client, err := s.provider(ctx)
	if err != nil {
		return Reply{}, err
	}

	args := make([]interface{}, 0, 1+2*len(limits))
	args = append(args, cost)
	for _, v := range limits.Args() {
		args = append(args, v)
	}

	result, err := s.dispatch(ctx, client, s.script, []string{key}, args...)
	if err != nil {
		return Reply{}, err
	}
	return parseReply(result, len(limits))
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	client, err := s.provider(ctx)
	if err != nil {
		return err
	}
	return client.Del(ctx, key).Err()
}

func parseReply(result interface{}, tiers int) (Reply, error) {
	values, ok := result.([]interface{})
	if !ok || len(values) != 3 {
		return Reply{}, fmt.Errorf("%w: %v", ErrInvalidReply, result)
	}

	allowed, ok := values[0].(int64)
	if !ok {
		return Reply{}, fmt.Errorf("%w: allowed flag %v", ErrInvalidReply, values[0])
	}
	value, ok := convertToFloat(values[1])
	if !ok {
		return Reply{}, fmt.Errorf("%w: value %v", ErrInvalidReply, values[1])
	}
	tier, ok := values[2].(int64)
	if !ok || tier < 1 || int(tier) > tiers {
		return Reply{}, fmt.Errorf("%w: tier %v", ErrInvalidReply, values[2])
	}

	return Reply{
		Allowed: allowed == 1,
		Value:   value,
		Tier:    int(tier),
	}, nil
}

func convertToFloat(val interface{}) (float64, bool) {
	switch v := val.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
