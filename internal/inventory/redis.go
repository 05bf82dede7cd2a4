package inventory

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/solar-router/internal/model"
)

const (
	redisKeyPrefix = "solar:platform:"
	redisIndexKey  = "solar:platforms"
)

// Script results below zero are sentinels, not capacities.
const (
	scriptUnknown   = -2
	scriptExhausted = -1
)

// reserveScript decrements capacity only when the platform is accepting and
// has capacity left, all in one server-side step.
var reserveScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
if redis.call('HGET', KEYS[1], 'accepting') ~= '1' then return -1 end
local cap = tonumber(redis.call('HGET', KEYS[1], 'capacity'))
if not cap or cap <= 0 then return -1 end
return redis.call('HINCRBY', KEYS[1], 'capacity', -1)
`)

var releaseScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
return redis.call('HINCRBY', KEYS[1], 'capacity', 1)
`)

var setAcceptingScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then return -2 end
redis.call('HSET', KEYS[1], 'accepting', ARGV[1])
return 0
`)

// RedisStore keeps one hash per platform plus a set indexing the codes.
type RedisStore struct {
	client *redis.Client
}

var _ Store = (*RedisStore)(nil)

// NewRedis connects to the Redis server at url (redis://host:port/db).
func NewRedis(ctx context.Context, url string) (*RedisStore, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, eris.Wrap(err, "redis: ping")
	}
	return &RedisStore{client: client}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(code string) string { return redisKeyPrefix + code }

// Snapshot implements Store.
func (s *RedisStore) Snapshot(ctx context.Context) ([]model.PlatformState, error) {
	codes, err := s.client.SMembers(ctx, redisIndexKey).Result()
	if err != nil {
		return nil, eris.Wrap(err, "redis: list platforms")
	}

	cmds := make([]*redis.MapStringStringCmd, len(codes))
	_, err = s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, code := range codes {
			cmds[i] = p.HGetAll(ctx, redisKey(code))
		}
		return nil
	})
	if err != nil {
		return nil, eris.Wrap(err, "redis: snapshot")
	}

	out := make([]model.PlatformState, 0, len(codes))
	for i, code := range codes {
		fields := cmds[i].Val()
		if len(fields) == 0 {
			continue // removed between SMEMBERS and HGETALL
		}
		st, err := decodeRedisHash(code, fields)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	sortByCode(out)
	return out, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, code string) (model.PlatformState, error) {
	fields, err := s.client.HGetAll(ctx, redisKey(code)).Result()
	if err != nil {
		return model.PlatformState{}, eris.Wrapf(err, "redis: get %s", code)
	}
	if len(fields) == 0 {
		return model.PlatformState{}, unknownPlatform(code)
	}
	return decodeRedisHash(code, fields)
}

// Reserve implements Store.
func (s *RedisStore) Reserve(ctx context.Context, code string) (int, error) {
	n, err := reserveScript.Run(ctx, s.client, []string{redisKey(code)}).Int()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: reserve %s", code)
	}
	switch n {
	case scriptUnknown:
		return 0, unknownPlatform(code)
	case scriptExhausted:
		return 0, capacityExhausted(code)
	}
	return n, nil
}

// Release implements Store.
func (s *RedisStore) Release(ctx context.Context, code string) (int, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{redisKey(code)}).Int()
	if err != nil {
		return 0, eris.Wrapf(err, "redis: release %s", code)
	}
	if n == scriptUnknown {
		return 0, unknownPlatform(code)
	}
	return n, nil
}

// SetAccepting implements Store.
func (s *RedisStore) SetAccepting(ctx context.Context, code string, accepting bool) error {
	n, err := setAcceptingScript.Run(ctx, s.client, []string{redisKey(code)}, boolFlag(accepting)).Int()
	if err != nil {
		return eris.Wrapf(err, "redis: set accepting %s", code)
	}
	if n == scriptUnknown {
		return unknownPlatform(code)
	}
	return nil
}

// Upsert implements Store.
func (s *RedisStore) Upsert(ctx context.Context, states ...model.PlatformState) error {
	type entry struct {
		code   string
		fields map[string]any
	}
	entries := make([]entry, 0, len(states))
	for _, st := range states {
		if err := Validate(st); err != nil {
			return err
		}
		fields, err := encodeRedisHash(st)
		if err != nil {
			return err
		}
		entries = append(entries, entry{code: st.PlatformCode, fields: fields})
	}

	_, err := s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, e := range entries {
			p.HSet(ctx, redisKey(e.code), e.fields)
			p.SAdd(ctx, redisIndexKey, e.code)
		}
		return nil
	})
	return eris.Wrap(err, "redis: upsert")
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func encodeRedisHash(st model.PlatformState) (map[string]any, error) {
	prices, err := encodePrices(st.PriceByTier)
	if err != nil {
		return nil, err
	}
	tiers, err := encodeTiers(st.TierEligibility)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"price_by_tier":    prices,
		"commission_rate":  strconv.FormatFloat(st.CommissionRate, 'f', -1, 64),
		"acceptance_rate":  strconv.FormatFloat(st.AcceptanceRate, 'f', -1, 64),
		"capacity":         st.CapacityRemaining,
		"accepting":        boolFlag(st.AcceptingLeads),
		"tier_eligibility": tiers,
	}, nil
}

func decodeRedisHash(code string, f map[string]string) (model.PlatformState, error) {
	st := model.PlatformState{PlatformCode: code, AcceptingLeads: f["accepting"] == "1"}

	var err error
	if st.PriceByTier, err = decodePrices(f["price_by_tier"]); err != nil {
		return st, err
	}
	if st.TierEligibility, err = decodeTiers(f["tier_eligibility"]); err != nil {
		return st, err
	}
	if st.CommissionRate, err = strconv.ParseFloat(f["commission_rate"], 64); err != nil {
		return st, eris.Wrapf(err, "redis: %s commission_rate", code)
	}
	if st.AcceptanceRate, err = strconv.ParseFloat(f["acceptance_rate"], 64); err != nil {
		return st, eris.Wrapf(err, "redis: %s acceptance_rate", code)
	}
	if st.CapacityRemaining, err = strconv.Atoi(f["capacity"]); err != nil {
		return st, eris.Wrapf(err, "redis: %s capacity", code)
	}
	return st, nil
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
