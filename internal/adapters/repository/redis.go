package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/otv/internal/domain/model"
	"github.com/okian/otv/pkg/logger"
)

// Candidate hash fields.
const (
	fieldData      = "data"
	fieldValid     = "valid"
	fieldLastValid = "last_valid"
)

// RedisStore is a Store backed by Redis.
//
// Layout (prefix "otv"):
//
//	otv:candidates                 set of stashes
//	otv:candidate:{stash}          hash: data (JSON), valid, last_valid
//	otv:invalidity:{stash}         hash: kind -> InvalidityRecord JSON
//	otv:location:{stash}           Location JSON
//	otv:nominator-stake:{stash}    NominatorStake JSON
//	otv:nominators                 hash: address -> Nominator JSON
//	otv:release:latest             Release JSON
//	otv:score:{stash}:{session}    ScoreRecord JSON
//	otv:score-metadata:{session}   ScoreMetadata JSON
//	otv:score-metadata:latest      highest stored session
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	log    logger.Logger
}

// NewRedisStore wraps rdb and verifies the connection.
func NewRedisStore(ctx context.Context, rdb redis.UniversalClient, opts ...Option) (*RedisStore, error) {
	s := &RedisStore{rdb: rdb, prefix: defaultKeyPrefix, log: logger.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	s.log.Info(ctx, "connected to redis", logger.String("prefix", s.prefix))
	return s, nil
}

// Dial creates a Redis client for addr and wraps it in a RedisStore.
func Dial(ctx context.Context, addr, password string, db int, opts ...Option) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	s, err := NewRedisStore(ctx, rdb, opts...)
	if err != nil {
		_ = rdb.Close()
		return nil, err
	}
	return s, nil
}

func (s *RedisStore) key(parts ...string) string {
	k := s.prefix
	for _, p := range parts {
		k += ":" + p
	}
	return k
}

func (s *RedisStore) getJSON(ctx context.Context, key string, out any) error {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return notFound("key", key)
	}
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCorruptValue, key, err)
	}
	return nil
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, key, b, 0).Err()
}

// UpsertCandidate implements Store. Verdicts live in their own fields and
// are not touched.
func (s *RedisStore) UpsertCandidate(ctx context.Context, c model.Candidate) error {
	if c.Stash == "" {
		return ErrEmptyStash
	}
	c.Valid, c.LastValid, c.Invalidity = false, time.Time{}, model.InvalidityList{}
	b, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, s.key("candidate", c.Stash), fieldData, b)
		p.SAdd(ctx, s.key("candidates"), c.Stash)
		return nil
	})
	return err
}

// Candidate implements Store.
func (s *RedisStore) Candidate(ctx context.Context, stash string) (model.Candidate, error) {
	fields, err := s.rdb.HGetAll(ctx, s.key("candidate", stash)).Result()
	if err != nil {
		return model.Candidate{}, err
	}
	if len(fields) == 0 {
		return model.Candidate{}, notFound("candidate", stash)
	}
	inv, err := s.rdb.HGetAll(ctx, s.key("invalidity", stash)).Result()
	if err != nil {
		return model.Candidate{}, err
	}
	return decodeCandidate(stash, fields, inv)
}

func decodeCandidate(stash string, fields, inv map[string]string) (model.Candidate, error) {
	var c model.Candidate
	if err := json.Unmarshal([]byte(fields[fieldData]), &c); err != nil {
		return model.Candidate{}, fmt.Errorf("%w: candidate %s: %w", ErrCorruptValue, stash, err)
	}
	c.Valid = fields[fieldValid] == "1"
	if raw := fields[fieldLastValid]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return model.Candidate{}, fmt.Errorf("%w: last valid of %s: %w", ErrCorruptValue, stash, err)
		}
		c.LastValid = at
	}

	kinds := make([]string, 0, len(inv))
	for k := range inv {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	records := make([]model.InvalidityRecord, 0, len(kinds))
	for _, k := range kinds {
		var r model.InvalidityRecord
		if err := json.Unmarshal([]byte(inv[k]), &r); err != nil {
			return model.Candidate{}, fmt.Errorf("%w: invalidity %s of %s: %w", ErrCorruptValue, k, stash, err)
		}
		records = append(records, r)
	}
	c.Invalidity = model.NewInvalidityList(records...)
	return c, nil
}

// AllCandidates implements Store. Candidates are ordered by stash.
func (s *RedisStore) AllCandidates(ctx context.Context) ([]model.Candidate, error) {
	stashes, err := s.rdb.SMembers(ctx, s.key("candidates")).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(stashes)

	type pending struct {
		stash  string
		fields *redis.MapStringStringCmd
		inv    *redis.MapStringStringCmd
	}
	cmds := make([]pending, 0, len(stashes))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for _, st := range stashes {
			cmds = append(cmds, pending{
				stash:  st,
				fields: p.HGetAll(ctx, s.key("candidate", st)),
				inv:    p.HGetAll(ctx, s.key("invalidity", st)),
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make([]model.Candidate, 0, len(cmds))
	for _, cmd := range cmds {
		fields := cmd.fields.Val()
		if len(fields) == 0 {
			continue
		}
		c, err := decodeCandidate(cmd.stash, fields, cmd.inv.Val())
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable candidate", logger.String("stash", cmd.stash), logger.Error(err))
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

// ValidCandidates implements Store.
func (s *RedisStore) ValidCandidates(ctx context.Context) ([]model.Candidate, error) {
	all, err := s.AllCandidates(ctx)
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, c := range all {
		if c.Valid {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *RedisStore) requireCandidate(ctx context.Context, stash string) error {
	n, err := s.rdb.Exists(ctx, s.key("candidate", stash)).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return notFound("candidate", stash)
	}
	return nil
}

// SetInvalidity implements Store. Each kind is its own hash field, so a
// write replaces exactly one record.
func (s *RedisStore) SetInvalidity(ctx context.Context, stash string, r model.InvalidityRecord) error {
	if err := s.requireCandidate(ctx, stash); err != nil {
		return err
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key("invalidity", stash), string(r.Kind), b).Err()
}

// SetValid implements Store.
func (s *RedisStore) SetValid(ctx context.Context, stash string, valid bool) error {
	if err := s.requireCandidate(ctx, stash); err != nil {
		return err
	}
	v := "0"
	if valid {
		v = "1"
	}
	return s.rdb.HSet(ctx, s.key("candidate", stash), fieldValid, v).Err()
}

// SetLastValid implements Store.
func (s *RedisStore) SetLastValid(ctx context.Context, stash string, at time.Time) error {
	if err := s.requireCandidate(ctx, stash); err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key("candidate", stash), fieldLastValid, at.UTC().Format(time.RFC3339Nano)).Err()
}

// SetCandidateLocation implements Store.
func (s *RedisStore) SetCandidateLocation(ctx context.Context, stash string, loc model.Location) error {
	if stash == "" {
		return ErrEmptyStash
	}
	return s.setJSON(ctx, s.key("location", stash), loc)
}

// GetCandidateLocation implements Store.
func (s *RedisStore) GetCandidateLocation(ctx context.Context, stash string) (model.Location, error) {
	var loc model.Location
	err := s.getJSON(ctx, s.key("location", stash), &loc)
	return loc, err
}

// SetLatestRelease implements Store.
func (s *RedisStore) SetLatestRelease(ctx context.Context, r model.Release) error {
	return s.setJSON(ctx, s.key("release", "latest"), r)
}

// GetLatestRelease implements Store.
func (s *RedisStore) GetLatestRelease(ctx context.Context) (model.Release, error) {
	var r model.Release
	err := s.getJSON(ctx, s.key("release", "latest"), &r)
	return r, err
}

// SetNominatorStake implements Store. An older era never replaces a newer one.
func (s *RedisStore) SetNominatorStake(ctx context.Context, ns model.NominatorStake) error {
	if ns.Stash == "" {
		return ErrEmptyStash
	}
	prev, err := s.GetLatestNominatorStake(ctx, ns.Stash)
	switch {
	case err == nil && prev.Era > ns.Era:
		return nil
	case err != nil && !errors.Is(err, ErrNotFound):
		return err
	}
	return s.setJSON(ctx, s.key("nominator-stake", ns.Stash), ns)
}

// GetLatestNominatorStake implements Store.
func (s *RedisStore) GetLatestNominatorStake(ctx context.Context, stash string) (*model.NominatorStake, error) {
	var ns model.NominatorStake
	if err := s.getJSON(ctx, s.key("nominator-stake", stash), &ns); err != nil {
		return nil, err
	}
	return &ns, nil
}

// UpsertNominator implements Store.
func (s *RedisStore) UpsertNominator(ctx context.Context, n model.Nominator) error {
	if n.Address == "" {
		return fmt.Errorf("nominator: %w", ErrEmptyStash)
	}
	b, err := json.Marshal(n)
	if err != nil {
		return err
	}
	return s.rdb.HSet(ctx, s.key("nominators"), n.Address, b).Err()
}

// AllNominators implements Store.
func (s *RedisStore) AllNominators(ctx context.Context) ([]model.Nominator, error) {
	raw, err := s.rdb.HGetAll(ctx, s.key("nominators")).Result()
	if err != nil {
		return nil, err
	}
	out := make([]model.Nominator, 0, len(raw))
	for addr, v := range raw {
		var n model.Nominator
		if err := json.Unmarshal([]byte(v), &n); err != nil {
			return nil, fmt.Errorf("%w: nominator %s: %w", ErrCorruptValue, addr, err)
		}
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out, nil
}

func sessionKey(session uint32) string { return strconv.FormatUint(uint64(session), 10) }

// SetValidatorScore implements Store.
func (s *RedisStore) SetValidatorScore(ctx context.Context, r model.ScoreRecord) error {
	if r.Address == "" {
		return ErrEmptyStash
	}
	return s.setJSON(ctx, s.key("score", r.Address, sessionKey(r.Session)), r)
}

// GetValidatorScore implements Store.
func (s *RedisStore) GetValidatorScore(ctx context.Context, stash string, session uint32) (model.ScoreRecord, error) {
	var r model.ScoreRecord
	err := s.getJSON(ctx, s.key("score", stash, sessionKey(session)), &r)
	return r, err
}

// SetValidatorScoreMetadata implements Store.
func (s *RedisStore) SetValidatorScoreMetadata(ctx context.Context, m model.ScoreMetadata) error {
	if err := s.setJSON(ctx, s.key("score-metadata", sessionKey(m.Session)), m); err != nil {
		return err
	}
	latest, err := s.latestSession(ctx)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err == nil && latest >= m.Session {
		return nil
	}
	return s.rdb.Set(ctx, s.key("score-metadata", "latest"), sessionKey(m.Session), 0).Err()
}

func (s *RedisStore) latestSession(ctx context.Context) (uint32, error) {
	raw, err := s.rdb.Get(ctx, s.key("score-metadata", "latest")).Result()
	if errors.Is(err, redis.Nil) {
		return 0, notFound("score metadata", "latest")
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: latest session: %w", ErrCorruptValue, err)
	}
	return uint32(n), nil
}

// GetValidatorScoreMetadata implements Store.
func (s *RedisStore) GetValidatorScoreMetadata(ctx context.Context, session uint32) (model.ScoreMetadata, error) {
	var m model.ScoreMetadata
	err := s.getJSON(ctx, s.key("score-metadata", sessionKey(session)), &m)
	return m, err
}

// LatestValidatorScoreMetadata implements Store.
func (s *RedisStore) LatestValidatorScoreMetadata(ctx context.Context) (model.ScoreMetadata, error) {
	session, err := s.latestSession(ctx)
	if err != nil {
		return model.ScoreMetadata{}, err
	}
	return s.GetValidatorScoreMetadata(ctx, session)
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
