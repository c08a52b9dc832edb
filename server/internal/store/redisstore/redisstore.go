package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/buoywatch/buoywatch/pkg/types"
	"github.com/buoywatch/buoywatch/server/internal/settings"
	"github.com/buoywatch/buoywatch/server/internal/store"
)

// DefaultPrefix namespaces every key written by Store.
const DefaultPrefix = "buoy:"

const fieldUpdatedAt = "updated_at"

// Store is a Redis-backed registry and live-state store.
type Store struct {
	rdb    redis.UniversalClient
	prefix string
}

var (
	_ store.Registry   = (*Store)(nil)
	_ store.StateStore = (*Store)(nil)
	_ settings.Source  = (*Store)(nil)
)

// New wraps an existing client. An empty prefix uses DefaultPrefix.
func New(rdb redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{rdb: rdb, prefix: prefix}
}

// Connect dials addr and verifies the connection with PING.
func Connect(ctx context.Context, addr, password string, db int, prefix string) (*Store, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redisstore: ping %s: %w", addr, err)
	}
	return New(rdb, prefix), nil
}

// Close releases the underlying client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) key(parts ...string) string {
	return s.prefix + strings.Join(parts, ":")
}

// --- Registry ---------------------------------------------------------------

// RegisterStation adds id to the station set and writes its settings.
func (s *Store) RegisterStation(ctx context.Context, id, owner string, st types.StationSettings) error {
	fields := map[string]any{
		"owner":                 owner,
		"expected_params":       joinParams(st.ExpectedParams),
		"offline_after_minutes": int(st.OfflineAfter / time.Minute),
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, s.key("stations"), id)
		pipe.HSet(ctx, s.key("station", id), fields)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: register %s: %w", id, err)
	}
	return nil
}

func (s *Store) ListStations(ctx context.Context) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, s.key("stations")).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: list stations: %w", err)
	}
	return ids, nil
}

func (s *Store) StationSettings(ctx context.Context, id string) (types.StationSettings, error) {
	h, err := s.rdb.HGetAll(ctx, s.key("station", id)).Result()
	if err != nil {
		return types.StationSettings{}, fmt.Errorf("redisstore: settings %s: %w", id, err)
	}
	if len(h) == 0 {
		return types.StationSettings{}, store.ErrNotFound
	}
	out := types.StationSettings{ExpectedParams: splitParams(h["expected_params"])}
	if m, err := strconv.Atoi(h["offline_after_minutes"]); err == nil && m > 0 {
		out.OfflineAfter = time.Duration(m) * time.Minute
	}
	return out, nil
}

func (s *Store) Owner(ctx context.Context, id string) (string, error) {
	owner, err := s.rdb.HGet(ctx, s.key("station", id), "owner").Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redisstore: owner %s: %w", id, err)
	}
	return owner, nil
}

func (s *Store) SetStationState(ctx context.Context, id string, state types.State, at time.Time) error {
	err := s.rdb.HSet(ctx, s.key("station", id),
		"state", string(state),
		"state_at", at.UnixMilli(),
	).Err()
	if err != nil {
		return fmt.Errorf("redisstore: set state %s: %w", id, err)
	}
	return nil
}

// --- StateStore -------------------------------------------------------------

func (s *Store) UpdateCurrent(ctx context.Context, id string, values types.Values, at time.Time) error {
	fields := make(map[string]any, len(values)+1)
	for p, v := range values {
		fields[string(p)] = v
	}
	fields[fieldUpdatedAt] = at.UnixMilli()
	if err := s.rdb.HSet(ctx, s.key("current", id), fields).Err(); err != nil {
		return fmt.Errorf("redisstore: update current %s: %w", id, err)
	}
	return nil
}

func (s *Store) Current(ctx context.Context, id string) (store.Current, error) {
	h, err := s.rdb.HGetAll(ctx, s.key("current", id)).Result()
	if err != nil {
		return store.Current{}, fmt.Errorf("redisstore: current %s: %w", id, err)
	}
	if len(h) == 0 {
		return store.Current{}, store.ErrNotFound
	}
	out := store.Current{Values: make(types.Values, len(h))}
	for k, raw := range h {
		if k == fieldUpdatedAt {
			if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
				out.UpdatedAt = time.UnixMilli(ms).UTC()
			}
			continue
		}
		p, ok := types.ParseParameter(k)
		if !ok {
			continue
		}
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			out.Values[p] = v
		}
	}
	return out, nil
}

func (s *Store) TouchLastSeen(ctx context.Context, id string, params []types.Parameter, at time.Time) error {
	if len(params) == 0 {
		return nil
	}
	fields := make(map[string]any, len(params))
	for _, p := range params {
		fields[string(p)] = at.UnixMilli()
	}
	if err := s.rdb.HSet(ctx, s.key("lastseen", id), fields).Err(); err != nil {
		return fmt.Errorf("redisstore: touch last seen %s: %w", id, err)
	}
	return nil
}

func (s *Store) LastSeen(ctx context.Context, id string) (map[types.Parameter]time.Time, error) {
	h, err := s.rdb.HGetAll(ctx, s.key("lastseen", id)).Result()
	if err != nil {
		return nil, fmt.Errorf("redisstore: last seen %s: %w", id, err)
	}
	out := make(map[types.Parameter]time.Time, len(h))
	for k, raw := range h {
		p, ok := types.ParseParameter(k)
		if !ok {
			continue
		}
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			out[p] = time.UnixMilli(ms).UTC()
		}
	}
	return out, nil
}

func (s *Store) Status(ctx context.Context, id string) (types.StatusSnapshot, error) {
	var snap types.StatusSnapshot
	raw, err := s.rdb.Get(ctx, s.key("status", id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return snap, store.ErrNotFound
	}
	if err != nil {
		return snap, fmt.Errorf("redisstore: status %s: %w", id, err)
	}
	if err := json.Unmarshal(raw, &snap); err != nil {
		return snap, fmt.Errorf("redisstore: decode status %s: %w", id, err)
	}
	return snap, nil
}

func (s *Store) PutStatus(ctx context.Context, snap types.StatusSnapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redisstore: encode status %s: %w", snap.StationID, err)
	}
	if err := s.rdb.Set(ctx, s.key("status", snap.StationID), raw, 0).Err(); err != nil {
		return fmt.Errorf("redisstore: put status %s: %w", snap.StationID, err)
	}
	return nil
}

// --- settings.Source --------------------------------------------------------

// Fetch reads the rule document. A missing key yields an empty document so
// the provider falls through to defaults without logging a failure.
func (s *Store) Fetch(ctx context.Context) (*settings.Document, error) {
	raw, err := s.rdb.Get(ctx, s.key("settings", "rules")).Bytes()
	if errors.Is(err, redis.Nil) {
		return &settings.Document{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redisstore: fetch rules: %w", err)
	}
	var doc settings.Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("redisstore: decode rules: %w", err)
	}
	return &doc, nil
}

// PutRules stores the rule document.
func (s *Store) PutRules(ctx context.Context, doc settings.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("redisstore: encode rules: %w", err)
	}
	return s.rdb.Set(ctx, s.key("settings", "rules"), raw, 0).Err()
}

func joinParams(ps []types.Parameter) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		parts[i] = string(p)
	}
	return strings.Join(parts, ",")
}

func splitParams(s string) []types.Parameter {
	if s == "" {
		return nil
	}
	var out []types.Parameter
	for _, part := range strings.Split(s, ",") {
		if p, ok := types.ParseParameter(part); ok {
			out = append(out, p)
		}
	}
	return out
}
