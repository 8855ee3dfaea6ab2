package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/expiry-tracker/pkg/config"
)

// memoryStore emulates the commands and scripts the client issues.
type memoryStore struct {
	values map[string]string
	ttls   map[string]time.Duration
}

func newMemoryStore() *memoryStore {
	return &memoryStore{values: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryStore) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryStore) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	m.values[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, ok := m.values[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.Set(ctx, key, value, ttl)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryStore) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *memoryStore) EvalSha(_ context.Context, sha string, keys []string, args ...any) *redis.Cmd {
	key := keys[0]
	switch sha {
	case incrWindowScript.Hash():
		var n int64
		fmt.Sscan(m.values[key], &n)
		n++
		m.values[key] = fmt.Sprint(n)
		if ttl := args[0].(int64); ttl > 0 && m.ttls[key] <= 0 {
			m.ttls[key] = time.Duration(ttl) * time.Millisecond
		}
		return redis.NewCmdResult(n, nil)
	case deleteIfOwnerScript.Hash():
		if v, ok := m.values[key]; ok && v == args[0] {
			delete(m.values, key)
			delete(m.ttls, key)
			return redis.NewCmdResult(int64(1), nil)
		}
		return redis.NewCmdResult(int64(0), nil)
	}
	return redis.NewCmdResult(nil, errors.New("unknown script"))
}

func (m *memoryStore) Eval(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("eval not expected"))
}

func (m *memoryStore) EvalRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("eval not expected"))
}

func (m *memoryStore) EvalShaRO(context.Context, string, []string, ...any) *redis.Cmd {
	return redis.NewCmdResult(nil, errors.New("eval not expected"))
}

func (m *memoryStore) ScriptExists(context.Context, ...string) *redis.BoolSliceCmd {
	return redis.NewBoolSliceResult(nil, errors.New("not supported"))
}

func (m *memoryStore) ScriptLoad(context.Context, string) *redis.StringCmd {
	return redis.NewStringResult("", errors.New("not supported"))
}

func newTestClient() (*Client, *memoryStore) {
	mem := newMemoryStore()
	return &Client{store: mem, keys: NewKeyspace("expiry", "test")}, mem
}

func TestFixedWindowAllowCountsPerScope(t *testing.T) {
	ctx := context.Background()
	client, mem := newTestClient()

	var allowed []bool
	for range 3 {
		ok, _, err := client.FixedWindowAllow(ctx, "zoho:org-1", 2, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		allowed = append(allowed, ok)
	}
	if !allowed[0] || !allowed[1] || allowed[2] {
		t.Fatalf("expected allow, allow, deny; got %v", allowed)
	}

	key := "expiry:test:rate_limit:zoho:org-1"
	if mem.values[key] != "3" {
		t.Fatalf("expected counter 3 at %s, got %v", key, mem.values)
	}
	if mem.ttls[key] != time.Minute {
		t.Fatalf("expected window ttl, got %s", mem.ttls[key])
	}

	ok, count, err := client.FixedWindowAllow(ctx, "zoho:org-2", 2, time.Minute)
	if err != nil || !ok || count != 1 {
		t.Fatalf("other scope should start fresh: ok=%v count=%d err=%v", ok, count, err)
	}
}

func TestDeleteIfValueOnlyRemovesOwner(t *testing.T) {
	ctx := context.Background()
	client, _ := newTestClient()
	key := client.Keys().JobLock("daily-expiry-sweep")

	if ok, err := client.SetNX(ctx, key, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("SetNX: ok=%v err=%v", ok, err)
	}
	if deleted, err := client.DeleteIfValue(ctx, key, "owner-b"); err != nil || deleted {
		t.Fatalf("foreign owner must not delete: deleted=%v err=%v", deleted, err)
	}
	if deleted, err := client.DeleteIfValue(ctx, key, "owner-a"); err != nil || !deleted {
		t.Fatalf("owner delete failed: deleted=%v err=%v", deleted, err)
	}
	if _, err := client.Get(ctx, key); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestDisconnectedClient(t *testing.T) {
	var nilClient *Client
	if err := nilClient.Ping(context.Background()); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if _, err := (&Client{}).IncrWithTTL(context.Background(), "k", time.Second); !errors.Is(err, errNotConnected) {
		t.Fatalf("expected errNotConnected, got %v", err)
	}
	if err := nilClient.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestKeyspace(t *testing.T) {
	keys := NewKeyspace("expiry", " prod ")
	cases := map[string]string{
		keys.JobLock("inventory-sync"):     "expiry:prod:scheduler:lock:inventory-sync",
		keys.JobLastRun("inventory-sync"):  "expiry:prod:scheduler:last_run:inventory-sync",
		keys.RateLimit("zoho:org-1"):       "expiry:prod:rate_limit:zoho:org-1",
		NewKeyspace("expiry", "").Key("x"): "expiry:x",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected %s, got %s", want, got)
		}
	}
}

func TestOptions(t *testing.T) {
	if _, err := options(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := options(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options db=%d pool=%d dial=%s", opts.DB, opts.PoolSize, opts.DialTimeout)
	}

	opts, err = options(config.RedisConfig{Address: "cache:6379", DB: 3})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "cache:6379" || opts.DB != 3 {
		t.Fatalf("unexpected options addr=%s db=%d", opts.Addr, opts.DB)
	}
}
