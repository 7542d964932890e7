package nlu

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/metrics"
	"github.com/wnliberio/back-bot-sistemas-empresariales/internal/repo"
)

type fakeKeyStore struct {
	keys      []repo.APIKey
	cooldowns map[string]time.Time
	cleared   []string
}

func (f *fakeKeyStore) ListActiveGeminiKeys(ctx context.Context) ([]repo.APIKey, error) {
	return f.keys, nil
}

func (f *fakeKeyStore) SetCooldownUntil(ctx context.Context, id string, until time.Time) error {
	if f.cooldowns == nil {
		f.cooldowns = map[string]time.Time{}
	}
	f.cooldowns[id] = until
	return nil
}

func (f *fakeKeyStore) ClearCooldown(ctx context.Context, id string) error {
	f.cleared = append(f.cleared, id)
	return nil
}

func newTestClient(t *testing.T, store KeyStore) *Client {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)
	return New(store, Config{}, logger, metrics.Registry("test"))
}

func TestIsQuotaError(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 429: Quota exceeded"), true},
		{errors.New("RESOURCE_EXHAUSTED: please retry"), true},
		{errors.New("rate limit reached for model"), true},
		{errors.New("invalid argument: bad prompt"), false},
		{errors.New("context deadline exceeded"), false},
	}
	for _, tc := range cases {
		if got := IsQuotaError(tc.err); got != tc.want {
			t.Errorf("IsQuotaError(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestGenerateRotatesOnQuota(t *testing.T) {
	store := &fakeKeyStore{keys: []repo.APIKey{
		{ID: "k1", Value: "key-1", Priority: 0},
		{ID: "k2", Value: "key-2", Priority: 1},
	}}
	c := newTestClient(t, store)

	calls := 0
	c.generate = func(ctx context.Context, apiKey, prompt string) (string, error) {
		calls++
		if apiKey == "key-1" {
			return "", errors.New("429: quota exceeded")
		}
		return "hola", nil
	}

	got := c.Generate(context.Background(), "prompt")
	if got != "hola" {
		t.Fatalf("got %q, want reply from second key", got)
	}
	if calls != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls)
	}
	if _, ok := store.cooldowns["k1"]; !ok {
		t.Fatal("exhausted key was not put on cooldown")
	}
}

func TestGenerateSkipsCooledKeys(t *testing.T) {
	future := time.Now().Add(time.Hour)
	store := &fakeKeyStore{keys: []repo.APIKey{
		{ID: "k1", Value: "key-1", CooldownUntil: &future},
	}}
	c := newTestClient(t, store)
	c.generate = func(ctx context.Context, apiKey, prompt string) (string, error) {
		t.Fatal("cooled key must not be used")
		return "", nil
	}

	if got := c.Generate(context.Background(), "prompt"); got != FallbackUnavailable {
		t.Fatalf("got %q, want unavailable fallback", got)
	}
}

func TestGenerateClearsExpiredCooldownOnSuccess(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	store := &fakeKeyStore{keys: []repo.APIKey{
		{ID: "k1", Value: "key-1", CooldownUntil: &past},
	}}
	c := newTestClient(t, store)
	c.generate = func(ctx context.Context, apiKey, prompt string) (string, error) {
		return "listo", nil
	}

	if got := c.Generate(context.Background(), "prompt"); got != "listo" {
		t.Fatalf("got %q", got)
	}
	if len(store.cleared) != 1 || store.cleared[0] != "k1" {
		t.Fatalf("expected cooldown cleared for k1, got %v", store.cleared)
	}
}

func TestGenerateNonQuotaErrorFallsBack(t *testing.T) {
	store := &fakeKeyStore{keys: []repo.APIKey{
		{ID: "k1", Value: "key-1"},
		{ID: "k2", Value: "key-2"},
	}}
	c := newTestClient(t, store)

	calls := 0
	c.generate = func(ctx context.Context, apiKey, prompt string) (string, error) {
		calls++
		return "", errors.New("internal server error")
	}

	if got := c.Generate(context.Background(), "prompt"); got != FallbackGeneric {
		t.Fatalf("got %q, want generic fallback", got)
	}
	// A non-quota failure does not burn the remaining keys.
	if calls != 1 {
		t.Fatalf("expected 1 attempt, got %d", calls)
	}
}
