package redisstore

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/abczzz13/unprotect"
	"github.com/abczzz13/unprotect/internal/settings"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testRedisEnv names a Redis URL to run the integration tests against.
const testRedisEnv = "UNPROTECT_TEST_REDIS_URL"

func newTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv(testRedisEnv)
	if url == "" {
		t.Skipf("%s not set", testRedisEnv)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store, err := New(ctx, url, "unprotect-test-"+uuid.NewString()+":")
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = store.client.Del(context.Background(), store.key).Err()
		_ = store.Close()
	})
	return store
}

func TestKey(t *testing.T) {
	assert.Equal(t, "unprotect_protected_posts", Key(""))
	assert.Equal(t, "site1:unprotect_protected_posts", Key("site1:"))
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(context.Background(), "http://not-redis", "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse Redis URL")
}

func TestStore_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Load(ctx)
	require.ErrorIs(t, err, settings.ErrNotFound)

	rec := &settings.Record{
		Options:   unprotect.Options{GiveAccess: "yes", IPAddresses: "203.0.113.0/24"},
		Revision:  uuid.NewString(),
		UpdatedAt: time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.Save(ctx, rec))

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, rec.Options, got.Options)
	assert.Equal(t, rec.Revision, got.Revision)
	assert.True(t, rec.UpdatedAt.Equal(got.UpdatedAt))
}
