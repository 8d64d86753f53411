package counter

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func TestIncrAndRead(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := New(client, true)
	ctx := context.Background()

	assert.Equal(t, int64(0), c.Uploads(ctx), "missing key reads as zero")

	c.IncrUploads(ctx)
	c.IncrUploads(ctx)
	c.IncrUploads(ctx)

	assert.Equal(t, int64(3), c.Uploads(ctx))

	got, err := mr.Get("uploads:count")
	require.NoError(t, err)
	assert.Equal(t, "3", got)
}

func TestOutageIsSwallowed(t *testing.T) {
	mr, client := setupTestRedis(t)
	c := New(client, true)
	ctx := context.Background()

	c.IncrUploads(ctx)
	mr.Close()

	// Neither call may panic or surface an error
	c.IncrUploads(ctx)
	assert.Equal(t, int64(-1), c.Uploads(ctx))
	assert.Error(t, c.Ping(ctx))
}

func TestDisabledCounter(t *testing.T) {
	c := New(nil, true)
	ctx := context.Background()

	c.IncrUploads(ctx)
	assert.Equal(t, int64(-1), c.Uploads(ctx))
	assert.NoError(t, c.Ping(ctx))

	_, client := setupTestRedis(t)
	c = New(client, false)
	c.IncrUploads(ctx)
	assert.Equal(t, int64(-1), c.Uploads(ctx))
}
