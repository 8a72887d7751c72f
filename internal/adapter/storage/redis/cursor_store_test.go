package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorStore_Lifecycle(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewCursorStore(client)
	ctx := context.Background()
	run := "sweep_expired:2026-04-01"

	cursor, err := store.Load(ctx, run)
	require.NoError(t, err)
	assert.Empty(t, cursor)

	require.NoError(t, store.Save(ctx, run, "user-0500", time.Hour))
	require.NoError(t, store.Save(ctx, run, "user-1000", time.Hour))

	cursor, err = store.Load(ctx, run)
	require.NoError(t, err)
	assert.Equal(t, "user-1000", cursor)

	require.NoError(t, store.Clear(ctx, run))
	cursor, err = store.Load(ctx, run)
	require.NoError(t, err)
	assert.Empty(t, cursor)
}

func TestCursorStore_Expires(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	store := NewCursorStore(client)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "expiry_warnings:2026-04-01", "u9", time.Minute))
	s.FastForward(2 * time.Minute)

	cursor, err := store.Load(ctx, "expiry_warnings:2026-04-01")
	require.NoError(t, err)
	assert.Empty(t, cursor)
}
