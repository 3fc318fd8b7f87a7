package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupPresence(t *testing.T) (*PresenceRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	// Redis 镜像命中时不会回退数据库，这些用例不需要 DB
	return NewPresenceRepository(nil, client), mr
}

func TestPresence_IsOnlineFromRedisMirror(t *testing.T) {
	repo, mr := setupPresence(t)
	ctx := context.Background()

	online, err := repo.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, mr.Set(presenceKey(42), "1"))
	mr.SetTTL(presenceKey(42), presenceTTL)

	online, err = repo.IsOnline(ctx, 42)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestPresence_MirrorDecaysAfterTTL(t *testing.T) {
	repo, mr := setupPresence(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(presenceKey(7), "1"))
	mr.SetTTL(presenceKey(7), presenceTTL)

	// 网关异常退出后没有心跳续期，TTL 到期自动视为离线
	mr.FastForward(presenceTTL + time.Second)

	online, err := repo.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresence_RefreshExtendsTTL(t *testing.T) {
	repo, mr := setupPresence(t)
	ctx := context.Background()

	require.NoError(t, mr.Set(presenceKey(7), "1"))
	mr.SetTTL(presenceKey(7), time.Minute)

	require.NoError(t, repo.Refresh(ctx, 7))

	// 心跳把剩余 1 分钟续成完整 TTL
	mr.FastForward(2 * time.Minute)

	online, err := repo.IsOnline(ctx, 7)
	require.NoError(t, err)
	assert.True(t, online)
}

func TestPresence_RefreshWithoutRedisIsNoop(t *testing.T) {
	repo := NewPresenceRepository(nil, nil)
	assert.NoError(t, repo.Refresh(context.Background(), 1))
}
