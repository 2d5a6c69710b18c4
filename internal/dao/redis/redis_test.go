package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"im_storage/internal/config"
	"im_storage/pkg/errorx"
)

// syncCache 同步执行任务，记录被删除的键
type syncCache struct {
	mu      sync.Mutex
	deleted []string
	err     error
}

func (c *syncCache) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, keys...)
	return c.err
}

func (c *syncCache) SubmitTask(action func()) { action() }

func TestKeys(t *testing.T) {
	assert.Equal(t, "im:conv:summary:42", ConversationSummaryKey(42))
	assert.Equal(t, "im:unread:7:42", UnreadCountKey(7, 42))
	assert.Equal(t, "im:bot:config:9", BotConfigKey(9))
}

func TestInvalidatorDeletesKeys(t *testing.T) {
	cache := &syncCache{}
	inv := NewInvalidator(cache)

	// 调用方上下文已取消，失效任务仍然执行
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	inv.InvalidateConversationSummary(ctx, 42)
	inv.InvalidateUnreadCount(ctx, 7, 42)
	inv.InvalidateBotConfig(ctx, 9)

	assert.Equal(t, []string{"im:conv:summary:42", "im:unread:7:42", "im:bot:config:9"}, cache.deleted)
}

func TestInvalidatorSwallowsErrors(t *testing.T) {
	cache := &syncCache{err: errorx.New(errorx.CodeCacheError, "down")}
	inv := NewInvalidator(cache)
	assert.NotPanics(t, func() { inv.InvalidateBotConfig(context.Background(), 1) })
	assert.Len(t, cache.deleted, 1)
}

var (
	redisOnce     sync.Once
	redisHost     string
	redisPort     int
	redisStartErr error
)

func startRedis() (string, int, error) {
	redisOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				redisStartErr = fmt.Errorf("启动 Redis Testcontainer panic: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "redis:7-alpine",
				ExposedPorts: []string{"6379/tcp"},
				WaitingFor:   wait.ForLog("Ready to accept connections"),
			},
			Started: true,
		})
		if err != nil {
			redisStartErr = fmt.Errorf("启动 Redis Testcontainer 失败: %w", err)
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			redisStartErr = err
			return
		}
		port, err := container.MappedPort(ctx, "6379/tcp")
		if err != nil {
			redisStartErr = err
			return
		}
		redisHost = host
		redisPort, _ = strconv.Atoi(port.Port())
	})
	return redisHost, redisPort, redisStartErr
}

func newRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	if testing.Short() {
		t.Skip("short 模式跳过 Redis 集成测试")
	}
	host, port, err := startRedis()
	if err != nil {
		t.Skipf("Redis 不可用: %v", err)
	}
	rc, err := Init(config.RedisConfig{Host: host, Port: port})
	require.NoError(t, err)
	return rc
}

func TestRedisCacheInvalidation(t *testing.T) {
	rc := newRedisCache(t)
	ctx := context.Background()

	summary := ConversationSummaryKey(100)
	unread := UnreadCountKey(1, 100)
	require.NoError(t, rc.client.Set(ctx, summary, "hello", time.Minute).Err())
	require.NoError(t, rc.client.Set(ctx, unread, "3", time.Minute).Err())

	inv := NewInvalidator(rc)
	inv.InvalidateConversationSummary(ctx, 100)
	inv.InvalidateUnreadCount(ctx, 1, 100)

	// Close 等待 Worker 处理完已提交的任务
	addr := rc.client.Options().Addr
	require.NoError(t, rc.Close())

	check := goredis.NewClient(&goredis.Options{Addr: addr})
	defer check.Close()
	n, err := check.Exists(ctx, summary, unread).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeleteMissingKeyIsNoop(t *testing.T) {
	rc := newRedisCache(t)
	defer rc.Close()
	require.NoError(t, rc.Delete(context.Background(), "im:missing"))
	require.NoError(t, rc.Delete(context.Background()))
}
