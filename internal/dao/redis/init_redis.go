// Package redis 提供 Redis 缓存操作的封装
// 本文件仅包含 Redis 连接初始化逻辑
// 使用 github.com/redis/go-redis/v9 作为底层客户端
package redis

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"im_storage/internal/config"
	"im_storage/pkg/constants"
	"im_storage/pkg/errorx"
)

// Init 根据配置创建客户端并检查连通性
func Init(cfg config.RedisConfig) (*RedisCache, error) {
	port := cfg.Port
	if port == 0 {
		port = 6379
	}
	client := redis.NewClient(&redis.Options{
		Addr:     net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Password: cfg.Password,
		DB:       cfg.Db,
		// 连接池配置
		PoolSize:     50,
		MinIdleConns: constants.CACHE_WORKER_NUM, // 与 Worker 数量匹配
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errorx.Wrapf(err, errorx.CodeCacheError, "redis ping %s:%d", cfg.Host, port)
	}
	return NewRedisCache(client, constants.CACHE_WORKER_NUM, constants.CACHE_TASK_BUFFER), nil
}
