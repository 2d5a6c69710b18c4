// Package redis 定义缓存服务接口
// 存储门面只依赖失效能力，不直接读写缓存内容
package redis

import (
	"context"
)

// CacheService 缓存服务接口
type CacheService interface {
	// Delete 删除若干键，不存在的键忽略
	Delete(ctx context.Context, keys ...string) error
}

// AsyncCacheService 异步缓存服务接口
// 提供异步任务提交能力，用于非阻塞缓存更新
type AsyncCacheService interface {
	CacheService
	// SubmitTask 提交异步缓存任务
	SubmitTask(action func())
}
