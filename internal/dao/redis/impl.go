// Package redis 提供 CacheService 接口的 Redis 实现
package redis

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"im_storage/pkg/errorx"
)

// RedisCache Redis 缓存实现，自带一个固定大小的失效任务 Worker Pool
type RedisCache struct {
	client    *redis.Client
	taskChan  chan func()
	workers   sync.WaitGroup
	closeOnce sync.Once
}

// NewRedisCache 创建 Redis 缓存实例并启动 Worker
func NewRedisCache(client *redis.Client, workerNum, taskChanSize int) *RedisCache {
	rc := &RedisCache{
		client:   client,
		taskChan: make(chan func(), taskChanSize),
	}
	rc.workers.Add(workerNum)
	for i := 0; i < workerNum; i++ {
		go rc.runWorker()
	}
	zap.L().Info("Redis Cache Workers started", zap.Int("workers", workerNum), zap.Int("buffer", taskChanSize))
	return rc
}

func (r *RedisCache) runWorker() {
	defer r.workers.Done()
	for task := range r.taskChan {
		r.runTask(task)
	}
}

// runTask 单个任务 panic 不影响 Worker 继续消费
func (r *RedisCache) runTask(task func()) {
	defer func() {
		if rec := recover(); rec != nil {
			zap.L().Error("Redis Worker panic", zap.Any("recover", rec))
		}
	}()
	if task != nil {
		task()
	}
}

// ==================== Key 操作 ====================

// Delete 使用 UNLINK 删除键，由 Redis 后台线程释放内存
func (r *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Unlink(ctx, keys...).Err(); err != nil {
		return errorx.Wrapf(err, errorx.CodeCacheError, "redis unlink keys %v", keys)
	}
	return nil
}

// ==================== 异步任务 ====================

// SubmitTask 提交异步缓存任务，通道满时降级为同步执行
func (r *RedisCache) SubmitTask(action func()) {
	select {
	case r.taskChan <- action:
	default:
		zap.L().Warn("Redis cache task channel full, executing synchronously")
		r.runTask(action)
	}
}

// Close 等待已提交的任务执行完毕后关闭连接
// 调用方需保证 Close 之后不再 SubmitTask
func (r *RedisCache) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.taskChan)
		r.workers.Wait()
		if cerr := r.client.Close(); cerr != nil {
			err = errorx.Wrap(cerr, errorx.CodeCacheError, "关闭 Redis 连接")
		}
	})
	return err
}

var _ AsyncCacheService = (*RedisCache)(nil)
