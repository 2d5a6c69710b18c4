package store

import (
	"context"
	"time"

	"go.uber.org/zap"

	"im_storage/pkg/constants"
)

// Facade 存储门面，业务层访问持久化的唯一入口
// 无状态，可被多个协程并发使用；每次写入构造一个 Batch 交给后端原子提交
type Facade struct {
	backend      Backend
	cache        CacheInvalidator
	maxSyncLimit int
	now          func() time.Time
}

// Option 门面可选配置
type Option func(*Facade)

// WithCacheInvalidator 写入成功后用于失效读缓存
func WithCacheInvalidator(c CacheInvalidator) Option {
	return func(f *Facade) {
		if c != nil {
			f.cache = c
		}
	}
}

// WithMaxSyncLimit 单次增量拉取上限
func WithMaxSyncLimit(n int) Option {
	return func(f *Facade) {
		if n > 0 {
			f.maxSyncLimit = n
		}
	}
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(f *Facade) {
		f.now = now
	}
}

// New 创建存储门面
func New(backend Backend, opts ...Option) *Facade {
	f := &Facade{
		backend:      backend,
		cache:        nopInvalidator{},
		maxSyncLimit: constants.MAX_SYNC_LIMIT,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Backend 返回底层适配器
func (f *Facade) Backend() Backend {
	return f.backend
}

// Close 关闭底层连接
func (f *Facade) Close() error {
	return f.backend.Close()
}

// commit 提交工作单元并记录日志
// 后端错误原样返回，门面不做重试
func (f *Facade) commit(ctx context.Context, action string, b *Batch, fields ...zap.Field) error {
	fields = append(fields, zap.String("action", action), zap.Strings("ops", b.Names()))
	if err := f.backend.Commit(ctx, b); err != nil {
		zap.L().Error("storage commit failed", append(fields, zap.Error(err))...)
		return err
	}
	zap.L().Debug("storage commit", fields...)
	return nil
}
