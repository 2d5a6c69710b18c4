package redis

import (
	"context"
	"strconv"
	"time"

	"go.uber.org/zap"

	"im_storage/internal/store"
	"im_storage/pkg/constants"
)

// ConversationSummaryKey 会话摘要缓存键
func ConversationSummaryKey(conversationID int64) string {
	return constants.CONV_SUMMARY_KEY_PREFIX + strconv.FormatInt(conversationID, 10)
}

// UnreadCountKey 未读数缓存键 im:unread:{ownerId}:{conversationId}
func UnreadCountKey(ownerID, conversationID int64) string {
	return constants.UNREAD_KEY_PREFIX + strconv.FormatInt(ownerID, 10) + ":" + strconv.FormatInt(conversationID, 10)
}

// BotConfigKey 机器人配置缓存键
func BotConfigKey(userID int64) string {
	return constants.BOT_CONFIG_KEY_PREFIX + strconv.FormatInt(userID, 10)
}

// Invalidator 把门面的失效通知转成异步 UNLINK
type Invalidator struct {
	cache   AsyncCacheService
	timeout time.Duration
}

var _ store.CacheInvalidator = (*Invalidator)(nil)

func NewInvalidator(cache AsyncCacheService) *Invalidator {
	return &Invalidator{cache: cache, timeout: constants.CACHE_TASK_TIMEOUT * time.Second}
}

func (i *Invalidator) InvalidateConversationSummary(ctx context.Context, conversationID int64) {
	i.submit(ctx, ConversationSummaryKey(conversationID))
}

func (i *Invalidator) InvalidateUnreadCount(ctx context.Context, ownerID, conversationID int64) {
	i.submit(ctx, UnreadCountKey(ownerID, conversationID))
}

func (i *Invalidator) InvalidateBotConfig(ctx context.Context, userID int64) {
	i.submit(ctx, BotConfigKey(userID))
}

// submit 任务脱离调用方的取消信号，只保留超时
func (i *Invalidator) submit(ctx context.Context, key string) {
	base := context.WithoutCancel(ctx)
	i.cache.SubmitTask(func() {
		taskCtx, cancel := context.WithTimeout(base, i.timeout)
		defer cancel()
		if err := i.cache.Delete(taskCtx, key); err != nil {
			zap.L().Warn("cache invalidation failed", zap.String("key", key), zap.Error(err))
		}
	})
}
