package constants

const (
	MIN_PAGE_SIZE      = 1    // 分页大小下限
	MAX_PAGE_SIZE      = 200  // 分页大小上限
	MAX_SYNC_LIMIT     = 1000 // 增量同步单次最大条数
	CACHE_WORKER_NUM   = 15   // 缓存失效 Worker 数
	CACHE_TASK_BUFFER  = 3000 // 缓存任务缓冲区大小
	CACHE_TASK_TIMEOUT = 3    // 单个缓存失效任务超时（秒）
)

// Redis key 前缀
const (
	CONV_SUMMARY_KEY_PREFIX = "im:conv:summary:" // 会话摘要（最后一条消息）
	UNREAD_KEY_PREFIX       = "im:unread:"       // 未读数 im:unread:{ownerId}:{conversationId}
	BOT_CONFIG_KEY_PREFIX   = "im:bot:config:"   // 机器人配置
)
