// Package store 实现存储门面：关系状态机、会话与群组引擎、消息存储、
// 游标分页与版本增量同步协议。
//
// 门面只依赖 Backend 接口；每种存储引擎（MySQL/Cassandra/MongoDB）各实现一次 Backend，
// 业务规则只在本包实现一份，从而保证各后端行为一致。
package store

import (
	"context"

	"im_storage/internal/model"
)

// Backend 存储引擎适配器
//
// 约定：
//   - Find* 在记录不存在时返回 (nil, nil)
//   - List* 按主键升序返回 key > after 的记录；limit <= 0 表示不限条数
//   - List*Changes 按版本升序返回 version > after 的日志
//   - Latest*Version 日志为空时返回 model.NoVersion
//   - 其余错误以 errorx.CodeDBError 包装
type Backend interface {
	// Commit 原子地应用整个工作单元
	Commit(ctx context.Context, b *Batch) error

	// ====== 用户 ======

	FindUser(ctx context.Context, userID int64) (*model.User, error)
	FindUserByAccount(ctx context.Context, account string) (*model.User, error)
	FindUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error)
	FindBotConfig(ctx context.Context, userID int64) (*model.BotConfig, error)

	// ====== 关系 ======

	FindRelation(ctx context.Context, sourceUserID, targetUserID int64) (*model.Relation, error)
	ListRelations(ctx context.Context, sourceUserID, afterTargetUserID int64, limit int) ([]model.Relation, error)
	ListRelationChanges(ctx context.Context, sourceUserID int64, after model.Version, limit int) ([]model.RelationVersionChange, error)
	LatestRelationVersion(ctx context.Context, sourceUserID int64) (model.Version, error)

	// ====== 会话 ======

	FindConversation(ctx context.Context, ownerID, conversationID int64) (*model.Conversation, error)
	ListConversations(ctx context.Context, ownerID, afterConversationID int64, limit int) ([]model.Conversation, error)
	ListConversationChanges(ctx context.Context, ownerID int64, after model.Version, limit int) ([]model.ConversationVersionChange, error)
	LatestConversationVersion(ctx context.Context, ownerID int64) (model.Version, error)

	// ====== 群组 ======

	FindGroup(ctx context.Context, groupID int64) (*model.Group, error)
	FindGroupMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error)
	ListGroupMembers(ctx context.Context, groupID, afterUserID int64, limit int) ([]model.GroupMember, error)
	ListGroupChanges(ctx context.Context, groupID int64, after model.Version, limit int) ([]model.GroupVersionChange, error)
	LatestGroupVersion(ctx context.Context, groupID int64) (model.Version, error)

	FindUserGroup(ctx context.Context, userID, groupID int64) (*model.UserGroup, error)
	ListUserGroups(ctx context.Context, userID, afterGroupID int64, limit int) ([]model.UserGroup, error)
	ListUserGroupChanges(ctx context.Context, userID int64, after model.Version, limit int) ([]model.UserGroupVersionChange, error)
	LatestUserGroupVersion(ctx context.Context, userID int64) (model.Version, error)

	// ====== 消息 ======

	FindMessage(ctx context.Context, conversationID, messageID int64) (*model.Message, error)
	// ListMessages 返回 message_id < before 的消息，按 message_id 升序取前 limit 条
	ListMessages(ctx context.Context, conversationID, beforeMessageID int64, limit int) ([]model.Message, error)

	Close() error
}

// CacheInvalidator 写入成功后的缓存失效
// 实现应为异步、尽力而为，失败只记录日志
type CacheInvalidator interface {
	InvalidateConversationSummary(ctx context.Context, conversationID int64)
	InvalidateUnreadCount(ctx context.Context, ownerID, conversationID int64)
	InvalidateBotConfig(ctx context.Context, userID int64)
}

type nopInvalidator struct{}

func (nopInvalidator) InvalidateConversationSummary(context.Context, int64) {}
func (nopInvalidator) InvalidateUnreadCount(context.Context, int64, int64)  {}
func (nopInvalidator) InvalidateBotConfig(context.Context, int64)           {}
