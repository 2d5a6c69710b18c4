package store

import "im_storage/internal/model"

// Op 工作单元中的一条写操作
// 后端在 Commit 中按类型分派，整批要么全部生效要么全部不生效
type Op interface {
	opName() string
}

// ====== 用户 ======

type PutUser struct{ User model.User }
type PutUserProfile struct{ Profile model.UserProfile }
type PutBotConfig struct{ Config model.BotConfig }

// ====== 关系 ======

type PutRelation struct{ Relation model.Relation }
type DeleteRelation struct{ SourceUserID, TargetUserID int64 }
type AppendRelationChange struct{ Change model.RelationVersionChange }

// ====== 会话 ======

type PutConversation struct{ Conversation model.Conversation }
type DeleteConversation struct{ OwnerID, ConversationID int64 }
type AppendConversationChange struct{ Change model.ConversationVersionChange }

// ====== 群组 ======

type PutGroup struct{ Group model.Group }
type PutGroupMember struct{ Member model.GroupMember }
type DeleteGroupMember struct{ GroupID, UserID int64 }
type AppendGroupChange struct{ Change model.GroupVersionChange }
type PutUserGroup struct{ UserGroup model.UserGroup }
type DeleteUserGroup struct{ UserID, GroupID int64 }
type AppendUserGroupChange struct{ Change model.UserGroupVersionChange }

// ====== 消息 ======

type PutMessage struct{ Message model.Message }

func (PutUser) opName() string                  { return "put_user" }
func (PutUserProfile) opName() string           { return "put_user_profile" }
func (PutBotConfig) opName() string             { return "put_bot_config" }
func (PutRelation) opName() string              { return "put_relation" }
func (DeleteRelation) opName() string           { return "delete_relation" }
func (AppendRelationChange) opName() string     { return "append_relation_change" }
func (PutConversation) opName() string          { return "put_conversation" }
func (DeleteConversation) opName() string       { return "delete_conversation" }
func (AppendConversationChange) opName() string { return "append_conversation_change" }
func (PutGroup) opName() string                 { return "put_group" }
func (PutGroupMember) opName() string           { return "put_group_member" }
func (DeleteGroupMember) opName() string        { return "delete_group_member" }
func (AppendGroupChange) opName() string        { return "append_group_change" }
func (PutUserGroup) opName() string             { return "put_user_group" }
func (DeleteUserGroup) opName() string          { return "delete_user_group" }
func (AppendUserGroupChange) opName() string    { return "append_user_group_change" }
func (PutMessage) opName() string               { return "put_message" }

// Batch 一次原子写入累积的操作
type Batch struct {
	ops []Op
}

// NewBatch 创建工作单元
func NewBatch(ops ...Op) *Batch {
	return &Batch{ops: ops}
}

// Add 追加操作
func (b *Batch) Add(ops ...Op) *Batch {
	b.ops = append(b.ops, ops...)
	return b
}

// Ops 按追加顺序返回全部操作
func (b *Batch) Ops() []Op {
	return b.ops
}

func (b *Batch) Len() int {
	return len(b.ops)
}

// Names 操作名列表，用于日志
func (b *Batch) Names() []string {
	names := make([]string, len(b.ops))
	for i, op := range b.ops {
		names[i] = op.opName()
	}
	return names
}
