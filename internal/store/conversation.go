package store

import (
	"context"

	"go.uber.org/zap"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// CreateSingleChatConversation 为 owner 创建与 peer 的单聊会话
// 已存在时直接返回现有会话，不写日志
// 名称取 owner 对 peer 的备注名或昵称，没有关系行时取 peer 的资料
func (f *Facade) CreateSingleChatConversation(ctx context.Context, ownerID, peerID int64, v model.Version) (*model.Conversation, error) {
	if err := validateIDs(ownerID, peerID); err != nil {
		return nil, err
	}
	if ownerID == peerID {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "不能与自己创建单聊会话: %d", ownerID)
	}
	convID := model.SingleConversationID(ownerID, peerID)
	existing, err := f.backend.FindConversation(ctx, ownerID, convID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	name, avatar, err := f.resolvePeerDisplay(ctx, ownerID, peerID)
	if err != nil {
		return nil, err
	}
	conv := model.Conversation{
		OwnerID:        ownerID,
		ConversationID: convID,
		Target:         model.SingleTarget(peerID),
		Name:           name,
		Avatar:         avatar,
	}
	b := NewBatch(
		PutConversation{Conversation: conv},
		AppendConversationChange{Change: model.NewConversationChange(&conv, model.ConversationOpCreated, v)},
	)
	if err := f.commit(ctx, "create_single_conversation", b,
		zap.Int64("owner", ownerID), zap.Int64("peer", peerID), zap.Stringer("version", v)); err != nil {
		return nil, err
	}
	return &conv, nil
}

// resolvePeerDisplay 会话展示名：备注名 > 关系行昵称 > 对端资料
func (f *Facade) resolvePeerDisplay(ctx context.Context, ownerID, peerID int64) (name, avatar string, err error) {
	rel, err := f.backend.FindRelation(ctx, ownerID, peerID)
	if err != nil {
		return "", "", err
	}
	if rel != nil && rel.DisplayName() != "" {
		return rel.DisplayName(), rel.Avatar, nil
	}
	profile, err := f.GetUserProfile(ctx, peerID)
	if err != nil {
		return "", "", err
	}
	return profile.NickName, profile.Avatar, nil
}

// CreateGroupConversation 为 owner 创建群聊会话，名称头像取自群组
func (f *Facade) CreateGroupConversation(ctx context.Context, ownerID, groupID int64, v model.Version) (*model.Conversation, error) {
	if err := validateIDs(ownerID, groupID); err != nil {
		return nil, err
	}
	group, err := f.GetGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	existing, err := f.backend.FindConversation(ctx, ownerID, model.GroupConversationID(groupID))
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	conv := groupConversation(ownerID, group)
	b := NewBatch(
		PutConversation{Conversation: conv},
		AppendConversationChange{Change: model.NewConversationChange(&conv, model.ConversationOpCreated, v)},
	)
	if err := f.commit(ctx, "create_group_conversation", b,
		zap.Int64("owner", ownerID), zap.Int64("group", groupID), zap.Stringer("version", v)); err != nil {
		return nil, err
	}
	return &conv, nil
}

func groupConversation(ownerID int64, group *model.Group) model.Conversation {
	return model.Conversation{
		OwnerID:        ownerID,
		ConversationID: model.GroupConversationID(group.GroupID),
		Target:         model.GroupTarget(group.GroupID),
		Name:           group.Name,
		Avatar:         group.Avatar,
	}
}

// GetConversation 会话不存在返回 ErrConversationNotFound
func (f *Facade) GetConversation(ctx context.Context, ownerID, conversationID int64) (*model.Conversation, error) {
	conv, err := f.backend.FindConversation(ctx, ownerID, conversationID)
	if err != nil {
		return nil, err
	}
	if conv == nil {
		return nil, errorx.Newf(errorx.CodeConversationNotExist, "会话 %d 不存在 owner=%d", conversationID, ownerID)
	}
	return conv, nil
}

// GetConversations 按会话 ID 分页
func (f *Facade) GetConversations(ctx context.Context, ownerID int64, req model.PageRequest) (*model.Page[model.Conversation], error) {
	return paginate(ctx, req,
		func(ctx context.Context, after int64, limit int) ([]model.Conversation, error) {
			return f.backend.ListConversations(ctx, ownerID, after, limit)
		},
		func(c model.Conversation) int64 { return c.ConversationID },
	)
}

// MarkLastRead 更新已读位置并记日志，提交后失效未读数缓存
func (f *Facade) MarkLastRead(ctx context.Context, conversationID, ownerID, messageID int64, v model.Version) error {
	if err := validateIDs(conversationID, ownerID, messageID); err != nil {
		return err
	}
	conv, err := f.GetConversation(ctx, ownerID, conversationID)
	if err != nil {
		return err
	}
	conv.LastReadMessageID = messageID
	b := NewBatch(
		PutConversation{Conversation: *conv},
		AppendConversationChange{Change: model.NewConversationChange(conv, model.ConversationOpLastReadUpdated, v)},
	)
	if err := f.commit(ctx, "mark_last_read", b,
		zap.Int64("owner", ownerID), zap.Int64("conversation", conversationID), zap.Int64("message", messageID)); err != nil {
		return err
	}
	f.cache.InvalidateUnreadCount(ctx, ownerID, conversationID)
	return nil
}

// GetConversationChanges 返回 version > after 的会话变更
func (f *Facade) GetConversationChanges(ctx context.Context, ownerID int64, after model.Version, limit int) ([]model.ConversationVersionChange, error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return f.backend.ListConversationChanges(ctx, ownerID, after, limit)
}

// SyncConversations 会话增量同步
func (f *Facade) SyncConversations(ctx context.Context, ownerID int64, afterVersion string, limit int) (*model.SyncResult[model.ConversationVersionChange], error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return syncFeed(ctx, afterVersion, limit, feed[model.ConversationVersionChange]{
		latest: func(ctx context.Context) (model.Version, error) {
			return f.backend.LatestConversationVersion(ctx, ownerID)
		},
		changes: func(ctx context.Context, after model.Version, limit int) ([]model.ConversationVersionChange, error) {
			return f.backend.ListConversationChanges(ctx, ownerID, after, limit)
		},
		version: func(c model.ConversationVersionChange) model.Version { return c.Version },
	})
}

func (f *Facade) GetLatestConversationVersion(ctx context.Context, ownerID int64) (model.Version, bool, error) {
	return latestOrAbsent(f.backend.LatestConversationVersion(ctx, ownerID))
}
