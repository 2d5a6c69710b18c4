package store

import (
	"context"

	"go.uber.org/zap"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// ====== 关系读取 ======

// GetRelation 关系不存在返回 ErrRelationNotFound
func (f *Facade) GetRelation(ctx context.Context, sourceUserID, targetUserID int64) (*model.Relation, error) {
	rel, err := f.backend.FindRelation(ctx, sourceUserID, targetUserID)
	if err != nil {
		return nil, err
	}
	if rel == nil {
		return nil, errorx.Newf(errorx.CodeRelationNotExist, "关系 %d -> %d 不存在", sourceUserID, targetUserID)
	}
	return rel, nil
}

// GetRelations 按对端用户 ID 分页
func (f *Facade) GetRelations(ctx context.Context, sourceUserID int64, req model.PageRequest) (*model.Page[model.Relation], error) {
	return paginate(ctx, req,
		func(ctx context.Context, after int64, limit int) ([]model.Relation, error) {
			return f.backend.ListRelations(ctx, sourceUserID, after, limit)
		},
		func(r model.Relation) int64 { return r.TargetUserID },
	)
}

// GetRelationChanges 返回 version > after 的关系变更，after 为 NoVersion 时从头开始
func (f *Facade) GetRelationChanges(ctx context.Context, sourceUserID int64, after model.Version, limit int) ([]model.RelationVersionChange, error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return f.backend.ListRelationChanges(ctx, sourceUserID, after, limit)
}

// SyncRelations 关系增量同步
func (f *Facade) SyncRelations(ctx context.Context, sourceUserID int64, afterVersion string, limit int) (*model.SyncResult[model.RelationVersionChange], error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return syncFeed(ctx, afterVersion, limit, feed[model.RelationVersionChange]{
		latest: func(ctx context.Context) (model.Version, error) {
			return f.backend.LatestRelationVersion(ctx, sourceUserID)
		},
		changes: func(ctx context.Context, after model.Version, limit int) ([]model.RelationVersionChange, error) {
			return f.backend.ListRelationChanges(ctx, sourceUserID, after, limit)
		},
		version: func(c model.RelationVersionChange) model.Version { return c.Version },
	})
}

// GetLatestRelationVersion 日志为空时 ok 为 false
func (f *Facade) GetLatestRelationVersion(ctx context.Context, sourceUserID int64) (model.Version, bool, error) {
	return latestOrAbsent(f.backend.LatestRelationVersion(ctx, sourceUserID))
}

// ====== 关系状态迁移 ======

// AddFriend 加好友，昵称与头像取自对端当前资料，备注名取自 ev.RemarkName
func (f *Facade) AddFriend(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpAddFriend, ev, v)
}

// RemoveFriend 删除好友，整行删除
func (f *Facade) RemoveFriend(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpRemoveFriend, ev, v)
}

// BlockFriend 拉黑已有关系的用户
func (f *Facade) BlockFriend(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpBlockFriend, ev, v)
}

// BlockStranger 拉黑陌生人，昵称与头像取自对端当前资料
func (f *Facade) BlockStranger(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpBlockStranger, ev, v)
}

// UnblockUser 取消拉黑，位图清零时删除该行
func (f *Facade) UnblockUser(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpUnblock, ev, v)
}

// HideBlockedUser 隐藏已拉黑的用户，同时解除好友
func (f *Facade) HideBlockedUser(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.transitRelation(ctx, model.RelationOpHideBlocked, ev, v)
}

// UpdateFriendRemarkName 修改备注名，同步单聊会话名称
func (f *Facade) UpdateFriendRemarkName(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.updateRelationField(ctx, model.RelationOpUpdateRemarkName, ev, v)
}

// UpdateFriendNickName 对端改昵称后更新关系行，同步单聊会话名称
func (f *Facade) UpdateFriendNickName(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.updateRelationField(ctx, model.RelationOpUpdateNickName, ev, v)
}

// UpdateFriendAvatar 对端改头像后更新关系行，同步单聊会话头像
func (f *Facade) UpdateFriendAvatar(ctx context.Context, ev model.RelationEvent, v model.Version) error {
	return f.updateRelationField(ctx, model.RelationOpUpdateAvatar, ev, v)
}

// transitRelation 读当前行 -> 状态机 -> 关系行与日志同批提交
func (f *Facade) transitRelation(ctx context.Context, op model.RelationOperation, ev model.RelationEvent, v model.Version) error {
	if err := validateStruct(ev); err != nil {
		return err
	}
	cur, err := f.backend.FindRelation(ctx, ev.SourceUserID, ev.TargetUserID)
	if err != nil {
		return err
	}
	next, err := nextRelationFlags(op, cur)
	if err != nil {
		zap.L().Debug("relation transition rejected",
			zap.Stringer("op", op),
			zap.Int64("source", ev.SourceUserID),
			zap.Int64("target", ev.TargetUserID),
			zap.Error(err))
		return err
	}

	change := model.RelationVersionChange{
		SourceUserID: ev.SourceUserID,
		Version:      v,
		TargetUserID: ev.TargetUserID,
		Operation:    op,
		Flags:        model.Ptr(next),
	}
	b := NewBatch()
	if next == 0 {
		b.Add(DeleteRelation{SourceUserID: ev.SourceUserID, TargetUserID: ev.TargetUserID})
	} else {
		rel := model.Relation{SourceUserID: ev.SourceUserID, TargetUserID: ev.TargetUserID}
		if cur != nil {
			rel = *cur
		}
		rel.Flags = next

		// 新建行与重新加好友时，昵称头像取对端当前资料
		if cur == nil || op == model.RelationOpAddFriend {
			profile, err := f.GetUserProfile(ctx, ev.TargetUserID)
			if err != nil {
				return err
			}
			rel.NickName = profile.NickName
			rel.Avatar = profile.Avatar
			change.NickName = model.Ptr(rel.NickName)
			change.Avatar = model.Ptr(rel.Avatar)
		}
		if op == model.RelationOpAddFriend && ev.RemarkName != "" {
			rel.RemarkName = ev.RemarkName
			change.RemarkName = model.Ptr(rel.RemarkName)
		}
		b.Add(PutRelation{Relation: rel})
	}
	b.Add(AppendRelationChange{Change: change})

	return f.commit(ctx, op.String(), b,
		zap.Int64("source", ev.SourceUserID),
		zap.Int64("target", ev.TargetUserID),
		zap.Stringer("version", v))
}

// updateRelationField 修改关系行上的展示字段
// 若单聊会话已存在，会话名称（备注名优先）或头像在同一批次内更新并记会话日志
func (f *Facade) updateRelationField(ctx context.Context, op model.RelationOperation, ev model.RelationEvent, v model.Version) error {
	if err := validateStruct(ev); err != nil {
		return err
	}
	cur, err := f.backend.FindRelation(ctx, ev.SourceUserID, ev.TargetUserID)
	if err != nil {
		return err
	}
	if _, err := nextRelationFlags(op, cur); err != nil {
		return err
	}

	rel := *cur
	change := model.RelationVersionChange{
		SourceUserID: ev.SourceUserID,
		Version:      v,
		TargetUserID: ev.TargetUserID,
		Operation:    op,
	}
	switch op {
	case model.RelationOpUpdateRemarkName:
		rel.RemarkName = ev.RemarkName
		change.RemarkName = model.Ptr(ev.RemarkName)
	case model.RelationOpUpdateNickName:
		rel.NickName = ev.NickName
		change.NickName = model.Ptr(ev.NickName)
	case model.RelationOpUpdateAvatar:
		rel.Avatar = ev.Avatar
		change.Avatar = model.Ptr(ev.Avatar)
	}
	b := NewBatch(PutRelation{Relation: rel}, AppendRelationChange{Change: change})

	convID := model.SingleConversationID(ev.SourceUserID, ev.TargetUserID)
	conv, err := f.backend.FindConversation(ctx, ev.SourceUserID, convID)
	if err != nil {
		return err
	}
	if conv != nil {
		updated := *conv
		convOp := model.ConversationOpNameUpdated
		if op == model.RelationOpUpdateAvatar {
			updated.Avatar = rel.Avatar
			convOp = model.ConversationOpAvatarUpdated
		} else {
			updated.Name = rel.DisplayName()
		}
		if updated != *conv {
			b.Add(
				PutConversation{Conversation: updated},
				AppendConversationChange{Change: model.NewConversationChange(&updated, convOp, v)},
			)
		}
	}

	return f.commit(ctx, op.String(), b,
		zap.Int64("source", ev.SourceUserID),
		zap.Int64("target", ev.TargetUserID),
		zap.Stringer("version", v))
}
