package store

import (
	"context"
	"math"

	"go.uber.org/zap"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// ====== 群组写入 ======

// CreateGroup 写入群组、全部初始成员和一条版本日志
// 日志明细为 [GROUP_CREATED, MEMBER_JOINED x N]
// 成员侧的群摘要与会话由 CreateGroupMembersProfile 另行创建
func (f *Facade) CreateGroup(ctx context.Context, group model.Group, members []model.GroupMember, v model.Version) error {
	if err := validateStruct(group); err != nil {
		return err
	}
	seen := make(map[int64]struct{}, len(members))
	for i := range members {
		if err := validateStruct(members[i]); err != nil {
			return err
		}
		if _, dup := seen[members[i].UserID]; dup {
			return errorx.Newf(errorx.CodeInvalidParam, "群成员重复: %d", members[i].UserID)
		}
		seen[members[i].UserID] = struct{}{}
	}
	existing, err := f.backend.FindGroup(ctx, group.GroupID)
	if err != nil {
		return err
	}
	if existing != nil {
		return errorx.Newf(errorx.CodeInvalidParam, "群组 %d 已存在", group.GroupID)
	}

	details := make([]model.ChangeDetail, 0, len(members)+1)
	details = append(details, model.ChangeDetail{
		Operation: model.GroupOpCreated,
		Name:      model.Ptr(group.Name),
		Avatar:    model.Ptr(group.Avatar),
	})
	b := NewBatch(PutGroup{Group: group})
	for _, m := range members {
		m.GroupID = group.GroupID
		b.Add(PutGroupMember{Member: m})
		details = append(details, memberJoined(m))
	}
	b.Add(AppendGroupChange{Change: model.GroupVersionChange{GroupID: group.GroupID, Version: v, Details: details}})

	return f.commit(ctx, "create_group", b,
		zap.Int64("group", group.GroupID), zap.Int("members", len(members)), zap.Stringer("version", v))
}

// CreateGroupMembersProfile 为每个成员创建群摘要与群聊会话
// 每个成员一个独立批次，中途失败时已提交的成员保持生效
// 重试时已存在的群摘要与会话保持不变，不重复记日志
func (f *Facade) CreateGroupMembersProfile(ctx context.Context, groupID int64, userIDs []int64, v model.Version) error {
	group, err := f.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	for _, userID := range userIDs {
		if _, err := f.GetGroupMember(ctx, groupID, userID); err != nil {
			return err
		}
		b := NewBatch()
		if err := f.addMemberProfile(ctx, b, group, userID, v); err != nil {
			return err
		}
		if b.Len() == 0 {
			continue
		}
		if err := f.commit(ctx, "create_group_member_profile", b,
			zap.Int64("group", groupID), zap.Int64("user", userID), zap.Stringer("version", v)); err != nil {
			return err
		}
	}
	return nil
}

// addMemberProfile 成员侧：群摘要 + 用户群日志 + 群聊会话 + 会话日志
// 已存在的行跳过
func (f *Facade) addMemberProfile(ctx context.Context, b *Batch, group *model.Group, userID int64, v model.Version) error {
	existingUG, err := f.backend.FindUserGroup(ctx, userID, group.GroupID)
	if err != nil {
		return err
	}
	if existingUG == nil {
		b.Add(
			PutUserGroup{UserGroup: model.UserGroup{
				UserID:      userID,
				GroupID:     group.GroupID,
				GroupName:   group.Name,
				GroupAvatar: group.Avatar,
			}},
			AppendUserGroupChange{Change: model.UserGroupVersionChange{
				UserID:      userID,
				Version:     v,
				GroupID:     group.GroupID,
				Operation:   model.UserGroupOpJoined,
				GroupName:   model.Ptr(group.Name),
				GroupAvatar: model.Ptr(group.Avatar),
			}},
		)
	}

	existingConv, err := f.backend.FindConversation(ctx, userID, model.GroupConversationID(group.GroupID))
	if err != nil {
		return err
	}
	if existingConv == nil {
		conv := groupConversation(userID, group)
		b.Add(
			PutConversation{Conversation: conv},
			AppendConversationChange{Change: model.NewConversationChange(&conv, model.ConversationOpCreated, v)},
		)
	}
	return nil
}

// JoinGroup 成员入群：成员行、群日志、群摘要、群聊会话及各自日志同批提交
func (f *Facade) JoinGroup(ctx context.Context, groupID int64, member model.GroupMember, v model.Version) error {
	if err := validateStruct(member); err != nil {
		return err
	}
	group, err := f.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	existing, err := f.backend.FindGroupMember(ctx, groupID, member.UserID)
	if err != nil {
		return err
	}
	if existing != nil {
		return errorx.Newf(errorx.CodeAlreadyGroupMember, "用户 %d 已在群 %d 中", member.UserID, groupID)
	}

	member.GroupID = groupID
	b := NewBatch(
		PutGroupMember{Member: member},
		AppendGroupChange{Change: model.GroupVersionChange{
			GroupID: groupID,
			Version: v,
			Details: []model.ChangeDetail{memberJoined(member)},
		}},
	)
	if err := f.addMemberProfile(ctx, b, group, member.UserID, v); err != nil {
		return err
	}
	return f.commit(ctx, "join_group", b,
		zap.Int64("group", groupID), zap.Int64("user", member.UserID), zap.Stringer("version", v))
}

// RemoveGroupMember 成员退群，入群的逆操作
func (f *Facade) RemoveGroupMember(ctx context.Context, groupID, userID int64, v model.Version) error {
	if _, err := f.GetGroupMember(ctx, groupID, userID); err != nil {
		return err
	}
	b := NewBatch(
		DeleteGroupMember{GroupID: groupID, UserID: userID},
		AppendGroupChange{Change: model.GroupVersionChange{
			GroupID: groupID,
			Version: v,
			Details: []model.ChangeDetail{{Operation: model.GroupOpMemberQuit, UserID: model.Ptr(userID)}},
		}},
		DeleteUserGroup{UserID: userID, GroupID: groupID},
		AppendUserGroupChange{Change: model.UserGroupVersionChange{
			UserID:    userID,
			Version:   v,
			GroupID:   groupID,
			Operation: model.UserGroupOpQuit,
		}},
	)
	convID := model.GroupConversationID(groupID)
	conv, err := f.backend.FindConversation(ctx, userID, convID)
	if err != nil {
		return err
	}
	if conv != nil {
		b.Add(
			DeleteConversation{OwnerID: userID, ConversationID: convID},
			AppendConversationChange{Change: model.NewConversationChange(conv, model.ConversationOpRemoved, v)},
		)
	}
	return f.commit(ctx, "remove_group_member", b,
		zap.Int64("group", groupID), zap.Int64("user", userID), zap.Stringer("version", v))
}

// UpdateGroupMemberName 修改群内昵称
func (f *Facade) UpdateGroupMemberName(ctx context.Context, groupID, userID int64, name string, v model.Version) error {
	return f.updateGroupMember(ctx, groupID, userID, v, func(m *model.GroupMember) model.ChangeDetail {
		m.Name = name
		return model.ChangeDetail{Operation: model.GroupOpMemberNameUpdated, UserID: model.Ptr(userID), Name: model.Ptr(name)}
	})
}

// UpdateGroupMemberAvatar 修改群内头像
func (f *Facade) UpdateGroupMemberAvatar(ctx context.Context, groupID, userID int64, avatar string, v model.Version) error {
	return f.updateGroupMember(ctx, groupID, userID, v, func(m *model.GroupMember) model.ChangeDetail {
		m.Avatar = avatar
		return model.ChangeDetail{Operation: model.GroupOpMemberAvatarUpdated, UserID: model.Ptr(userID), Avatar: model.Ptr(avatar)}
	})
}

func (f *Facade) updateGroupMember(ctx context.Context, groupID, userID int64, v model.Version, apply func(*model.GroupMember) model.ChangeDetail) error {
	member, err := f.GetGroupMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	detail := apply(member)
	if err := validateStruct(member); err != nil {
		return err
	}
	b := NewBatch(
		PutGroupMember{Member: *member},
		AppendGroupChange{Change: model.GroupVersionChange{GroupID: groupID, Version: v, Details: []model.ChangeDetail{detail}}},
	)
	return f.commit(ctx, detail.Operation.String(), b,
		zap.Int64("group", groupID), zap.Int64("user", userID), zap.Stringer("version", v))
}

// UpdateGroupName 只修改群组规范信息并记群日志
// 各成员的群摘要与会话名称通过 UpdateUserGroupName 逐个扇出
func (f *Facade) UpdateGroupName(ctx context.Context, groupID int64, name string, v model.Version) error {
	return f.updateGroup(ctx, groupID, v, func(g *model.Group) model.ChangeDetail {
		g.Name = name
		return model.ChangeDetail{Operation: model.GroupOpNameUpdated, Name: model.Ptr(name)}
	})
}

// UpdateGroupAvatar 只修改群组规范信息并记群日志
func (f *Facade) UpdateGroupAvatar(ctx context.Context, groupID int64, avatar string, v model.Version) error {
	return f.updateGroup(ctx, groupID, v, func(g *model.Group) model.ChangeDetail {
		g.Avatar = avatar
		return model.ChangeDetail{Operation: model.GroupOpAvatarUpdated, Avatar: model.Ptr(avatar)}
	})
}

func (f *Facade) updateGroup(ctx context.Context, groupID int64, v model.Version, apply func(*model.Group) model.ChangeDetail) error {
	group, err := f.GetGroup(ctx, groupID)
	if err != nil {
		return err
	}
	detail := apply(group)
	if err := validateStruct(group); err != nil {
		return err
	}
	b := NewBatch(
		PutGroup{Group: *group},
		AppendGroupChange{Change: model.GroupVersionChange{GroupID: groupID, Version: v, Details: []model.ChangeDetail{detail}}},
	)
	return f.commit(ctx, detail.Operation.String(), b, zap.Int64("group", groupID), zap.Stringer("version", v))
}

// UpdateUserGroupName 单个成员的扇出原语：群摘要、用户群日志、群聊会话名称、会话日志同批提交
// 以相同版本重放结果不变
func (f *Facade) UpdateUserGroupName(ctx context.Context, userID, groupID int64, name string, v model.Version) error {
	return f.updateUserGroup(ctx, userID, groupID, v, model.UserGroupOpNameUpdated, func(ug *model.UserGroup, c *model.Conversation) {
		ug.GroupName = name
		if c != nil {
			c.Name = name
		}
	})
}

// UpdateUserGroupAvatar 单个成员的扇出原语
func (f *Facade) UpdateUserGroupAvatar(ctx context.Context, userID, groupID int64, avatar string, v model.Version) error {
	return f.updateUserGroup(ctx, userID, groupID, v, model.UserGroupOpAvatarUpdated, func(ug *model.UserGroup, c *model.Conversation) {
		ug.GroupAvatar = avatar
		if c != nil {
			c.Avatar = avatar
		}
	})
}

func (f *Facade) updateUserGroup(
	ctx context.Context,
	userID, groupID int64,
	v model.Version,
	op model.UserGroupOperation,
	apply func(*model.UserGroup, *model.Conversation),
) error {
	ug, err := f.backend.FindUserGroup(ctx, userID, groupID)
	if err != nil {
		return err
	}
	if ug == nil {
		return errorx.Newf(errorx.CodeGroupMemberNotExist, "用户 %d 不在群 %d 中", userID, groupID)
	}
	conv, err := f.backend.FindConversation(ctx, userID, model.GroupConversationID(groupID))
	if err != nil {
		return err
	}
	apply(ug, conv)

	change := model.UserGroupVersionChange{UserID: userID, Version: v, GroupID: groupID, Operation: op}
	if op == model.UserGroupOpNameUpdated {
		change.GroupName = model.Ptr(ug.GroupName)
	} else {
		change.GroupAvatar = model.Ptr(ug.GroupAvatar)
	}
	b := NewBatch(PutUserGroup{UserGroup: *ug}, AppendUserGroupChange{Change: change})
	if conv != nil {
		convOp := model.ConversationOpNameUpdated
		if op == model.UserGroupOpAvatarUpdated {
			convOp = model.ConversationOpAvatarUpdated
		}
		b.Add(
			PutConversation{Conversation: *conv},
			AppendConversationChange{Change: model.NewConversationChange(conv, convOp, v)},
		)
	}
	return f.commit(ctx, op.String(), b,
		zap.Int64("group", groupID), zap.Int64("user", userID), zap.Stringer("version", v))
}

func memberJoined(m model.GroupMember) model.ChangeDetail {
	return model.ChangeDetail{
		Operation: model.GroupOpMemberJoined,
		UserID:    model.Ptr(m.UserID),
		Name:      model.Ptr(m.Name),
		Avatar:    model.Ptr(m.Avatar),
	}
}

// ====== 群组读取 ======

// GetGroup 群组不存在返回 ErrGroupNotFound
func (f *Facade) GetGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	group, err := f.backend.FindGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, errorx.Newf(errorx.CodeGroupNotExist, "群组 %d 不存在", groupID)
	}
	return group, nil
}

// GetGroupMember 成员不存在返回 ErrGroupMemberNotFound
func (f *Facade) GetGroupMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	member, err := f.backend.FindGroupMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, errorx.Newf(errorx.CodeGroupMemberNotExist, "用户 %d 不在群 %d 中", userID, groupID)
	}
	return member, nil
}

// GetGroupMembersInfo 全部成员，没有成员视为群组不存在
func (f *Facade) GetGroupMembersInfo(ctx context.Context, groupID int64) ([]model.GroupMember, error) {
	members, err := f.backend.ListGroupMembers(ctx, groupID, math.MinInt64, 0)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return nil, errorx.Newf(errorx.CodeGroupNotExist, "群组 %d 不存在或没有成员", groupID)
	}
	return members, nil
}

// GetGroupMemberIDs 全部成员 ID，没有成员视为群组不存在
func (f *Facade) GetGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error) {
	members, err := f.GetGroupMembersInfo(ctx, groupID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, m := range members {
		ids[i] = m.UserID
	}
	return ids, nil
}

// GetGroupMembers 按用户 ID 分页
func (f *Facade) GetGroupMembers(ctx context.Context, groupID int64, req model.PageRequest) (*model.Page[model.GroupMember], error) {
	return paginate(ctx, req,
		func(ctx context.Context, after int64, limit int) ([]model.GroupMember, error) {
			return f.backend.ListGroupMembers(ctx, groupID, after, limit)
		},
		func(m model.GroupMember) int64 { return m.UserID },
	)
}

// GetGroupChanges 返回 version > after 的群组变更
func (f *Facade) GetGroupChanges(ctx context.Context, groupID int64, after model.Version, limit int) ([]model.GroupVersionChange, error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return f.backend.ListGroupChanges(ctx, groupID, after, limit)
}

// SyncGroup 群组增量同步
func (f *Facade) SyncGroup(ctx context.Context, groupID int64, afterVersion string, limit int) (*model.SyncResult[model.GroupVersionChange], error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return syncFeed(ctx, afterVersion, limit, feed[model.GroupVersionChange]{
		latest: func(ctx context.Context) (model.Version, error) {
			return f.backend.LatestGroupVersion(ctx, groupID)
		},
		changes: func(ctx context.Context, after model.Version, limit int) ([]model.GroupVersionChange, error) {
			return f.backend.ListGroupChanges(ctx, groupID, after, limit)
		},
		version: func(c model.GroupVersionChange) model.Version { return c.Version },
	})
}

func (f *Facade) GetLatestGroupVersion(ctx context.Context, groupID int64) (model.Version, bool, error) {
	return latestOrAbsent(f.backend.LatestGroupVersion(ctx, groupID))
}

// GetUserGroups 用户加入的群，按群号分页
func (f *Facade) GetUserGroups(ctx context.Context, userID int64, req model.PageRequest) (*model.Page[model.UserGroup], error) {
	return paginate(ctx, req,
		func(ctx context.Context, after int64, limit int) ([]model.UserGroup, error) {
			return f.backend.ListUserGroups(ctx, userID, after, limit)
		},
		func(ug model.UserGroup) int64 { return ug.GroupID },
	)
}

// GetUserGroupChanges 返回 version > after 的用户群组变更
func (f *Facade) GetUserGroupChanges(ctx context.Context, userID int64, after model.Version, limit int) ([]model.UserGroupVersionChange, error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return f.backend.ListUserGroupChanges(ctx, userID, after, limit)
}

// SyncUserGroups 用户群组增量同步
func (f *Facade) SyncUserGroups(ctx context.Context, userID int64, afterVersion string, limit int) (*model.SyncResult[model.UserGroupVersionChange], error) {
	if err := f.checkSyncLimit(limit); err != nil {
		return nil, err
	}
	return syncFeed(ctx, afterVersion, limit, feed[model.UserGroupVersionChange]{
		latest: func(ctx context.Context) (model.Version, error) {
			return f.backend.LatestUserGroupVersion(ctx, userID)
		},
		changes: func(ctx context.Context, after model.Version, limit int) ([]model.UserGroupVersionChange, error) {
			return f.backend.ListUserGroupChanges(ctx, userID, after, limit)
		},
		version: func(c model.UserGroupVersionChange) model.Version { return c.Version },
	})
}

func (f *Facade) GetLatestUserGroupVersion(ctx context.Context, userID int64) (model.Version, bool, error) {
	return latestOrAbsent(f.backend.LatestUserGroupVersion(ctx, userID))
}
