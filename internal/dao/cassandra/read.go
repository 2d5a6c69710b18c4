package cassandra

import (
	"context"

	"im_storage/internal/model"
)

// ====== 用户 ======

func (b *Backend) FindUser(ctx context.Context, userID int64) (*model.User, error) {
	u := model.User{UserID: userID}
	var role, status int8
	found, err := b.scanOne(ctx, `SELECT account, password_hash, role, status FROM im_user WHERE user_id = ?`,
		[]any{userID}, &u.Account, &u.PasswordHash, &role, &status)
	if err != nil || !found {
		return nil, err
	}
	u.Role = model.UserRole(role)
	u.Status = model.UserStatus(status)
	return &u, nil
}

func (b *Backend) FindUserByAccount(ctx context.Context, account string) (*model.User, error) {
	var userID int64
	found, err := b.scanOne(ctx, `SELECT user_id FROM user_by_account WHERE account = ?`, []any{account}, &userID)
	if err != nil || !found {
		return nil, err
	}
	return b.FindUser(ctx, userID)
}

func (b *Backend) FindUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	p := model.UserProfile{UserID: userID}
	found, err := b.scanOne(ctx, `SELECT account, nick_name, avatar FROM user_profile WHERE user_id = ?`,
		[]any{userID}, &p.Account, &p.NickName, &p.Avatar)
	if err != nil || !found {
		return nil, err
	}
	return &p, nil
}

func (b *Backend) FindBotConfig(ctx context.Context, userID int64) (*model.BotConfig, error) {
	c := model.BotConfig{UserID: userID}
	var mode int8
	found, err := b.scanOne(ctx,
		`SELECT webhook_url, api_key, description, response_mode, created_at, updated_at FROM bot_config WHERE user_id = ?`,
		[]any{userID}, &c.WebhookURL, &c.APIKey, &c.Description, &mode, &c.CreatedAt, &c.UpdatedAt)
	if err != nil || !found {
		return nil, err
	}
	c.ResponseMode = model.BotResponseMode(mode)
	return &c, nil
}

// ====== 关系 ======

func (b *Backend) FindRelation(ctx context.Context, sourceUserID, targetUserID int64) (*model.Relation, error) {
	r := model.Relation{SourceUserID: sourceUserID, TargetUserID: targetUserID}
	var flags int8
	found, err := b.scanOne(ctx,
		`SELECT nick_name, avatar, remark_name, flags FROM relation WHERE source_user_id = ? AND target_user_id = ?`,
		[]any{sourceUserID, targetUserID}, &r.NickName, &r.Avatar, &r.RemarkName, &flags)
	if err != nil || !found {
		return nil, err
	}
	r.Flags = model.RelationFlags(flags)
	return &r, nil
}

func (b *Backend) ListRelations(ctx context.Context, sourceUserID, afterTargetUserID int64, limit int) ([]model.Relation, error) {
	iter := b.iter(ctx,
		`SELECT target_user_id, nick_name, avatar, remark_name, flags FROM relation WHERE source_user_id = ? AND target_user_id > ?`,
		limit, sourceUserID, afterTargetUserID)
	var (
		out   []model.Relation
		r     = model.Relation{SourceUserID: sourceUserID}
		flags int8
	)
	for iter.Scan(&r.TargetUserID, &r.NickName, &r.Avatar, &r.RemarkName, &flags) {
		r.Flags = model.RelationFlags(flags)
		out = append(out, r)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询关系列表 %d", sourceUserID)
	}
	return out, nil
}

func (b *Backend) ListRelationChanges(ctx context.Context, sourceUserID int64, after model.Version, limit int) ([]model.RelationVersionChange, error) {
	iter := b.iter(ctx,
		`SELECT version, target_user_id, operation, nick_name, avatar, remark_name, flags
		FROM relation_version WHERE source_user_id = ? AND version > ?`,
		limit, sourceUserID, int64(after))
	var out []model.RelationVersionChange
	for {
		var (
			c       = model.RelationVersionChange{SourceUserID: sourceUserID}
			version int64
			op      int8
			flags   *int8
		)
		if !iter.Scan(&version, &c.TargetUserID, &op, &c.NickName, &c.Avatar, &c.RemarkName, &flags) {
			break
		}
		c.Version = model.Version(version)
		c.Operation = model.RelationOperation(op)
		if flags != nil {
			c.Flags = model.Ptr(model.RelationFlags(*flags))
		}
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询关系日志 %d", sourceUserID)
	}
	return out, nil
}

func (b *Backend) LatestRelationVersion(ctx context.Context, sourceUserID int64) (model.Version, error) {
	return b.latestVersion(ctx, "relation_version", "source_user_id", sourceUserID)
}

// ====== 会话 ======

func (b *Backend) FindConversation(ctx context.Context, ownerID, conversationID int64) (*model.Conversation, error) {
	var (
		c               = model.Conversation{OwnerID: ownerID, ConversationID: conversationID}
		peerID, groupID *int64
	)
	found, err := b.scanOne(ctx,
		`SELECT peer_id, group_id, last_read_message_id, name, avatar FROM conversation WHERE owner_id = ? AND conversation_id = ?`,
		[]any{ownerID, conversationID}, &peerID, &groupID, &c.LastReadMessageID, &c.Name, &c.Avatar)
	if err != nil || !found {
		return nil, err
	}
	if c.Target, err = model.TargetFromColumns(peerID, groupID); err != nil {
		return nil, err
	}
	return &c, nil
}

func (b *Backend) ListConversations(ctx context.Context, ownerID, afterConversationID int64, limit int) ([]model.Conversation, error) {
	iter := b.iter(ctx,
		`SELECT conversation_id, peer_id, group_id, last_read_message_id, name, avatar
		FROM conversation WHERE owner_id = ? AND conversation_id > ?`,
		limit, ownerID, afterConversationID)
	var out []model.Conversation
	for {
		var (
			c               = model.Conversation{OwnerID: ownerID}
			peerID, groupID *int64
		)
		if !iter.Scan(&c.ConversationID, &peerID, &groupID, &c.LastReadMessageID, &c.Name, &c.Avatar) {
			break
		}
		target, err := model.TargetFromColumns(peerID, groupID)
		if err != nil {
			_ = iter.Close()
			return nil, err
		}
		c.Target = target
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询会话列表 %d", ownerID)
	}
	return out, nil
}

func (b *Backend) ListConversationChanges(ctx context.Context, ownerID int64, after model.Version, limit int) ([]model.ConversationVersionChange, error) {
	iter := b.iter(ctx,
		`SELECT version, conversation_id, operation, peer_id, group_id, last_read_message_id, name, avatar
		FROM conversation_version WHERE owner_id = ? AND version > ?`,
		limit, ownerID, int64(after))
	var out []model.ConversationVersionChange
	for {
		var (
			c               = model.ConversationVersionChange{OwnerID: ownerID}
			version         int64
			op              int8
			peerID, groupID *int64
		)
		if !iter.Scan(&version, &c.ConversationID, &op, &peerID, &groupID, &c.LastReadMessageID, &c.Name, &c.Avatar) {
			break
		}
		target, err := model.TargetFromColumns(peerID, groupID)
		if err != nil {
			_ = iter.Close()
			return nil, err
		}
		c.Version = model.Version(version)
		c.Operation = model.ConversationOperation(op)
		c.Target = target
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询会话日志 %d", ownerID)
	}
	return out, nil
}

func (b *Backend) LatestConversationVersion(ctx context.Context, ownerID int64) (model.Version, error) {
	return b.latestVersion(ctx, "conversation_version", "owner_id", ownerID)
}

// ====== 群组 ======

func (b *Backend) FindGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	g := model.Group{GroupID: groupID}
	found, err := b.scanOne(ctx, `SELECT name, avatar FROM group_info WHERE group_id = ?`, []any{groupID}, &g.Name, &g.Avatar)
	if err != nil || !found {
		return nil, err
	}
	return &g, nil
}

func (b *Backend) FindGroupMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	m := model.GroupMember{GroupID: groupID, UserID: userID}
	found, err := b.scanOne(ctx, `SELECT name, avatar FROM group_member WHERE group_id = ? AND user_id = ?`,
		[]any{groupID, userID}, &m.Name, &m.Avatar)
	if err != nil || !found {
		return nil, err
	}
	return &m, nil
}

func (b *Backend) ListGroupMembers(ctx context.Context, groupID, afterUserID int64, limit int) ([]model.GroupMember, error) {
	iter := b.iter(ctx, `SELECT user_id, name, avatar FROM group_member WHERE group_id = ? AND user_id > ?`,
		limit, groupID, afterUserID)
	var (
		out []model.GroupMember
		m   = model.GroupMember{GroupID: groupID}
	)
	for iter.Scan(&m.UserID, &m.Name, &m.Avatar) {
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询群成员列表 %d", groupID)
	}
	return out, nil
}

func (b *Backend) ListGroupChanges(ctx context.Context, groupID int64, after model.Version, limit int) ([]model.GroupVersionChange, error) {
	iter := b.iter(ctx, `SELECT version, details FROM group_version WHERE group_id = ? AND version > ?`,
		limit, groupID, int64(after))
	var out []model.GroupVersionChange
	for {
		var (
			version int64
			details []changeDetailUDT
		)
		if !iter.Scan(&version, &details) {
			break
		}
		out = append(out, model.GroupVersionChange{
			GroupID: groupID,
			Version: model.Version(version),
			Details: fromDetailUDTs(details),
		})
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询群组日志 %d", groupID)
	}
	return out, nil
}

func (b *Backend) LatestGroupVersion(ctx context.Context, groupID int64) (model.Version, error) {
	return b.latestVersion(ctx, "group_version", "group_id", groupID)
}

func (b *Backend) FindUserGroup(ctx context.Context, userID, groupID int64) (*model.UserGroup, error) {
	ug := model.UserGroup{UserID: userID, GroupID: groupID}
	found, err := b.scanOne(ctx, `SELECT group_name, group_avatar FROM user_group WHERE user_id = ? AND group_id = ?`,
		[]any{userID, groupID}, &ug.GroupName, &ug.GroupAvatar)
	if err != nil || !found {
		return nil, err
	}
	return &ug, nil
}

func (b *Backend) ListUserGroups(ctx context.Context, userID, afterGroupID int64, limit int) ([]model.UserGroup, error) {
	iter := b.iter(ctx, `SELECT group_id, group_name, group_avatar FROM user_group WHERE user_id = ? AND group_id > ?`,
		limit, userID, afterGroupID)
	var (
		out []model.UserGroup
		ug  = model.UserGroup{UserID: userID}
	)
	for iter.Scan(&ug.GroupID, &ug.GroupName, &ug.GroupAvatar) {
		out = append(out, ug)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询用户群组列表 %d", userID)
	}
	return out, nil
}

func (b *Backend) ListUserGroupChanges(ctx context.Context, userID int64, after model.Version, limit int) ([]model.UserGroupVersionChange, error) {
	iter := b.iter(ctx,
		`SELECT version, group_id, operation, group_name, group_avatar FROM user_group_version WHERE user_id = ? AND version > ?`,
		limit, userID, int64(after))
	var out []model.UserGroupVersionChange
	for {
		var (
			c       = model.UserGroupVersionChange{UserID: userID}
			version int64
			op      int8
		)
		if !iter.Scan(&version, &c.GroupID, &op, &c.GroupName, &c.GroupAvatar) {
			break
		}
		c.Version = model.Version(version)
		c.Operation = model.UserGroupOperation(op)
		out = append(out, c)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询用户群组日志 %d", userID)
	}
	return out, nil
}

func (b *Backend) LatestUserGroupVersion(ctx context.Context, userID int64) (model.Version, error) {
	return b.latestVersion(ctx, "user_group_version", "user_id", userID)
}

// ====== 消息 ======

const messageColumns = `message_id, sender_id, receiver_id, group_id, send_timestamp, type, text, file_url, file_name, command_type, command_data`

func messageDest(m *model.Message, typ *int8) []any {
	return []any{&m.MessageID, &m.SenderID, &m.ReceiverID, &m.GroupID, &m.SendTimestamp,
		typ, &m.Text, &m.FileURL, &m.FileName, &m.CommandType, &m.CommandData}
}

func (b *Backend) FindMessage(ctx context.Context, conversationID, messageID int64) (*model.Message, error) {
	m := model.Message{ConversationID: conversationID}
	var typ int8
	found, err := b.scanOne(ctx, `SELECT `+messageColumns+` FROM message WHERE conversation_id = ? AND message_id = ?`,
		[]any{conversationID, messageID}, messageDest(&m, &typ)...)
	if err != nil || !found {
		return nil, err
	}
	m.Type = model.MessageType(typ)
	return &m, nil
}

func (b *Backend) ListMessages(ctx context.Context, conversationID, beforeMessageID int64, limit int) ([]model.Message, error) {
	iter := b.iter(ctx, `SELECT `+messageColumns+` FROM message WHERE conversation_id = ? AND message_id < ?`,
		limit, conversationID, beforeMessageID)
	var out []model.Message
	for {
		m := model.Message{ConversationID: conversationID}
		var typ int8
		if !iter.Scan(messageDest(&m, &typ)...) {
			break
		}
		m.Type = model.MessageType(typ)
		out = append(out, m)
	}
	if err := iter.Close(); err != nil {
		return nil, wrapErrorf(err, "查询消息列表 %d", conversationID)
	}
	return out, nil
}
