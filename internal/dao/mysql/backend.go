package mysql

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/pkg/errorx"
)

// Backend store.Backend 的 GORM 实现
type Backend struct {
	db *gorm.DB
}

var _ store.Backend = (*Backend)(nil)

// NewBackend 包装已打开的 GORM 实例
func NewBackend(db *gorm.DB) *Backend {
	return &Backend{db: db}
}

// DB 返回底层 GORM 实例
func (b *Backend) DB() *gorm.DB {
	return b.db
}

func (b *Backend) Close() error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return wrapDBError(err, "获取连接池")
	}
	return sqlDB.Close()
}

// ====== 工作单元 ======

// Commit 在一个数据库事务内应用整个批次，任一操作失败则整体回滚
func (b *Backend) Commit(ctx context.Context, batch *store.Batch) error {
	err := b.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, op := range batch.Ops() {
			if err := applyOp(tx, op); err != nil {
				return err
			}
		}
		return nil
	})
	var codeErr *errorx.CodeError
	if err != nil && !errors.As(err, &codeErr) {
		return wrapDBError(err, "提交事务")
	}
	return err
}

func applyOp(tx *gorm.DB, op store.Op) error {
	switch o := op.(type) {
	case store.PutUser:
		// 用户只插入不覆盖，账号唯一索引冲突映射为 CodeUserExist
		err := tx.Create(toUserRow(&o.User)).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return errorx.Wrapf(err, errorx.CodeUserExist, "账号 %s 已存在", o.User.Account)
		}
		return wrapDBErrorf(err, "写入用户 %d", o.User.UserID)
	case store.PutUserProfile:
		p := o.Profile
		return upsert(tx, &userProfileRow{UserID: p.UserID, Account: p.Account, NickName: p.NickName, Avatar: p.Avatar}, "用户资料 %d", p.UserID)
	case store.PutBotConfig:
		return upsert(tx, toBotConfigRow(&o.Config), "机器人配置 %d", o.Config.UserID)

	case store.PutRelation:
		r := o.Relation
		return upsert(tx, &relationRow{
			SourceUserID: r.SourceUserID,
			TargetUserID: r.TargetUserID,
			NickName:     r.NickName,
			Avatar:       r.Avatar,
			RemarkName:   r.RemarkName,
			Flags:        uint8(r.Flags),
		}, "关系 %d->%d", r.SourceUserID, r.TargetUserID)
	case store.DeleteRelation:
		err := tx.Where("source_user_id = ? AND target_user_id = ?", o.SourceUserID, o.TargetUserID).
			Delete(&relationRow{}).Error
		return wrapDBErrorf(err, "删除关系 %d->%d", o.SourceUserID, o.TargetUserID)
	case store.AppendRelationChange:
		return upsert(tx, toRelationVersionRow(&o.Change), "关系日志 %d@%s", o.Change.SourceUserID, o.Change.Version)

	case store.PutConversation:
		return upsert(tx, toConversationRow(&o.Conversation), "会话 %d/%d", o.Conversation.OwnerID, o.Conversation.ConversationID)
	case store.DeleteConversation:
		err := tx.Where("owner_id = ? AND conversation_id = ?", o.OwnerID, o.ConversationID).
			Delete(&conversationRow{}).Error
		return wrapDBErrorf(err, "删除会话 %d/%d", o.OwnerID, o.ConversationID)
	case store.AppendConversationChange:
		return upsert(tx, toConversationVersionRow(&o.Change), "会话日志 %d@%s", o.Change.OwnerID, o.Change.Version)

	case store.PutGroup:
		g := o.Group
		return upsert(tx, &groupRow{GroupID: g.GroupID, Name: g.Name, Avatar: g.Avatar}, "群组 %d", g.GroupID)
	case store.PutGroupMember:
		m := o.Member
		return upsert(tx, &groupMemberRow{GroupID: m.GroupID, UserID: m.UserID, Name: m.Name, Avatar: m.Avatar}, "群成员 %d/%d", m.GroupID, m.UserID)
	case store.DeleteGroupMember:
		err := tx.Where("group_id = ? AND user_id = ?", o.GroupID, o.UserID).Delete(&groupMemberRow{}).Error
		return wrapDBErrorf(err, "删除群成员 %d/%d", o.GroupID, o.UserID)
	case store.AppendGroupChange:
		return upsert(tx, toGroupVersionRow(&o.Change), "群组日志 %d@%s", o.Change.GroupID, o.Change.Version)
	case store.PutUserGroup:
		ug := o.UserGroup
		return upsert(tx, &userGroupRow{UserID: ug.UserID, GroupID: ug.GroupID, GroupName: ug.GroupName, GroupAvatar: ug.GroupAvatar}, "用户群组 %d/%d", ug.UserID, ug.GroupID)
	case store.DeleteUserGroup:
		err := tx.Where("user_id = ? AND group_id = ?", o.UserID, o.GroupID).Delete(&userGroupRow{}).Error
		return wrapDBErrorf(err, "删除用户群组 %d/%d", o.UserID, o.GroupID)
	case store.AppendUserGroupChange:
		return upsert(tx, toUserGroupVersionRow(&o.Change), "用户群组日志 %d@%s", o.Change.UserID, o.Change.Version)

	case store.PutMessage:
		return upsert(tx, toMessageRow(&o.Message), "消息 %d/%d", o.Message.ConversationID, o.Message.MessageID)
	}
	return errorx.Newf(errorx.CodeDBError, "不支持的写操作 %T", op)
}

// upsert 按主键插入或整行覆盖，日志追加因此可以幂等重放
func upsert(tx *gorm.DB, row any, format string, args ...any) error {
	err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(row).Error
	return wrapDBErrorf(err, "写入"+format, args...)
}

// ====== 用户 ======

func (b *Backend) FindUser(ctx context.Context, userID int64) (*model.User, error) {
	var row userRow
	found, err := takeOne(b.db.WithContext(ctx).Where("user_id = ?", userID), &row, "查询用户 %d", userID)
	if err != nil || !found {
		return nil, err
	}
	return row.toModel(), nil
}

func (b *Backend) FindUserByAccount(ctx context.Context, account string) (*model.User, error) {
	var row userRow
	found, err := takeOne(b.db.WithContext(ctx).Where("account = ?", account), &row, "查询账号 %s", account)
	if err != nil || !found {
		return nil, err
	}
	return row.toModel(), nil
}

func (b *Backend) FindUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	var row userProfileRow
	found, err := takeOne(b.db.WithContext(ctx).Where("user_id = ?", userID), &row, "查询用户资料 %d", userID)
	if err != nil || !found {
		return nil, err
	}
	return &model.UserProfile{UserID: row.UserID, Account: row.Account, NickName: row.NickName, Avatar: row.Avatar}, nil
}

func (b *Backend) FindBotConfig(ctx context.Context, userID int64) (*model.BotConfig, error) {
	var row botConfigRow
	found, err := takeOne(b.db.WithContext(ctx).Where("user_id = ?", userID), &row, "查询机器人配置 %d", userID)
	if err != nil || !found {
		return nil, err
	}
	return row.toModel(), nil
}

// ====== 关系 ======

func (b *Backend) FindRelation(ctx context.Context, sourceUserID, targetUserID int64) (*model.Relation, error) {
	var row relationRow
	found, err := takeOne(b.db.WithContext(ctx).Where("source_user_id = ? AND target_user_id = ?", sourceUserID, targetUserID),
		&row, "查询关系 %d->%d", sourceUserID, targetUserID)
	if err != nil || !found {
		return nil, err
	}
	rel := relationToModel(&row)
	return &rel, nil
}

func relationToModel(r *relationRow) model.Relation {
	return model.Relation{
		SourceUserID: r.SourceUserID,
		TargetUserID: r.TargetUserID,
		NickName:     r.NickName,
		Avatar:       r.Avatar,
		RemarkName:   r.RemarkName,
		Flags:        model.RelationFlags(r.Flags),
	}
}

func (b *Backend) ListRelations(ctx context.Context, sourceUserID, afterTargetUserID int64, limit int) ([]model.Relation, error) {
	var rows []relationRow
	q := b.db.WithContext(ctx).
		Where("source_user_id = ? AND target_user_id > ?", sourceUserID, afterTargetUserID).
		Order("target_user_id ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询关系列表 %d", sourceUserID)
	}
	out := make([]model.Relation, len(rows))
	for i := range rows {
		out[i] = relationToModel(&rows[i])
	}
	return out, nil
}

func (b *Backend) ListRelationChanges(ctx context.Context, sourceUserID int64, after model.Version, limit int) ([]model.RelationVersionChange, error) {
	var rows []relationVersionRow
	q := b.db.WithContext(ctx).
		Where("source_user_id = ? AND version > ?", sourceUserID, int64(after)).
		Order("version ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询关系日志 %d", sourceUserID)
	}
	out := make([]model.RelationVersionChange, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestRelationVersion(ctx context.Context, sourceUserID int64) (model.Version, error) {
	return b.latestVersion(ctx, &relationVersionRow{}, "source_user_id", sourceUserID)
}

// latestVersion 日志为空时 MAX 返回 NULL，COALESCE 为 0
func (b *Backend) latestVersion(ctx context.Context, table any, keyColumn string, key int64) (model.Version, error) {
	var v int64
	err := b.db.WithContext(ctx).Model(table).
		Where(keyColumn+" = ?", key).
		Select("COALESCE(MAX(version), 0)").
		Scan(&v).Error
	if err != nil {
		return model.NoVersion, wrapDBErrorf(err, "查询最新版本 %s=%d", keyColumn, key)
	}
	return model.Version(v), nil
}

// ====== 会话 ======

func (b *Backend) FindConversation(ctx context.Context, ownerID, conversationID int64) (*model.Conversation, error) {
	var row conversationRow
	found, err := takeOne(b.db.WithContext(ctx).Where("owner_id = ? AND conversation_id = ?", ownerID, conversationID),
		&row, "查询会话 %d/%d", ownerID, conversationID)
	if err != nil || !found {
		return nil, err
	}
	conv, err := row.toModel()
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (b *Backend) ListConversations(ctx context.Context, ownerID, afterConversationID int64, limit int) ([]model.Conversation, error) {
	var rows []conversationRow
	q := b.db.WithContext(ctx).
		Where("owner_id = ? AND conversation_id > ?", ownerID, afterConversationID).
		Order("conversation_id ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话列表 %d", ownerID)
	}
	out := make([]model.Conversation, 0, len(rows))
	for i := range rows {
		conv, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (b *Backend) ListConversationChanges(ctx context.Context, ownerID int64, after model.Version, limit int) ([]model.ConversationVersionChange, error) {
	var rows []conversationVersionRow
	q := b.db.WithContext(ctx).
		Where("owner_id = ? AND version > ?", ownerID, int64(after)).
		Order("version ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询会话日志 %d", ownerID)
	}
	out := make([]model.ConversationVersionChange, 0, len(rows))
	for i := range rows {
		c, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (b *Backend) LatestConversationVersion(ctx context.Context, ownerID int64) (model.Version, error) {
	return b.latestVersion(ctx, &conversationVersionRow{}, "owner_id", ownerID)
}

// ====== 群组 ======

func (b *Backend) FindGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	var row groupRow
	found, err := takeOne(b.db.WithContext(ctx).Where("group_id = ?", groupID), &row, "查询群组 %d", groupID)
	if err != nil || !found {
		return nil, err
	}
	return &model.Group{GroupID: row.GroupID, Name: row.Name, Avatar: row.Avatar}, nil
}

func (b *Backend) FindGroupMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	var row groupMemberRow
	found, err := takeOne(b.db.WithContext(ctx).Where("group_id = ? AND user_id = ?", groupID, userID),
		&row, "查询群成员 %d/%d", groupID, userID)
	if err != nil || !found {
		return nil, err
	}
	return &model.GroupMember{GroupID: row.GroupID, UserID: row.UserID, Name: row.Name, Avatar: row.Avatar}, nil
}

func (b *Backend) ListGroupMembers(ctx context.Context, groupID, afterUserID int64, limit int) ([]model.GroupMember, error) {
	var rows []groupMemberRow
	q := b.db.WithContext(ctx).
		Where("group_id = ? AND user_id > ?", groupID, afterUserID).
		Order("user_id ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群成员列表 %d", groupID)
	}
	out := make([]model.GroupMember, len(rows))
	for i, r := range rows {
		out[i] = model.GroupMember{GroupID: r.GroupID, UserID: r.UserID, Name: r.Name, Avatar: r.Avatar}
	}
	return out, nil
}

func (b *Backend) ListGroupChanges(ctx context.Context, groupID int64, after model.Version, limit int) ([]model.GroupVersionChange, error) {
	var rows []groupVersionRow
	q := b.db.WithContext(ctx).
		Where("group_id = ? AND version > ?", groupID, int64(after)).
		Order("version ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询群组日志 %d", groupID)
	}
	out := make([]model.GroupVersionChange, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestGroupVersion(ctx context.Context, groupID int64) (model.Version, error) {
	return b.latestVersion(ctx, &groupVersionRow{}, "group_id", groupID)
}

func (b *Backend) FindUserGroup(ctx context.Context, userID, groupID int64) (*model.UserGroup, error) {
	var row userGroupRow
	found, err := takeOne(b.db.WithContext(ctx).Where("user_id = ? AND group_id = ?", userID, groupID),
		&row, "查询用户群组 %d/%d", userID, groupID)
	if err != nil || !found {
		return nil, err
	}
	return &model.UserGroup{UserID: row.UserID, GroupID: row.GroupID, GroupName: row.GroupName, GroupAvatar: row.GroupAvatar}, nil
}

func (b *Backend) ListUserGroups(ctx context.Context, userID, afterGroupID int64, limit int) ([]model.UserGroup, error) {
	var rows []userGroupRow
	q := b.db.WithContext(ctx).
		Where("user_id = ? AND group_id > ?", userID, afterGroupID).
		Order("group_id ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户群组列表 %d", userID)
	}
	out := make([]model.UserGroup, len(rows))
	for i, r := range rows {
		out[i] = model.UserGroup{UserID: r.UserID, GroupID: r.GroupID, GroupName: r.GroupName, GroupAvatar: r.GroupAvatar}
	}
	return out, nil
}

func (b *Backend) ListUserGroupChanges(ctx context.Context, userID int64, after model.Version, limit int) ([]model.UserGroupVersionChange, error) {
	var rows []userGroupVersionRow
	q := b.db.WithContext(ctx).
		Where("user_id = ? AND version > ?", userID, int64(after)).
		Order("version ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询用户群组日志 %d", userID)
	}
	out := make([]model.UserGroupVersionChange, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestUserGroupVersion(ctx context.Context, userID int64) (model.Version, error) {
	return b.latestVersion(ctx, &userGroupVersionRow{}, "user_id", userID)
}

// ====== 消息 ======

func (b *Backend) FindMessage(ctx context.Context, conversationID, messageID int64) (*model.Message, error) {
	var row messageRow
	found, err := takeOne(b.db.WithContext(ctx).Where("conversation_id = ? AND message_id = ?", conversationID, messageID),
		&row, "查询消息 %d/%d", conversationID, messageID)
	if err != nil || !found {
		return nil, err
	}
	msg := row.toModel()
	return &msg, nil
}

func (b *Backend) ListMessages(ctx context.Context, conversationID, beforeMessageID int64, limit int) ([]model.Message, error) {
	var rows []messageRow
	q := b.db.WithContext(ctx).
		Where("conversation_id = ? AND message_id < ?", conversationID, beforeMessageID).
		Order("message_id ASC")
	if err := limitRows(q, limit).Find(&rows).Error; err != nil {
		return nil, wrapDBErrorf(err, "查询消息列表 %d", conversationID)
	}
	out := make([]model.Message, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
	}
	return out, nil
}
