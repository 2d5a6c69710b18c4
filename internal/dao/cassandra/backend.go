package cassandra

import (
	"context"
	"errors"

	"github.com/gocql/gocql"

	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/pkg/errorx"
)

// Backend store.Backend 的 Cassandra 实现
// 账号唯一性由门面在写入前检查，LOGGED BATCH 不支持跨分区的条件写入
type Backend struct {
	session *gocql.Session
}

var _ store.Backend = (*Backend)(nil)

func NewBackend(session *gocql.Session) *Backend {
	return &Backend{session: session}
}

func (b *Backend) Close() error {
	b.session.Close()
	return nil
}

// changeDetailUDT 对应 change_detail 类型
type changeDetailUDT struct {
	Operation int8    `cql:"operation"`
	UserID    *int64  `cql:"user_id"`
	Name      *string `cql:"name"`
	Avatar    *string `cql:"avatar"`
}

// ====== 工作单元 ======

// Commit 整批以一个 LOGGED BATCH 提交，批次日志保证全部生效或全部不生效
func (b *Backend) Commit(ctx context.Context, batch *store.Batch) error {
	cb := b.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, op := range batch.Ops() {
		if err := addOp(cb, op); err != nil {
			return err
		}
	}
	if cb.Size() == 0 {
		return nil
	}
	return wrapErrorf(b.session.ExecuteBatch(cb), "提交批次 %v", batch.Names())
}

func addOp(cb *gocql.Batch, op store.Op) error {
	switch o := op.(type) {
	case store.PutUser:
		u := o.User
		cb.Query(`INSERT INTO im_user (user_id, account, password_hash, role, status) VALUES (?, ?, ?, ?, ?)`,
			u.UserID, u.Account, u.PasswordHash, int8(u.Role), int8(u.Status))
		cb.Query(`INSERT INTO user_by_account (account, user_id) VALUES (?, ?)`, u.Account, u.UserID)
	case store.PutUserProfile:
		p := o.Profile
		cb.Query(`INSERT INTO user_profile (user_id, account, nick_name, avatar) VALUES (?, ?, ?, ?)`,
			p.UserID, p.Account, p.NickName, p.Avatar)
	case store.PutBotConfig:
		c := o.Config
		cb.Query(`INSERT INTO bot_config (user_id, webhook_url, api_key, description, response_mode, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.UserID, c.WebhookURL, c.APIKey, c.Description, int8(c.ResponseMode), c.CreatedAt, c.UpdatedAt)

	case store.PutRelation:
		r := o.Relation
		cb.Query(`INSERT INTO relation (source_user_id, target_user_id, nick_name, avatar, remark_name, flags)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.SourceUserID, r.TargetUserID, r.NickName, r.Avatar, r.RemarkName, int8(r.Flags))
	case store.DeleteRelation:
		cb.Query(`DELETE FROM relation WHERE source_user_id = ? AND target_user_id = ?`, o.SourceUserID, o.TargetUserID)
	case store.AppendRelationChange:
		c := o.Change
		var flags *int8
		if c.Flags != nil {
			flags = model.Ptr(int8(*c.Flags))
		}
		cb.Query(`INSERT INTO relation_version (source_user_id, version, target_user_id, operation, nick_name, avatar, remark_name, flags)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			c.SourceUserID, int64(c.Version), c.TargetUserID, int8(c.Operation), c.NickName, c.Avatar, c.RemarkName, flags)

	case store.PutConversation:
		c := o.Conversation
		peerID, groupID := c.Target.Columns()
		cb.Query(`INSERT INTO conversation (owner_id, conversation_id, peer_id, group_id, last_read_message_id, name, avatar)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.OwnerID, c.ConversationID, peerID, groupID, c.LastReadMessageID, c.Name, c.Avatar)
	case store.DeleteConversation:
		cb.Query(`DELETE FROM conversation WHERE owner_id = ? AND conversation_id = ?`, o.OwnerID, o.ConversationID)
	case store.AppendConversationChange:
		c := o.Change
		peerID, groupID := c.Target.Columns()
		cb.Query(`INSERT INTO conversation_version (owner_id, version, conversation_id, operation, peer_id, group_id, last_read_message_id, name, avatar)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			c.OwnerID, int64(c.Version), c.ConversationID, int8(c.Operation), peerID, groupID, c.LastReadMessageID, c.Name, c.Avatar)

	case store.PutGroup:
		g := o.Group
		cb.Query(`INSERT INTO group_info (group_id, name, avatar) VALUES (?, ?, ?)`, g.GroupID, g.Name, g.Avatar)
	case store.PutGroupMember:
		m := o.Member
		cb.Query(`INSERT INTO group_member (group_id, user_id, name, avatar) VALUES (?, ?, ?, ?)`,
			m.GroupID, m.UserID, m.Name, m.Avatar)
	case store.DeleteGroupMember:
		cb.Query(`DELETE FROM group_member WHERE group_id = ? AND user_id = ?`, o.GroupID, o.UserID)
	case store.AppendGroupChange:
		c := o.Change
		cb.Query(`INSERT INTO group_version (group_id, version, details) VALUES (?, ?, ?)`,
			c.GroupID, int64(c.Version), toDetailUDTs(c.Details))
	case store.PutUserGroup:
		ug := o.UserGroup
		cb.Query(`INSERT INTO user_group (user_id, group_id, group_name, group_avatar) VALUES (?, ?, ?, ?)`,
			ug.UserID, ug.GroupID, ug.GroupName, ug.GroupAvatar)
	case store.DeleteUserGroup:
		cb.Query(`DELETE FROM user_group WHERE user_id = ? AND group_id = ?`, o.UserID, o.GroupID)
	case store.AppendUserGroupChange:
		c := o.Change
		cb.Query(`INSERT INTO user_group_version (user_id, version, group_id, operation, group_name, group_avatar)
			VALUES (?, ?, ?, ?, ?, ?)`,
			c.UserID, int64(c.Version), c.GroupID, int8(c.Operation), c.GroupName, c.GroupAvatar)

	case store.PutMessage:
		m := o.Message
		cb.Query(`INSERT INTO message (conversation_id, message_id, sender_id, receiver_id, group_id, send_timestamp,
			type, text, file_url, file_name, command_type, command_data) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ConversationID, m.MessageID, m.SenderID, m.ReceiverID, m.GroupID, m.SendTimestamp,
			int8(m.Type), m.Text, m.FileURL, m.FileName, m.CommandType, m.CommandData)

	default:
		return errorx.Newf(errorx.CodeDBError, "不支持的写操作 %T", op)
	}
	return nil
}

func toDetailUDTs(details []model.ChangeDetail) []changeDetailUDT {
	out := make([]changeDetailUDT, len(details))
	for i, d := range details {
		out[i] = changeDetailUDT{Operation: int8(d.Operation), UserID: d.UserID, Name: d.Name, Avatar: d.Avatar}
	}
	return out
}

func fromDetailUDTs(udts []changeDetailUDT) []model.ChangeDetail {
	out := make([]model.ChangeDetail, len(udts))
	for i, d := range udts {
		out[i] = model.ChangeDetail{Operation: model.GroupOperation(d.Operation), UserID: d.UserID, Name: d.Name, Avatar: d.Avatar}
	}
	return out
}

// ====== 查询辅助 ======

// scanOne 单行查询，不存在时返回 (false, nil)
func (b *Backend) scanOne(ctx context.Context, stmt string, args []any, dest ...any) (bool, error) {
	err := b.session.Query(stmt, args...).WithContext(ctx).Scan(dest...)
	if errors.Is(err, gocql.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, wrapErrorf(err, "查询失败: %s", stmt)
	}
	return true, nil
}

// iter 范围查询，limit <= 0 时不加 LIMIT
func (b *Backend) iter(ctx context.Context, stmt string, limit int, args ...any) *gocql.Iter {
	if limit > 0 {
		stmt += " LIMIT ?"
		args = append(args, limit)
	}
	return b.session.Query(stmt, args...).WithContext(ctx).Iter()
}

// latestVersion 日志按版本升序聚簇，倒序取第一条
func (b *Backend) latestVersion(ctx context.Context, table, keyColumn string, key int64) (model.Version, error) {
	var v int64
	found, err := b.scanOne(ctx, "SELECT version FROM "+table+" WHERE "+keyColumn+" = ? ORDER BY version DESC LIMIT 1",
		[]any{key}, &v)
	if err != nil || !found {
		return model.NoVersion, err
	}
	return model.Version(v), nil
}
