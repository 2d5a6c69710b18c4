package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"im_storage/internal/store"
	"im_storage/pkg/errorx"
)

// Backend store.Backend 的 MongoDB 实现
type Backend struct {
	client *mongo.Client
	db     *mongo.Database
}

var _ store.Backend = (*Backend)(nil)

func NewBackend(client *mongo.Client, db *mongo.Database) *Backend {
	return &Backend{client: client, db: db}
}

func (b *Backend) Close() error {
	return wrapError(b.client.Disconnect(context.Background()), "断开 MongoDB")
}

func (b *Backend) coll(name string) *mongo.Collection {
	return b.db.Collection(name)
}

// ====== 工作单元 ======

// Commit 在一个多文档事务内应用整个批次
// 暂时性事务错误由驱动自动重试；回调返回的业务错误直接中止事务
func (b *Backend) Commit(ctx context.Context, batch *store.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	sess, err := b.client.StartSession()
	if err != nil {
		return wrapError(err, "开启会话")
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, op := range batch.Ops() {
			if err := b.apply(sc, op); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	var codeErr *errorx.CodeError
	if err != nil && !errors.As(err, &codeErr) {
		return wrapErrorf(err, "提交事务 %v", batch.Names())
	}
	return err
}

func (b *Backend) apply(ctx context.Context, op store.Op) error {
	switch o := op.(type) {
	case store.PutUser:
		u := o.User
		err := b.replace(ctx, collUsers, bson.D{{Key: "user_id", Value: u.UserID}}, &userDoc{
			UserID:       u.UserID,
			Account:      u.Account,
			PasswordHash: u.PasswordHash,
			Role:         uint8(u.Role),
			Status:       uint8(u.Status),
		})
		if mongo.IsDuplicateKeyError(err) {
			return errorx.Wrapf(err, errorx.CodeUserExist, "账号 %s 已存在", u.Account)
		}
		return err
	case store.PutUserProfile:
		p := o.Profile
		return b.replace(ctx, collUserProfiles, bson.D{{Key: "user_id", Value: p.UserID}},
			&userProfileDoc{UserID: p.UserID, Account: p.Account, NickName: p.NickName, Avatar: p.Avatar})
	case store.PutBotConfig:
		c := o.Config
		return b.replace(ctx, collBotConfigs, bson.D{{Key: "user_id", Value: c.UserID}}, &botConfigDoc{
			UserID:       c.UserID,
			WebhookURL:   c.WebhookURL,
			APIKey:       c.APIKey,
			Description:  c.Description,
			ResponseMode: uint8(c.ResponseMode),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
		})

	case store.PutRelation:
		r := o.Relation
		return b.replace(ctx, collRelations, relationKey(r.SourceUserID, r.TargetUserID), &relationDoc{
			SourceUserID: r.SourceUserID,
			TargetUserID: r.TargetUserID,
			NickName:     r.NickName,
			Avatar:       r.Avatar,
			RemarkName:   r.RemarkName,
			Flags:        uint8(r.Flags),
		})
	case store.DeleteRelation:
		return b.delete(ctx, collRelations, relationKey(o.SourceUserID, o.TargetUserID))
	case store.AppendRelationChange:
		c := o.Change
		return b.replace(ctx, collRelationVersions, versionKey("source_user_id", c.SourceUserID, int64(c.Version)),
			toRelationVersionDoc(&c))

	case store.PutConversation:
		c := o.Conversation
		return b.replace(ctx, collConversations, conversationKey(c.OwnerID, c.ConversationID), toConversationDoc(&c))
	case store.DeleteConversation:
		return b.delete(ctx, collConversations, conversationKey(o.OwnerID, o.ConversationID))
	case store.AppendConversationChange:
		c := o.Change
		return b.replace(ctx, collConversationVersions, versionKey("owner_id", c.OwnerID, int64(c.Version)),
			toConversationVersionDoc(&c))

	case store.PutGroup:
		g := o.Group
		return b.replace(ctx, collGroups, bson.D{{Key: "group_id", Value: g.GroupID}},
			&groupDoc{GroupID: g.GroupID, Name: g.Name, Avatar: g.Avatar})
	case store.PutGroupMember:
		m := o.Member
		return b.replace(ctx, collGroupMembers, memberKey(m.GroupID, m.UserID),
			&groupMemberDoc{GroupID: m.GroupID, UserID: m.UserID, Name: m.Name, Avatar: m.Avatar})
	case store.DeleteGroupMember:
		return b.delete(ctx, collGroupMembers, memberKey(o.GroupID, o.UserID))
	case store.AppendGroupChange:
		c := o.Change
		return b.replace(ctx, collGroupVersions, versionKey("group_id", c.GroupID, int64(c.Version)), toGroupVersionDoc(&c))
	case store.PutUserGroup:
		ug := o.UserGroup
		return b.replace(ctx, collUserGroups, userGroupKey(ug.UserID, ug.GroupID), &userGroupDoc{
			UserID:      ug.UserID,
			GroupID:     ug.GroupID,
			GroupName:   ug.GroupName,
			GroupAvatar: ug.GroupAvatar,
		})
	case store.DeleteUserGroup:
		return b.delete(ctx, collUserGroups, userGroupKey(o.UserID, o.GroupID))
	case store.AppendUserGroupChange:
		c := o.Change
		return b.replace(ctx, collUserGroupVersions, versionKey("user_id", c.UserID, int64(c.Version)), &userGroupVersionDoc{
			UserID:      c.UserID,
			Version:     int64(c.Version),
			GroupID:     c.GroupID,
			Operation:   uint8(c.Operation),
			GroupName:   c.GroupName,
			GroupAvatar: c.GroupAvatar,
		})

	case store.PutMessage:
		m := o.Message
		return b.replace(ctx, collMessages, messageKey(m.ConversationID, m.MessageID), toMessageDoc(&m))
	}
	return errorx.Newf(errorx.CodeDBError, "不支持的写操作 %T", op)
}

// replace 按键整文档覆盖，不存在则插入
func (b *Backend) replace(ctx context.Context, coll string, filter bson.D, doc any) error {
	_, err := b.coll(coll).ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	return wrapErrorf(err, "写入 %s %v", coll, filter)
}

func (b *Backend) delete(ctx context.Context, coll string, filter bson.D) error {
	_, err := b.coll(coll).DeleteOne(ctx, filter)
	return wrapErrorf(err, "删除 %s %v", coll, filter)
}

// ====== 键 ======

func relationKey(source, target int64) bson.D {
	return bson.D{{Key: "source_user_id", Value: source}, {Key: "target_user_id", Value: target}}
}

func conversationKey(owner, conversationID int64) bson.D {
	return bson.D{{Key: "owner_id", Value: owner}, {Key: "conversation_id", Value: conversationID}}
}

func memberKey(groupID, userID int64) bson.D {
	return bson.D{{Key: "group_id", Value: groupID}, {Key: "user_id", Value: userID}}
}

func userGroupKey(userID, groupID int64) bson.D {
	return bson.D{{Key: "user_id", Value: userID}, {Key: "group_id", Value: groupID}}
}

func messageKey(conversationID, messageID int64) bson.D {
	return bson.D{{Key: "conversation_id", Value: conversationID}, {Key: "message_id", Value: messageID}}
}

func versionKey(ownerField string, owner, version int64) bson.D {
	return bson.D{{Key: ownerField, Value: owner}, {Key: "version", Value: version}}
}
