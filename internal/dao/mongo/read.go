package mongo

import (
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"im_storage/internal/model"
)

// findOne 不存在时返回 (false, nil)
func (b *Backend) findOne(ctx context.Context, coll string, filter bson.D, dest any) (bool, error) {
	err := b.coll(coll).FindOne(ctx, filter).Decode(dest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, wrapErrorf(err, "查询 %s %v", coll, filter)
	}
	return true, nil
}

// findRange 按 sortField 升序查询，limit <= 0 表示不限
func findRange[T any](ctx context.Context, c *mongo.Collection, filter bson.D, sortField string, limit int) ([]T, error) {
	opts := options.Find().SetSort(bson.D{{Key: sortField, Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := c.Find(ctx, filter, opts)
	if err != nil {
		return nil, wrapErrorf(err, "查询 %s %v", c.Name(), filter)
	}
	var docs []T
	if err := cur.All(ctx, &docs); err != nil {
		return nil, wrapErrorf(err, "读取 %s %v", c.Name(), filter)
	}
	return docs, nil
}

// greaterThan 构造 {owner: key, field: {$gt: after}}
func greaterThan(ownerField string, key int64, field string, after int64) bson.D {
	return bson.D{{Key: ownerField, Value: key}, {Key: field, Value: bson.D{{Key: "$gt", Value: after}}}}
}

func (b *Backend) latestVersion(ctx context.Context, coll, ownerField string, key int64) (model.Version, error) {
	var doc struct {
		Version int64 `bson:"version"`
	}
	opts := options.FindOne().
		SetSort(bson.D{{Key: "version", Value: -1}}).
		SetProjection(bson.D{{Key: "version", Value: 1}})
	err := b.coll(coll).FindOne(ctx, bson.D{{Key: ownerField, Value: key}}, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return model.NoVersion, nil
	}
	if err != nil {
		return model.NoVersion, wrapErrorf(err, "查询最新版本 %s=%d", ownerField, key)
	}
	return model.Version(doc.Version), nil
}

// ====== 用户 ======

func (b *Backend) FindUser(ctx context.Context, userID int64) (*model.User, error) {
	var doc userDoc
	found, err := b.findOne(ctx, collUsers, bson.D{{Key: "user_id", Value: userID}}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.toModel(), nil
}

func (b *Backend) FindUserByAccount(ctx context.Context, account string) (*model.User, error) {
	var doc userDoc
	found, err := b.findOne(ctx, collUsers, bson.D{{Key: "account", Value: account}}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.toModel(), nil
}

func (b *Backend) FindUserProfile(ctx context.Context, userID int64) (*model.UserProfile, error) {
	var doc userProfileDoc
	found, err := b.findOne(ctx, collUserProfiles, bson.D{{Key: "user_id", Value: userID}}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &model.UserProfile{UserID: doc.UserID, Account: doc.Account, NickName: doc.NickName, Avatar: doc.Avatar}, nil
}

func (b *Backend) FindBotConfig(ctx context.Context, userID int64) (*model.BotConfig, error) {
	var doc botConfigDoc
	found, err := b.findOne(ctx, collBotConfigs, bson.D{{Key: "user_id", Value: userID}}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return doc.toModel(), nil
}

// ====== 关系 ======

func (b *Backend) FindRelation(ctx context.Context, sourceUserID, targetUserID int64) (*model.Relation, error) {
	var doc relationDoc
	found, err := b.findOne(ctx, collRelations, relationKey(sourceUserID, targetUserID), &doc)
	if err != nil || !found {
		return nil, err
	}
	rel := doc.toModel()
	return &rel, nil
}

func (b *Backend) ListRelations(ctx context.Context, sourceUserID, afterTargetUserID int64, limit int) ([]model.Relation, error) {
	docs, err := findRange[relationDoc](ctx, b.coll(collRelations),
		greaterThan("source_user_id", sourceUserID, "target_user_id", afterTargetUserID), "target_user_id", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Relation, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}

func (b *Backend) ListRelationChanges(ctx context.Context, sourceUserID int64, after model.Version, limit int) ([]model.RelationVersionChange, error) {
	docs, err := findRange[relationVersionDoc](ctx, b.coll(collRelationVersions),
		greaterThan("source_user_id", sourceUserID, "version", int64(after)), "version", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.RelationVersionChange, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestRelationVersion(ctx context.Context, sourceUserID int64) (model.Version, error) {
	return b.latestVersion(ctx, collRelationVersions, "source_user_id", sourceUserID)
}

// ====== 会话 ======

func (b *Backend) FindConversation(ctx context.Context, ownerID, conversationID int64) (*model.Conversation, error) {
	var doc conversationDoc
	found, err := b.findOne(ctx, collConversations, conversationKey(ownerID, conversationID), &doc)
	if err != nil || !found {
		return nil, err
	}
	conv, err := doc.toModel()
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

func (b *Backend) ListConversations(ctx context.Context, ownerID, afterConversationID int64, limit int) ([]model.Conversation, error) {
	docs, err := findRange[conversationDoc](ctx, b.coll(collConversations),
		greaterThan("owner_id", ownerID, "conversation_id", afterConversationID), "conversation_id", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Conversation, 0, len(docs))
	for i := range docs {
		conv, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, conv)
	}
	return out, nil
}

func (b *Backend) ListConversationChanges(ctx context.Context, ownerID int64, after model.Version, limit int) ([]model.ConversationVersionChange, error) {
	docs, err := findRange[conversationVersionDoc](ctx, b.coll(collConversationVersions),
		greaterThan("owner_id", ownerID, "version", int64(after)), "version", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.ConversationVersionChange, 0, len(docs))
	for i := range docs {
		c, err := docs[i].toModel()
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (b *Backend) LatestConversationVersion(ctx context.Context, ownerID int64) (model.Version, error) {
	return b.latestVersion(ctx, collConversationVersions, "owner_id", ownerID)
}

// ====== 群组 ======

func (b *Backend) FindGroup(ctx context.Context, groupID int64) (*model.Group, error) {
	var doc groupDoc
	found, err := b.findOne(ctx, collGroups, bson.D{{Key: "group_id", Value: groupID}}, &doc)
	if err != nil || !found {
		return nil, err
	}
	return &model.Group{GroupID: doc.GroupID, Name: doc.Name, Avatar: doc.Avatar}, nil
}

func (b *Backend) FindGroupMember(ctx context.Context, groupID, userID int64) (*model.GroupMember, error) {
	var doc groupMemberDoc
	found, err := b.findOne(ctx, collGroupMembers, memberKey(groupID, userID), &doc)
	if err != nil || !found {
		return nil, err
	}
	return &model.GroupMember{GroupID: doc.GroupID, UserID: doc.UserID, Name: doc.Name, Avatar: doc.Avatar}, nil
}

func (b *Backend) ListGroupMembers(ctx context.Context, groupID, afterUserID int64, limit int) ([]model.GroupMember, error) {
	docs, err := findRange[groupMemberDoc](ctx, b.coll(collGroupMembers),
		greaterThan("group_id", groupID, "user_id", afterUserID), "user_id", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.GroupMember, len(docs))
	for i, d := range docs {
		out[i] = model.GroupMember{GroupID: d.GroupID, UserID: d.UserID, Name: d.Name, Avatar: d.Avatar}
	}
	return out, nil
}

func (b *Backend) ListGroupChanges(ctx context.Context, groupID int64, after model.Version, limit int) ([]model.GroupVersionChange, error) {
	docs, err := findRange[groupVersionDoc](ctx, b.coll(collGroupVersions),
		greaterThan("group_id", groupID, "version", int64(after)), "version", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.GroupVersionChange, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestGroupVersion(ctx context.Context, groupID int64) (model.Version, error) {
	return b.latestVersion(ctx, collGroupVersions, "group_id", groupID)
}

func (b *Backend) FindUserGroup(ctx context.Context, userID, groupID int64) (*model.UserGroup, error) {
	var doc userGroupDoc
	found, err := b.findOne(ctx, collUserGroups, userGroupKey(userID, groupID), &doc)
	if err != nil || !found {
		return nil, err
	}
	return &model.UserGroup{UserID: doc.UserID, GroupID: doc.GroupID, GroupName: doc.GroupName, GroupAvatar: doc.GroupAvatar}, nil
}

func (b *Backend) ListUserGroups(ctx context.Context, userID, afterGroupID int64, limit int) ([]model.UserGroup, error) {
	docs, err := findRange[userGroupDoc](ctx, b.coll(collUserGroups),
		greaterThan("user_id", userID, "group_id", afterGroupID), "group_id", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserGroup, len(docs))
	for i, d := range docs {
		out[i] = model.UserGroup{UserID: d.UserID, GroupID: d.GroupID, GroupName: d.GroupName, GroupAvatar: d.GroupAvatar}
	}
	return out, nil
}

func (b *Backend) ListUserGroupChanges(ctx context.Context, userID int64, after model.Version, limit int) ([]model.UserGroupVersionChange, error) {
	docs, err := findRange[userGroupVersionDoc](ctx, b.coll(collUserGroupVersions),
		greaterThan("user_id", userID, "version", int64(after)), "version", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.UserGroupVersionChange, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}

func (b *Backend) LatestUserGroupVersion(ctx context.Context, userID int64) (model.Version, error) {
	return b.latestVersion(ctx, collUserGroupVersions, "user_id", userID)
}

// ====== 消息 ======

func (b *Backend) FindMessage(ctx context.Context, conversationID, messageID int64) (*model.Message, error) {
	var doc messageDoc
	found, err := b.findOne(ctx, collMessages, messageKey(conversationID, messageID), &doc)
	if err != nil || !found {
		return nil, err
	}
	msg := doc.toModel()
	return &msg, nil
}

func (b *Backend) ListMessages(ctx context.Context, conversationID, beforeMessageID int64, limit int) ([]model.Message, error) {
	filter := bson.D{
		{Key: "conversation_id", Value: conversationID},
		{Key: "message_id", Value: bson.D{{Key: "$lt", Value: beforeMessageID}}},
	}
	docs, err := findRange[messageDoc](ctx, b.coll(collMessages), filter, "message_id", limit)
	if err != nil {
		return nil, err
	}
	out := make([]model.Message, len(docs))
	for i := range docs {
		out[i] = docs[i].toModel()
	}
	return out, nil
}
