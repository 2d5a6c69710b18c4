package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"im_storage/internal/model"
)

// 集合名
const (
	collUsers                = "users"
	collUserProfiles         = "user_profiles"
	collBotConfigs           = "bot_configs"
	collRelations            = "relations"
	collRelationVersions     = "relation_versions"
	collConversations        = "conversations"
	collConversationVersions = "conversation_versions"
	collGroups               = "groups"
	collGroupMembers         = "group_members"
	collGroupVersions        = "group_versions"
	collUserGroups           = "user_groups"
	collUserGroupVersions    = "user_group_versions"
	collMessages             = "messages"
)

// indexes 每个集合的主键以唯一复合索引表达，第二列兼作范围查询的排序列
var indexes = map[string][]mongo.IndexModel{
	collUsers: {
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "account", Value: 1}}, Options: options.Index().SetUnique(true)},
	},
	collUserProfiles: {uniqueIndex("user_id")},
	collBotConfigs:   {uniqueIndex("user_id")},

	collRelations:        {uniqueIndex("source_user_id", "target_user_id")},
	collRelationVersions: {uniqueIndex("source_user_id", "version")},

	collConversations:        {uniqueIndex("owner_id", "conversation_id")},
	collConversationVersions: {uniqueIndex("owner_id", "version")},

	collGroups:            {uniqueIndex("group_id")},
	collGroupMembers:      {uniqueIndex("group_id", "user_id")},
	collGroupVersions:     {uniqueIndex("group_id", "version")},
	collUserGroups:        {uniqueIndex("user_id", "group_id")},
	collUserGroupVersions: {uniqueIndex("user_id", "version")},

	collMessages: {uniqueIndex("conversation_id", "message_id")},
}

func uniqueIndex(fields ...string) mongo.IndexModel {
	keys := make(bson.D, len(fields))
	for i, f := range fields {
		keys[i] = bson.E{Key: f, Value: 1}
	}
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true)}
}

// ====== 用户 ======

type userDoc struct {
	UserID       int64  `bson:"user_id"`
	Account      string `bson:"account"`
	PasswordHash string `bson:"password_hash"`
	Role         uint8  `bson:"role"`
	Status       uint8  `bson:"status"`
}

type userProfileDoc struct {
	UserID   int64  `bson:"user_id"`
	Account  string `bson:"account"`
	NickName string `bson:"nick_name"`
	Avatar   string `bson:"avatar"`
}

type botConfigDoc struct {
	UserID       int64  `bson:"user_id"`
	WebhookURL   string `bson:"webhook_url"`
	APIKey       string `bson:"api_key"`
	Description  string `bson:"description"`
	ResponseMode uint8  `bson:"response_mode"`
	CreatedAt    int64  `bson:"created_at"`
	UpdatedAt    int64  `bson:"updated_at"`
}

func (d *userDoc) toModel() *model.User {
	return &model.User{
		UserID:       d.UserID,
		Account:      d.Account,
		PasswordHash: d.PasswordHash,
		Role:         model.UserRole(d.Role),
		Status:       model.UserStatus(d.Status),
	}
}

func (d *botConfigDoc) toModel() *model.BotConfig {
	return &model.BotConfig{
		UserID:       d.UserID,
		WebhookURL:   d.WebhookURL,
		APIKey:       d.APIKey,
		Description:  d.Description,
		ResponseMode: model.BotResponseMode(d.ResponseMode),
		CreatedAt:    d.CreatedAt,
		UpdatedAt:    d.UpdatedAt,
	}
}

// ====== 关系 ======

type relationDoc struct {
	SourceUserID int64  `bson:"source_user_id"`
	TargetUserID int64  `bson:"target_user_id"`
	NickName     string `bson:"nick_name"`
	Avatar       string `bson:"avatar"`
	RemarkName   string `bson:"remark_name"`
	Flags        uint8  `bson:"flags"`
}

type relationVersionDoc struct {
	SourceUserID int64   `bson:"source_user_id"`
	Version      int64   `bson:"version"`
	TargetUserID int64   `bson:"target_user_id"`
	Operation    uint8   `bson:"operation"`
	NickName     *string `bson:"nick_name,omitempty"`
	Avatar       *string `bson:"avatar,omitempty"`
	RemarkName   *string `bson:"remark_name,omitempty"`
	Flags        *uint8  `bson:"flags,omitempty"`
}

func (d *relationDoc) toModel() model.Relation {
	return model.Relation{
		SourceUserID: d.SourceUserID,
		TargetUserID: d.TargetUserID,
		NickName:     d.NickName,
		Avatar:       d.Avatar,
		RemarkName:   d.RemarkName,
		Flags:        model.RelationFlags(d.Flags),
	}
}

func toRelationVersionDoc(c *model.RelationVersionChange) *relationVersionDoc {
	d := &relationVersionDoc{
		SourceUserID: c.SourceUserID,
		Version:      int64(c.Version),
		TargetUserID: c.TargetUserID,
		Operation:    uint8(c.Operation),
		NickName:     c.NickName,
		Avatar:       c.Avatar,
		RemarkName:   c.RemarkName,
	}
	if c.Flags != nil {
		d.Flags = model.Ptr(uint8(*c.Flags))
	}
	return d
}

func (d *relationVersionDoc) toModel() model.RelationVersionChange {
	c := model.RelationVersionChange{
		SourceUserID: d.SourceUserID,
		Version:      model.Version(d.Version),
		TargetUserID: d.TargetUserID,
		Operation:    model.RelationOperation(d.Operation),
		NickName:     d.NickName,
		Avatar:       d.Avatar,
		RemarkName:   d.RemarkName,
	}
	if d.Flags != nil {
		c.Flags = model.Ptr(model.RelationFlags(*d.Flags))
	}
	return c
}

// ====== 会话 ======

// conversationDoc peer_id 与 group_id 恰有其一非空
type conversationDoc struct {
	OwnerID           int64  `bson:"owner_id"`
	ConversationID    int64  `bson:"conversation_id"`
	PeerID            *int64 `bson:"peer_id"`
	GroupID           *int64 `bson:"group_id"`
	LastReadMessageID int64  `bson:"last_read_message_id"`
	Name              string `bson:"name"`
	Avatar            string `bson:"avatar"`
}

type conversationVersionDoc struct {
	OwnerID           int64  `bson:"owner_id"`
	Version           int64  `bson:"version"`
	ConversationID    int64  `bson:"conversation_id"`
	Operation         uint8  `bson:"operation"`
	PeerID            *int64 `bson:"peer_id"`
	GroupID           *int64 `bson:"group_id"`
	LastReadMessageID int64  `bson:"last_read_message_id"`
	Name              string `bson:"name"`
	Avatar            string `bson:"avatar"`
}

func toConversationDoc(c *model.Conversation) *conversationDoc {
	peerID, groupID := c.Target.Columns()
	return &conversationDoc{
		OwnerID:           c.OwnerID,
		ConversationID:    c.ConversationID,
		PeerID:            peerID,
		GroupID:           groupID,
		LastReadMessageID: c.LastReadMessageID,
		Name:              c.Name,
		Avatar:            c.Avatar,
	}
}

func (d *conversationDoc) toModel() (model.Conversation, error) {
	target, err := model.TargetFromColumns(d.PeerID, d.GroupID)
	if err != nil {
		return model.Conversation{}, err
	}
	return model.Conversation{
		OwnerID:           d.OwnerID,
		ConversationID:    d.ConversationID,
		Target:            target,
		LastReadMessageID: d.LastReadMessageID,
		Name:              d.Name,
		Avatar:            d.Avatar,
	}, nil
}

func toConversationVersionDoc(c *model.ConversationVersionChange) *conversationVersionDoc {
	peerID, groupID := c.Target.Columns()
	return &conversationVersionDoc{
		OwnerID:           c.OwnerID,
		Version:           int64(c.Version),
		ConversationID:    c.ConversationID,
		Operation:         uint8(c.Operation),
		PeerID:            peerID,
		GroupID:           groupID,
		LastReadMessageID: c.LastReadMessageID,
		Name:              c.Name,
		Avatar:            c.Avatar,
	}
}

func (d *conversationVersionDoc) toModel() (model.ConversationVersionChange, error) {
	target, err := model.TargetFromColumns(d.PeerID, d.GroupID)
	if err != nil {
		return model.ConversationVersionChange{}, err
	}
	return model.ConversationVersionChange{
		OwnerID:           d.OwnerID,
		Version:           model.Version(d.Version),
		ConversationID:    d.ConversationID,
		Operation:         model.ConversationOperation(d.Operation),
		Target:            target,
		LastReadMessageID: d.LastReadMessageID,
		Name:              d.Name,
		Avatar:            d.Avatar,
	}, nil
}

// ====== 群组 ======

type groupDoc struct {
	GroupID int64  `bson:"group_id"`
	Name    string `bson:"name"`
	Avatar  string `bson:"avatar"`
}

type groupMemberDoc struct {
	GroupID int64  `bson:"group_id"`
	UserID  int64  `bson:"user_id"`
	Name    string `bson:"name"`
	Avatar  string `bson:"avatar"`
}

type changeDetailDoc struct {
	Operation uint8   `bson:"operation"`
	UserID    *int64  `bson:"user_id,omitempty"`
	Name      *string `bson:"name,omitempty"`
	Avatar    *string `bson:"avatar,omitempty"`
}

// groupVersionDoc 同一版本的明细内嵌为数组
type groupVersionDoc struct {
	GroupID int64             `bson:"group_id"`
	Version int64             `bson:"version"`
	Details []changeDetailDoc `bson:"details"`
}

type userGroupDoc struct {
	UserID      int64  `bson:"user_id"`
	GroupID     int64  `bson:"group_id"`
	GroupName   string `bson:"group_name"`
	GroupAvatar string `bson:"group_avatar"`
}

type userGroupVersionDoc struct {
	UserID      int64   `bson:"user_id"`
	Version     int64   `bson:"version"`
	GroupID     int64   `bson:"group_id"`
	Operation   uint8   `bson:"operation"`
	GroupName   *string `bson:"group_name,omitempty"`
	GroupAvatar *string `bson:"group_avatar,omitempty"`
}

func toGroupVersionDoc(c *model.GroupVersionChange) *groupVersionDoc {
	details := make([]changeDetailDoc, len(c.Details))
	for i, d := range c.Details {
		details[i] = changeDetailDoc{Operation: uint8(d.Operation), UserID: d.UserID, Name: d.Name, Avatar: d.Avatar}
	}
	return &groupVersionDoc{GroupID: c.GroupID, Version: int64(c.Version), Details: details}
}

func (d *groupVersionDoc) toModel() model.GroupVersionChange {
	details := make([]model.ChangeDetail, len(d.Details))
	for i, cd := range d.Details {
		details[i] = model.ChangeDetail{Operation: model.GroupOperation(cd.Operation), UserID: cd.UserID, Name: cd.Name, Avatar: cd.Avatar}
	}
	return model.GroupVersionChange{GroupID: d.GroupID, Version: model.Version(d.Version), Details: details}
}

func (d *userGroupVersionDoc) toModel() model.UserGroupVersionChange {
	return model.UserGroupVersionChange{
		UserID:      d.UserID,
		Version:     model.Version(d.Version),
		GroupID:     d.GroupID,
		Operation:   model.UserGroupOperation(d.Operation),
		GroupName:   d.GroupName,
		GroupAvatar: d.GroupAvatar,
	}
}

// ====== 消息 ======

type messageDoc struct {
	ConversationID int64  `bson:"conversation_id"`
	MessageID      int64  `bson:"message_id"`
	SenderID       int64  `bson:"sender_id"`
	ReceiverID     int64  `bson:"receiver_id"`
	GroupID        int64  `bson:"group_id"`
	SendTimestamp  int64  `bson:"send_timestamp"`
	Type           uint8  `bson:"type"`
	Text           string `bson:"text,omitempty"`
	FileURL        string `bson:"file_url,omitempty"`
	FileName       string `bson:"file_name,omitempty"`
	CommandType    int32  `bson:"command_type,omitempty"`
	CommandData    string `bson:"command_data,omitempty"`
}

func toMessageDoc(m *model.Message) *messageDoc {
	return &messageDoc{
		ConversationID: m.ConversationID,
		MessageID:      m.MessageID,
		SenderID:       m.SenderID,
		ReceiverID:     m.ReceiverID,
		GroupID:        m.GroupID,
		SendTimestamp:  m.SendTimestamp,
		Type:           uint8(m.Type),
		Text:           m.Text,
		FileURL:        m.FileURL,
		FileName:       m.FileName,
		CommandType:    m.CommandType,
		CommandData:    m.CommandData,
	}
}

func (d *messageDoc) toModel() model.Message {
	return model.Message{
		ConversationID: d.ConversationID,
		MessageID:      d.MessageID,
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		GroupID:        d.GroupID,
		SendTimestamp:  d.SendTimestamp,
		Type:           model.MessageType(d.Type),
		Text:           d.Text,
		FileURL:        d.FileURL,
		FileName:       d.FileName,
		CommandType:    d.CommandType,
		CommandData:    d.CommandData,
	}
}
