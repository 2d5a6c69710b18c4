package mysql

import (
	"gorm.io/datatypes"

	"im_storage/internal/model"
)

func toUserRow(u *model.User) *userRow {
	return &userRow{
		UserID:       u.UserID,
		Account:      u.Account,
		PasswordHash: u.PasswordHash,
		Role:         uint8(u.Role),
		Status:       uint8(u.Status),
	}
}

func (r *userRow) toModel() *model.User {
	return &model.User{
		UserID:       r.UserID,
		Account:      r.Account,
		PasswordHash: r.PasswordHash,
		Role:         model.UserRole(r.Role),
		Status:       model.UserStatus(r.Status),
	}
}

func toBotConfigRow(c *model.BotConfig) *botConfigRow {
	return &botConfigRow{
		UserID:       c.UserID,
		WebhookURL:   c.WebhookURL,
		APIKey:       c.APIKey,
		Description:  c.Description,
		ResponseMode: uint8(c.ResponseMode),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func (r *botConfigRow) toModel() *model.BotConfig {
	return &model.BotConfig{
		UserID:       r.UserID,
		WebhookURL:   r.WebhookURL,
		APIKey:       r.APIKey,
		Description:  r.Description,
		ResponseMode: model.BotResponseMode(r.ResponseMode),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toRelationVersionRow(c *model.RelationVersionChange) *relationVersionRow {
	row := &relationVersionRow{
		SourceUserID: c.SourceUserID,
		Version:      int64(c.Version),
		TargetUserID: c.TargetUserID,
		Operation:    uint8(c.Operation),
		NickName:     c.NickName,
		Avatar:       c.Avatar,
		RemarkName:   c.RemarkName,
	}
	if c.Flags != nil {
		row.Flags = model.Ptr(uint8(*c.Flags))
	}
	return row
}

func (r *relationVersionRow) toModel() model.RelationVersionChange {
	c := model.RelationVersionChange{
		SourceUserID: r.SourceUserID,
		Version:      model.Version(r.Version),
		TargetUserID: r.TargetUserID,
		Operation:    model.RelationOperation(r.Operation),
		NickName:     r.NickName,
		Avatar:       r.Avatar,
		RemarkName:   r.RemarkName,
	}
	if r.Flags != nil {
		c.Flags = model.Ptr(model.RelationFlags(*r.Flags))
	}
	return c
}

func toConversationRow(c *model.Conversation) *conversationRow {
	peerID, groupID := c.Target.Columns()
	return &conversationRow{
		OwnerID:           c.OwnerID,
		ConversationID:    c.ConversationID,
		PeerID:            peerID,
		GroupID:           groupID,
		LastReadMessageID: c.LastReadMessageID,
		Name:              c.Name,
		Avatar:            c.Avatar,
	}
}

func (r *conversationRow) toModel() (model.Conversation, error) {
	target, err := model.TargetFromColumns(r.PeerID, r.GroupID)
	if err != nil {
		return model.Conversation{}, err
	}
	return model.Conversation{
		OwnerID:           r.OwnerID,
		ConversationID:    r.ConversationID,
		Target:            target,
		LastReadMessageID: r.LastReadMessageID,
		Name:              r.Name,
		Avatar:            r.Avatar,
	}, nil
}

func toConversationVersionRow(c *model.ConversationVersionChange) *conversationVersionRow {
	peerID, groupID := c.Target.Columns()
	return &conversationVersionRow{
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

func (r *conversationVersionRow) toModel() (model.ConversationVersionChange, error) {
	target, err := model.TargetFromColumns(r.PeerID, r.GroupID)
	if err != nil {
		return model.ConversationVersionChange{}, err
	}
	return model.ConversationVersionChange{
		OwnerID:           r.OwnerID,
		Version:           model.Version(r.Version),
		ConversationID:    r.ConversationID,
		Operation:         model.ConversationOperation(r.Operation),
		Target:            target,
		LastReadMessageID: r.LastReadMessageID,
		Name:              r.Name,
		Avatar:            r.Avatar,
	}, nil
}

func toGroupVersionRow(c *model.GroupVersionChange) *groupVersionRow {
	return &groupVersionRow{
		GroupID: c.GroupID,
		Version: int64(c.Version),
		Details: datatypes.NewJSONSlice(c.Details),
	}
}

func (r *groupVersionRow) toModel() model.GroupVersionChange {
	details := []model.ChangeDetail(r.Details)
	if details == nil {
		details = []model.ChangeDetail{}
	}
	return model.GroupVersionChange{
		GroupID: r.GroupID,
		Version: model.Version(r.Version),
		Details: details,
	}
}

func toUserGroupVersionRow(c *model.UserGroupVersionChange) *userGroupVersionRow {
	return &userGroupVersionRow{
		UserID:      c.UserID,
		Version:     int64(c.Version),
		GroupID:     c.GroupID,
		Operation:   uint8(c.Operation),
		GroupName:   c.GroupName,
		GroupAvatar: c.GroupAvatar,
	}
}

func (r *userGroupVersionRow) toModel() model.UserGroupVersionChange {
	return model.UserGroupVersionChange{
		UserID:      r.UserID,
		Version:     model.Version(r.Version),
		GroupID:     r.GroupID,
		Operation:   model.UserGroupOperation(r.Operation),
		GroupName:   r.GroupName,
		GroupAvatar: r.GroupAvatar,
	}
}

func toMessageRow(m *model.Message) *messageRow {
	return &messageRow{
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

func (r *messageRow) toModel() model.Message {
	return model.Message{
		ConversationID: r.ConversationID,
		MessageID:      r.MessageID,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		GroupID:        r.GroupID,
		SendTimestamp:  r.SendTimestamp,
		Type:           model.MessageType(r.Type),
		Text:           r.Text,
		FileURL:        r.FileURL,
		FileName:       r.FileName,
		CommandType:    r.CommandType,
		CommandData:    r.CommandData,
	}
}
