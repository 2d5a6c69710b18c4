package store

import (
	"context"
	"math"

	"go.uber.org/zap"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// SaveMessage 追加一条消息
// 群消息的会话 ID 为群号，单聊消息的会话 ID 由收发双方推导
func (f *Facade) SaveMessage(ctx context.Context, msg *model.Message) error {
	if msg == nil {
		return errorx.ErrInvalidParam
	}
	if err := validateStruct(msg); err != nil {
		return err
	}
	switch {
	case msg.GroupID != 0:
		msg.ConversationID = model.GroupConversationID(msg.GroupID)
	case msg.ReceiverID != 0:
		msg.ConversationID = model.SingleConversationID(msg.SenderID, msg.ReceiverID)
	default:
		return errorx.Newf(errorx.CodeInvalidParam, "消息 %d 缺少接收方或群号", msg.MessageID)
	}
	if msg.SendTimestamp == 0 {
		msg.SendTimestamp = f.now().UnixMilli()
	}

	if err := f.commit(ctx, "save_message", NewBatch(PutMessage{Message: *msg}),
		zap.Int64("conversation", msg.ConversationID), zap.Int64("message", msg.MessageID)); err != nil {
		return err
	}
	f.cache.InvalidateConversationSummary(ctx, msg.ConversationID)
	return nil
}

// SaveTextMessage 单聊文本消息
func (f *Facade) SaveTextMessage(ctx context.Context, messageID, senderID, receiverID int64, text string, sendTimestamp int64) (*model.Message, error) {
	msg := &model.Message{
		MessageID:     messageID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		SendTimestamp: sendTimestamp,
		Type:          model.MessageTypeText,
		Text:          text,
	}
	return f.save(ctx, msg)
}

// SaveFileMessage 单聊文件消息
func (f *Facade) SaveFileMessage(ctx context.Context, messageID, senderID, receiverID int64, fileURL, fileName string, sendTimestamp int64) (*model.Message, error) {
	msg := &model.Message{
		MessageID:     messageID,
		SenderID:      senderID,
		ReceiverID:    receiverID,
		SendTimestamp: sendTimestamp,
		Type:          model.MessageTypeFile,
		FileURL:       fileURL,
		FileName:      fileName,
	}
	return f.save(ctx, msg)
}

// SaveGroupTextMessage 群文本消息
func (f *Facade) SaveGroupTextMessage(ctx context.Context, messageID, groupID, senderID int64, text string, sendTimestamp int64) (*model.Message, error) {
	msg := &model.Message{
		MessageID:     messageID,
		SenderID:      senderID,
		GroupID:       groupID,
		SendTimestamp: sendTimestamp,
		Type:          model.MessageTypeText,
		Text:          text,
	}
	return f.save(ctx, msg)
}

// SaveGroupFileMessage 群文件消息
func (f *Facade) SaveGroupFileMessage(ctx context.Context, messageID, groupID, senderID int64, fileURL, fileName string, sendTimestamp int64) (*model.Message, error) {
	msg := &model.Message{
		MessageID:     messageID,
		SenderID:      senderID,
		GroupID:       groupID,
		SendTimestamp: sendTimestamp,
		Type:          model.MessageTypeFile,
		FileURL:       fileURL,
		FileName:      fileName,
	}
	return f.save(ctx, msg)
}

// SaveGroupCommandMessage 群指令消息
func (f *Facade) SaveGroupCommandMessage(ctx context.Context, messageID, groupID, senderID int64, commandType int32, commandData string, sendTimestamp int64) (*model.Message, error) {
	msg := &model.Message{
		MessageID:     messageID,
		SenderID:      senderID,
		GroupID:       groupID,
		SendTimestamp: sendTimestamp,
		Type:          model.MessageTypeCommand,
		CommandType:   commandType,
		CommandData:   commandData,
	}
	return f.save(ctx, msg)
}

// GetMessages 返回 message_id < before 的消息，按 ID 升序取前 pageSize 条
// before 为 0 表示不设上界
func (f *Facade) GetMessages(ctx context.Context, conversationID, beforeMessageID int64, pageSize int) ([]model.Message, error) {
	if err := validatePageSize(pageSize); err != nil {
		return nil, err
	}
	if beforeMessageID <= 0 {
		beforeMessageID = math.MaxInt64
	}
	msgs, err := f.backend.ListMessages(ctx, conversationID, beforeMessageID, pageSize)
	if err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// GetMessage 消息不存在返回 ErrMessageNotFound
func (f *Facade) GetMessage(ctx context.Context, conversationID, messageID int64) (*model.Message, error) {
	msg, err := f.backend.FindMessage(ctx, conversationID, messageID)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		return nil, errorx.Newf(errorx.CodeMessageNotExist, "消息 %d 不存在 conversation=%d", messageID, conversationID)
	}
	return msg, nil
}

func (f *Facade) save(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := f.SaveMessage(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}
