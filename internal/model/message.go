package model

// MessageType 消息类型
type MessageType uint8

const (
	MessageTypeText    MessageType = 1
	MessageTypeFile    MessageType = 2
	MessageTypeCommand MessageType = 3 // 群指令消息（如入群、改名通知）
)

// Message 消息，按 (ConversationID, MessageID) 存储，只追加
// ReceiverID / GroupID 为 0 表示不存在
type Message struct {
	ConversationID int64       `json:"conversationId"`
	MessageID      int64       `json:"messageId" validate:"gt=0"`
	SenderID       int64       `json:"senderId" validate:"gt=0"`
	ReceiverID     int64       `json:"receiverId,omitempty"`
	GroupID        int64       `json:"groupId,omitempty"`
	SendTimestamp  int64       `json:"sendTimestamp"` // 毫秒
	Type           MessageType `json:"type" validate:"oneof=1 2 3"`
	Text           string      `json:"text,omitempty"`
	FileURL        string      `json:"fileUrl,omitempty"`
	FileName       string      `json:"fileName,omitempty"`
	CommandType    int32       `json:"commandType,omitempty"`
	CommandData    string      `json:"commandData,omitempty"`
}

// IsGroup 是否为群消息
func (m *Message) IsGroup() bool {
	return m.GroupID != 0
}
