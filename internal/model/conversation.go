package model

import (
	"encoding/binary"
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"im_storage/pkg/errorx"
)

// ChatKind 会话类型
type ChatKind uint8

const (
	ChatKindSingle ChatKind = 1 // 单聊
	ChatKindGroup  ChatKind = 2 // 群聊
)

// ConversationTarget 会话对象：单聊对端或群组，二者恰有其一
// 字段不导出，只能通过 SingleTarget / GroupTarget 构造
type ConversationTarget struct {
	kind ChatKind
	id   int64
}

func SingleTarget(peerID int64) ConversationTarget {
	return ConversationTarget{kind: ChatKindSingle, id: peerID}
}

func GroupTarget(groupID int64) ConversationTarget {
	return ConversationTarget{kind: ChatKindGroup, id: groupID}
}

func (t ConversationTarget) Kind() ChatKind { return t.kind }

// PeerID 单聊对端
func (t ConversationTarget) PeerID() (int64, bool) {
	return t.id, t.kind == ChatKindSingle
}

// GroupID 群聊群号
func (t ConversationTarget) GroupID() (int64, bool) {
	return t.id, t.kind == ChatKindGroup
}

// Columns 拆成两个可空列，供后端落库
func (t ConversationTarget) Columns() (peerID, groupID *int64) {
	switch t.kind {
	case ChatKindSingle:
		return Ptr(t.id), nil
	case ChatKindGroup:
		return nil, Ptr(t.id)
	}
	return nil, nil
}

// TargetFromColumns 由两个可空列还原会话对象
func TargetFromColumns(peerID, groupID *int64) (ConversationTarget, error) {
	switch {
	case peerID != nil && groupID == nil:
		return SingleTarget(*peerID), nil
	case peerID == nil && groupID != nil:
		return GroupTarget(*groupID), nil
	}
	return ConversationTarget{}, errorx.New(errorx.CodeDBError, "会话对象必须恰有 peerId 或 groupId 之一")
}

// ConversationID 由会话对象推导会话 ID
func (t ConversationTarget) ConversationID(ownerID int64) int64 {
	if t.kind == ChatKindGroup {
		return GroupConversationID(t.id)
	}
	return SingleConversationID(ownerID, t.id)
}

// SingleConversationID 单聊会话 ID，对参与双方对称
// 对有序二元组做 xxhash64 并清除符号位
func SingleConversationID(a, b int64) int64 {
	if a > b {
		a, b = b, a
	}
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(a))
	binary.BigEndian.PutUint64(buf[8:], uint64(b))
	return int64(xxhash.Sum64(buf[:]) &^ (1 << 63))
}

// GroupConversationID 群聊会话 ID 即群号
func GroupConversationID(groupID int64) int64 {
	return groupID
}

// Conversation 会话，按 (OwnerID, ConversationID) 存储，每个参与者一行
type Conversation struct {
	OwnerID           int64              `json:"ownerId"`
	ConversationID    int64              `json:"conversationId"`
	Target            ConversationTarget `json:"-"`
	LastReadMessageID int64              `json:"lastReadMessageId"`
	Name              string             `json:"name"`
	Avatar            string             `json:"avatar"`
}

// ConversationOperation 会话变更操作
type ConversationOperation uint8

const (
	ConversationOpCreated ConversationOperation = iota + 1
	ConversationOpNameUpdated
	ConversationOpAvatarUpdated
	ConversationOpLastReadUpdated
	ConversationOpRemoved
)

func (op ConversationOperation) String() string {
	switch op {
	case ConversationOpCreated:
		return "CREATED"
	case ConversationOpNameUpdated:
		return "NAME_UPDATED"
	case ConversationOpAvatarUpdated:
		return "AVATAR_UPDATED"
	case ConversationOpLastReadUpdated:
		return "LAST_READ_UPDATED"
	case ConversationOpRemoved:
		return "REMOVED"
	}
	return "UNKNOWN"
}

// ConversationVersionChange 会话变更日志条目，携带变更后的完整快照
type ConversationVersionChange struct {
	OwnerID           int64                 `json:"ownerId"`
	Version           Version               `json:"version,string"`
	ConversationID    int64                 `json:"conversationId"`
	Operation         ConversationOperation `json:"operation"`
	Target            ConversationTarget    `json:"-"`
	LastReadMessageID int64                 `json:"lastReadMessageId"`
	Name              string                `json:"name"`
	Avatar            string                `json:"avatar"`
}

// NewConversationChange 以会话快照生成日志条目
func NewConversationChange(c *Conversation, op ConversationOperation, v Version) ConversationVersionChange {
	return ConversationVersionChange{
		OwnerID:           c.OwnerID,
		Version:           v,
		ConversationID:    c.ConversationID,
		Operation:         op,
		Target:            c.Target,
		LastReadMessageID: c.LastReadMessageID,
		Name:              c.Name,
		Avatar:            c.Avatar,
	}
}

// targetJSON 会话对象的 JSON 形式，peerId 与 groupId 恰有其一
type targetJSON struct {
	PeerID  *int64 `json:"peerId,omitempty"`
	GroupID *int64 `json:"groupId,omitempty"`
}

func newTargetJSON(t ConversationTarget) targetJSON {
	peerID, groupID := t.Columns()
	return targetJSON{PeerID: peerID, GroupID: groupID}
}

func (j targetJSON) target() (ConversationTarget, error) {
	t, err := TargetFromColumns(j.PeerID, j.GroupID)
	if err != nil {
		return ConversationTarget{}, errorx.New(errorx.CodeInvalidParam, "会话对象必须恰有 peerId 或 groupId 之一")
	}
	return t, nil
}

func (c Conversation) MarshalJSON() ([]byte, error) {
	type plain Conversation
	return json.Marshal(struct {
		plain
		targetJSON
	}{plain(c), newTargetJSON(c.Target)})
}

func (c *Conversation) UnmarshalJSON(data []byte) error {
	type plain Conversation
	var aux struct {
		plain
		targetJSON
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	target, err := aux.target()
	if err != nil {
		return err
	}
	*c = Conversation(aux.plain)
	c.Target = target
	return nil
}

func (c ConversationVersionChange) MarshalJSON() ([]byte, error) {
	type plain ConversationVersionChange
	return json.Marshal(struct {
		plain
		targetJSON
	}{plain(c), newTargetJSON(c.Target)})
}

func (c *ConversationVersionChange) UnmarshalJSON(data []byte) error {
	type plain ConversationVersionChange
	var aux struct {
		plain
		targetJSON
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	target, err := aux.target()
	if err != nil {
		return err
	}
	*c = ConversationVersionChange(aux.plain)
	c.Target = target
	return nil
}
