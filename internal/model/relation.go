package model

// RelationFlags 关系位图
// 行存在当且仅当 Flags != 0
type RelationFlags uint8

const (
	FlagFriend  RelationFlags = 1 << iota // 好友
	FlagBlocked                           // 已拉黑
	FlagHidden                            // 拉黑后隐藏
)

func (f RelationFlags) Has(bit RelationFlags) bool { return f&bit != 0 }
func (f RelationFlags) IsFriend() bool             { return f.Has(FlagFriend) }
func (f RelationFlags) IsBlocked() bool            { return f.Has(FlagBlocked) }
func (f RelationFlags) IsHidden() bool             { return f.Has(FlagHidden) }

// Relation 单向关系 source -> target
type Relation struct {
	SourceUserID int64         `json:"sourceUserId"`
	TargetUserID int64         `json:"targetUserId"`
	NickName     string        `json:"nickName"`
	Avatar       string        `json:"avatar"`
	RemarkName   string        `json:"remarkName"`
	Flags        RelationFlags `json:"flags"`
}

// DisplayName 备注名优先，其次昵称
func (r *Relation) DisplayName() string {
	if r.RemarkName != "" {
		return r.RemarkName
	}
	return r.NickName
}

// RelationOperation 关系变更操作
type RelationOperation uint8

const (
	RelationOpAddFriend RelationOperation = iota + 1
	RelationOpRemoveFriend
	RelationOpBlockFriend
	RelationOpBlockStranger
	RelationOpUnblock
	RelationOpHideBlocked
	RelationOpUpdateRemarkName
	RelationOpUpdateNickName
	RelationOpUpdateAvatar
)

var relationOpNames = map[RelationOperation]string{
	RelationOpAddFriend:        "ADD_FRIEND",
	RelationOpRemoveFriend:     "REMOVE_FRIEND",
	RelationOpBlockFriend:      "BLOCK_FRIEND",
	RelationOpBlockStranger:    "BLOCK_STRANGER",
	RelationOpUnblock:          "UNBLOCK",
	RelationOpHideBlocked:      "HIDE_BLOCKED",
	RelationOpUpdateRemarkName: "UPDATE_REMARK_NAME",
	RelationOpUpdateNickName:   "UPDATE_NICK_NAME",
	RelationOpUpdateAvatar:     "UPDATE_AVATAR",
}

func (op RelationOperation) String() string {
	if name, ok := relationOpNames[op]; ok {
		return name
	}
	return "UNKNOWN"
}

// RelationVersionChange 关系变更日志条目，以 (SourceUserID, Version) 为键
type RelationVersionChange struct {
	SourceUserID int64             `json:"sourceUserId"`
	Version      Version           `json:"version,string"`
	TargetUserID int64             `json:"targetUserId"`
	Operation    RelationOperation `json:"operation"`
	NickName     *string           `json:"nickName,omitempty"`
	Avatar       *string           `json:"avatar,omitempty"`
	RemarkName   *string           `json:"remarkName,omitempty"`
	Flags        *RelationFlags    `json:"flags,omitempty"`
}

// RelationEvent 关系操作的输入
type RelationEvent struct {
	SourceUserID int64  `json:"sourceUserId" validate:"gt=0"`
	TargetUserID int64  `json:"targetUserId" validate:"gt=0,nefield=SourceUserID"`
	RemarkName   string `json:"remarkName" validate:"max=64"`
	NickName     string `json:"nickName" validate:"max=64"`
	Avatar       string `json:"avatar" validate:"max=512"`
}
