package model

// Group 群组规范信息
type Group struct {
	GroupID int64  `json:"groupId" validate:"gt=0"`
	Name    string `json:"name" validate:"required,max=64"`
	Avatar  string `json:"avatar" validate:"max=512"`
}

// GroupMember 群成员，按 (GroupID, UserID) 存储
type GroupMember struct {
	GroupID int64  `json:"groupId"`
	UserID  int64  `json:"userId" validate:"gt=0"`
	Name    string `json:"name" validate:"max=64"`   // 群内昵称
	Avatar  string `json:"avatar" validate:"max=512"` // 群内头像
}

// UserGroup 用户视角的群组摘要，按 (UserID, GroupID) 存储
type UserGroup struct {
	UserID      int64  `json:"userId"`
	GroupID     int64  `json:"groupId"`
	GroupName   string `json:"groupName"`
	GroupAvatar string `json:"groupAvatar"`
}

// GroupOperation 群组变更明细操作
type GroupOperation uint8

const (
	GroupOpCreated GroupOperation = iota + 1
	GroupOpMemberJoined
	GroupOpMemberQuit
	GroupOpMemberNameUpdated
	GroupOpMemberAvatarUpdated
	GroupOpNameUpdated
	GroupOpAvatarUpdated
)

func (op GroupOperation) String() string {
	switch op {
	case GroupOpCreated:
		return "GROUP_CREATED"
	case GroupOpMemberJoined:
		return "MEMBER_JOINED"
	case GroupOpMemberQuit:
		return "MEMBER_QUIT"
	case GroupOpMemberNameUpdated:
		return "MEMBER_NAME_UPDATED"
	case GroupOpMemberAvatarUpdated:
		return "MEMBER_AVATAR_UPDATED"
	case GroupOpNameUpdated:
		return "GROUP_NAME_UPDATED"
	case GroupOpAvatarUpdated:
		return "GROUP_AVATAR_UPDATED"
	}
	return "UNKNOWN"
}

// ChangeDetail 群组变更明细
type ChangeDetail struct {
	Operation GroupOperation `json:"operation"`
	UserID    *int64         `json:"userId,omitempty"`
	Name      *string        `json:"name,omitempty"`
	Avatar    *string        `json:"avatar,omitempty"`
}

// GroupVersionChange 群组变更日志条目，一个版本可携带多条明细
type GroupVersionChange struct {
	GroupID int64          `json:"groupId"`
	Version Version        `json:"version,string"`
	Details []ChangeDetail `json:"details"`
}

// UserGroupOperation 用户群组摘要变更操作
type UserGroupOperation uint8

const (
	UserGroupOpJoined UserGroupOperation = iota + 1
	UserGroupOpQuit
	UserGroupOpNameUpdated
	UserGroupOpAvatarUpdated
)

func (op UserGroupOperation) String() string {
	switch op {
	case UserGroupOpJoined:
		return "JOINED"
	case UserGroupOpQuit:
		return "QUIT"
	case UserGroupOpNameUpdated:
		return "GROUP_NAME_UPDATED"
	case UserGroupOpAvatarUpdated:
		return "GROUP_AVATAR_UPDATED"
	}
	return "UNKNOWN"
}

// UserGroupVersionChange 用户群组摘要变更日志条目，以 (UserID, Version) 为键
type UserGroupVersionChange struct {
	UserID      int64              `json:"userId"`
	Version     Version            `json:"version,string"`
	GroupID     int64              `json:"groupId"`
	Operation   UserGroupOperation `json:"operation"`
	GroupName   *string            `json:"groupName,omitempty"`
	GroupAvatar *string            `json:"groupAvatar,omitempty"`
}
