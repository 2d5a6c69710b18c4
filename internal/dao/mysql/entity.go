package mysql

import (
	"gorm.io/datatypes"

	"im_storage/internal/model"
)

// ====== 用户 ======

// userRow 对应 im_user 表
type userRow struct {
	UserID       int64  `gorm:"column:user_id;primaryKey;autoIncrement:false;comment:用户ID"`
	Account      string `gorm:"column:account;type:varchar(64);uniqueIndex;not null;comment:账号"`
	PasswordHash string `gorm:"column:password_hash;type:varchar(100);comment:密码哈希"`
	Role         uint8  `gorm:"column:role;not null;comment:1.用户 2.机器人"`
	Status       uint8  `gorm:"column:status;not null;comment:0.正常 1.禁用"`
}

func (userRow) TableName() string { return "im_user" }

type userProfileRow struct {
	UserID   int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Account  string `gorm:"column:account;type:varchar(64);not null"`
	NickName string `gorm:"column:nick_name;type:varchar(64)"`
	Avatar   string `gorm:"column:avatar;type:varchar(512)"`
}

func (userProfileRow) TableName() string { return "user_profile" }

type botConfigRow struct {
	UserID       int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	WebhookURL   string `gorm:"column:webhook_url;type:varchar(512);not null"`
	APIKey       string `gorm:"column:api_key;type:varchar(256)"`
	Description  string `gorm:"column:description;type:varchar(512)"`
	ResponseMode uint8  `gorm:"column:response_mode;not null;comment:1.流式 2.整体"`
	CreatedAt    int64  `gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt    int64  `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (botConfigRow) TableName() string { return "bot_config" }

// ====== 关系 ======

type relationRow struct {
	SourceUserID int64  `gorm:"column:source_user_id;primaryKey;autoIncrement:false"`
	TargetUserID int64  `gorm:"column:target_user_id;primaryKey;autoIncrement:false"`
	NickName     string `gorm:"column:nick_name;type:varchar(64)"`
	Avatar       string `gorm:"column:avatar;type:varchar(512)"`
	RemarkName   string `gorm:"column:remark_name;type:varchar(64)"`
	Flags        uint8  `gorm:"column:flags;not null;comment:1.好友 2.拉黑 4.隐藏"`
}

func (relationRow) TableName() string { return "relation" }

type relationVersionRow struct {
	SourceUserID int64   `gorm:"column:source_user_id;primaryKey;autoIncrement:false"`
	Version      int64   `gorm:"column:version;primaryKey;autoIncrement:false"`
	TargetUserID int64   `gorm:"column:target_user_id;not null"`
	Operation    uint8   `gorm:"column:operation;not null"`
	NickName     *string `gorm:"column:nick_name;type:varchar(64)"`
	Avatar       *string `gorm:"column:avatar;type:varchar(512)"`
	RemarkName   *string `gorm:"column:remark_name;type:varchar(64)"`
	Flags        *uint8  `gorm:"column:flags"`
}

func (relationVersionRow) TableName() string { return "relation_version" }

// ====== 会话 ======

type conversationRow struct {
	OwnerID           int64  `gorm:"column:owner_id;primaryKey;autoIncrement:false"`
	ConversationID    int64  `gorm:"column:conversation_id;primaryKey;autoIncrement:false"`
	PeerID            *int64 `gorm:"column:peer_id"`
	GroupID           *int64 `gorm:"column:group_id"`
	LastReadMessageID int64  `gorm:"column:last_read_message_id;not null"`
	Name              string `gorm:"column:name;type:varchar(64)"`
	Avatar            string `gorm:"column:avatar;type:varchar(512)"`
}

func (conversationRow) TableName() string { return "conversation" }

type conversationVersionRow struct {
	OwnerID           int64  `gorm:"column:owner_id;primaryKey;autoIncrement:false"`
	Version           int64  `gorm:"column:version;primaryKey;autoIncrement:false"`
	ConversationID    int64  `gorm:"column:conversation_id;not null"`
	Operation         uint8  `gorm:"column:operation;not null"`
	PeerID            *int64 `gorm:"column:peer_id"`
	GroupID           *int64 `gorm:"column:group_id"`
	LastReadMessageID int64  `gorm:"column:last_read_message_id;not null"`
	Name              string `gorm:"column:name;type:varchar(64)"`
	Avatar            string `gorm:"column:avatar;type:varchar(512)"`
}

func (conversationVersionRow) TableName() string { return "conversation_version" }

// ====== 群组 ======

type groupRow struct {
	GroupID int64  `gorm:"column:group_id;primaryKey;autoIncrement:false"`
	Name    string `gorm:"column:name;type:varchar(64);not null"`
	Avatar  string `gorm:"column:avatar;type:varchar(512)"`
}

func (groupRow) TableName() string { return "group_info" }

type groupMemberRow struct {
	GroupID int64  `gorm:"column:group_id;primaryKey;autoIncrement:false"`
	UserID  int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Name    string `gorm:"column:name;type:varchar(64)"`
	Avatar  string `gorm:"column:avatar;type:varchar(512)"`
}

func (groupMemberRow) TableName() string { return "group_member" }

// groupVersionRow 一个版本的明细批次以 JSON 列存储
type groupVersionRow struct {
	GroupID int64                                   `gorm:"column:group_id;primaryKey;autoIncrement:false"`
	Version int64                                   `gorm:"column:version;primaryKey;autoIncrement:false"`
	Details datatypes.JSONSlice[model.ChangeDetail] `gorm:"column:details"`
}

func (groupVersionRow) TableName() string { return "group_version" }

type userGroupRow struct {
	UserID      int64  `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	GroupID     int64  `gorm:"column:group_id;primaryKey;autoIncrement:false"`
	GroupName   string `gorm:"column:group_name;type:varchar(64)"`
	GroupAvatar string `gorm:"column:group_avatar;type:varchar(512)"`
}

func (userGroupRow) TableName() string { return "user_group" }

type userGroupVersionRow struct {
	UserID      int64   `gorm:"column:user_id;primaryKey;autoIncrement:false"`
	Version     int64   `gorm:"column:version;primaryKey;autoIncrement:false"`
	GroupID     int64   `gorm:"column:group_id;not null"`
	Operation   uint8   `gorm:"column:operation;not null"`
	GroupName   *string `gorm:"column:group_name;type:varchar(64)"`
	GroupAvatar *string `gorm:"column:group_avatar;type:varchar(512)"`
}

func (userGroupVersionRow) TableName() string { return "user_group_version" }

// ====== 消息 ======

type messageRow struct {
	ConversationID int64  `gorm:"column:conversation_id;primaryKey;autoIncrement:false"`
	MessageID      int64  `gorm:"column:message_id;primaryKey;autoIncrement:false"`
	SenderID       int64  `gorm:"column:sender_id;not null"`
	ReceiverID     int64  `gorm:"column:receiver_id"`
	GroupID        int64  `gorm:"column:group_id"`
	SendTimestamp  int64  `gorm:"column:send_timestamp;not null"`
	Type           uint8  `gorm:"column:type;not null;comment:1.文本 2.文件 3.指令"`
	Text           string `gorm:"column:text;type:text"`
	FileURL        string `gorm:"column:file_url;type:varchar(512)"`
	FileName       string `gorm:"column:file_name;type:varchar(255)"`
	CommandType    int32  `gorm:"column:command_type"`
	CommandData    string `gorm:"column:command_data;type:text"`
}

func (messageRow) TableName() string { return "message" }

// allTables AutoMigrate 的表集合
var allTables = []any{
	&userRow{},
	&userProfileRow{},
	&botConfigRow{},
	&relationRow{},
	&relationVersionRow{},
	&conversationRow{},
	&conversationVersionRow{},
	&groupRow{},
	&groupMemberRow{},
	&groupVersionRow{},
	&userGroupRow{},
	&userGroupVersionRow{},
	&messageRow{},
}
