package model

import (
	"golang.org/x/crypto/bcrypt" // 密码哈希库
)

// UserRole 用户角色
type UserRole uint8

const (
	RoleUser UserRole = 1 // 普通用户
	RoleBot  UserRole = 2 // 机器人
)

// UserStatus 账号状态
type UserStatus uint8

const (
	UserStatusNormal   UserStatus = 0
	UserStatusDisabled UserStatus = 1
)

// User 账号信息
type User struct {
	UserID       int64      `json:"userId" validate:"gt=0"`
	Account      string     `json:"account" validate:"required,max=64"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role" validate:"oneof=1 2"`
	Status       UserStatus `json:"status"`

	// RawPassword 明文密码（不落库），写入前由 HashPassword 转为 PasswordHash
	RawPassword string `json:"-"`
}

// HashPassword 如果提供了明文密码，则加密后写入 PasswordHash 并清空明文
func (u *User) HashPassword() error {
	if u.RawPassword == "" {
		return nil
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(u.RawPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(hash)
	u.RawPassword = ""
	return nil
}

// CheckPassword 校验密码是否正确
func (u *User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plaintext)) == nil
}

// UserProfile 用户公开资料
type UserProfile struct {
	UserID   int64  `json:"userId"`
	Account  string `json:"account"`
	NickName string `json:"nickName"`
	Avatar   string `json:"avatar"`
}

// BotResponseMode 机器人回复模式
type BotResponseMode uint8

const (
	BotResponseStreaming BotResponseMode = 1
	BotResponseBatch     BotResponseMode = 2
)

// BotConfig 机器人配置，每个机器人用户一条
type BotConfig struct {
	UserID       int64           `json:"userId" validate:"gt=0"`
	WebhookURL   string          `json:"webhookUrl" validate:"required,url"`
	APIKey       string          `json:"apiKey,omitempty"`
	Description  string          `json:"description" validate:"max=512"`
	ResponseMode BotResponseMode `json:"responseMode" validate:"oneof=1 2"`
	CreatedAt    int64           `json:"createdAt"` // 毫秒
	UpdatedAt    int64           `json:"updatedAt"` // 毫秒
}
