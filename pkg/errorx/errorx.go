package errorx

import (
	"errors"
	"fmt"
)

// CodeError 带业务错误码的自定义错误
// 实现了 error 接口，支持 %w 包装底层错误，且能被 errors.Is/errors.As 识别
type CodeError struct {
	Code  int    // 业务错误码
	Msg   string // 错误消息
	cause error  // 被包装的底层错误
}

// Error 当存在底层错误时返回 "消息: 底层错误"，否则仅返回消息
func (e *CodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.cause)
	}
	return e.Msg
}

// Unwrap 支持 errors.Is/errors.As 向下追溯
func (e *CodeError) Unwrap() error {
	return e.cause
}

// Is 按错误码比较
// 这样 Wrap(err, CodeNotFriends, ...) 产生的错误也能通过 errors.Is(err, ErrNotFriends) 判断
func (e *CodeError) Is(target error) bool {
	var t *CodeError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// New 创建一个新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  msg,
	}
}

// Newf 创建一个带格式化消息的 CodeError
func Newf(code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code: code,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Wrap 包装底层错误，添加业务错误码和消息
// 用法: errorx.Wrap(err, CodeNotFound, "用户不存在")
func Wrap(err error, code int, msg string) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   msg,
		cause: err,
	}
}

// Wrapf 包装底层错误，支持格式化消息
// 用法: errorx.Wrapf(err, CodeNotFound, "用户 %d 不存在", userID)
func Wrapf(err error, code int, format string, args ...any) *CodeError {
	return &CodeError{
		Code:  code,
		Msg:   fmt.Sprintf(format, args...),
		cause: err,
	}
}

// GetCode 从错误中提取业务错误码，如果不是 CodeError 则返回默认码
func GetCode(err error) int {
	var codeErr *CodeError
	if errors.As(err, &codeErr) {
		return codeErr.Code
	}
	return CodeServerBusy
}

// 业务状态码常量定义
const (
	CodeSuccess         = 1000 // 成功
	CodeInvalidParam    = 1001 // 请求参数错误
	CodeUserExist       = 1002 // 用户已存在
	CodeUserNotExist    = 1003 // 用户不存在
	CodeInvalidPassword = 1004 // 密码错误
	CodeServerBusy      = 1005 // 服务繁忙
	CodeNotFound        = 1008 // 资源不存在
	CodeDBError         = 1010 // 数据库错误
	CodeCacheError      = 1011 // 缓存错误
	CodeMQError         = 1012 // 消息队列错误

	// ====== 分页 / 同步 ======
	CodeInvalidPageSize  = 1101 // 分页大小越界
	CodeInvalidPageToken = 1102 // 分页游标无法解析
	CodeInvalidVersion   = 1103 // 版本号无法解析

	// ====== 用户 ======
	CodeUserProfileNotExist = 1201 // 用户资料不存在
	CodeBotConfigNotExist   = 1202 // 机器人配置不存在

	// ====== 关系 ======
	CodeRelationNotExist        = 1301 // 关系不存在
	CodeRelationExist           = 1302 // 关系已存在
	CodeAlreadyFriends          = 1303 // 已经是好友
	CodeNotFriends              = 1304 // 不是好友
	CodeAlreadyBlocked          = 1305 // 已拉黑
	CodeNotBlocked              = 1306 // 未拉黑
	CodeStrangerHasRelationship = 1307 // 陌生人拉黑时已存在关系

	// ====== 会话 / 群组 / 消息 ======
	CodeConversationNotExist = 1401 // 会话不存在
	CodeGroupNotExist        = 1402 // 群组不存在
	CodeGroupMemberNotExist  = 1403 // 群成员不存在
	CodeAlreadyGroupMember   = 1404 // 已是群成员
	CodeMessageNotExist      = 1405 // 消息不存在
)

// 预定义常用错误实例
// 这些实例既可直接返回，也可用于 errors.Is 比较
var (
	ErrInvalidParam = New(CodeInvalidParam, "请求参数错误")

	ErrInvalidPageSize  = New(CodeInvalidPageSize, "分页大小越界")
	ErrInvalidPageToken = New(CodeInvalidPageToken, "分页游标无效")
	ErrInvalidVersion   = New(CodeInvalidVersion, "版本号无效")

	ErrUserExists          = New(CodeUserExist, "用户已存在")
	ErrUserNotFound        = New(CodeUserNotExist, "用户不存在")
	ErrUserProfileNotFound = New(CodeUserProfileNotExist, "用户资料不存在")
	ErrBotConfigNotFound   = New(CodeBotConfigNotExist, "机器人配置不存在")

	ErrRelationNotFound        = New(CodeRelationNotExist, "关系不存在")
	ErrRelationExists          = New(CodeRelationExist, "关系已存在")
	ErrAlreadyFriends          = New(CodeAlreadyFriends, "已经是好友")
	ErrNotFriends              = New(CodeNotFriends, "不是好友")
	ErrAlreadyBlocked          = New(CodeAlreadyBlocked, "已拉黑该用户")
	ErrNotBlocked              = New(CodeNotBlocked, "未拉黑该用户")
	ErrStrangerHasRelationship = New(CodeStrangerHasRelationship, "与该用户已存在关系")

	ErrConversationNotFound = New(CodeConversationNotExist, "会话不存在")
	ErrGroupNotFound        = New(CodeGroupNotExist, "群组不存在")
	ErrGroupMemberNotFound  = New(CodeGroupMemberNotExist, "群成员不存在")
	ErrAlreadyGroupMember   = New(CodeAlreadyGroupMember, "已是群成员")
	ErrMessageNotFound      = New(CodeMessageNotExist, "消息不存在")
)

