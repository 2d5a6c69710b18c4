// Package model 定义与存储后端无关的领域模型
// 所有后端适配器在此模型与各自的行/文档结构之间转换
package model

import (
	"strconv"

	"im_storage/pkg/errorx"
)

// Version 变更日志版本号
// 只支持比较，不做算术；对外以十进制字符串传递
type Version int64

// NoVersion 表示"从日志开头"或"日志为空"
const NoVersion Version = 0

// ParseVersion 解析客户端传来的版本号
func ParseVersion(s string) (Version, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v < 0 {
		return NoVersion, errorx.Wrapf(err, errorx.CodeInvalidVersion, "版本号无效: %q", s)
	}
	return Version(v), nil
}

func (v Version) String() string {
	return strconv.FormatInt(int64(v), 10)
}

// IsZero 是否为空版本
func (v Version) IsZero() bool {
	return v == NoVersion
}

// IDGenerator ID 与版本号来源
type IDGenerator interface {
	NextID() int64
	NextVersion() Version
}

// Ptr 返回值的指针，用于可选字段
func Ptr[T any](v T) *T {
	return &v
}
