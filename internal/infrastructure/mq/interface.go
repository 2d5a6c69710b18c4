// Package mq 群组扇出任务的消息队列封装
// 任务以 JSON 写入 Kafka，按成员 ID 分区，同一成员的任务保持顺序
package mq

import (
	"context"
	"encoding/json"
	"strconv"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// 扇出字段
const (
	FieldName   = "name"
	FieldAvatar = "avatar"
)

// FanoutTask 把群组规范信息的一次变更落到单个成员
// Version 在投递前生成，重复消费时写入同一版本
type FanoutTask struct {
	GroupID int64         `json:"groupId"`
	UserID  int64         `json:"userId"`
	Field   string        `json:"field"`
	Value   string        `json:"value"`
	Version model.Version `json:"version,string"`
}

// Key 分区键
func (t FanoutTask) Key() []byte {
	return []byte(strconv.FormatInt(t.UserID, 10))
}

func (t FanoutTask) Encode() ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeMQError, "编码扇出任务 group=%d user=%d", t.GroupID, t.UserID)
	}
	return data, nil
}

func DecodeFanoutTask(data []byte) (FanoutTask, error) {
	var t FanoutTask
	if err := json.Unmarshal(data, &t); err != nil {
		return t, errorx.Wrap(err, errorx.CodeMQError, "解码扇出任务")
	}
	if t.Field != FieldName && t.Field != FieldAvatar {
		return t, errorx.Newf(errorx.CodeMQError, "未知扇出字段 %q", t.Field)
	}
	return t, nil
}

// TaskPublisher 投递扇出任务
type TaskPublisher interface {
	Publish(ctx context.Context, tasks ...FanoutTask) error
}

// TaskHandler 消费单个扇出任务，返回错误时任务会被重投
type TaskHandler func(ctx context.Context, task FanoutTask) error
