// Package group 群组规范信息变更与成员扇出
// 群名、群头像先写群组本身，再为每个成员生成一个独立任务，
// 由 inline 模式在调用方协程内执行，或由 kafka 模式投递给消费者
package group

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"im_storage/internal/infrastructure/mq"
	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// groupStore 扇出所需的存储能力，由 store.Facade 实现
type groupStore interface {
	UpdateGroupName(ctx context.Context, groupID int64, name string, v model.Version) error
	UpdateGroupAvatar(ctx context.Context, groupID int64, avatar string, v model.Version) error
	GetGroupMemberIDs(ctx context.Context, groupID int64) ([]int64, error)
	UpdateUserGroupName(ctx context.Context, userID, groupID int64, name string, v model.Version) error
	UpdateUserGroupAvatar(ctx context.Context, userID, groupID int64, avatar string, v model.Version) error
}

// groupService 群组扇出业务实现
type groupService struct {
	store     groupStore
	ids       model.IDGenerator
	publisher mq.TaskPublisher
}

// NewGroupService publisher 为 nil 时使用 inline 模式
func NewGroupService(store groupStore, ids model.IDGenerator, publisher mq.TaskPublisher) *groupService {
	return &groupService{store: store, ids: ids, publisher: publisher}
}

// RenameGroup 修改群名并扇出到全部成员，返回群日志的版本号
func (g *groupService) RenameGroup(ctx context.Context, groupID int64, name string) (model.Version, error) {
	v := g.ids.NextVersion()
	if err := g.store.UpdateGroupName(ctx, groupID, name, v); err != nil {
		return model.NoVersion, err
	}
	return v, g.fanout(ctx, groupID, mq.FieldName, name)
}

// ChangeGroupAvatar 修改群头像并扇出到全部成员
func (g *groupService) ChangeGroupAvatar(ctx context.Context, groupID int64, avatar string) (model.Version, error) {
	v := g.ids.NextVersion()
	if err := g.store.UpdateGroupAvatar(ctx, groupID, avatar, v); err != nil {
		return model.NoVersion, err
	}
	return v, g.fanout(ctx, groupID, mq.FieldAvatar, avatar)
}

// fanout 每个成员的任务预先分配版本号，重复执行写入同一版本
func (g *groupService) fanout(ctx context.Context, groupID int64, field, value string) error {
	members, err := g.store.GetGroupMemberIDs(ctx, groupID)
	if err != nil {
		return err
	}
	tasks := make([]mq.FanoutTask, len(members))
	for i, userID := range members {
		tasks[i] = mq.FanoutTask{GroupID: groupID, UserID: userID, Field: field, Value: value, Version: g.ids.NextVersion()}
	}

	if g.publisher != nil {
		if err := g.publisher.Publish(ctx, tasks...); err != nil {
			return err
		}
		zap.L().Debug("fanout published", zap.Int64("group", groupID), zap.String("field", field), zap.Int("members", len(tasks)))
		return nil
	}

	var errs []error
	for _, t := range tasks {
		if err := g.Apply(ctx, t); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errorx.Wrapf(errors.Join(errs...), errorx.CodeDBError, "群 %d 扇出失败 %d/%d", groupID, len(errs), len(tasks))
	}
	return nil
}

// Apply 执行单个成员任务，作为 Kafka 消费者的处理函数
// 成员已退群时跳过
func (g *groupService) Apply(ctx context.Context, t mq.FanoutTask) error {
	var err error
	switch t.Field {
	case mq.FieldName:
		err = g.store.UpdateUserGroupName(ctx, t.UserID, t.GroupID, t.Value, t.Version)
	case mq.FieldAvatar:
		err = g.store.UpdateUserGroupAvatar(ctx, t.UserID, t.GroupID, t.Value, t.Version)
	default:
		zap.L().Warn("skip fanout task with unknown field", zap.String("field", t.Field))
		return nil
	}
	if errors.Is(err, errorx.ErrGroupMemberNotFound) {
		zap.L().Info("member left before fanout", zap.Int64("group", t.GroupID), zap.Int64("user", t.UserID))
		return nil
	}
	return err
}
