package store

import (
	"context"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// checkSyncLimit 单次增量拉取条数必须在 [1, maxSyncLimit]
func (f *Facade) checkSyncLimit(limit int) error {
	if limit < 1 || limit > f.maxSyncLimit {
		return errorx.Newf(errorx.CodeInvalidPageSize, "增量拉取条数必须在 [1, %d] 之间: %d", f.maxSyncLimit, limit)
	}
	return nil
}

// feed 一条版本日志的读取方式
type feed[T any] struct {
	latest  func(ctx context.Context) (model.Version, error)
	changes func(ctx context.Context, after model.Version, limit int) ([]T, error)
	version func(T) model.Version
}

// syncFeed 客户端增量同步协议
//   - token 为空：不返回变更，只返回当前最新版本并要求全量同步。
//     最新版本先于客户端的全量快照读取，快照与版本之间的写入会在下一次增量中重放。
//   - token 无法解析：ErrInvalidVersion
//   - 否则：返回 version > token 的变更；LatestVersion 为最后一条的版本，无变更时回显 token
func syncFeed[T any](ctx context.Context, token string, limit int, fd feed[T]) (*model.SyncResult[T], error) {
	if token == "" {
		head, err := fd.latest(ctx)
		if err != nil {
			return nil, err
		}
		return &model.SyncResult[T]{FullSync: true, Changes: []T{}, LatestVersion: head}, nil
	}
	after, err := model.ParseVersion(token)
	if err != nil {
		return nil, err
	}
	changes, err := fd.changes(ctx, after, limit)
	if err != nil {
		return nil, err
	}
	res := &model.SyncResult[T]{Changes: changes, LatestVersion: after}
	if len(changes) > 0 {
		res.LatestVersion = fd.version(changes[len(changes)-1])
	}
	if res.Changes == nil {
		res.Changes = []T{}
	}
	return res, nil
}

// latestOrAbsent 把 NoVersion 转成 "不存在"
func latestOrAbsent(v model.Version, err error) (model.Version, bool, error) {
	if err != nil {
		return model.NoVersion, false, err
	}
	return v, !v.IsZero(), nil
}
