package store

import (
	"context"
	"math"
	"strconv"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

// firstPageCursor 空游标对应的下界，所有主键都大于它
const firstPageCursor int64 = math.MinInt64

// parsePageToken 游标为上一页最后一条记录主键的十进制表示
func parsePageToken(token string) (int64, error) {
	if token == "" {
		return firstPageCursor, nil
	}
	after, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return 0, errorx.Wrapf(err, errorx.CodeInvalidPageToken, "分页游标无效: %q", token)
	}
	return after, nil
}

// buildPage 多取一条判断是否还有下一页，截断后以最后一条的主键作为下一页游标
func buildPage[T any](rows []T, size int, key func(T) int64) *model.Page[T] {
	page := &model.Page[T]{Items: rows}
	if len(rows) > size {
		page.Items = rows[:size]
		page.HasMore = true
		page.NextPageToken = strconv.FormatInt(key(page.Items[size-1]), 10)
	}
	if page.Items == nil {
		page.Items = []T{}
	}
	return page
}

// paginate 校验分页请求后向后端请求 size+1 条
func paginate[T any](
	ctx context.Context,
	req model.PageRequest,
	fetch func(ctx context.Context, after int64, limit int) ([]T, error),
	key func(T) int64,
) (*model.Page[T], error) {
	if err := validatePageRequest(req); err != nil {
		return nil, err
	}
	after, err := parsePageToken(req.Token)
	if err != nil {
		return nil, err
	}
	rows, err := fetch(ctx, after, req.Size+1)
	if err != nil {
		return nil, err
	}
	return buildPage(rows, req.Size, key), nil
}
