package store

import (
	"context"
	"errors"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

func TestParsePageToken(t *testing.T) {
	after, err := parsePageToken("")
	require.NoError(t, err)
	assert.Equal(t, int64(math.MinInt64), after)

	after, err = parsePageToken("-42")
	require.NoError(t, err)
	assert.Equal(t, int64(-42), after)

	_, err = parsePageToken("next")
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageToken))
}

func TestPaginate(t *testing.T) {
	keys := []int64{3, 5, 8, 13, 21}
	fetch := func(_ context.Context, after int64, limit int) ([]int64, error) {
		var out []int64
		for _, k := range keys {
			if k > after && len(out) < limit {
				out = append(out, k)
			}
		}
		return out, nil
	}
	identity := func(k int64) int64 { return k }
	ctx := context.Background()

	page, err := paginate(ctx, model.PageRequest{Size: 2}, fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 5}, page.Items)
	assert.True(t, page.HasMore)
	assert.Equal(t, "5", page.NextPageToken)

	page, err = paginate(ctx, model.PageRequest{Token: "13", Size: 2}, fetch, identity)
	require.NoError(t, err)
	assert.Equal(t, []int64{21}, page.Items)
	assert.False(t, page.HasMore)
	assert.Empty(t, page.NextPageToken)

	page, err = paginate(ctx, model.PageRequest{Token: strconv.Itoa(21), Size: 2}, fetch, identity)
	require.NoError(t, err)
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
}

func TestPaginateRejectsBeforeFetch(t *testing.T) {
	fetch := func(context.Context, int64, int) ([]int64, error) {
		t.Fatal("fetch must not be called")
		return nil, nil
	}
	key := func(k int64) int64 { return k }
	for _, size := range []int{-1, 0, 201} {
		_, err := paginate(context.Background(), model.PageRequest{Size: size}, fetch, key)
		assert.True(t, errors.Is(err, errorx.ErrInvalidPageSize), "size %d", size)
	}
	_, err := paginate(context.Background(), model.PageRequest{Token: "x", Size: 10}, fetch, key)
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageToken))
}
