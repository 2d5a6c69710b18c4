package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

type logEntry struct{ v model.Version }

func memoryFeed(head model.Version, log []logEntry) feed[logEntry] {
	return feed[logEntry]{
		latest: func(context.Context) (model.Version, error) { return head, nil },
		changes: func(_ context.Context, after model.Version, limit int) ([]logEntry, error) {
			var out []logEntry
			for _, e := range log {
				if e.v > after && len(out) < limit {
					out = append(out, e)
				}
			}
			return out, nil
		},
		version: func(e logEntry) model.Version { return e.v },
	}
}

func TestSyncFeed(t *testing.T) {
	ctx := context.Background()
	log := []logEntry{{10}, {20}, {30}}
	fd := memoryFeed(30, log)

	res, err := syncFeed(ctx, "", 10, fd)
	require.NoError(t, err)
	assert.True(t, res.FullSync)
	assert.Empty(t, res.Changes)
	assert.Equal(t, model.Version(30), res.LatestVersion)

	res, err = syncFeed(ctx, "10", 10, fd)
	require.NoError(t, err)
	assert.False(t, res.FullSync)
	assert.Equal(t, []logEntry{{20}, {30}}, res.Changes)
	assert.Equal(t, model.Version(30), res.LatestVersion)

	res, err = syncFeed(ctx, "0", 1, fd)
	require.NoError(t, err)
	assert.Equal(t, []logEntry{{10}}, res.Changes)
	assert.Equal(t, model.Version(10), res.LatestVersion)

	res, err = syncFeed(ctx, "99", 10, fd)
	require.NoError(t, err)
	assert.NotNil(t, res.Changes)
	assert.Empty(t, res.Changes)
	assert.Equal(t, model.Version(99), res.LatestVersion)

	for _, bad := range []string{"abc", "-1", "1e3", " 1"} {
		_, err = syncFeed(ctx, bad, 10, fd)
		assert.True(t, errors.Is(err, errorx.ErrInvalidVersion), "token %q", bad)
	}
}

func TestCheckSyncLimit(t *testing.T) {
	f := New(nil, WithMaxSyncLimit(50))
	assert.NoError(t, f.checkSyncLimit(1))
	assert.NoError(t, f.checkSyncLimit(50))
	assert.True(t, errors.Is(f.checkSyncLimit(0), errorx.ErrInvalidPageSize))
	assert.True(t, errors.Is(f.checkSyncLimit(51), errorx.ErrInvalidPageSize))
}

func TestLatestOrAbsent(t *testing.T) {
	_, ok, err := latestOrAbsent(model.NoVersion, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := latestOrAbsent(7, nil)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, model.Version(7), v)

	_, _, err = latestOrAbsent(0, errorx.New(errorx.CodeDBError, "boom"))
	assert.Error(t, err)
}
