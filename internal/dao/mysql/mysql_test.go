package mysql

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/internal/store/storetest"
	"im_storage/pkg/errorx"
)

// newSQLiteBackend 每个测试一个独立的内存库
func newSQLiteBackend(t *testing.T) store.Backend {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	b, err := Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	sqlDB, err := b.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return b
}

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, newSQLiteBackend)
}

func TestCommitRollsBackWholeBatch(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t)
	defer b.Close()

	require.NoError(t, b.Commit(ctx, store.NewBatch(
		store.PutUser{User: model.User{UserID: 1, Account: "alice", Role: model.RoleUser}},
	)))

	// 账号冲突使整批回滚，前面的资料写入也不生效
	err := b.Commit(ctx, store.NewBatch(
		store.PutUserProfile{Profile: model.UserProfile{UserID: 2, Account: "alice", NickName: "dup"}},
		store.PutUser{User: model.User{UserID: 2, Account: "alice", Role: model.RoleUser}},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errorx.ErrUserExists))

	profile, err := b.FindUserProfile(ctx, 2)
	require.NoError(t, err)
	assert.Nil(t, profile)
}

func TestFindAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t)
	defer b.Close()

	u, err := b.FindUser(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, u)
	conv, err := b.FindConversation(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, conv)
	msgs, err := b.ListMessages(ctx, 1, 100, 10)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestAbsentRowsAreNotLogged(t *testing.T) {
	ctx := context.Background()
	var buf bytes.Buffer
	b, err := open(sqlite.Open("file:TestAbsentRowsAreNotLogged?mode=memory&cache=shared"),
		newGormLogger(log.New(&buf, "", 0)))
	require.NoError(t, err)
	defer b.Close()

	rel, err := b.FindRelation(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, rel)
	conv, err := b.FindConversation(ctx, 1, 2)
	require.NoError(t, err)
	assert.Nil(t, conv)
	assert.NotContains(t, buf.String(), "record not found")

	// 真正的错误仍然输出
	require.Error(t, b.DB().Exec("SELECT * FROM no_such_table").Error)
	assert.Contains(t, buf.String(), "no_such_table")
}

func TestGroupChangeDetailsRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newSQLiteBackend(t)
	defer b.Close()

	change := model.GroupVersionChange{
		GroupID: 9,
		Version: 3,
		Details: []model.ChangeDetail{
			{Operation: model.GroupOpCreated, Name: model.Ptr("g")},
			{Operation: model.GroupOpMemberJoined, UserID: model.Ptr(int64(5)), Name: model.Ptr(""), Avatar: model.Ptr("a.png")},
		},
	}
	require.NoError(t, b.Commit(ctx, store.NewBatch(store.AppendGroupChange{Change: change})))

	got, err := b.ListGroupChanges(ctx, 9, model.NoVersion, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, change, got[0])
}
