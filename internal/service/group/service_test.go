package group

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"

	"im_storage/internal/dao/mysql"
	"im_storage/internal/infrastructure/mq"
	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/pkg/errorx"
)

// seqIDs 从 100 开始递增
type seqIDs struct{ n int64 }

func (s *seqIDs) NextID() int64 {
	s.n++
	return 100 + s.n
}

func (s *seqIDs) NextVersion() model.Version {
	return model.Version(s.NextID())
}

type memberUpdate struct {
	UserID  int64
	Value   string
	Version model.Version
}

type fakeStore struct {
	members    []int64
	groupName  string
	memberErrs map[int64]error
	updates    []memberUpdate
}

func (s *fakeStore) UpdateGroupName(_ context.Context, _ int64, name string, _ model.Version) error {
	s.groupName = name
	return nil
}

func (s *fakeStore) UpdateGroupAvatar(context.Context, int64, string, model.Version) error {
	return nil
}

func (s *fakeStore) GetGroupMemberIDs(context.Context, int64) ([]int64, error) {
	if len(s.members) == 0 {
		return nil, errorx.ErrGroupNotFound
	}
	return s.members, nil
}

func (s *fakeStore) UpdateUserGroupName(_ context.Context, userID, _ int64, name string, v model.Version) error {
	if err := s.memberErrs[userID]; err != nil {
		return err
	}
	s.updates = append(s.updates, memberUpdate{UserID: userID, Value: name, Version: v})
	return nil
}

func (s *fakeStore) UpdateUserGroupAvatar(_ context.Context, userID, _ int64, avatar string, v model.Version) error {
	s.updates = append(s.updates, memberUpdate{UserID: userID, Value: avatar, Version: v})
	return nil
}

type recordingPublisher struct {
	tasks []mq.FanoutTask
	err   error
}

func (p *recordingPublisher) Publish(_ context.Context, tasks ...mq.FanoutTask) error {
	if p.err != nil {
		return p.err
	}
	p.tasks = append(p.tasks, tasks...)
	return nil
}

func TestRenameGroupInline(t *testing.T) {
	st := &fakeStore{members: []int64{1, 2, 3}}
	svc := NewGroupService(st, &seqIDs{}, nil)

	v, err := svc.RenameGroup(context.Background(), 10, "new")
	require.NoError(t, err)
	assert.Equal(t, model.Version(101), v)
	assert.Equal(t, "new", st.groupName)
	assert.Equal(t, []memberUpdate{
		{UserID: 1, Value: "new", Version: 102},
		{UserID: 2, Value: "new", Version: 103},
		{UserID: 3, Value: "new", Version: 104},
	}, st.updates)
}

func TestInlineFanoutSkipsDepartedMembers(t *testing.T) {
	st := &fakeStore{
		members: []int64{1, 2, 3},
		memberErrs: map[int64]error{
			2: errorx.Newf(errorx.CodeGroupMemberNotExist, "用户 2 不在群 10 中"),
		},
	}
	svc := NewGroupService(st, &seqIDs{}, nil)

	_, err := svc.RenameGroup(context.Background(), 10, "new")
	require.NoError(t, err)
	assert.Len(t, st.updates, 2)
}

func TestInlineFanoutReportsFailures(t *testing.T) {
	st := &fakeStore{
		members:    []int64{1, 2},
		memberErrs: map[int64]error{1: errorx.New(errorx.CodeDBError, "down")},
	}
	svc := NewGroupService(st, &seqIDs{}, nil)

	_, err := svc.RenameGroup(context.Background(), 10, "new")
	assert.Equal(t, errorx.CodeDBError, errorx.GetCode(err))
	// 其余成员照常写入
	assert.Equal(t, []memberUpdate{{UserID: 2, Value: "new", Version: 103}}, st.updates)
}

func TestKafkaModePublishesTasks(t *testing.T) {
	st := &fakeStore{members: []int64{5, 6}}
	pub := &recordingPublisher{}
	svc := NewGroupService(st, &seqIDs{}, pub)

	_, err := svc.ChangeGroupAvatar(context.Background(), 10, "g.png")
	require.NoError(t, err)
	assert.Empty(t, st.updates)
	assert.Equal(t, []mq.FanoutTask{
		{GroupID: 10, UserID: 5, Field: mq.FieldAvatar, Value: "g.png", Version: 102},
		{GroupID: 10, UserID: 6, Field: mq.FieldAvatar, Value: "g.png", Version: 103},
	}, pub.tasks)

	// 消费端重放同一任务
	for _, task := range pub.tasks {
		require.NoError(t, svc.Apply(context.Background(), task))
		require.NoError(t, svc.Apply(context.Background(), task))
	}
	assert.Len(t, st.updates, 4)
	assert.Equal(t, st.updates[0], st.updates[1])
}

func TestFanoutWithoutMembers(t *testing.T) {
	svc := NewGroupService(&fakeStore{}, &seqIDs{}, &recordingPublisher{})
	_, err := svc.RenameGroup(context.Background(), 10, "new")
	assert.ErrorIs(t, err, errorx.ErrGroupNotFound)
}

func newFacade(t *testing.T) *store.Facade {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	b, err := mysql.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)))
	require.NoError(t, err)
	sqlDB, err := b.DB().DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	f := store.New(b)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

func TestRenameGroupEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFacade(t)
	ids := &seqIDs{}

	members := []model.GroupMember{{UserID: 1, Name: "a"}, {UserID: 2, Name: "b"}}
	require.NoError(t, f.CreateGroup(ctx, model.Group{GroupID: 10, Name: "old"}, members, ids.NextVersion()))
	require.NoError(t, f.CreateGroupMembersProfile(ctx, 10, []int64{1, 2}, ids.NextVersion()))

	pub := &recordingPublisher{}
	svc := NewGroupService(f, ids, pub)
	_, err := svc.RenameGroup(ctx, 10, "new")
	require.NoError(t, err)
	require.Len(t, pub.tasks, 2)

	for _, task := range append(pub.tasks, pub.tasks...) {
		require.NoError(t, svc.Apply(ctx, task))
	}

	for _, userID := range []int64{1, 2} {
		page, err := f.GetUserGroups(ctx, userID, model.PageRequest{Size: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 1)
		assert.Equal(t, "new", page.Items[0].GroupName)

		conv, err := f.GetConversation(ctx, userID, model.GroupConversationID(10))
		require.NoError(t, err)
		assert.Equal(t, "new", conv.Name)

		// 重放写入同一版本，日志里只有入群和改名两条
		changes, err := f.GetUserGroupChanges(ctx, userID, model.NoVersion, 100)
		require.NoError(t, err)
		assert.Len(t, changes, 2)
	}
}
