// Package storetest 后端一致性测试集
// 每个 store.Backend 实现都以自己的 Factory 运行 Run，保证各后端对门面表现一致
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/pkg/errorx"
)

// Factory 为每个子测试返回一个空的后端
type Factory func(t *testing.T) store.Backend

// Run 在给定后端上执行全部用例
func Run(t *testing.T, newBackend Factory) {
	cases := []struct {
		name string
		fn   func(h *harness)
	}{
		{"Users", testUsers},
		{"BotConfig", testBotConfig},
		{"RelationStateMachine", testRelationStateMachine},
		{"HiddenStranger", testHiddenStranger},
		{"RelationFieldPropagation", testRelationFieldPropagation},
		{"RelationPaging", testRelationPaging},
		{"RelationSync", testRelationSync},
		{"RelationSyncReplay", testRelationSyncReplay},
		{"SingleConversation", testSingleConversation},
		{"ConversationPagingAndSync", testConversationPagingAndSync},
		{"ConversationSyncReplay", testConversationSyncReplay},
		{"GroupLifecycle", testGroupLifecycle},
		{"CreateGroupWithMembers", testCreateGroupWithMembers},
		{"MemberProfileRetry", testMemberProfileRetry},
		{"GroupMemberUpdates", testGroupMemberUpdates},
		{"UserGroupFanout", testUserGroupFanout},
		{"Messages", testMessages},
		{"ReplayLogAppend", testReplayLogAppend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			backend := newBackend(t)
			h := &harness{t: t, ctx: context.Background(), now: time.UnixMilli(1_700_000_000_000)}
			h.f = store.New(backend, store.WithClock(func() time.Time { return h.now }))
			t.Cleanup(func() { _ = h.f.Close() })
			tc.fn(h)
		})
	}
}

type harness struct {
	t       *testing.T
	ctx     context.Context
	f       *store.Facade
	now     time.Time
	version int64
}

// v 单调递增的版本号
func (h *harness) v() model.Version {
	h.version++
	return model.Version(h.version)
}

func (h *harness) user(id int64, nick string) {
	h.t.Helper()
	u := &model.User{UserID: id, Account: fmt.Sprintf("account_%d", id), Role: model.RoleUser}
	require.NoError(h.t, h.f.InsertUser(h.ctx, u, nick, "avatar_"+nick))
}

func (h *harness) event(src, dst int64) model.RelationEvent {
	return model.RelationEvent{SourceUserID: src, TargetUserID: dst}
}

func requireCode(t *testing.T, want *errorx.CodeError, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Truef(t, errors.Is(err, want), "want code %d, got %v", want.Code, err)
}

func testUsers(h *harness) {
	t := h.t
	u := &model.User{UserID: 1, Account: "alice", Role: model.RoleUser, RawPassword: "secret"}
	require.NoError(t, h.f.InsertUser(h.ctx, u, "Alice", "a.png"))

	got, err := h.f.GetUser(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Account)
	assert.True(t, got.CheckPassword("secret"))
	assert.False(t, got.CheckPassword("wrong"))

	byAccount, err := h.f.GetUserByAccount(h.ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), byAccount.UserID)

	requireCode(t, errorx.ErrUserExists, h.f.InsertUser(h.ctx, &model.User{UserID: 2, Account: "alice", Role: model.RoleUser}, "", ""))
	requireCode(t, errorx.ErrUserExists, h.f.InsertUser(h.ctx, &model.User{UserID: 1, Account: "other", Role: model.RoleUser}, "", ""))
	requireCode(t, errorx.ErrInvalidParam, h.f.InsertUser(h.ctx, &model.User{UserID: 0, Account: "x", Role: model.RoleUser}, "", ""))

	ok, err := h.f.ExistsUser(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = h.f.ExistsUser(h.ctx, 99)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = h.f.GetUser(h.ctx, 99)
	requireCode(t, errorx.ErrUserNotFound, err)
	_, err = h.f.GetUserProfile(h.ctx, 99)
	requireCode(t, errorx.ErrUserProfileNotFound, err)

	require.NoError(t, h.f.UpdateUserProfile(h.ctx, 1, "Alice2", "b.png"))
	profile, err := h.f.GetUserProfile(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.UserProfile{UserID: 1, Account: "alice", NickName: "Alice2", Avatar: "b.png"}, *profile)
}

func testBotConfig(h *harness) {
	t := h.t
	h.user(1, "human")
	require.NoError(t, h.f.InsertUser(h.ctx, &model.User{UserID: 50, Account: "bot", Role: model.RoleBot}, "Bot", ""))

	_, err := h.f.GetBotConfig(h.ctx, 50)
	requireCode(t, errorx.ErrBotConfigNotFound, err)

	cfg := &model.BotConfig{UserID: 50, WebhookURL: "https://bot.example.com/hook", ResponseMode: model.BotResponseStreaming}
	require.NoError(t, h.f.UpsertBotConfig(h.ctx, cfg))
	created := h.now.UnixMilli()

	h.now = h.now.Add(time.Minute)
	cfg2 := &model.BotConfig{UserID: 50, WebhookURL: "https://bot.example.com/v2", ResponseMode: model.BotResponseBatch, Description: "v2"}
	require.NoError(t, h.f.UpsertBotConfig(h.ctx, cfg2))

	got, err := h.f.GetBotConfig(h.ctx, 50)
	require.NoError(t, err)
	assert.Equal(t, "https://bot.example.com/v2", got.WebhookURL)
	assert.Equal(t, model.BotResponseBatch, got.ResponseMode)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, h.now.UnixMilli(), got.UpdatedAt)

	requireCode(t, errorx.ErrInvalidParam, h.f.UpsertBotConfig(h.ctx,
		&model.BotConfig{UserID: 1, WebhookURL: "https://x.example.com", ResponseMode: model.BotResponseBatch}))
	requireCode(t, errorx.ErrInvalidParam, h.f.UpsertBotConfig(h.ctx,
		&model.BotConfig{UserID: 50, WebhookURL: "not a url", ResponseMode: model.BotResponseBatch}))
}

func testRelationStateMachine(h *harness) {
	t := h.t
	h.user(1, "a")
	h.user(2, "b")
	ev := h.event(1, 2)

	flagsOf := func() model.RelationFlags {
		t.Helper()
		rel, err := h.f.GetRelation(h.ctx, 1, 2)
		require.NoError(t, err)
		return rel.Flags
	}

	require.NoError(t, h.f.AddFriend(h.ctx, ev, h.v()))
	rel, err := h.f.GetRelation(h.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.FlagFriend, rel.Flags)
	assert.Equal(t, "b", rel.NickName)
	assert.Equal(t, "avatar_b", rel.Avatar)

	requireCode(t, errorx.ErrAlreadyFriends, h.f.AddFriend(h.ctx, ev, h.v()))

	require.NoError(t, h.f.BlockFriend(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagFriend|model.FlagBlocked, flagsOf())
	requireCode(t, errorx.ErrAlreadyBlocked, h.f.BlockFriend(h.ctx, ev, h.v()))

	require.NoError(t, h.f.HideBlockedUser(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagBlocked|model.FlagHidden, flagsOf())

	require.NoError(t, h.f.AddFriend(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagFriend, flagsOf())

	require.NoError(t, h.f.RemoveFriend(h.ctx, ev, h.v()))
	_, err = h.f.GetRelation(h.ctx, 1, 2)
	requireCode(t, errorx.ErrRelationNotFound, err)
	requireCode(t, errorx.ErrNotFriends, h.f.RemoveFriend(h.ctx, ev, h.v()))
	requireCode(t, errorx.ErrRelationNotFound, h.f.BlockFriend(h.ctx, ev, h.v()))

	require.NoError(t, h.f.BlockStranger(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagBlocked, flagsOf())
	requireCode(t, errorx.ErrStrangerHasRelationship, h.f.BlockStranger(h.ctx, ev, h.v()))
	requireCode(t, errorx.ErrRelationExists, h.f.AddFriend(h.ctx, ev, h.v()))

	require.NoError(t, h.f.UnblockUser(h.ctx, ev, h.v()))
	_, err = h.f.GetRelation(h.ctx, 1, 2)
	requireCode(t, errorx.ErrRelationNotFound, err)
	requireCode(t, errorx.ErrNotBlocked, h.f.UnblockUser(h.ctx, ev, h.v()))
	requireCode(t, errorx.ErrNotBlocked, h.f.HideBlockedUser(h.ctx, ev, h.v()))

	// 被拒绝的操作不写日志
	changes, err := h.f.GetRelationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	ops := make([]model.RelationOperation, len(changes))
	for i, c := range changes {
		ops[i] = c.Operation
		if i > 0 {
			assert.Greater(t, c.Version, changes[i-1].Version)
		}
	}
	assert.Equal(t, []model.RelationOperation{
		model.RelationOpAddFriend,
		model.RelationOpBlockFriend,
		model.RelationOpHideBlocked,
		model.RelationOpAddFriend,
		model.RelationOpRemoveFriend,
		model.RelationOpBlockStranger,
		model.RelationOpUnblock,
	}, ops)
	last := changes[len(changes)-1]
	require.NotNil(t, last.Flags)
	assert.Equal(t, model.RelationFlags(0), *last.Flags)

	// 反向关系不受影响
	_, err = h.f.GetRelation(h.ctx, 2, 1)
	requireCode(t, errorx.ErrRelationNotFound, err)

	requireCode(t, errorx.ErrInvalidParam, h.f.AddFriend(h.ctx, h.event(1, 1), h.v()))
	requireCode(t, errorx.ErrUserProfileNotFound, h.f.AddFriend(h.ctx, h.event(1, 404), h.v()))
}

// testHiddenStranger 拉黑陌生人后隐藏，取消拉黑只清除 BLOCKED
func testHiddenStranger(h *harness) {
	t := h.t
	h.user(1, "a")
	h.user(2, "b")
	ev := h.event(1, 2)

	flagsOf := func() model.RelationFlags {
		t.Helper()
		rel, err := h.f.GetRelation(h.ctx, 1, 2)
		require.NoError(t, err)
		return rel.Flags
	}

	require.NoError(t, h.f.BlockStranger(h.ctx, ev, h.v()))
	require.NoError(t, h.f.HideBlockedUser(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagBlocked|model.FlagHidden, flagsOf())

	vUnblock := h.v()
	require.NoError(t, h.f.UnblockUser(h.ctx, ev, vUnblock))
	rel, err := h.f.GetRelation(h.ctx, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, model.FlagHidden, rel.Flags)
	assert.Equal(t, "b", rel.NickName)

	changes, err := h.f.GetRelationChanges(h.ctx, 1, vUnblock-1, 100)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	require.NotNil(t, changes[0].Flags)
	assert.Equal(t, model.FlagHidden, *changes[0].Flags)

	requireCode(t, errorx.ErrNotBlocked, h.f.UnblockUser(h.ctx, ev, h.v()))
	requireCode(t, errorx.ErrRelationExists, h.f.AddFriend(h.ctx, ev, h.v()))
	requireCode(t, errorx.ErrStrangerHasRelationship, h.f.BlockStranger(h.ctx, ev, h.v()))

	// 再次拉黑后可以重新加好友
	require.NoError(t, h.f.BlockFriend(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagBlocked|model.FlagHidden, flagsOf())
	require.NoError(t, h.f.AddFriend(h.ctx, ev, h.v()))
	assert.Equal(t, model.FlagFriend, flagsOf())
}

func testRelationFieldPropagation(h *harness) {
	t := h.t
	h.user(1, "a")
	h.user(3, "c")

	requireCode(t, errorx.ErrRelationNotFound,
		h.f.UpdateFriendRemarkName(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 3, RemarkName: "x"}, h.v()))

	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 3), h.v()))
	conv, err := h.f.CreateSingleChatConversation(h.ctx, 1, 3, h.v())
	require.NoError(t, err)
	assert.Equal(t, "c", conv.Name)

	require.NoError(t, h.f.UpdateFriendRemarkName(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 3, RemarkName: "boss"}, h.v()))
	conv, err = h.f.GetConversation(h.ctx, 1, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "boss", conv.Name)

	// 备注名优先，昵称变化不改会话名，也不写会话日志
	before, err := h.f.GetConversationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	require.NoError(t, h.f.UpdateFriendNickName(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 3, NickName: "c2"}, h.v()))
	after, err := h.f.GetConversationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	assert.Len(t, after, len(before))

	rel, err := h.f.GetRelation(h.ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, "c2", rel.NickName)
	assert.Equal(t, "boss", rel.RemarkName)

	require.NoError(t, h.f.UpdateFriendAvatar(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 3, Avatar: "new.png"}, h.v()))
	conv, err = h.f.GetConversation(h.ctx, 1, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, "new.png", conv.Avatar)

	changes, err := h.f.GetConversationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, changes, 3)
	assert.Equal(t, model.ConversationOpCreated, changes[0].Operation)
	assert.Equal(t, model.ConversationOpNameUpdated, changes[1].Operation)
	assert.Equal(t, "boss", changes[1].Name)
	assert.Equal(t, model.ConversationOpAvatarUpdated, changes[2].Operation)
}

func testRelationPaging(h *harness) {
	t := h.t
	h.user(1, "a")
	for id := int64(10); id < 15; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
		require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, id), h.v()))
	}

	var seen []int64
	token := ""
	pages := 0
	for {
		page, err := h.f.GetRelations(h.ctx, 1, model.PageRequest{Token: token, Size: 2})
		require.NoError(t, err)
		pages++
		for _, r := range page.Items {
			seen = append(seen, r.TargetUserID)
		}
		if !page.HasMore {
			assert.Empty(t, page.NextPageToken)
			break
		}
		require.NotEmpty(t, page.NextPageToken)
		token = page.NextPageToken
	}
	assert.Equal(t, []int64{10, 11, 12, 13, 14}, seen)
	assert.Equal(t, 3, pages)

	exact, err := h.f.GetRelations(h.ctx, 1, model.PageRequest{Size: 5})
	require.NoError(t, err)
	assert.Len(t, exact.Items, 5)
	assert.False(t, exact.HasMore)

	empty, err := h.f.GetRelations(h.ctx, 2, model.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Empty(t, empty.Items)

	_, err = h.f.GetRelations(h.ctx, 1, model.PageRequest{Size: 0})
	requireCode(t, errorx.ErrInvalidPageSize, err)
	_, err = h.f.GetRelations(h.ctx, 1, model.PageRequest{Size: 201})
	requireCode(t, errorx.ErrInvalidPageSize, err)
	_, err = h.f.GetRelations(h.ctx, 1, model.PageRequest{Token: "abc", Size: 2})
	requireCode(t, errorx.ErrInvalidPageToken, err)
}

func testRelationSync(h *harness) {
	t := h.t
	h.user(1, "a")
	h.user(2, "b")
	h.user(3, "c")

	res, err := h.f.SyncRelations(h.ctx, 1, "", 100)
	require.NoError(t, err)
	assert.True(t, res.FullSync)
	assert.Empty(t, res.Changes)
	assert.Equal(t, model.NoVersion, res.LatestVersion)
	_, ok, err := h.f.GetLatestRelationVersion(h.ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	v1 := h.v()
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 2), v1))
	v2 := h.v()
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 3), v2))
	v3 := h.v()
	require.NoError(t, h.f.BlockFriend(h.ctx, h.event(1, 2), v3))

	res, err = h.f.SyncRelations(h.ctx, 1, "", 100)
	require.NoError(t, err)
	assert.True(t, res.FullSync)
	assert.Equal(t, v3, res.LatestVersion)

	res, err = h.f.SyncRelations(h.ctx, 1, v1.String(), 100)
	require.NoError(t, err)
	assert.False(t, res.FullSync)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, v2, res.Changes[0].Version)
	assert.Equal(t, v3, res.LatestVersion)

	res, err = h.f.SyncRelations(h.ctx, 1, model.NoVersion.String(), 2)
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, v2, res.LatestVersion)

	res, err = h.f.SyncRelations(h.ctx, 1, v3.String(), 100)
	require.NoError(t, err)
	assert.Empty(t, res.Changes)
	assert.NotNil(t, res.Changes)
	assert.Equal(t, v3, res.LatestVersion)

	latest, ok, err := h.f.GetLatestRelationVersion(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v3, latest)

	_, err = h.f.SyncRelations(h.ctx, 1, "abc", 100)
	requireCode(t, errorx.ErrInvalidVersion, err)
	_, err = h.f.SyncRelations(h.ctx, 1, "-5", 100)
	requireCode(t, errorx.ErrInvalidVersion, err)
	_, err = h.f.SyncRelations(h.ctx, 1, "", 0)
	requireCode(t, errorx.ErrInvalidPageSize, err)
	_, err = h.f.GetRelationChanges(h.ctx, 1, model.NoVersion, 1001)
	requireCode(t, errorx.ErrInvalidPageSize, err)
}

func relationSnapshot(h *harness, sourceUserID int64) map[int64]model.Relation {
	h.t.Helper()
	page, err := h.f.GetRelations(h.ctx, sourceUserID, model.PageRequest{Size: 200})
	require.NoError(h.t, err)
	require.False(h.t, page.HasMore)
	snap := make(map[int64]model.Relation, len(page.Items))
	for _, r := range page.Items {
		snap[r.TargetUserID] = r
	}
	return snap
}

// applyRelationChange 按客户端的方式把一条日志应用到本地快照
func applyRelationChange(snap map[int64]model.Relation, c model.RelationVersionChange) {
	if c.Flags != nil && *c.Flags == 0 {
		delete(snap, c.TargetUserID)
		return
	}
	rel, ok := snap[c.TargetUserID]
	if !ok {
		rel = model.Relation{SourceUserID: c.SourceUserID, TargetUserID: c.TargetUserID}
	}
	if c.Flags != nil {
		rel.Flags = *c.Flags
	}
	if c.NickName != nil {
		rel.NickName = *c.NickName
	}
	if c.Avatar != nil {
		rel.Avatar = *c.Avatar
	}
	if c.RemarkName != nil {
		rel.RemarkName = *c.RemarkName
	}
	snap[c.TargetUserID] = rel
}

// testRelationSyncReplay 快照加上增量日志等于最新快照
func testRelationSyncReplay(h *harness) {
	t := h.t
	for id := int64(1); id <= 5; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
	}
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 2), h.v()))
	require.NoError(t, h.f.AddFriend(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 3, RemarkName: "three"}, h.v()))
	require.NoError(t, h.f.BlockStranger(h.ctx, h.event(1, 4), h.v()))

	base, err := h.f.SyncRelations(h.ctx, 1, "", 100)
	require.NoError(t, err)
	require.True(t, base.FullSync)
	snap := relationSnapshot(h, 1)
	require.Len(t, snap, 3)

	require.NoError(t, h.f.UpdateFriendRemarkName(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 2, RemarkName: "two"}, h.v()))
	require.NoError(t, h.f.UpdateFriendAvatar(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 2, Avatar: "two.png"}, h.v()))
	require.NoError(t, h.f.RemoveFriend(h.ctx, h.event(1, 3), h.v()))
	require.NoError(t, h.f.BlockFriend(h.ctx, h.event(1, 2), h.v()))
	require.NoError(t, h.f.HideBlockedUser(h.ctx, h.event(1, 4), h.v()))
	require.NoError(t, h.f.UnblockUser(h.ctx, h.event(1, 4), h.v()))
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 5), h.v()))
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 3), h.v()))

	// 分页拉取增量，逐条应用
	after := base.LatestVersion.String()
	for {
		res, err := h.f.SyncRelations(h.ctx, 1, after, 3)
		require.NoError(t, err)
		require.False(t, res.FullSync)
		for _, c := range res.Changes {
			applyRelationChange(snap, c)
		}
		if len(res.Changes) < 3 {
			break
		}
		after = res.LatestVersion.String()
	}

	assert.Equal(t, relationSnapshot(h, 1), snap)
	assert.Equal(t, model.FlagHidden, snap[4].Flags)
	assert.Empty(t, snap[3].RemarkName)
}

func testSingleConversation(h *harness) {
	t := h.t
	h.user(1, "a")
	h.user(2, "b")

	conv, err := h.f.CreateSingleChatConversation(h.ctx, 1, 2, h.v())
	require.NoError(t, err)
	assert.Equal(t, model.SingleConversationID(2, 1), conv.ConversationID)
	peer, ok := conv.Target.PeerID()
	assert.True(t, ok)
	assert.Equal(t, int64(2), peer)
	assert.Equal(t, "b", conv.Name)

	again, err := h.f.CreateSingleChatConversation(h.ctx, 1, 2, h.v())
	require.NoError(t, err)
	assert.Equal(t, *conv, *again)

	other, err := h.f.CreateSingleChatConversation(h.ctx, 2, 1, h.v())
	require.NoError(t, err)
	assert.Equal(t, conv.ConversationID, other.ConversationID)
	assert.Equal(t, "a", other.Name)

	changes, err := h.f.GetConversationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	gotPeer, ok := changes[0].Target.PeerID()
	assert.True(t, ok)
	assert.Equal(t, int64(2), gotPeer)

	_, err = h.f.CreateSingleChatConversation(h.ctx, 1, 1, h.v())
	requireCode(t, errorx.ErrInvalidParam, err)

	v := h.v()
	require.NoError(t, h.f.MarkLastRead(h.ctx, conv.ConversationID, 1, 42, v))
	got, err := h.f.GetConversation(h.ctx, 1, conv.ConversationID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.LastReadMessageID)

	latest, ok, err := h.f.GetLatestConversationVersion(h.ctx, 1)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, v, latest)

	requireCode(t, errorx.ErrConversationNotFound, h.f.MarkLastRead(h.ctx, 12345, 1, 1, h.v()))
	_, err = h.f.GetConversation(h.ctx, 1, 12345)
	requireCode(t, errorx.ErrConversationNotFound, err)
}

func testConversationPagingAndSync(h *harness) {
	t := h.t
	h.user(1, "a")
	for id := int64(2); id <= 4; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
		_, err := h.f.CreateSingleChatConversation(h.ctx, 1, id, h.v())
		require.NoError(t, err)
	}

	first, err := h.f.GetConversations(h.ctx, 1, model.PageRequest{Size: 2})
	require.NoError(t, err)
	require.Len(t, first.Items, 2)
	assert.True(t, first.HasMore)
	second, err := h.f.GetConversations(h.ctx, 1, model.PageRequest{Token: first.NextPageToken, Size: 2})
	require.NoError(t, err)
	require.Len(t, second.Items, 1)
	assert.False(t, second.HasMore)
	assert.Less(t, first.Items[1].ConversationID, second.Items[0].ConversationID)

	res, err := h.f.SyncConversations(h.ctx, 1, "", 10)
	require.NoError(t, err)
	assert.True(t, res.FullSync)
	assert.Equal(t, model.Version(h.version), res.LatestVersion)

	res, err = h.f.SyncConversations(h.ctx, 1, "1", 10)
	require.NoError(t, err)
	assert.Len(t, res.Changes, 2)

	_, err = h.f.SyncConversations(h.ctx, 1, "1.5", 10)
	requireCode(t, errorx.ErrInvalidVersion, err)
}

func conversationSnapshot(h *harness, ownerID int64) map[int64]model.Conversation {
	h.t.Helper()
	page, err := h.f.GetConversations(h.ctx, ownerID, model.PageRequest{Size: 200})
	require.NoError(h.t, err)
	require.False(h.t, page.HasMore)
	snap := make(map[int64]model.Conversation, len(page.Items))
	for _, c := range page.Items {
		snap[c.ConversationID] = c
	}
	return snap
}

// testConversationSyncReplay 会话日志携带完整快照，REMOVED 表示删除
func testConversationSyncReplay(h *harness) {
	t := h.t
	const groupID = 500
	for id := int64(1); id <= 3; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
	}
	require.NoError(t, h.f.AddFriend(h.ctx, h.event(1, 2), h.v()))
	single, err := h.f.CreateSingleChatConversation(h.ctx, 1, 2, h.v())
	require.NoError(t, err)
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "g"},
		[]model.GroupMember{{UserID: 1}, {UserID: 3}}, h.v()))
	require.NoError(t, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{1, 3}, h.v()))

	base, err := h.f.SyncConversations(h.ctx, 1, "", 100)
	require.NoError(t, err)
	snap := conversationSnapshot(h, 1)
	require.Len(t, snap, 2)

	require.NoError(t, h.f.UpdateFriendRemarkName(h.ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 2, RemarkName: "boss"}, h.v()))
	require.NoError(t, h.f.MarkLastRead(h.ctx, single.ConversationID, 1, 77, h.v()))
	_, err = h.f.CreateSingleChatConversation(h.ctx, 1, 3, h.v())
	require.NoError(t, err)
	require.NoError(t, h.f.RemoveGroupMember(h.ctx, groupID, 1, h.v()))

	res, err := h.f.SyncConversations(h.ctx, 1, base.LatestVersion.String(), 100)
	require.NoError(t, err)
	require.Len(t, res.Changes, 4)
	for _, c := range res.Changes {
		if c.Operation == model.ConversationOpRemoved {
			delete(snap, c.ConversationID)
			continue
		}
		snap[c.ConversationID] = model.Conversation{
			OwnerID:           c.OwnerID,
			ConversationID:    c.ConversationID,
			Target:            c.Target,
			LastReadMessageID: c.LastReadMessageID,
			Name:              c.Name,
			Avatar:            c.Avatar,
		}
	}

	assert.Equal(t, conversationSnapshot(h, 1), snap)
	assert.Equal(t, "boss", snap[single.ConversationID].Name)
	assert.Equal(t, int64(77), snap[single.ConversationID].LastReadMessageID)
	assert.NotContains(t, snap, model.GroupConversationID(groupID))
}

func testGroupLifecycle(h *harness) {
	t := h.t
	const groupID = 100
	for id := int64(1); id <= 3; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
	}

	_, err := h.f.GetGroupMembersInfo(h.ctx, groupID)
	requireCode(t, errorx.ErrGroupNotFound, err)

	vCreate := h.v()
	members := []model.GroupMember{{UserID: 1, Name: "owner"}, {UserID: 2, Name: "second"}}
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "g", Avatar: "g.png"}, members, vCreate))
	requireCode(t, errorx.ErrInvalidParam,
		h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "dup"}, nil, h.v()))
	requireCode(t, errorx.ErrInvalidParam,
		h.f.CreateGroup(h.ctx, model.Group{GroupID: 101, Name: "dup"}, []model.GroupMember{{UserID: 1}, {UserID: 1}}, h.v()))

	changes, err := h.f.GetGroupChanges(h.ctx, groupID, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, vCreate, changes[0].Version)
	require.Len(t, changes[0].Details, 3)
	assert.Equal(t, model.GroupOpCreated, changes[0].Details[0].Operation)
	assert.Equal(t, "g", *changes[0].Details[0].Name)
	assert.Equal(t, model.GroupOpMemberJoined, changes[0].Details[1].Operation)
	assert.Equal(t, int64(1), *changes[0].Details[1].UserID)
	assert.Equal(t, int64(2), *changes[0].Details[2].UserID)

	require.NoError(t, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{1, 2}, h.v()))
	ugs, err := h.f.GetUserGroups(h.ctx, 1, model.PageRequest{Size: 10})
	require.NoError(t, err)
	require.Len(t, ugs.Items, 1)
	assert.Equal(t, model.UserGroup{UserID: 1, GroupID: groupID, GroupName: "g", GroupAvatar: "g.png"}, ugs.Items[0])
	conv, err := h.f.GetConversation(h.ctx, 1, model.GroupConversationID(groupID))
	require.NoError(t, err)
	gid, ok := conv.Target.GroupID()
	assert.True(t, ok)
	assert.Equal(t, int64(groupID), gid)
	assert.Equal(t, "g", conv.Name)

	requireCode(t, errorx.ErrGroupMemberNotFound, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{3}, h.v()))

	require.NoError(t, h.f.JoinGroup(h.ctx, groupID, model.GroupMember{UserID: 3, Name: "third"}, h.v()))
	requireCode(t, errorx.ErrAlreadyGroupMember, h.f.JoinGroup(h.ctx, groupID, model.GroupMember{UserID: 3}, h.v()))
	requireCode(t, errorx.ErrGroupNotFound, h.f.JoinGroup(h.ctx, 999, model.GroupMember{UserID: 3}, h.v()))
	_, err = h.f.GetUserGroups(h.ctx, 3, model.PageRequest{Size: 10})
	require.NoError(t, err)
	_, err = h.f.GetConversation(h.ctx, 3, model.GroupConversationID(groupID))
	require.NoError(t, err)

	ids, err := h.f.GetGroupMemberIDs(h.ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, ids)

	page, err := h.f.GetGroupMembers(h.ctx, groupID, model.PageRequest{Size: 2})
	require.NoError(t, err)
	assert.Len(t, page.Items, 2)
	assert.Equal(t, "2", page.NextPageToken)

	vQuit := h.v()
	require.NoError(t, h.f.RemoveGroupMember(h.ctx, groupID, 3, vQuit))
	requireCode(t, errorx.ErrGroupMemberNotFound, h.f.RemoveGroupMember(h.ctx, groupID, 3, h.v()))
	_, err = h.f.GetGroupMember(h.ctx, groupID, 3)
	requireCode(t, errorx.ErrGroupMemberNotFound, err)
	_, err = h.f.GetConversation(h.ctx, 3, model.GroupConversationID(groupID))
	requireCode(t, errorx.ErrConversationNotFound, err)
	ugs, err = h.f.GetUserGroups(h.ctx, 3, model.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Empty(t, ugs.Items)

	convChanges, err := h.f.GetConversationChanges(h.ctx, 3, model.NoVersion, 100)
	require.NoError(t, err)
	require.NotEmpty(t, convChanges)
	assert.Equal(t, model.ConversationOpRemoved, convChanges[len(convChanges)-1].Operation)

	ugChanges, err := h.f.GetUserGroupChanges(h.ctx, 3, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, ugChanges, 2)
	assert.Equal(t, model.UserGroupOpJoined, ugChanges[0].Operation)
	assert.Equal(t, model.UserGroupOpQuit, ugChanges[1].Operation)

	info, err := h.f.GetGroupMembersInfo(h.ctx, groupID)
	require.NoError(t, err)
	assert.Len(t, info, 2)

	res, err := h.f.SyncGroup(h.ctx, groupID, "", 10)
	require.NoError(t, err)
	assert.True(t, res.FullSync)
	assert.Equal(t, vQuit, res.LatestVersion)

	res, err = h.f.SyncGroup(h.ctx, groupID, vCreate.String(), 10)
	require.NoError(t, err)
	require.Len(t, res.Changes, 2)
	assert.Equal(t, model.GroupOpMemberQuit, res.Changes[1].Details[0].Operation)

	_, err = h.f.SyncGroup(h.ctx, groupID, "oops", 10)
	requireCode(t, errorx.ErrInvalidVersion, err)
}

func testCreateGroupWithMembers(h *harness) {
	t := h.t
	const groupID = 150
	members := make([]model.GroupMember, 0, 3)
	for id := int64(1); id <= 3; id++ {
		h.user(id, fmt.Sprintf("u%d", id))
		members = append(members, model.GroupMember{UserID: id, Name: fmt.Sprintf("m%d", id)})
	}
	v := h.v()
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "trio"}, members, v))

	info, err := h.f.GetGroupMembersInfo(h.ctx, groupID)
	require.NoError(t, err)
	require.Len(t, info, 3)

	changes, err := h.f.GetGroupChanges(h.ctx, groupID, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, v, changes[0].Version)
	require.Len(t, changes[0].Details, 4)
	assert.Equal(t, model.GroupOpCreated, changes[0].Details[0].Operation)
	for i, d := range changes[0].Details[1:] {
		assert.Equal(t, model.GroupOpMemberJoined, d.Operation)
		require.NotNil(t, d.UserID)
		assert.Equal(t, int64(i+1), *d.UserID)
	}
}

// testMemberProfileRetry 重试成员侧创建不覆盖已读位置，也不重复记日志
func testMemberProfileRetry(h *harness) {
	t := h.t
	const groupID = 160
	h.user(1, "a")
	h.user(2, "b")
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "g"},
		[]model.GroupMember{{UserID: 1}, {UserID: 2}}, h.v()))
	require.NoError(t, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{1}, h.v()))
	convID := model.GroupConversationID(groupID)
	require.NoError(t, h.f.MarkLastRead(h.ctx, convID, 1, 42, h.v()))

	// 第一次只处理了成员 1，重试覆盖全部成员
	require.NoError(t, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{1, 2}, h.v()))

	conv, err := h.f.GetConversation(h.ctx, 1, convID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), conv.LastReadMessageID)

	convChanges, err := h.f.GetConversationChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, convChanges, 2)
	assert.Equal(t, model.ConversationOpCreated, convChanges[0].Operation)
	assert.Equal(t, model.ConversationOpLastReadUpdated, convChanges[1].Operation)

	ugChanges, err := h.f.GetUserGroupChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	assert.Len(t, ugChanges, 1)

	_, err = h.f.GetConversation(h.ctx, 2, convID)
	require.NoError(t, err)
	ugs, err := h.f.GetUserGroups(h.ctx, 2, model.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Len(t, ugs.Items, 1)
}

func testGroupMemberUpdates(h *harness) {
	t := h.t
	const groupID = 200
	h.user(1, "a")
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "g"}, []model.GroupMember{{UserID: 1}}, h.v()))

	require.NoError(t, h.f.UpdateGroupMemberName(h.ctx, groupID, 1, "alice", h.v()))
	require.NoError(t, h.f.UpdateGroupMemberAvatar(h.ctx, groupID, 1, "alice.png", h.v()))
	m, err := h.f.GetGroupMember(h.ctx, groupID, 1)
	require.NoError(t, err)
	assert.Equal(t, model.GroupMember{GroupID: groupID, UserID: 1, Name: "alice", Avatar: "alice.png"}, *m)
	requireCode(t, errorx.ErrGroupMemberNotFound, h.f.UpdateGroupMemberName(h.ctx, groupID, 9, "x", h.v()))

	require.NoError(t, h.f.UpdateGroupAvatar(h.ctx, groupID, "g2.png", h.v()))
	vName := h.v()
	require.NoError(t, h.f.UpdateGroupName(h.ctx, groupID, "g2", vName))
	g, err := h.f.GetGroup(h.ctx, groupID)
	require.NoError(t, err)
	assert.Equal(t, model.Group{GroupID: groupID, Name: "g2", Avatar: "g2.png"}, *g)

	changes, err := h.f.GetGroupChanges(h.ctx, groupID, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, changes, 5)
	ops := make([]model.GroupOperation, 0, len(changes))
	for _, c := range changes[1:] {
		require.Len(t, c.Details, 1)
		ops = append(ops, c.Details[0].Operation)
	}
	assert.Equal(t, []model.GroupOperation{
		model.GroupOpMemberNameUpdated,
		model.GroupOpMemberAvatarUpdated,
		model.GroupOpAvatarUpdated,
		model.GroupOpNameUpdated,
	}, ops)

	latest, ok, err := h.f.GetLatestGroupVersion(h.ctx, groupID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, vName, latest)

	requireCode(t, errorx.ErrGroupNotFound, h.f.UpdateGroupName(h.ctx, 404, "x", h.v()))
}

func testUserGroupFanout(h *harness) {
	t := h.t
	const groupID = 300
	h.user(1, "a")
	h.user(2, "b")
	require.NoError(t, h.f.CreateGroup(h.ctx, model.Group{GroupID: groupID, Name: "g"},
		[]model.GroupMember{{UserID: 1}, {UserID: 2}}, h.v()))
	require.NoError(t, h.f.CreateGroupMembersProfile(h.ctx, groupID, []int64{1, 2}, h.v()))
	require.NoError(t, h.f.UpdateGroupName(h.ctx, groupID, "renamed", h.v()))

	// 扇出前成员侧仍是旧名称
	ug, err := h.f.GetUserGroups(h.ctx, 1, model.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, "g", ug.Items[0].GroupName)

	v := h.v()
	require.NoError(t, h.f.UpdateUserGroupName(h.ctx, 1, groupID, "renamed", v))
	require.NoError(t, h.f.UpdateUserGroupName(h.ctx, 1, groupID, "renamed", v))
	require.NoError(t, h.f.UpdateUserGroupAvatar(h.ctx, 1, groupID, "r.png", h.v()))

	ug, err = h.f.GetUserGroups(h.ctx, 1, model.PageRequest{Size: 10})
	require.NoError(t, err)
	assert.Equal(t, "renamed", ug.Items[0].GroupName)
	assert.Equal(t, "r.png", ug.Items[0].GroupAvatar)
	conv, err := h.f.GetConversation(h.ctx, 1, model.GroupConversationID(groupID))
	require.NoError(t, err)
	assert.Equal(t, "renamed", conv.Name)
	assert.Equal(t, "r.png", conv.Avatar)

	ugChanges, err := h.f.GetUserGroupChanges(h.ctx, 1, model.NoVersion, 100)
	require.NoError(t, err)
	require.Len(t, ugChanges, 3)
	assert.Equal(t, model.UserGroupOpNameUpdated, ugChanges[1].Operation)
	assert.Equal(t, "renamed", *ugChanges[1].GroupName)

	res, err := h.f.SyncUserGroups(h.ctx, 1, ugChanges[0].Version.String(), 10)
	require.NoError(t, err)
	assert.Len(t, res.Changes, 2)

	latest, ok, err := h.f.GetLatestUserGroupVersion(h.ctx, 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ugChanges[0].Version, latest)

	requireCode(t, errorx.ErrGroupMemberNotFound, h.f.UpdateUserGroupName(h.ctx, 9, groupID, "x", h.v()))
}

func testMessages(h *harness) {
	t := h.t
	convID := model.SingleConversationID(1, 2)
	for id := int64(1); id <= 10; id++ {
		msg, err := h.f.SaveTextMessage(h.ctx, id, 1, 2, fmt.Sprintf("m%d", id), 1000+id)
		require.NoError(t, err)
		assert.Equal(t, convID, msg.ConversationID)
	}

	msgs, err := h.f.GetMessages(h.ctx, convID, 0, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 5)
	for i, m := range msgs {
		assert.Equal(t, int64(i+1), m.MessageID)
	}

	msgs, err = h.f.GetMessages(h.ctx, convID, 4, 5)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, int64(3), msgs[2].MessageID)

	msgs, err = h.f.GetMessages(h.ctx, model.SingleConversationID(2, 1), 0, 200)
	require.NoError(t, err)
	assert.Len(t, msgs, 10)

	_, err = h.f.GetMessages(h.ctx, convID, 0, 0)
	requireCode(t, errorx.ErrInvalidPageSize, err)

	file, err := h.f.SaveFileMessage(h.ctx, 20, 2, 1, "https://files.example.com/a.pdf", "a.pdf", 0)
	require.NoError(t, err)
	assert.Equal(t, h.now.UnixMilli(), file.SendTimestamp)

	_, err = h.f.SaveGroupTextMessage(h.ctx, 30, 100, 1, "hello group", 2000)
	require.NoError(t, err)
	_, err = h.f.SaveGroupFileMessage(h.ctx, 31, 100, 1, "https://files.example.com/b.png", "b.png", 2001)
	require.NoError(t, err)
	_, err = h.f.SaveGroupCommandMessage(h.ctx, 32, 100, 1, 7, `{"joined":[3]}`, 2002)
	require.NoError(t, err)

	got, err := h.f.GetMessage(h.ctx, model.GroupConversationID(100), 32)
	require.NoError(t, err)
	assert.True(t, got.IsGroup())
	assert.Equal(t, model.MessageTypeCommand, got.Type)
	assert.Equal(t, int32(7), got.CommandType)
	assert.Equal(t, `{"joined":[3]}`, got.CommandData)

	got, err = h.f.GetMessage(h.ctx, convID, 20)
	require.NoError(t, err)
	assert.Equal(t, "a.pdf", got.FileName)

	_, err = h.f.GetMessage(h.ctx, convID, 999)
	requireCode(t, errorx.ErrMessageNotFound, err)

	requireCode(t, errorx.ErrInvalidParam, h.f.SaveMessage(h.ctx, &model.Message{MessageID: 40, SenderID: 1, Type: model.MessageTypeText}))
	_, err = h.f.SaveTextMessage(h.ctx, 0, 1, 2, "no id", 0)
	requireCode(t, errorx.ErrInvalidParam, err)
}

// testReplayLogAppend 以相同键重放日志追加，结果与一次写入相同
func testReplayLogAppend(h *harness) {
	t := h.t
	backend := h.f.Backend()
	change := model.RelationVersionChange{
		SourceUserID: 1,
		Version:      7,
		TargetUserID: 2,
		Operation:    model.RelationOpUpdateNickName,
		NickName:     model.Ptr("n"),
	}
	for i := 0; i < 2; i++ {
		require.NoError(t, backend.Commit(h.ctx, store.NewBatch(store.AppendRelationChange{Change: change})))
	}
	changes, err := backend.ListRelationChanges(h.ctx, 1, model.NoVersion, 0)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, change, changes[0])

	latest, err := backend.LatestRelationVersion(h.ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, model.Version(7), latest)

	latest, err = backend.LatestRelationVersion(h.ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, model.NoVersion, latest)
}
