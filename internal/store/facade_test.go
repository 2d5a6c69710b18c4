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

// spyBackend 只实现用到的方法，其余调用会因内嵌的 nil 接口而 panic
type spyBackend struct {
	Backend
	commits   []*Batch
	commitErr error
	conv      *model.Conversation
}

func (s *spyBackend) Commit(_ context.Context, b *Batch) error {
	if s.commitErr != nil {
		return s.commitErr
	}
	s.commits = append(s.commits, b)
	return nil
}

func (s *spyBackend) FindConversation(context.Context, int64, int64) (*model.Conversation, error) {
	if s.conv == nil {
		return nil, nil
	}
	c := *s.conv
	return &c, nil
}

type recordingCache struct {
	summaries []int64
	unread    [][2]int64
	bots      []int64
}

func (r *recordingCache) InvalidateConversationSummary(_ context.Context, conversationID int64) {
	r.summaries = append(r.summaries, conversationID)
}

func (r *recordingCache) InvalidateUnreadCount(_ context.Context, ownerID, conversationID int64) {
	r.unread = append(r.unread, [2]int64{ownerID, conversationID})
}

func (r *recordingCache) InvalidateBotConfig(_ context.Context, userID int64) {
	r.bots = append(r.bots, userID)
}

func TestInvalidInputNeverReachesBackend(t *testing.T) {
	ctx := context.Background()
	f := New(&spyBackend{})

	_, err := f.GetRelations(ctx, 1, model.PageRequest{Size: 0})
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageSize))
	_, err = f.GetConversations(ctx, 1, model.PageRequest{Size: 500})
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageSize))
	_, err = f.GetGroupMembers(ctx, 1, model.PageRequest{Token: "bad", Size: 10})
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageToken))
	_, err = f.GetMessages(ctx, 1, 0, 201)
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageSize))
	_, err = f.SyncUserGroups(ctx, 1, "", 0)
	assert.True(t, errors.Is(err, errorx.ErrInvalidPageSize))

	err = f.AddFriend(ctx, model.RelationEvent{SourceUserID: 1, TargetUserID: 1}, 1)
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
	err = f.InsertUser(ctx, &model.User{UserID: 1, Account: "", Role: model.RoleUser}, "", "")
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
	err = f.SaveMessage(ctx, &model.Message{MessageID: 1, SenderID: 1, Type: 9})
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
	err = f.CreateGroup(ctx, model.Group{GroupID: 1}, nil, 1)
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
	err = f.MarkLastRead(ctx, 0, 1, 99, 1)
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
	err = f.MarkLastRead(ctx, -3, 1, 99, 1)
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
}

func TestSaveMessageInvalidatesSummary(t *testing.T) {
	ctx := context.Background()
	spy := &spyBackend{}
	cache := &recordingCache{}
	f := New(spy, WithCacheInvalidator(cache))

	msg, err := f.SaveGroupTextMessage(ctx, 7, 300, 1, "hi", 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), msg.ConversationID)
	require.Len(t, spy.commits, 1)
	assert.Equal(t, []string{"put_message"}, spy.commits[0].Names())
	assert.Equal(t, []int64{300}, cache.summaries)

	spy.commitErr = errorx.New(errorx.CodeDBError, "down")
	_, err = f.SaveTextMessage(ctx, 8, 1, 2, "hi", 1)
	assert.True(t, errors.Is(err, errorx.New(errorx.CodeDBError, "")))
	assert.Len(t, cache.summaries, 1)
}

func TestMarkLastReadBatch(t *testing.T) {
	ctx := context.Background()
	spy := &spyBackend{conv: &model.Conversation{
		OwnerID:        1,
		ConversationID: 55,
		Target:         model.SingleTarget(2),
		Name:           "b",
	}}
	cache := &recordingCache{}
	f := New(spy, WithCacheInvalidator(cache))

	require.NoError(t, f.MarkLastRead(ctx, 55, 1, 99, 4))
	require.Len(t, spy.commits, 1)
	ops := spy.commits[0].Ops()
	require.Len(t, ops, 2)
	put := ops[0].(PutConversation)
	assert.Equal(t, int64(99), put.Conversation.LastReadMessageID)
	appended := ops[1].(AppendConversationChange)
	assert.Equal(t, model.ConversationOpLastReadUpdated, appended.Change.Operation)
	assert.Equal(t, model.Version(4), appended.Change.Version)
	assert.Equal(t, [][2]int64{{1, 55}}, cache.unread)
}
