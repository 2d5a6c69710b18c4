package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

func TestNextRelationFlags(t *testing.T) {
	const (
		F = model.FlagFriend
		B = model.FlagBlocked
		H = model.FlagHidden
	)
	row := func(flags model.RelationFlags) *model.Relation {
		return &model.Relation{SourceUserID: 1, TargetUserID: 2, Flags: flags}
	}

	tests := []struct {
		name    string
		op      model.RelationOperation
		cur     *model.Relation
		want    model.RelationFlags
		wantErr *errorx.CodeError
	}{
		{"add friend to stranger", model.RelationOpAddFriend, nil, F, nil},
		{"add friend twice", model.RelationOpAddFriend, row(F), 0, errorx.ErrAlreadyFriends},
		{"add friend to blocked friend", model.RelationOpAddFriend, row(F | B), 0, errorx.ErrAlreadyFriends},
		{"add friend to blocked", model.RelationOpAddFriend, row(B), 0, errorx.ErrRelationExists},
		{"add friend to hidden", model.RelationOpAddFriend, row(B | H), F, nil},
		{"remove friend", model.RelationOpRemoveFriend, row(F), 0, nil},
		{"remove blocked friend", model.RelationOpRemoveFriend, row(F | B), 0, nil},
		{"remove non friend", model.RelationOpRemoveFriend, row(B), 0, errorx.ErrNotFriends},
		{"remove absent", model.RelationOpRemoveFriend, nil, 0, errorx.ErrNotFriends},
		{"block friend", model.RelationOpBlockFriend, row(F), F | B, nil},
		{"block absent", model.RelationOpBlockFriend, nil, 0, errorx.ErrRelationNotFound},
		{"block twice", model.RelationOpBlockFriend, row(F | B), 0, errorx.ErrAlreadyBlocked},
		{"block stranger", model.RelationOpBlockStranger, nil, B, nil},
		{"block stranger with row", model.RelationOpBlockStranger, row(F), 0, errorx.ErrStrangerHasRelationship},
		{"unblock friend", model.RelationOpUnblock, row(F | B), F, nil},
		{"unblock stranger", model.RelationOpUnblock, row(B), 0, nil},
		{"unblock hidden", model.RelationOpUnblock, row(B | H), H, nil},
		{"unblock not blocked", model.RelationOpUnblock, row(F), 0, errorx.ErrNotBlocked},
		{"hide blocked friend", model.RelationOpHideBlocked, row(F | B), B | H, nil},
		{"hide blocked stranger", model.RelationOpHideBlocked, row(B), B | H, nil},
		{"hide not blocked", model.RelationOpHideBlocked, nil, 0, errorx.ErrNotBlocked},
		{"update remark", model.RelationOpUpdateRemarkName, row(F), F, nil},
		{"update nick on blocked", model.RelationOpUpdateNickName, row(B), B, nil},
		{"update avatar absent", model.RelationOpUpdateAvatar, nil, 0, errorx.ErrRelationNotFound},
		{"unknown op", model.RelationOperation(99), row(F), 0, errorx.ErrInvalidParam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := nextRelationFlags(tt.op, tt.cur)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
