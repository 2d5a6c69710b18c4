package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"im_storage/pkg/errorx"
)

func TestParseVersion(t *testing.T) {
	v, err := ParseVersion("1790000000000000001")
	require.NoError(t, err)
	assert.Equal(t, Version(1790000000000000001), v)
	assert.Equal(t, "1790000000000000001", v.String())

	v, err = ParseVersion("0")
	require.NoError(t, err)
	assert.True(t, v.IsZero())

	for _, bad := range []string{"", "-1", "abc", "9223372036854775808"} {
		_, err := ParseVersion(bad)
		assert.True(t, errors.Is(err, errorx.ErrInvalidVersion), "input %q", bad)
	}
}

func TestSingleConversationIDSymmetric(t *testing.T) {
	pairs := [][2]int64{{1, 2}, {42, 7}, {1 << 40, 3}, {-5, 9}}
	seen := map[int64][2]int64{}
	for _, p := range pairs {
		id := SingleConversationID(p[0], p[1])
		assert.Equal(t, id, SingleConversationID(p[1], p[0]))
		assert.GreaterOrEqual(t, id, int64(0))
		if prev, dup := seen[id]; dup {
			t.Fatalf("collision between %v and %v", prev, p)
		}
		seen[id] = p
	}
}

func TestConversationTarget(t *testing.T) {
	single := SingleTarget(9)
	peer, ok := single.PeerID()
	assert.True(t, ok)
	assert.Equal(t, int64(9), peer)
	_, ok = single.GroupID()
	assert.False(t, ok)
	assert.Equal(t, SingleConversationID(1, 9), single.ConversationID(1))

	group := GroupTarget(300)
	gid, ok := group.GroupID()
	assert.True(t, ok)
	assert.Equal(t, int64(300), gid)
	assert.Equal(t, int64(300), group.ConversationID(1))

	for _, target := range []ConversationTarget{single, group} {
		p, g := target.Columns()
		back, err := TargetFromColumns(p, g)
		require.NoError(t, err)
		assert.Equal(t, target, back)
	}

	_, err := TargetFromColumns(nil, nil)
	assert.Error(t, err)
	_, err = TargetFromColumns(Ptr(int64(1)), Ptr(int64(2)))
	assert.Error(t, err)
}

func TestRelationDisplayName(t *testing.T) {
	r := Relation{NickName: "nick"}
	assert.Equal(t, "nick", r.DisplayName())
	r.RemarkName = "remark"
	assert.Equal(t, "remark", r.DisplayName())
	assert.True(t, (FlagFriend | FlagBlocked).IsBlocked())
	assert.False(t, FlagBlocked.IsHidden())
	assert.Equal(t, "HIDE_BLOCKED", RelationOpHideBlocked.String())
}

func TestUserPassword(t *testing.T) {
	u := &User{RawPassword: "p@ss"}
	require.NoError(t, u.HashPassword())
	assert.Empty(t, u.RawPassword)
	assert.NotEqual(t, "p@ss", u.PasswordHash)
	assert.True(t, u.CheckPassword("p@ss"))
	assert.False(t, u.CheckPassword("nope"))

	keep := &User{PasswordHash: "existing"}
	require.NoError(t, keep.HashPassword())
	assert.Equal(t, "existing", keep.PasswordHash)
}

func TestConversationJSONCarriesTarget(t *testing.T) {
	conv := Conversation{
		OwnerID:           1,
		ConversationID:    SingleConversationID(1, 2),
		Target:            SingleTarget(2),
		LastReadMessageID: 5,
		Name:              "b",
	}
	data, err := json.Marshal(conv)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"peerId":2`)
	assert.NotContains(t, string(data), "groupId")

	var back Conversation
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, conv, back)

	change := NewConversationChange(&Conversation{OwnerID: 1, ConversationID: 300, Target: GroupTarget(300), Name: "g"},
		ConversationOpCreated, 1790000000000000001)
	data, err = json.Marshal(change)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"groupId":300`)
	assert.Contains(t, string(data), `"version":"1790000000000000001"`)

	var backChange ConversationVersionChange
	require.NoError(t, json.Unmarshal(data, &backChange))
	assert.Equal(t, change, backChange)

	err = json.Unmarshal([]byte(`{"ownerId":1,"conversationId":3,"peerId":2,"groupId":3}`), &back)
	assert.True(t, errors.Is(err, errorx.ErrInvalidParam))
}
