package errorx

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsComparesCode(t *testing.T) {
	err := Newf(CodeNotFriends, "%d 与 %d 不是好友", 1, 2)
	assert.True(t, errors.Is(err, ErrNotFriends))
	assert.False(t, errors.Is(err, ErrAlreadyFriends))

	wrapped := fmt.Errorf("handler: %w", err)
	assert.True(t, errors.Is(wrapped, ErrNotFriends))
	assert.Equal(t, CodeNotFriends, GetCode(wrapped))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrapf(cause, CodeDBError, "查询用户 %d", 7)
	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, "查询用户 7: connection reset", err.Error())
	assert.Equal(t, CodeServerBusy, GetCode(cause))
}

