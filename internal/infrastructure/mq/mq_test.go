package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"im_storage/internal/model"
	"im_storage/pkg/errorx"
)

func TestFanoutTaskCodec(t *testing.T) {
	task := FanoutTask{GroupID: 10, UserID: 7, Field: FieldAvatar, Value: "a.png", Version: model.Version(1 << 60)}
	data, err := task.Encode()
	require.NoError(t, err)
	// 版本号按十进制字符串编码
	assert.Contains(t, string(data), `"version":"1152921504606846976"`)
	assert.Equal(t, []byte("7"), task.Key())

	got, err := DecodeFanoutTask(data)
	require.NoError(t, err)
	assert.Equal(t, task, got)
}

func TestDecodeFanoutTaskRejectsGarbage(t *testing.T) {
	_, err := DecodeFanoutTask([]byte("{"))
	assert.Equal(t, errorx.CodeMQError, errorx.GetCode(err))

	_, err = DecodeFanoutTask([]byte(`{"groupId":1,"userId":2,"field":"notice","value":"x","version":"3"}`))
	assert.Equal(t, errorx.CodeMQError, errorx.GetCode(err))
}

func TestHandleWithRetry(t *testing.T) {
	task := FanoutTask{GroupID: 1, UserID: 2, Field: FieldName, Value: "n", Version: 3}

	calls := 0
	err := handleWithRetry(context.Background(), func(_ context.Context, got FanoutTask) error {
		calls++
		assert.Equal(t, task, got)
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, task)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err = handleWithRetry(ctx, func(context.Context, FanoutTask) error {
		return errors.New("down")
	}, task)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
