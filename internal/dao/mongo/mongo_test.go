package mongo

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"im_storage/internal/config"
	"im_storage/internal/model"
	"im_storage/internal/store"
	"im_storage/internal/store/storetest"
	"im_storage/pkg/errorx"
)

var (
	mongoOnce     sync.Once
	mongoURI      string
	mongoStartErr error
	databaseSeq   atomic.Int64
)

// startMongo 启动单节点副本集，事务需要副本集
func startMongo() (string, error) {
	mongoOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				mongoStartErr = fmt.Errorf("启动 MongoDB Testcontainer panic: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
		defer cancel()

		req := testcontainers.ContainerRequest{
			Image:        "mongo:7.0",
			ExposedPorts: []string{"27017/tcp"},
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(2 * time.Minute),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			mongoStartErr = fmt.Errorf("启动 MongoDB Testcontainer 失败: %w", err)
			return
		}

		initiate := []string{"mongosh", "--quiet", "--eval",
			"rs.initiate({_id:'rs0',members:[{_id:0,host:'localhost:27017'}]})"}
		if code, _, err := container.Exec(ctx, initiate); err != nil || code != 0 {
			mongoStartErr = fmt.Errorf("初始化副本集失败: code=%d err=%v", code, err)
			return
		}
		if err := waitPrimary(ctx, container); err != nil {
			mongoStartErr = err
			return
		}

		endpoint, err := container.PortEndpoint(ctx, "27017/tcp", "")
		if err != nil {
			mongoStartErr = fmt.Errorf("获取 MongoDB 端口失败: %w", err)
			return
		}
		mongoURI = "mongodb://" + endpoint + "/?directConnection=true"
	})
	return mongoURI, mongoStartErr
}

func waitPrimary(ctx context.Context, container testcontainers.Container) error {
	isPrimary := []string{"mongosh", "--quiet", "--eval", "db.hello().isWritablePrimary"}
	for {
		_, out, err := container.Exec(ctx, isPrimary)
		if err == nil {
			raw, _ := io.ReadAll(out)
			if strings.Contains(string(raw), "true") {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("等待副本集主节点超时: %w", ctx.Err())
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func newMongoBackend(t *testing.T) store.Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("short 模式跳过 MongoDB 集成测试")
	}
	uri, err := startMongo()
	if err != nil {
		t.Skipf("MongoDB 不可用: %v", err)
	}
	b, err := Init(config.MongoConfig{
		URI:      uri,
		Database: fmt.Sprintf("im_test_%d", databaseSeq.Add(1)),
		Timeout:  10,
	})
	require.NoError(t, err)
	return b
}

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, newMongoBackend)
}

func TestDuplicateAccountAbortsTransaction(t *testing.T) {
	b := newMongoBackend(t)
	t.Cleanup(func() { _ = b.Close() })
	ctx := context.Background()

	require.NoError(t, b.Commit(ctx, store.NewBatch(
		store.PutUser{User: model.User{UserID: 1, Account: "alice", Role: model.RoleUser}},
	)))

	err := b.Commit(ctx, store.NewBatch(
		store.PutUserProfile{Profile: model.UserProfile{UserID: 2, Account: "alice", NickName: "dup"}},
		store.PutUser{User: model.User{UserID: 2, Account: "alice", Role: model.RoleUser}},
	))
	require.ErrorIs(t, err, errorx.ErrUserExists)

	profile, err := b.FindUserProfile(ctx, 2)
	require.NoError(t, err)
	require.Nil(t, profile)
}
