package cassandra

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"im_storage/internal/config"
	"im_storage/internal/store"
	"im_storage/internal/store/storetest"
)

var (
	cassandraOnce     sync.Once
	cassandraHost     string
	cassandraStartErr error
	keyspaceSeq       atomic.Int64
)

// startCassandra 整个包共用一个容器，每个用例使用独立 keyspace
func startCassandra() (string, error) {
	cassandraOnce.Do(func() {
		defer func() {
			if r := recover(); r != nil {
				cassandraStartErr = fmt.Errorf("启动 Cassandra Testcontainer panic: %v", r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		req := testcontainers.ContainerRequest{
			Image:        "cassandra:4.1",
			ExposedPorts: []string{"9042/tcp"},
			Env: map[string]string{
				"MAX_HEAP_SIZE": "512M",
				"HEAP_NEWSIZE":  "128M",
			},
			WaitingFor: wait.ForLog("Starting listening for CQL clients").WithStartupTimeout(4 * time.Minute),
		}
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: req,
			Started:          true,
		})
		if err != nil {
			cassandraStartErr = fmt.Errorf("启动 Cassandra Testcontainer 失败: %w", err)
			return
		}
		endpoint, err := container.PortEndpoint(ctx, "9042/tcp", "")
		if err != nil {
			cassandraStartErr = fmt.Errorf("获取 Cassandra 端口失败: %w", err)
			return
		}
		cassandraHost = endpoint
	})
	return cassandraHost, cassandraStartErr
}

func newCassandraBackend(t *testing.T) store.Backend {
	t.Helper()
	if testing.Short() {
		t.Skip("short 模式跳过 Cassandra 集成测试")
	}
	host, err := startCassandra()
	if err != nil {
		t.Skipf("Cassandra 不可用: %v", err)
	}
	b, err := Init(config.CassandraConfig{
		Hosts:       []string{host},
		Keyspace:    fmt.Sprintf("im_test_%d", keyspaceSeq.Add(1)),
		Consistency: "ONE",
		Replication: 1,
		Timeout:     10,
	})
	require.NoError(t, err)
	return b
}

func TestBackendConformance(t *testing.T) {
	storetest.Run(t, newCassandraBackend)
}
