package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, `
[mainConfig]
appName = "im_storage"

[mysqlConfig]
host = "db"
port = 3306
`))
	require.NoError(t, err)

	assert.Equal(t, BackendMySQL, c.Backend)
	assert.Equal(t, FanoutModeInline, c.FanoutMode)
	assert.Equal(t, "group_fanout", c.FanoutTopic)
	assert.Equal(t, "im_storage_fanout", c.KafkaConfig.GroupID)
	assert.Equal(t, "QUORUM", c.Consistency)
	assert.Equal(t, 1, c.Replication)
	assert.Equal(t, "im_storage", c.Keyspace)
	assert.Equal(t, "im_storage", c.MongoConfig.Database)
	assert.Equal(t, "db", c.MysqlConfig.Host)
	assert.Same(t, c, GetConfig())
}

func TestLoadBackendSections(t *testing.T) {
	c, err := Load(writeConfig(t, `
[mainConfig]
backend = "cassandra"

[cassandraConfig]
hosts = ["n1:9042", "n2:9042"]
keyspace = "chat"
consistency = "LOCAL_QUORUM"
timeout = 3

[kafkaConfig]
fanoutMode = "kafka"
hostPort = "k:9092"
`))
	require.NoError(t, err)

	assert.Equal(t, BackendCassandra, c.Backend)
	assert.Equal(t, []string{"n1:9042", "n2:9042"}, c.Hosts)
	assert.Equal(t, "chat", c.Keyspace)
	assert.Equal(t, "LOCAL_QUORUM", c.Consistency)
	assert.EqualValues(t, 3, c.CassandraConfig.Timeout)
	assert.Equal(t, FanoutModeKafka, c.FanoutMode)
	assert.Equal(t, "k:9092", c.HostPort)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	assert.Error(t, err)
}
