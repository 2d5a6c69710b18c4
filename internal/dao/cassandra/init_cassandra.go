// Package cassandra 基于 gocql 的列族存储后端
// 工作单元以 LOGGED BATCH 提交，群组变更明细存为 change_detail UDT 列表
package cassandra

import (
	"time"

	"github.com/gocql/gocql"
	"go.uber.org/zap"

	"im_storage/internal/config"
	"im_storage/pkg/errorx"
)

// Init 连接集群，按需创建 keyspace 与表结构
// 执行步骤：
//  1. 以无 keyspace 的会话创建 keyspace
//  2. 以目标 keyspace 建立正式会话
//  3. 创建 UDT 与各表
func Init(cfg config.CassandraConfig) (*Backend, error) {
	consistency, err := gocql.ParseConsistencyWrapper(cfg.Consistency)
	if err != nil {
		return nil, errorx.Wrapf(err, errorx.CodeInvalidParam, "一致性级别无效: %s", cfg.Consistency)
	}

	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Consistency = consistency
	if cfg.Timeout > 0 {
		cluster.Timeout = cfg.Timeout * time.Second
		cluster.ConnectTimeout = cfg.Timeout * time.Second
	}

	bootstrap, err := cluster.CreateSession()
	if err != nil {
		return nil, wrapError(err, "连接 Cassandra")
	}
	err = bootstrap.Query(createKeyspaceStmt(cfg.Keyspace, cfg.Replication)).Exec()
	bootstrap.Close()
	if err != nil {
		return nil, wrapErrorf(err, "创建 keyspace %s", cfg.Keyspace)
	}

	cluster.Keyspace = cfg.Keyspace
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, wrapErrorf(err, "连接 keyspace %s", cfg.Keyspace)
	}
	for _, stmt := range schema {
		if err := session.Query(stmt).Exec(); err != nil {
			session.Close()
			return nil, wrapError(err, "创建表结构")
		}
	}

	zap.L().Info("column-family backend ready",
		zap.Strings("hosts", cfg.Hosts),
		zap.String("keyspace", cfg.Keyspace),
		zap.String("consistency", consistency.String()))
	return NewBackend(session), nil
}

func wrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return errorx.Wrap(err, errorx.CodeDBError, msg)
}

func wrapErrorf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return errorx.Wrapf(err, errorx.CodeDBError, format, args...)
}
