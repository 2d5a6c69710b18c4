// Package mongo 基于 MongoDB 的文档存储后端
// 工作单元以多文档事务提交，要求副本集或分片集群
package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"im_storage/internal/config"
	"im_storage/pkg/errorx"
)

const defaultTimeout = 10 * time.Second

// Init 连接 MongoDB，检查主节点可用并创建索引
func Init(cfg config.MongoConfig) (*Backend, error) {
	timeout := defaultTimeout
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout))
	if err != nil {
		return nil, wrapError(err, "连接 MongoDB")
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, wrapError(err, "MongoDB 主节点不可用")
	}

	db := client.Database(cfg.Database)
	if err := ensureIndexes(ctx, db); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	zap.L().Info("document backend ready", zap.String("database", cfg.Database))
	return NewBackend(client, db), nil
}

// ensureIndexes 创建唯一索引，同时使集合在事务外先行存在
func ensureIndexes(ctx context.Context, db *mongo.Database) error {
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			return wrapErrorf(err, "创建索引 %s", coll)
		}
	}
	return nil
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
