package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"im_storage/internal/config"
	"im_storage/internal/dao/cassandra"
	"im_storage/internal/dao/mongo"
	"im_storage/internal/dao/mysql"
	myredis "im_storage/internal/dao/redis"
	"im_storage/internal/infrastructure/logger"
	"im_storage/internal/infrastructure/mq"
	"im_storage/internal/service/group"
	"im_storage/internal/store"
	"im_storage/pkg/errorx"
	"im_storage/pkg/util/snowflake"
)

func main() {
	// 1. 加载配置
	conf := config.GetConfig()

	// 2. 初始化日志
	if err := logger.Init(&conf.LogConfig, conf.Mode); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	zap.L().Info("日志初始化成功", zap.String("app", conf.AppName))

	// 3. 初始化雪花节点，ID 与版本号共用
	snowflake.Init(conf.MachineID)

	// 4. 初始化存储后端
	backend, err := openBackend(conf)
	if err != nil {
		zap.L().Fatal("存储后端初始化失败", zap.String("backend", conf.Backend), zap.Error(err))
	}
	zap.L().Info("存储后端初始化成功", zap.String("backend", conf.Backend))

	opts := []store.Option{store.WithMaxSyncLimit(conf.MaxChangeLimit)}

	// 5. 初始化 Redis 缓存失效
	var cache *myredis.RedisCache
	if conf.RedisConfig.Enabled {
		cache, err = myredis.Init(conf.RedisConfig)
		if err != nil {
			zap.L().Fatal("Redis 初始化失败", zap.Error(err))
		}
		opts = append(opts, store.WithCacheInvalidator(myredis.NewInvalidator(cache)))
		zap.L().Info("Redis 初始化成功")
	}

	facade := store.New(backend, opts...)

	// 6. 群组扇出
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	var kafkaService *mq.KafkaService
	if conf.FanoutMode == config.FanoutModeKafka {
		kafkaService = mq.NewKafkaService(conf.KafkaConfig)
		if err := kafkaService.CreateTopic(1); err != nil {
			zap.L().Fatal("创建扇出主题失败", zap.Error(err))
		}
		groupService := group.NewGroupService(facade, snowflake.Default(), kafkaService)
		go func() {
			defer close(done)
			if err := kafkaService.Consume(ctx, groupService.Apply); err != nil {
				zap.L().Error("扇出消费者退出", zap.Error(err))
			}
		}()
		zap.L().Info("Kafka 扇出消费者已启动", zap.String("topic", conf.FanoutTopic))
	} else {
		close(done)
	}

	// 设置信号监听
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zap.L().Info("关闭服务...")
	cancel()
	<-done
	if kafkaService != nil {
		if err := kafkaService.Close(); err != nil {
			zap.L().Error("关闭 Kafka 失败", zap.Error(err))
		}
	}
	if cache != nil {
		if err := cache.Close(); err != nil {
			zap.L().Error("关闭 Redis 失败", zap.Error(err))
		}
	}
	if err := facade.Close(); err != nil {
		zap.L().Error("关闭存储后端失败", zap.Error(err))
	}
	zap.L().Info("服务已关闭")
	_ = zap.L().Sync()
}

// openBackend 按配置选择存储后端
func openBackend(conf *config.Config) (store.Backend, error) {
	switch conf.Backend {
	case config.BackendMySQL:
		return mysql.Init(conf.MysqlConfig)
	case config.BackendCassandra:
		return cassandra.Init(conf.CassandraConfig)
	case config.BackendMongo:
		return mongo.Init(conf.MongoConfig)
	}
	return nil, errorx.Newf(errorx.CodeInvalidParam, "未知存储后端 %q", conf.Backend)
}
