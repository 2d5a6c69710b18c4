// Package mysql 基于 GORM 的关系型存储后端
// 负责建立连接、自动迁移表结构，并以数据库事务实现 store.Backend 的工作单元
package mysql

import (
	"fmt"
	"log"
	"os"
	"time"

	"im_storage/internal/config"

	"go.uber.org/zap"
	mysqldriver "gorm.io/driver/mysql" // GORM MySQL 驱动
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Init 根据配置连接 MySQL 并返回后端实例
// 执行步骤：
//  1. 构建 DSN（Data Source Name）连接字符串
//  2. 使用 GORM 建立数据库连接
//  3. 执行 AutoMigrate 自动迁移表结构
func Init(cfg config.MysqlConfig) (*Backend, error) {
	// 格式：user:password@tcp(host:port)/database?params
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.DatabaseName,
	)
	return Open(mysqldriver.Open(dsn))
}

// Open 使用任意 GORM 方言打开后端，测试中使用 SQLite
func Open(dialector gorm.Dialector) (*Backend, error) {
	return open(dialector, newGormLogger(log.New(os.Stdout, "\r\n", log.LstdFlags)))
}

// newGormLogger 只输出慢查询与错误
// Find* 查不到记录是正常结果，不打印 record not found
func newGormLogger(w gormlogger.Writer) gormlogger.Interface {
	return gormlogger.New(w, gormlogger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  gormlogger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

func open(dialector gorm.Dialector, logger gormlogger.Interface) (*Backend, error) {
	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true, // 唯一键冲突翻译为 gorm.ErrDuplicatedKey
		Logger:         logger,
	})
	if err != nil {
		return nil, wrapDBError(err, "连接数据库")
	}

	// 如果表不存在则创建；不会删除已有字段或数据
	if err := db.AutoMigrate(allTables...); err != nil {
		return nil, wrapDBError(err, "迁移表结构")
	}
	zap.L().Info("relational backend ready", zap.String("dialect", dialector.Name()))
	return NewBackend(db), nil
}
