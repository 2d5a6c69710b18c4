// Package config 提供应用程序的配置加载和管理功能
// 使用 TOML 格式的配置文件，支持多路径查找
package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml" // TOML 配置文件解析库
)

// 存储后端类型
const (
	BackendMySQL     = "mysql"
	BackendCassandra = "cassandra"
	BackendMongo     = "mongo"
)

// 群组扇出模式
const (
	FanoutModeInline = "inline" // 在调用方协程内逐个成员同步写入
	FanoutModeKafka  = "kafka"  // 写入 Kafka，由消费者逐个成员应用
)

// MainConfig 主配置，包含应用基本信息
type MainConfig struct {
	AppName string `toml:"appName"` // 应用名称，用于日志标识等
	Mode    string `toml:"mode"`    // 运行模式：dev / release
	Backend string `toml:"backend"` // 存储后端：mysql / cassandra / mongo
}

// MysqlConfig MySQL 数据库连接配置
type MysqlConfig struct {
	Host         string `toml:"host"`         // MySQL 服务器地址
	Port         int    `toml:"port"`         // MySQL 端口，默认 3306
	User         string `toml:"user"`         // 数据库用户名
	Password     string `toml:"password"`     // 数据库密码
	DatabaseName string `toml:"databaseName"` // 数据库名称
}

// CassandraConfig Cassandra 集群配置
type CassandraConfig struct {
	Hosts       []string      `toml:"hosts"`       // 节点列表，如 ["127.0.0.1:9042"]
	Keyspace    string        `toml:"keyspace"`    // keyspace 名称
	Consistency string        `toml:"consistency"` // 一致性级别，如 "QUORUM"、"LOCAL_QUORUM"
	Replication int           `toml:"replication"` // SimpleStrategy 副本数（仅用于自动建 keyspace）
	Timeout     time.Duration `toml:"timeout"`     // 请求超时（秒）
}

// MongoConfig MongoDB 配置
// 多文档事务要求副本集或分片集群
type MongoConfig struct {
	URI      string        `toml:"uri"`      // 连接串，如 "mongodb://127.0.0.1:27017/?replicaSet=rs0"
	Database string        `toml:"database"` // 数据库名称
	Timeout  time.Duration `toml:"timeout"`  // 连接超时（秒）
}

// RedisConfig Redis 连接配置
type RedisConfig struct {
	Host     string `toml:"host"`     // Redis 服务器地址
	Port     int    `toml:"port"`     // Redis 端口，默认 6379
	Password string `toml:"password"` // Redis 密码，无密码留空
	Db       int    `toml:"db"`       // Redis 数据库编号，默认 0
	Enabled  bool   `toml:"enabled"`  // 关闭时不做缓存失效
}

// LogConfig 日志配置，使用 lumberjack 进行日志轮转
type LogConfig struct {
	LogPath    string `toml:"logPath"`    // 日志文件存储目录
	FileName   string `toml:"fileName"`   // 日志文件名
	MaxSize    int    `toml:"maxSize"`    // 单个日志文件最大大小（MB）
	MaxBackups int    `toml:"maxBackups"` // 保留旧日志文件的最大个数
	MaxAge     int    `toml:"maxAge"`     // 保留旧日志文件的最大天数
	Level      string `toml:"level"`      // 日志级别：debug, info, warn, error
}

// KafkaConfig Kafka 消息队列配置
type KafkaConfig struct {
	FanoutMode  string        `toml:"fanoutMode"`  // 扇出模式："inline" 或 "kafka"
	HostPort    string        `toml:"hostPort"`    // Kafka 服务器地址，如 "localhost:9092"
	FanoutTopic string        `toml:"fanoutTopic"` // 群组扇出任务主题
	GroupID     string        `toml:"groupId"`     // 消费者组
	Timeout     time.Duration `toml:"timeout"`     // 超时时间（秒）
}

// SnowflakeConfig 雪花算法配置
type SnowflakeConfig struct {
	MachineID int64 `toml:"machineId"` // 雪花算法节点 ID，范围 0-1023，分布式部署时每台机器需唯一
}

// SyncConfig 增量同步配置
type SyncConfig struct {
	MaxChangeLimit int `toml:"maxChangeLimit"` // 单次增量拉取上限
}

// Config 应用程序总配置，聚合所有子配置
type Config struct {
	MainConfig      `toml:"mainConfig"`
	MysqlConfig     `toml:"mysqlConfig"`
	CassandraConfig `toml:"cassandraConfig"`
	MongoConfig     `toml:"mongoConfig"`
	RedisConfig     `toml:"redisConfig"`
	LogConfig       `toml:"logConfig"`
	KafkaConfig     `toml:"kafkaConfig"`
	SnowflakeConfig `toml:"snowflakeConfig"`
	SyncConfig      `toml:"syncConfig"`
}

// config 全局配置单例，延迟加载
var config *Config

// searchPaths 候选配置文件路径（优先加载本地配置）
var searchPaths = []string{
	"configs/config_local.toml",
	"configs/config.toml",
	"../../configs/config_local.toml", // 从子目录运行时的路径
	"../../configs/config.toml",
}

// LoadConfig 从多个候选路径加载配置文件
// 按顺序尝试加载，找到第一个可用的配置文件即停止
func LoadConfig() error {
	for _, path := range searchPaths {
		if _, err := toml.DecodeFile(path, config); err == nil {
			return nil
		}
	}
	return fmt.Errorf("could not find configuration file in any of the search paths")
}

// Load 从指定路径加载配置并替换全局实例
func Load(path string) (*Config, error) {
	c := new(Config)
	if _, err := toml.DecodeFile(path, c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	c.applyDefaults()
	config = c
	return c, nil
}

// GetConfig 获取全局配置实例（单例模式）
// 首次调用时会自动加载配置文件
func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig() // 忽略加载错误，使用默认值
		config.applyDefaults()
	}
	return config
}

func (c *Config) applyDefaults() {
	if c.Backend == "" {
		c.Backend = BackendMySQL
	}
	if c.FanoutMode == "" {
		c.FanoutMode = FanoutModeInline
	}
	if c.FanoutTopic == "" {
		c.FanoutTopic = "group_fanout"
	}
	if c.KafkaConfig.GroupID == "" {
		c.KafkaConfig.GroupID = "im_storage_fanout"
	}
	if c.Keyspace == "" {
		c.Keyspace = "im_storage"
	}
	if c.Consistency == "" {
		c.Consistency = "QUORUM"
	}
	if c.Replication == 0 {
		c.Replication = 1
	}
	if c.MongoConfig.Database == "" {
		c.MongoConfig.Database = "im_storage"
	}
}
