// Package snowflake 提供全局唯一 ID 与版本号生成
// 雪花 ID 按时间单调递增，同时用作各变更日志的版本号
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"im_storage/internal/model"
)

var (
	defaultGen  *Generator
	defaultOnce sync.Once
)

// Generator 雪花节点的封装，实现 model.IDGenerator
type Generator struct {
	node *snowflake.Node
}

// NewGenerator 创建生成器，machineID 越界时回退到 1
func NewGenerator(machineID int64) (*Generator, error) {
	if machineID < 0 || machineID > 1023 {
		zap.L().Warn("Invalid MachineID, using default value 1", zap.Int64("machineID", machineID))
		machineID = 1
	}
	node, err := snowflake.NewNode(machineID)
	if err != nil {
		return nil, err
	}
	return &Generator{node: node}, nil
}

// NextID 生成雪花 ID
func (g *Generator) NextID() int64 {
	return g.node.Generate().Int64()
}

// NextVersion 生成一个新版本号
func (g *Generator) NextVersion() model.Version {
	return model.Version(g.node.Generate().Int64())
}

// Init 初始化全局节点
// 应在程序启动时调用一次
func Init(machineID int64) {
	defaultOnce.Do(func() {
		gen, err := NewGenerator(machineID)
		if err != nil {
			zap.L().Fatal("Failed to initialize snowflake node", zap.Error(err))
		}
		defaultGen = gen
		zap.L().Info("Snowflake node initialized", zap.Int64("machineID", machineID))
	})
}

// Default 返回全局生成器，未初始化时使用节点 1
func Default() *Generator {
	if defaultGen == nil {
		Init(1)
	}
	return defaultGen
}

