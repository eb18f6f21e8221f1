// 文件: pkg/depth/snowflake.go
// 快照 ID：雪花算法，多进程按 NODE_ID 区分
// 使用开源库: github.com/bwmarrin/snowflake

package depth

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// IDGenerator 快照 ID 生成器，并发安全
type IDGenerator struct {
	node *snowflake.Node
}

// NewIDGenerator nodeID: 0-1023
func NewIDGenerator(nodeID int64) (*IDGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &IDGenerator{node: node}, nil
}

// Next 生成下一个 ID，单调递增
func (g *IDGenerator) Next() int64 {
	return g.node.Generate().Int64()
}

// NodeOf 从 ID 中取出生成它的节点
func NodeOf(id int64) int64 {
	return snowflake.ParseInt64(id).Node()
}
