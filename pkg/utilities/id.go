package utilities

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// IDGen hands out snowflake IDs from a fixed node. Entity IDs are int64
// so they sort roughly by creation time and fit a BIGINT column.
type IDGen struct {
	node *snowflake.Node
}

// NewIDGen initializes a generator for the given node id (0-1023).
func NewIDGen(nodeID int64) (*IDGen, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", nodeID, err)
	}
	return &IDGen{node: node}, nil
}

// NextID returns the next snowflake ID.
func (g *IDGen) NextID() int64 {
	return g.node.Generate().Int64()
}
