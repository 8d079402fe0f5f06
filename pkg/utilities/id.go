package utilities

import (
	"os"
	"strconv"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/segmentio/ksuid"
)

var (
	nodeOnce sync.Once
	node     *snowflake.Node
)

// NewKSUID generates a new globally unique KSUID string.
func NewKSUID() string {
	return ksuid.New().String()
}

// NextID returns a snowflake id from the process-wide node. The node id comes
// from SNOWFLAKE_NODE (default 1). A single node is shared so ids generated in
// the same millisecond keep distinct sequence numbers.
func NextID() int64 {
	nodeOnce.Do(func() {
		node = newNode(nodeIDFromEnv())
	})
	return node.Generate().Int64()
}

func nodeIDFromEnv() int64 {
	nodeEnv := os.Getenv("SNOWFLAKE_NODE")
	if nodeEnv == "" {
		return 1
	}
	nodeID, err := strconv.ParseInt(nodeEnv, 10, 64)
	if err != nil {
		return 1
	}
	return nodeID
}

// newNode falls back to node 1 when the configured id is out of range.
func newNode(nodeID int64) *snowflake.Node {
	n, err := snowflake.NewNode(nodeID)
	if err != nil {
		n, _ = snowflake.NewNode(1)
	}
	return n
}
