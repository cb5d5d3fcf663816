package partition

import "fmt"

// Identity is a partition's immutable (nodeId, partitionId) pair.
type Identity struct {
	NodeID      string
	PartitionID uint32
}

// String renders the identity as "partition-<nodeID>-<partitionID>";
// cmd/partitiond uses it as the Raft server ID. Log fields and metric
// labels carry node_id and partition_id separately instead.
func (id Identity) String() string {
	return fmt.Sprintf("partition-%s-%d", id.NodeID, id.PartitionID)
}
