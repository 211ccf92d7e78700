package domain

import "fmt"

const (
	NodePrefix     = "node:"
	FullnamePrefix = "fullname:"
	QueuePrefix    = "queue:entry:"
	DiagPrefix     = "diag:"
	NodeSeqKey     = "seq:node"
	QueueSeqKey    = "seq:queue"
	DiagSeqKey     = "seq:diag"
	CatalogPrefix  = "catalog:"
)

// NodeKey builds the canonical key for a node record.
func NodeKey(id int64) string {
	return fmt.Sprintf("%s%020d", NodePrefix, id)
}

// FullnameKey builds the fullname -> node id index key.
func FullnameKey(fullname string) string {
	return FullnamePrefix + fullname
}

// QueueEntryKey builds the key for a node's queue entry. One entry per node:
// enqueueing an already-queued node is a no-op.
func QueueEntryKey(nodeID int64) string {
	return fmt.Sprintf("%s%020d", QueuePrefix, nodeID)
}

// DiagKey builds the key for one diagnostic record, sequenced globally so
// listing by node prefix returns records in the order they were recorded.
func DiagKey(nodeID, seq int64) string {
	return fmt.Sprintf("%s%020d:%020d", DiagPrefix, nodeID, seq)
}

func DiagNodePrefix(nodeID int64) string {
	return fmt.Sprintf("%s%020d:", DiagPrefix, nodeID)
}

const ChildPrefix = "child:"

// ChildKey builds the parent -> child index key. Iterating ChildNodePrefix
// yields children in creation order.
func ChildKey(parentID, childID int64) string {
	return fmt.Sprintf("%s%020d:%020d", ChildPrefix, parentID, childID)
}

func ChildNodePrefix(parentID int64) string {
	return fmt.Sprintf("%s%020d:", ChildPrefix, parentID)
}

// CatalogKey builds the key recording one created collection.
func CatalogKey(name string) string {
	return CatalogPrefix + name
}
