package ports

// StoragePort is the versioned key-value boundary underneath the node store
// and queue. Put is a compare-and-swap: the caller passes the version it last
// observed (0 to create), and the write fails with a version mismatch if the
// stored version has moved. That failure mode is the whole coordination
// model: concurrent daemons race on CAS, losers re-read.
type StoragePort interface {
	Get(key string) (value []byte, version int64, exists bool, err error)
	Put(key string, value []byte, version int64) error
	Delete(key string) error

	ListByPrefix(prefix string) ([]KeyValueVersion, error)
	CountPrefix(prefix string) (int, error)
	AtomicIncrement(key string) (int64, error)
	BatchWrite(ops []WriteOp) error

	Close() error
}

type KeyValueVersion struct {
	Key     string
	Value   []byte
	Version int64
}

type WriteOp struct {
	Type    OpType
	Key     string
	Value   []byte
	Version int64
}

type OpType int

const (
	OpPut OpType = iota
	OpDelete
)
