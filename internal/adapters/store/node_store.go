package store

import (
	"log/slog"
	"sort"
	"strconv"
	"time"

	json "github.com/goccy/go-json"

	"github.com/drover-io/drover/internal/domain"
	"github.com/drover-io/drover/internal/ports"
)

// NodeStore persists graph nodes on the versioned KV storage. The node record
// is the source of truth; a fullname index maps the external identifier back
// to the numeric id. Updates are optimistic: the stored version must still
// match the version the caller read.
type NodeStore struct {
	storage ports.StoragePort
	logger  *slog.Logger
}

func NewNodeStore(storage ports.StoragePort, logger *slog.Logger) *NodeStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NodeStore{
		storage: storage,
		logger:  logger.With("component", "node-store"),
	}
}

func (s *NodeStore) Create(node *domain.Node) error {
	if err := domain.ValidateName(node.Name); err != nil {
		return err
	}

	if _, _, exists, err := s.storage.Get(domain.FullnameKey(node.Fullname)); err != nil {
		return err
	} else if exists && node.Attempt == 0 {
		return domain.NewConfigError("fullname already exists: " + node.Fullname)
	}

	id, err := s.storage.AtomicIncrement(domain.NodeSeqKey)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	node.ID = id
	node.Version = 0
	node.CreatedAt = now
	node.UpdatedAt = now

	payload, err := json.Marshal(node)
	if err != nil {
		return err
	}

	ops := []ports.WriteOp{
		{Type: ports.OpPut, Key: domain.NodeKey(id), Value: payload, Version: 0},
	}
	// The fullname index always points at the newest attempt; replaced
	// attempts stay reachable by id.
	indexValue := []byte(strconv.FormatInt(id, 10))
	_, indexVersion, _, err := s.storage.Get(domain.FullnameKey(node.Fullname))
	if err != nil {
		return err
	}
	ops = append(ops, ports.WriteOp{
		Type: ports.OpPut, Key: domain.FullnameKey(node.Fullname),
		Value: indexValue, Version: indexVersion,
	})
	if node.ParentID != 0 {
		ops = append(ops, ports.WriteOp{
			Type: ports.OpPut, Key: domain.ChildKey(node.ParentID, id),
			Value: indexValue, Version: 0,
		})
	}

	if err := s.storage.BatchWrite(ops); err != nil {
		return err
	}
	// The record was written at version 0 and now stores version 1; keep the
	// in-memory node consistent so a follow-on Update does not self-conflict.
	node.Version = 1

	s.logger.Debug("node created",
		"id", id,
		"fullname", node.Fullname,
		"kind", node.Kind,
		"attempt", node.Attempt)
	return nil
}

func (s *NodeStore) Get(id int64) (*domain.Node, error) {
	value, version, exists, err := s.storage.Get(domain.NodeKey(id))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNodeNotFound
	}
	var node domain.Node
	if err := json.Unmarshal(value, &node); err != nil {
		return nil, err
	}
	node.Version = version
	return &node, nil
}

func (s *NodeStore) GetByFullname(fullname string) (*domain.Node, error) {
	value, _, exists, err := s.storage.Get(domain.FullnameKey(fullname))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.ErrNodeNotFound
	}
	id, err := strconv.ParseInt(string(value), 10, 64)
	if err != nil {
		return nil, &domain.StorageError{Type: domain.ErrCorrupted, Key: fullname, Message: "corrupt fullname index: " + err.Error()}
	}
	return s.Get(id)
}

// Update persists the node if its stored version still matches node.Version,
// then bumps node.Version. A version mismatch means another daemon moved the
// node first; the caller re-reads and re-decides.
func (s *NodeStore) Update(node *domain.Node) error {
	node.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(node)
	if err != nil {
		return err
	}
	if err := s.storage.Put(domain.NodeKey(node.ID), payload, node.Version); err != nil {
		return err
	}
	node.Version++
	return nil
}

func (s *NodeStore) Children(parentID int64) ([]*domain.Node, error) {
	items, err := s.storage.ListByPrefix(domain.ChildNodePrefix(parentID))
	if err != nil {
		return nil, err
	}
	children := make([]*domain.Node, 0, len(items))
	for _, item := range items {
		id, err := strconv.ParseInt(string(item.Value), 10, 64)
		if err != nil {
			return nil, &domain.StorageError{Type: domain.ErrCorrupted, Key: item.Key, Message: "corrupt child index: " + err.Error()}
		}
		child, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		children = append(children, child)
	}
	return children, nil
}

// Reparent moves child under newParentID. The node record and both child
// index entries change in one batch, so the child is never reachable from
// two parents or from none.
func (s *NodeStore) Reparent(child *domain.Node, newParentID int64) error {
	oldParentID := child.ParentID
	child.ParentID = newParentID
	child.UpdatedAt = time.Now().UTC()

	payload, err := json.Marshal(child)
	if err != nil {
		return err
	}
	indexValue := []byte(strconv.FormatInt(child.ID, 10))
	_, indexVersion, _, err := s.storage.Get(domain.ChildKey(newParentID, child.ID))
	if err != nil {
		return err
	}

	ops := []ports.WriteOp{
		{Type: ports.OpPut, Key: domain.NodeKey(child.ID), Value: payload, Version: child.Version},
		{Type: ports.OpDelete, Key: domain.ChildKey(oldParentID, child.ID)},
		{Type: ports.OpPut, Key: domain.ChildKey(newParentID, child.ID), Value: indexValue, Version: indexVersion},
	}
	if err := s.storage.BatchWrite(ops); err != nil {
		return err
	}
	child.Version++

	s.logger.Debug("node reparented",
		"id", child.ID,
		"fullname", child.Fullname,
		"from", oldParentID,
		"to", newParentID)
	return nil
}

func (s *NodeStore) ActiveByName(parentID int64, name string) (*domain.Node, error) {
	children, err := s.Children(parentID)
	if err != nil {
		return nil, err
	}
	var newest *domain.Node
	for _, child := range children {
		if child.Name != name || child.Superseded {
			continue
		}
		if newest == nil || child.ID > newest.ID {
			newest = child
		}
	}
	if newest == nil {
		return nil, domain.ErrNodeNotFound
	}
	return newest, nil
}

func (s *NodeStore) Roots() ([]*domain.Node, error) {
	return s.scan(func(n *domain.Node) bool {
		return n.Kind == domain.KindCampaign
	})
}

func (s *NodeStore) AppendDiagnostic(node *domain.Node, message string) error {
	seq, err := s.storage.AtomicIncrement(domain.DiagSeqKey)
	if err != nil {
		return err
	}
	diag := &domain.Diagnostic{
		NodeID:   node.ID,
		Fullname: node.Fullname,
		Attempt:  node.Attempt,
		Message:  message,
		Time:     time.Now().UTC(),
	}
	payload, err := diag.ToBytes()
	if err != nil {
		return err
	}
	return s.storage.Put(domain.DiagKey(node.ID, seq), payload, 0)
}

func (s *NodeStore) Diagnostics(nodeID int64) ([]*domain.Diagnostic, error) {
	items, err := s.storage.ListByPrefix(domain.DiagNodePrefix(nodeID))
	if err != nil {
		return nil, err
	}
	diags := make([]*domain.Diagnostic, 0, len(items))
	for _, item := range items {
		diag, err := domain.DiagnosticFromBytes(item.Value)
		if err != nil {
			return nil, err
		}
		diags = append(diags, diag)
	}
	return diags, nil
}

func (s *NodeStore) scan(keep func(*domain.Node) bool) ([]*domain.Node, error) {
	items, err := s.storage.ListByPrefix(domain.NodePrefix)
	if err != nil {
		return nil, err
	}
	var nodes []*domain.Node
	for _, item := range items {
		var node domain.Node
		if err := json.Unmarshal(item.Value, &node); err != nil {
			return nil, err
		}
		node.Version = item.Version
		if keep(&node) {
			nodes = append(nodes, &node)
		}
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes, nil
}
