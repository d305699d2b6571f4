package services

import (
	"context"
	"fmt"
	"time"

	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// NodeRegistry serves the node list from the database when any node is registered
// there, and from static configuration otherwise.
type NodeRegistry struct {
	repo   node.Repository
	static map[string]*node.Node
	order  []string
	logger logger.Interface
}

func NewNodeRegistry(repo node.Repository, specs []node.Spec, log logger.Interface) (*NodeRegistry, error) {
	r := &NodeRegistry{
		repo:   repo,
		static: make(map[string]*node.Node, len(specs)),
		logger: log,
	}
	now := biztime.NowUTC()
	for _, spec := range specs {
		if _, dup := r.static[spec.NodeID]; dup {
			return nil, fmt.Errorf("duplicate node id in configuration: %s", spec.NodeID)
		}
		n, err := node.NewNode(spec, now)
		if err != nil {
			return nil, err
		}
		r.static[spec.NodeID] = n
		r.order = append(r.order, spec.NodeID)
	}
	return r, nil
}

func (r *NodeRegistry) ListActive(ctx context.Context) ([]*node.Node, error) {
	useDB, err := r.useDatabase(ctx)
	if err != nil {
		return nil, err
	}
	if useDB {
		return r.repo.ListActive(ctx)
	}
	out := make([]*node.Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.static[id])
	}
	return out, nil
}

// List returns every node of the list in use, inactive ones included.
func (r *NodeRegistry) List(ctx context.Context) ([]*node.Node, error) {
	useDB, err := r.useDatabase(ctx)
	if err != nil {
		return nil, err
	}
	if useDB {
		return r.repo.List(ctx)
	}
	out := make([]*node.Node, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.static[id])
	}
	return out, nil
}

// Find resolves inactive nodes too, so accounts on retired nodes can be cleaned up.
func (r *NodeRegistry) Find(ctx context.Context, nodeID string) (*node.Node, error) {
	if r.repo != nil {
		n, err := r.repo.GetByNodeID(ctx, nodeID)
		if err != nil {
			return nil, err
		}
		if n != nil {
			return n, nil
		}
	}
	if n, ok := r.static[nodeID]; ok {
		return n, nil
	}
	return nil, node.ErrNodeNotFound
}

// UpdateLoad writes observed loads for database nodes only.
func (r *NodeRegistry) UpdateLoad(ctx context.Context, nodeID string, currentUsers int, at time.Time) error {
	if r.repo == nil {
		return nil
	}
	n, err := r.repo.GetByNodeID(ctx, nodeID)
	if err != nil || n == nil {
		return err
	}
	return r.repo.UpdateLoad(ctx, nodeID, currentUsers, at)
}

// Source reports which list is in use, for the admin view.
func (r *NodeRegistry) Source(ctx context.Context) string {
	useDB, err := r.useDatabase(ctx)
	if err != nil || !useDB {
		return "config"
	}
	return "database"
}

func (r *NodeRegistry) useDatabase(ctx context.Context) (bool, error) {
	if r.repo == nil {
		return false, nil
	}
	all, err := r.repo.List(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to list registered nodes: %w", err)
	}
	return len(all) > 0, nil
}
