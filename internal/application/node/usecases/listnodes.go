package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/node/dto"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

type ListNodesUseCase struct {
	nodes       NodeLister
	cache       LoadCache
	assignments AssignmentCounter
	logger      logger.Interface
}

func NewListNodesUseCase(nodes NodeLister, cache LoadCache, assignments AssignmentCounter, logger logger.Interface) *ListNodesUseCase {
	return &ListNodesUseCase{
		nodes:       nodes,
		cache:       cache,
		assignments: assignments,
		logger:      logger,
	}
}

// Execute lists nodes with their cached loads. refresh forces a poll first.
func (uc *ListNodesUseCase) Execute(ctx context.Context, refresh bool) (*dto.NodeListDTO, error) {
	if refresh || len(uc.cache.Snapshot()) == 0 {
		if err := uc.cache.Refresh(ctx); err != nil {
			uc.logger.Warnw("node load refresh failed", "error", err)
		}
	}

	nodes, err := uc.nodes.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}

	loads := make(map[string]node.Load)
	for _, nl := range uc.cache.Snapshot() {
		loads[nl.Load.NodeID] = nl.Load
	}

	out := &dto.NodeListDTO{
		Source: uc.nodes.Source(ctx),
		Nodes:  make([]dto.NodeDTO, 0, len(nodes)),
	}
	for _, n := range nodes {
		var load *node.Load
		if l, ok := loads[n.NodeID()]; ok {
			load = &l
		}
		item := dto.ToNodeDTO(n, load)
		if uc.assignments != nil {
			count, err := uc.assignments.CountByAssignedNode(ctx, n.NodeID())
			if err != nil {
				return nil, fmt.Errorf("failed to count subscribers on %s: %w", n.NodeID(), err)
			}
			item.Subscribers = count
		}
		out.Nodes = append(out.Nodes, item)
	}
	return out, nil
}
