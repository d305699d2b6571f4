package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/domain/node"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// DeleteNodeUseCase removes a database node that no subscriber is assigned to.
type DeleteNodeUseCase struct {
	repo        node.Repository
	assignments AssignmentCounter
	cache       LoadCache
	logger      logger.Interface
}

func NewDeleteNodeUseCase(repo node.Repository, assignments AssignmentCounter, cache LoadCache, logger logger.Interface) *DeleteNodeUseCase {
	return &DeleteNodeUseCase{
		repo:        repo,
		assignments: assignments,
		cache:       cache,
		logger:      logger,
	}
}

func (uc *DeleteNodeUseCase) Execute(ctx context.Context, nodeID string) error {
	n, err := uc.repo.GetByNodeID(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("failed to get node: %w", err)
	}
	if n == nil {
		return apperrors.NewNotFoundError("node not found", nodeID)
	}

	count, err := uc.assignments.CountByAssignedNode(ctx, nodeID)
	if err != nil {
		return fmt.Errorf("failed to check node usage: %w", err)
	}
	if count > 0 {
		return apperrors.NewConflictError(node.ErrNodeHasSubscribers.Error(), fmt.Sprintf("%d subscribers", count))
	}

	if err := uc.repo.Delete(ctx, nodeID); err != nil {
		return fmt.Errorf("failed to delete node: %w", err)
	}
	uc.cache.Invalidate()

	uc.logger.Infow("node deleted", "node_id", nodeID)
	return nil
}
