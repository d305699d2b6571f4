package usecases

import (
	"context"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/node/dto"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
)

// SetNodeActiveUseCase takes a database node out of rotation or puts it back.
// Accounts already on an inactive node stay there until their next sync moves them.
type SetNodeActiveUseCase struct {
	repo   node.Repository
	cache  LoadCache
	now    biztime.Clock
	logger logger.Interface
}

func NewSetNodeActiveUseCase(repo node.Repository, cache LoadCache, logger logger.Interface) *SetNodeActiveUseCase {
	return &SetNodeActiveUseCase{
		repo:   repo,
		cache:  cache,
		now:    biztime.SystemClock,
		logger: logger,
	}
}

func (uc *SetNodeActiveUseCase) Execute(ctx context.Context, nodeID string, active bool) (*dto.NodeDTO, error) {
	n, err := uc.repo.GetByNodeID(ctx, nodeID)
	if err != nil {
		return nil, fmt.Errorf("failed to get node: %w", err)
	}
	if n == nil {
		return nil, apperrors.NewNotFoundError("node not found", nodeID)
	}

	if n.IsActive() != active {
		if active {
			n.Activate(uc.now())
		} else {
			n.Deactivate(uc.now())
		}
		if err := uc.repo.Update(ctx, n); err != nil {
			return nil, fmt.Errorf("failed to update node: %w", err)
		}
		uc.cache.Invalidate()
		uc.logger.Infow("node state changed", "node_id", nodeID, "active", active)
	}

	out := dto.ToNodeDTO(n, nil)
	return &out, nil
}
