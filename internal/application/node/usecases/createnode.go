package usecases

import (
	"context"
	"errors"
	"fmt"

	"github.com/relaygate/relaygate/internal/application/node/dto"
	"github.com/relaygate/relaygate/internal/domain/node"
	"github.com/relaygate/relaygate/internal/shared/biztime"
	apperrors "github.com/relaygate/relaygate/internal/shared/errors"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/sanitize"
)

type CreateNodeCommand struct {
	NodeID   string `json:"node_id" binding:"required"`
	Name     string `json:"name"`
	Endpoint string `json:"endpoint" binding:"required"`
	Username string `json:"username"`
	Password string `json:"password"`
	Capacity int    `json:"capacity"`
}

// CreateNodeUseCase registers a node in the database. Registering the first
// database node replaces the configured node list as the allocator's source.
type CreateNodeUseCase struct {
	repo   node.Repository
	nodes  NodeLister
	cache  LoadCache
	now    biztime.Clock
	logger logger.Interface
}

func NewCreateNodeUseCase(repo node.Repository, nodes NodeLister, cache LoadCache, logger logger.Interface) *CreateNodeUseCase {
	return &CreateNodeUseCase{
		repo:   repo,
		nodes:  nodes,
		cache:  cache,
		now:    biztime.SystemClock,
		logger: logger,
	}
}

func (uc *CreateNodeUseCase) Execute(ctx context.Context, cmd CreateNodeCommand) (*dto.NodeDTO, error) {
	n, err := node.NewNode(node.Spec{
		NodeID:   cmd.NodeID,
		Name:     sanitize.PlainText(cmd.Name),
		Endpoint: cmd.Endpoint,
		Username: cmd.Username,
		Password: cmd.Password,
		Capacity: cmd.Capacity,
	}, uc.now())
	if err != nil {
		return nil, apperrors.NewValidationError(err.Error())
	}

	previous := uc.nodes.Source(ctx)
	if err := uc.repo.Create(ctx, n); err != nil {
		if errors.Is(err, node.ErrNodeExists) {
			return nil, apperrors.NewConflictError("node already exists", cmd.NodeID)
		}
		return nil, fmt.Errorf("failed to create node: %w", err)
	}
	uc.cache.Invalidate()

	uc.logger.Infow("node registered", "node_id", n.NodeID(), "endpoint", n.Endpoint(), "capacity", n.Capacity())
	if previous != "database" {
		uc.logger.Warnw("node source switched from configuration to database", "node_id", n.NodeID())
	}

	out := dto.ToNodeDTO(n, nil)
	return &out, nil
}
