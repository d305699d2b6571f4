package admin

import (
	"context"

	entitlementUsecases "github.com/relaygate/relaygate/internal/application/entitlement/usecases"
	nodedto "github.com/relaygate/relaygate/internal/application/node/dto"
	nodeUsecases "github.com/relaygate/relaygate/internal/application/node/usecases"
	plandto "github.com/relaygate/relaygate/internal/application/plan/dto"
	planUsecases "github.com/relaygate/relaygate/internal/application/plan/usecases"
)

// Use case interfaces for the admin handlers

type grantAccessUseCase interface {
	Execute(ctx context.Context, cmd entitlementUsecases.GrantAccessCommand) (*entitlementUsecases.GrantAccessResult, error)
}

type revokeAccessUseCase interface {
	Execute(ctx context.Context, externalID int64) (*entitlementUsecases.RevokeAccessResult, error)
}

type listNodesUseCase interface {
	Execute(ctx context.Context, refresh bool) (*nodedto.NodeListDTO, error)
}

type createNodeUseCase interface {
	Execute(ctx context.Context, cmd nodeUsecases.CreateNodeCommand) (*nodedto.NodeDTO, error)
}

type setNodeActiveUseCase interface {
	Execute(ctx context.Context, nodeID string, active bool) (*nodedto.NodeDTO, error)
}

type deleteNodeUseCase interface {
	Execute(ctx context.Context, nodeID string) error
}

type listAllPlansUseCase interface {
	Execute(ctx context.Context) ([]plandto.PlanDTO, error)
}

type createPlanUseCase interface {
	Execute(ctx context.Context, in planUsecases.PlanTermsInput) (*plandto.PlanDTO, error)
}

type updatePlanUseCase interface {
	Execute(ctx context.Context, planID uint, in planUsecases.PlanTermsInput) (*plandto.PlanDTO, error)
}

type setPlanActiveUseCase interface {
	Execute(ctx context.Context, planID uint, active bool) (*plandto.PlanDTO, error)
}
