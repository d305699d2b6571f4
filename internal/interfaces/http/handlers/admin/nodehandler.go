package admin

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	nodeUsecases "github.com/relaygate/relaygate/internal/application/node/usecases"
	"github.com/relaygate/relaygate/internal/interfaces/http/handlers/common"
	"github.com/relaygate/relaygate/internal/shared/logger"
	"github.com/relaygate/relaygate/internal/shared/utils"
)

type NodeHandler struct {
	listUC      listNodesUseCase
	createUC    createNodeUseCase
	setActiveUC setNodeActiveUseCase
	deleteUC    deleteNodeUseCase
	logger      logger.Interface
}

func NewNodeHandler(
	listUC listNodesUseCase,
	createUC createNodeUseCase,
	setActiveUC setNodeActiveUseCase,
	deleteUC deleteNodeUseCase,
	logger logger.Interface,
) *NodeHandler {
	return &NodeHandler{
		listUC:      listUC,
		createUC:    createUC,
		setActiveUC: setActiveUC,
		deleteUC:    deleteUC,
		logger:      logger,
	}
}

// ListNodes handles GET /api/v1/admin/nodes
//
//	@Summary		Allocator view of node load
//	@Tags			admin-nodes
//	@Produce		json
//	@Security		APIKey
//	@Param			refresh	query		bool	false	"Poll nodes instead of using the cached snapshot"
//	@Success		200		{object}	utils.APIResponse
//	@Router			/api/v1/admin/nodes [get]
func (h *NodeHandler) ListNodes(c *gin.Context) {
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	out, err := h.listUC.Execute(c.Request.Context(), refresh)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

// CreateNode handles POST /api/v1/admin/nodes
//
//	@Summary		Register a node
//	@Tags			admin-nodes
//	@Accept			json
//	@Produce		json
//	@Security		APIKey
//	@Param			request	body		nodeUsecases.CreateNodeCommand	true	"Node"
//	@Success		201		{object}	utils.APIResponse
//	@Failure		409		{object}	utils.APIResponse	"Node ID taken"
//	@Router			/api/v1/admin/nodes [post]
func (h *NodeHandler) CreateNode(c *gin.Context) {
	var cmd nodeUsecases.CreateNodeCommand
	if err := c.ShouldBindJSON(&cmd); err != nil {
		utils.ErrorResponse(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	out, err := h.createUC.Execute(c.Request.Context(), cmd)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.CreatedResponse(c, out, "Node registered")
}

// ActivateNode handles POST /api/v1/admin/nodes/:node_id/activate
//
//	@Summary		Return a node to allocation
//	@Tags			admin-nodes
//	@Produce		json
//	@Security		APIKey
//	@Param			node_id	path		string	true	"Node ID"
//	@Success		200		{object}	utils.APIResponse
//	@Router			/api/v1/admin/nodes/{node_id}/activate [post]
func (h *NodeHandler) ActivateNode(c *gin.Context) {
	h.setActive(c, true)
}

// DeactivateNode handles POST /api/v1/admin/nodes/:node_id/deactivate
//
//	@Summary		Stop allocating new subscribers to a node
//	@Tags			admin-nodes
//	@Produce		json
//	@Security		APIKey
//	@Param			node_id	path		string	true	"Node ID"
//	@Success		200		{object}	utils.APIResponse
//	@Router			/api/v1/admin/nodes/{node_id}/deactivate [post]
func (h *NodeHandler) DeactivateNode(c *gin.Context) {
	h.setActive(c, false)
}

func (h *NodeHandler) setActive(c *gin.Context, active bool) {
	out, err := h.setActiveUC.Execute(c.Request.Context(), c.Param("node_id"), active)
	if err != nil {
		common.RespondError(c, err)
		return
	}
	utils.SuccessResponse(c, http.StatusOK, "", out)
}

// DeleteNode handles DELETE /api/v1/admin/nodes/:node_id
//
//	@Summary		Remove a node with no assigned subscribers
//	@Tags			admin-nodes
//	@Produce		json
//	@Security		APIKey
//	@Param			node_id	path	string	true	"Node ID"
//	@Success		204
//	@Failure		409	{object}	utils.APIResponse	"Node still has subscribers"
//	@Router			/api/v1/admin/nodes/{node_id} [delete]
func (h *NodeHandler) DeleteNode(c *gin.Context) {
	nodeID := c.Param("node_id")
	if err := h.deleteUC.Execute(c.Request.Context(), nodeID); err != nil {
		common.RespondError(c, err)
		return
	}
	h.logger.Infow("node deleted by admin", "node_id", nodeID)
	c.Status(http.StatusNoContent)
}
