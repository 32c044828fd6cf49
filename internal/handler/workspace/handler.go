package workspace

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/handler"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
)

type Handler struct {
	workspaces repository.WorkspaceRepository
	tokens     repository.TokenRepository
}

func NewHandler(workspaces repository.WorkspaceRepository, tokens repository.TokenRepository) *Handler {
	return &Handler{workspaces: workspaces, tokens: tokens}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	workspaces := r.Group("/workspaces")
	{
		workspaces.POST("", h.CreateWorkspace)
		workspaces.GET("", h.ListWorkspaces)
		workspaces.GET("/:id", h.GetWorkspace)
		workspaces.PUT("/:id", h.UpdateWorkspace)
		workspaces.POST("/:id/tokens", h.AddToken)
		workspaces.GET("/:id/tokens", h.ListTokens)
		workspaces.DELETE("/:id/tokens/:tokenId", h.DeleteToken)
	}
}

type createWorkspaceRequest struct {
	Name      string `json:"name" binding:"required"`
	TeamID    string `json:"team_id" binding:"required"`
	BotToken  string `json:"bot_token"`
	BotUserID string `json:"bot_user_id"`
}

func (h *Handler) CreateWorkspace(c *gin.Context) {
	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	now := time.Now().UTC()
	ws := &model.Workspace{
		ID:        uuid.New(),
		Name:      req.Name,
		TeamID:    req.TeamID,
		BotToken:  req.BotToken,
		BotUserID: req.BotUserID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.workspaces.Create(c.Request.Context(), ws); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(ws))
}

func (h *Handler) ListWorkspaces(c *gin.Context) {
	workspaces, err := h.workspaces.List(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, handler.NewSuccessResponse(workspaces))
}

func (h *Handler) GetWorkspace(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	ws, err := h.workspaces.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("workspace not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(ws))
}

func (h *Handler) UpdateWorkspace(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	ws, err := h.workspaces.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("workspace not found"))
		return
	}

	var req createWorkspaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	ws.Name = req.Name
	ws.TeamID = req.TeamID
	if req.BotToken != "" {
		ws.BotToken = req.BotToken
	}
	if req.BotUserID != "" {
		ws.BotUserID = req.BotUserID
	}
	ws.UpdatedAt = time.Now().UTC()

	if err := h.workspaces.Update(c.Request.Context(), ws); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(ws))
}

func (h *Handler) AddToken(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	var req model.CreateTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	token := &model.UserToken{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		UserID:      req.UserID,
		UserName:    req.UserName,
		Email:       req.Email,
		Token:       req.Token,
		Scopes:      req.Scopes,
		IsDefault:   req.IsDefault,
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.tokens.Create(c.Request.Context(), token); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(token))
}

func (h *Handler) ListTokens(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	tokens, err := h.tokens.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tokens))
}

func (h *Handler) DeleteToken(c *gin.Context) {
	tokenID, err := uuid.Parse(c.Param("tokenId"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid token ID"))
		return
	}

	if err := h.tokens.Delete(c.Request.Context(), tokenID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"deleted": true}))
}
