package rule

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/handler"
	"github.com/relayops/dispatch-api/internal/middleware"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/rule"
)

type Handler struct {
	rules  repository.RuleRepository
	engine *rule.Engine
}

func NewHandler(rules repository.RuleRepository, engine *rule.Engine) *Handler {
	return &Handler{rules: rules, engine: engine}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	rules := r.Group("/rules")
	{
		rules.POST("", h.CreateRule)
		rules.GET("", h.ListRules)
		rules.GET("/:id", h.GetRule)
		rules.PUT("/:id", h.UpdateRule)
		rules.POST("/:id/activate", h.ActivateRule)
		rules.POST("/:id/deactivate", h.DeactivateRule)
		rules.POST("/:id/evaluate", h.EvaluateRule)
	}
}

type ruleRequest struct {
	WorkspaceID uuid.UUID           `json:"workspace_id" binding:"required"`
	Name        string              `json:"name" binding:"required"`
	Description string              `json:"description"`
	ObjectType  string              `json:"object_type"`
	ObjectID    string              `json:"object_id"`
	Conditions  model.ConditionList `json:"conditions" binding:"required,min=1"`
	Actions     model.ActionList    `json:"actions"`
	Active      bool                `json:"active"`
}

func (h *Handler) CreateRule(c *gin.Context) {
	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	now := time.Now().UTC()
	r := &model.MessageRule{
		ID:          uuid.New(),
		WorkspaceID: req.WorkspaceID,
		Name:        req.Name,
		Description: req.Description,
		ObjectType:  req.ObjectType,
		ObjectID:    req.ObjectID,
		Conditions:  req.Conditions,
		Actions:     req.Actions,
		Active:      req.Active,
		CreatedBy:   c.GetString(middleware.ContextActorEmail),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.rules.Create(c.Request.Context(), r); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(r))
}

func (h *Handler) ListRules(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	rules, err := h.rules.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(rules))
}

func (h *Handler) GetRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	r, err := h.rules.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("rule not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(r))
}

func (h *Handler) UpdateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	existing, err := h.rules.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("rule not found"))
		return
	}

	var req ruleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	existing.Name = req.Name
	existing.Description = req.Description
	existing.ObjectType = req.ObjectType
	existing.ObjectID = req.ObjectID
	existing.Conditions = req.Conditions
	existing.Actions = req.Actions
	existing.Active = req.Active

	if err := h.rules.Update(c.Request.Context(), existing); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(existing))
}

func (h *Handler) ActivateRule(c *gin.Context) {
	h.setActive(c, true)
}

func (h *Handler) DeactivateRule(c *gin.Context) {
	h.setActive(c, false)
}

func (h *Handler) setActive(c *gin.Context, active bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	if err := h.rules.SetActive(c.Request.Context(), id, active); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"active": active}))
}

// EvaluateRule runs a rule on demand against the supplied target. Inactive
// rules can be evaluated this way for dry runs before activation.
func (h *Handler) EvaluateRule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid rule ID"))
		return
	}

	var target rule.Target
	if err := c.ShouldBindJSON(&target); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	result, err := h.engine.Evaluate(c.Request.Context(), id, target, time.Now())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(result))
}
