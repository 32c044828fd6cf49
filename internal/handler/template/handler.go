package template

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/handler"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/template"
)

type Handler struct {
	templates repository.TemplateRepository
}

func NewHandler(templates repository.TemplateRepository) *Handler {
	return &Handler{templates: templates}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	templates := r.Group("/templates")
	{
		templates.POST("", h.CreateTemplate)
		templates.GET("", h.ListTemplates)
		templates.GET("/:id", h.GetTemplate)
		templates.POST("/preview", h.PreviewTemplate)
	}
}

type createTemplateRequest struct {
	WorkspaceID   uuid.UUID        `json:"workspace_id" binding:"required"`
	Name          string           `json:"name" binding:"required"`
	Content       string           `json:"content" binding:"required"`
	HubspotFields model.StringList `json:"hubspot_fields"`
}

func (h *Handler) CreateTemplate(c *gin.Context) {
	var req createTemplateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	now := time.Now().UTC()
	tpl := &model.MessageTemplate{
		ID:            uuid.New(),
		WorkspaceID:   req.WorkspaceID,
		Name:          req.Name,
		Content:       req.Content,
		Variables:     template.ExtractVariables(req.Content),
		HubspotFields: req.HubspotFields,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := h.templates.Create(c.Request.Context(), tpl); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(tpl))
}

func (h *Handler) ListTemplates(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	templates, err := h.templates.ListByWorkspace(c.Request.Context(), workspaceID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(templates))
}

func (h *Handler) GetTemplate(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid template ID"))
		return
	}

	tpl, err := h.templates.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("template not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(tpl))
}

type previewRequest struct {
	Content   string            `json:"content" binding:"required"`
	Variables map[string]string `json:"variables"`
}

// PreviewTemplate renders content with the supplied variables without
// persisting anything. Unknown placeholders come back verbatim.
func (h *Handler) PreviewTemplate(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{
		"rendered":  template.Render(req.Content, req.Variables),
		"variables": template.ExtractVariables(req.Content),
	}))
}
