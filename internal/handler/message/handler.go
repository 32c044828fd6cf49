package message

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/relayops/dispatch-api/internal/handler"
	"github.com/relayops/dispatch-api/internal/middleware"
	"github.com/relayops/dispatch-api/internal/model"
	"github.com/relayops/dispatch-api/internal/repository"
	"github.com/relayops/dispatch-api/internal/service/dispatch"
)

type Handler struct {
	sender   dispatch.Sender
	messages repository.MessageRepository
	history  repository.HistoryRepository
}

func NewHandler(sender dispatch.Sender, messages repository.MessageRepository,
	history repository.HistoryRepository) *Handler {
	return &Handler{sender: sender, messages: messages, history: history}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	messages := r.Group("/messages")
	{
		messages.POST("/send", h.SendMessage)
		messages.POST("/schedule", h.ScheduleMessage)
		messages.GET("", h.ListMessages)
		messages.GET("/:id", h.GetMessage)
		messages.POST("/:id/cancel", h.CancelMessage)
		messages.GET("/:id/history", h.MessageHistory)
	}
	r.GET("/history", h.WorkspaceHistory)
}

func (h *Handler) SendMessage(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	resp, err := h.sender.Send(c.Request.Context(), &req, c.GetString(middleware.ContextActorEmail))
	if err != nil {
		c.Error(err)
		return
	}

	status := http.StatusOK
	if !resp.Success {
		// Partial or total delivery failure; the per-recipient results carry
		// the detail.
		status = http.StatusMultiStatus
	}
	c.JSON(status, handler.NewSuccessResponse(resp))
}

func (h *Handler) ScheduleMessage(c *gin.Context) {
	var req model.ScheduleMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}
	if req.ScheduledAt.Before(time.Now()) {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("scheduled_at must be in the future"))
		return
	}

	now := time.Now().UTC()
	msg := &model.ScheduledMessage{
		ID:          uuid.New(),
		WorkspaceID: req.WorkspaceID,
		TemplateID:  req.TemplateID,
		Content:     req.Content,
		Blocks:      req.Blocks,
		Recipients:  req.Recipients,
		Sender:      req.Sender,
		ScheduledAt: req.ScheduledAt,
		Recurrence:  req.Recurrence,
		Status:      model.MessageStatusScheduled,
		CreatedBy:   c.GetString(middleware.ContextActorEmail),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.messages.Create(c.Request.Context(), msg); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, handler.NewSuccessResponse(msg))
}

func (h *Handler) ListMessages(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	msgs, err := h.messages.ListByWorkspace(c.Request.Context(), workspaceID, p)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msgs))
}

func (h *Handler) GetMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	msg, err := h.messages.Get(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, handler.NewErrorResponse("message not found"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(msg))
}

// CancelMessage cancels a scheduled message. Messages already claimed by the
// scheduler keep running; cancellation only wins while the message still
// waits in the scheduled state.
func (h *Handler) CancelMessage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	cancelled, err := h.messages.Cancel(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}
	if !cancelled {
		c.JSON(http.StatusConflict, handler.NewErrorResponse("message is no longer cancellable"))
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(gin.H{"cancelled": true}))
}

func (h *Handler) MessageHistory(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid message ID"))
		return
	}

	records, err := h.history.ListByMessage(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}

func (h *Handler) WorkspaceHistory(c *gin.Context) {
	workspaceID, err := uuid.Parse(c.Query("workspace_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse("invalid workspace ID"))
		return
	}

	var p model.Pagination
	if err := c.ShouldBindQuery(&p); err != nil {
		c.JSON(http.StatusBadRequest, handler.NewErrorResponse(err.Error()))
		return
	}

	records, err := h.history.ListByWorkspace(c.Request.Context(), workspaceID, p)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, handler.NewSuccessResponse(records))
}
