package httpHandler

import (
	"net/http"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
)

type AlertHandler struct {
	useCase *usecases.AlertUseCase
}

func NewAlertHandler(useCase *usecases.AlertUseCase) *AlertHandler {
	return &AlertHandler{useCase: useCase}
}

type createAlertRequest struct {
	UserID   string `json:"userId"`
	BudgetID string `json:"budgetId"`
	Message  string `json:"message"`
}

// CreateAlert handles POST /api/alerts/create
func (h *AlertHandler) CreateAlert(c *gin.Context) {
	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, ok := sessionUser(c, req.UserID)
	if !ok {
		return
	}

	alert, err := h.useCase.CreateAlert(c.Request.Context(), userID, req.BudgetID, req.Message)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"message": "Alert created successfully",
		"alert":   alert,
	})
}

// GetAlerts handles GET /api/alerts for the session owner
func (h *AlertHandler) GetAlerts(c *gin.Context) {
	alerts, err := h.useCase.ListAlerts(c.Request.Context(), c.GetString(ctxUserID))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// MarkAsRead handles PUT /api/alerts/:alertId
func (h *AlertHandler) MarkAsRead(c *gin.Context) {
	alert, err := h.useCase.MarkAsRead(c.Request.Context(), c.GetString(ctxUserID), c.Param("alertId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Alert marked as read",
		"alert":   alert,
	})
}
