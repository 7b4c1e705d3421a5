package httpHandler

import (
	"net/http"
	"time"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
)

type BudgetHandler struct {
	useCase *usecases.BudgetUseCase
}

func NewBudgetHandler(useCase *usecases.BudgetUseCase) *BudgetHandler {
	return &BudgetHandler{useCase: useCase}
}

type createBudgetRequest struct {
	UserID      string     `json:"userId"`
	EnergyLimit *float64   `json:"energyLimit"`
	Period      string     `json:"period"`
	Label       string     `json:"label"`
	Status      string     `json:"status"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type updateBudgetRequest struct {
	EnergyLimit *float64   `json:"energyLimit"`
	Period      *string    `json:"period"`
	Label       *string    `json:"label"`
	Status      *string    `json:"status"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     *time.Time `json:"endDate"`
}

type energyUsageRequest struct {
	EnergyUsage *float64 `json:"energyUsage"`
}

// CreateBudget handles POST /api/budgets/create
func (h *BudgetHandler) CreateBudget(c *gin.Context) {
	var req createBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, ok := sessionUser(c, req.UserID)
	if !ok {
		return
	}

	budget, err := h.useCase.CreateBudget(c.Request.Context(), usecases.BudgetInput{
		UserID:      userID,
		EnergyLimit: req.EnergyLimit,
		Period:      req.Period,
		Label:       req.Label,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Budget created successfully",
		"budget":  budget,
	})
}

// GetBudgets handles GET /api/budgets/:userId
func (h *BudgetHandler) GetBudgets(c *gin.Context) {
	budgets, err := h.useCase.ListBudgets(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"budgets": budgets,
		"count":   len(budgets),
	})
}

// GetBudget handles GET /api/budgets/:userId/:budgetId
func (h *BudgetHandler) GetBudget(c *gin.Context) {
	budget, err := h.useCase.GetBudget(c.Request.Context(), c.Param("userId"), c.Param("budgetId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"budget": budget})
}

// UpdateBudget handles PUT /api/budgets/:userId/:budgetId
func (h *BudgetHandler) UpdateBudget(c *gin.Context) {
	var req updateBudgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	budget, err := h.useCase.UpdateBudget(c.Request.Context(), c.Param("userId"), c.Param("budgetId"), usecases.BudgetUpdate{
		EnergyLimit: req.EnergyLimit,
		Period:      req.Period,
		Label:       req.Label,
		Status:      req.Status,
		StartDate:   req.StartDate,
		EndDate:     req.EndDate,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Budget updated successfully",
		"budget":  budget,
	})
}

// DeleteBudget handles DELETE /api/budgets/:userId/:budgetId
func (h *BudgetHandler) DeleteBudget(c *gin.Context) {
	if err := h.useCase.DeleteBudget(c.Request.Context(), c.Param("userId"), c.Param("budgetId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Budget deleted successfully"})
}

// GetEnergyUsage handles GET /api/budgets/:userId/:budgetId/energy-usage
func (h *BudgetHandler) GetEnergyUsage(c *gin.Context) {
	budget, err := h.useCase.GetEnergyUsage(c.Request.Context(), c.Param("userId"), c.Param("budgetId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"energyUsage": budget.EnergyUsage,
		"energyLimit": budget.EnergyLimit,
		"alerts":      budget.Alerts,
	})
}

// UpdateEnergyUsage handles PUT /api/budgets/:userId/:budgetId/energy-usage
func (h *BudgetHandler) UpdateEnergyUsage(c *gin.Context) {
	var req energyUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.EnergyUsage == nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "energyUsage is required"})
		return
	}

	budget, err := h.useCase.SetEnergyUsage(c.Request.Context(), c.Param("userId"), c.Param("budgetId"), *req.EnergyUsage)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Energy usage updated successfully",
		"budget":  budget,
	})
}

// AggregateUsage handles PUT /api/budgets/:userId/:budgetId/aggregate-usage
func (h *BudgetHandler) AggregateUsage(c *gin.Context) {
	budget, err := h.useCase.AggregateUsage(c.Request.Context(), c.Param("userId"), c.Param("budgetId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": "Budget usage aggregated successfully",
		"budget":  budget,
	})
}
