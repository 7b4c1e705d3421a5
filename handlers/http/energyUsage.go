package httpHandler

import (
	"net/http"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
)

type EnergyUsageHandler struct {
	useCase *usecases.DeviceUseCase
}

func NewEnergyUsageHandler(useCase *usecases.DeviceUseCase) *EnergyUsageHandler {
	return &EnergyUsageHandler{useCase: useCase}
}

// GetEnergyUsage handles GET /api/energy-usage/:userId, optionally ?month=YYYY-MM
func (h *EnergyUsageHandler) GetEnergyUsage(c *gin.Context) {
	userID := c.Param("userId")

	if month := c.Query("month"); month != "" {
		out, err := h.useCase.MonthlyEnergyUsage(c.Request.Context(), userID, month)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, out)
		return
	}

	summary, err := h.useCase.EnergySummary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
