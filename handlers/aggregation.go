package handlers

import (
	"context"
	"net/http"

	"energy-server/services"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

type AggregationHandler struct {
	aggregator *services.BudgetAggregator
}

func NewAggregationHandler(aggregator *services.BudgetAggregator) *AggregationHandler {
	return &AggregationHandler{
		aggregator: aggregator,
	}
}

// TriggerAggregation handles GET /trigger-cron-job
func (h *AggregationHandler) TriggerAggregation(c *gin.Context) {
	// the run outlives a disconnecting client
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := h.aggregator.Run(ctx, services.TriggerManual)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("manual aggregation failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Error triggering cron job."})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "Cron job triggered manually!",
		"report": report,
	})
}

// GetStatus handles GET /api/aggregation/status
func (h *AggregationHandler) GetStatus(c *gin.Context) {
	report, ok := h.aggregator.LastRun()
	if !ok {
		c.JSON(http.StatusOK, gin.H{"status": "never run", "lastRun": nil})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"lastRun": report,
	})
}
