package httpHandler

import (
	"net/http"
	"strconv"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
)

type DeviceHandler struct {
	useCase *usecases.DeviceUseCase
}

func NewDeviceHandler(useCase *usecases.DeviceUseCase) *DeviceHandler {
	return &DeviceHandler{
		useCase: useCase,
	}
}

type createDeviceRequest struct {
	UserID      string   `json:"userId"`
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	PowerRating *float64 `json:"powerRating"`
}

type updateDeviceRequest struct {
	Name        *string  `json:"name"`
	Type        *string  `json:"type"`
	Status      *string  `json:"status"`
	PowerRating *float64 `json:"powerRating"`
}

// sessionUser resolves the acting user, rejecting a body userId that names
// someone else.
func sessionUser(c *gin.Context, bodyUserID string) (string, bool) {
	userID := c.GetString(ctxUserID)
	if bodyUserID != "" && bodyUserID != userID {
		respondError(c, usecases.ErrForbidden)
		return "", false
	}
	return userID, true
}

// CreateDevice handles POST /api/devices/create
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var req createDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	userID, ok := sessionUser(c, req.UserID)
	if !ok {
		return
	}

	device, err := h.useCase.CreateDevice(c.Request.Context(), usecases.DeviceInput{
		UserID:      userID,
		Name:        req.Name,
		Type:        req.Type,
		Status:      req.Status,
		PowerRating: req.PowerRating,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "Device created successfully",
		"device":  device,
	})
}

// GetDevices handles GET /api/devices/:userId, paged or filtered by ?month=
func (h *DeviceHandler) GetDevices(c *gin.Context) {
	userID := c.Param("userId")

	if month := c.Query("month"); month != "" {
		devices, err := h.useCase.ListDevicesByMonth(c.Request.Context(), userID, month)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"month":   month,
			"devices": devices,
		})
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(usecases.DefaultPageSize)))

	result, err := h.useCase.ListDevices(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GetDevice handles GET /api/devices/:userId/:deviceId
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.useCase.GetDevice(c.Request.Context(), c.Param("userId"), c.Param("deviceId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"device": device})
}

// UpdateDevice handles PUT /api/devices/:userId/:deviceId
func (h *DeviceHandler) UpdateDevice(c *gin.Context) {
	var req updateDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	device, err := h.useCase.UpdateDevice(c.Request.Context(), c.Param("userId"), c.Param("deviceId"), usecases.DeviceUpdate{
		Name:        req.Name,
		Type:        req.Type,
		Status:      req.Status,
		PowerRating: req.PowerRating,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Device updated successfully",
		"device":  device,
	})
}

// DeleteDevice handles DELETE /api/devices/:userId/:deviceId
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	if err := h.useCase.DeleteDevice(c.Request.Context(), c.Param("userId"), c.Param("deviceId")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Device deleted successfully"})
}

// UpdateEnergyUsage handles PUT /api/devices/:userId/:deviceId/energy-usage
func (h *DeviceHandler) UpdateEnergyUsage(c *gin.Context) {
	res, err := h.useCase.UpdateEnergyUsage(c.Request.Context(), c.Param("userId"), c.Param("deviceId"))
	if err != nil {
		respondError(c, err)
		return
	}

	msg := "Energy usage updated successfully"
	if res.Skipped {
		msg = "Device is off, energy usage unchanged"
	}
	c.JSON(http.StatusOK, gin.H{
		"message":        msg,
		"device":         res.Device,
		"energyConsumed": res.EnergyConsumed,
		"skipped":        res.Skipped,
	})
}
