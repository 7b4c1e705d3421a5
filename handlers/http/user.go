package httpHandler

import (
	"errors"
	"net/http"

	"energy-server/usecases"

	"github.com/gin-gonic/gin"
)

type UserHandler struct {
	useCase *usecases.AuthUseCase
	cookies CookieConfig
}

func NewUserHandler(useCase *usecases.AuthUseCase, cookies CookieConfig) *UserHandler {
	return &UserHandler{useCase: useCase, cookies: cookies}
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles POST /api/users/register
func (h *UserHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.useCase.Register(c.Request.Context(), usecases.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"user": gin.H{
			"id":    user.ID,
			"name":  user.Name,
			"email": user.Email,
		},
	})
}

// Login handles POST /api/users/login and sets the session cookie
func (h *UserHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.useCase.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	setAuthCookie(c, h.cookies, res.Token)
	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"userId":  res.UserID,
	})
}

// Logout handles POST|DELETE /api/users/logout
func (h *UserHandler) Logout(c *gin.Context) {
	if err := h.useCase.Logout(c.Request.Context(), tokenFromRequest(c)); err != nil {
		if errors.Is(err, usecases.ErrTokenInvalid) {
			clearAuthCookie(c, h.cookies)
		}
		respondError(c, err)
		return
	}

	clearAuthCookie(c, h.cookies)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// Profile handles GET /api/users/profile/:userId
func (h *UserHandler) Profile(c *gin.Context) {
	user, err := h.useCase.Profile(c.Request.Context(), c.Param("userId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user})
}
