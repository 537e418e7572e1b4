// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	response, err := h.authService.Register(&req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, response)
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	response, err := h.authService.Login(&req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// POST /auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	response, err := h.authService.RefreshToken(req.RefreshToken)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, response)
}

// GET /auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	accountID, exists := utils.GetAccountIDFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return
	}

	account, err := h.authService.GetAccount(accountID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"account": account})
}
