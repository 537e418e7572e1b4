// internal/handlers/admin.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type AdminHandler struct {
	registry     *services.AccessRegistry
	eventService *services.EventService
}

func NewAdminHandler(registry *services.AccessRegistry, eventService *services.EventService) *AdminHandler {
	return &AdminHandler{
		registry:     registry,
		eventService: eventService,
	}
}

// POST /admin/admins
func (h *AdminHandler) AddAdmin(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req struct {
		Address string `json:"address" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	addr := models.NormalizeAddress(req.Address)
	if err := h.registry.AddAdmin(models.Address(caller), addr); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"address": addr})
}

// DELETE /admin/admins/:address
func (h *AdminHandler) RemoveAdmin(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	addr := models.NormalizeAddress(c.Param("address"))
	if err := h.registry.RemoveAdmin(models.Address(caller), addr); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"removed": addr})
}

// GET /admin/admins
func (h *AdminHandler) ListAdmins(c *gin.Context) {
	admins, err := h.registry.ListAdmins()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"admins": admins})
}

// GET /admin/events
func (h *AdminHandler) ListEvents(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	eventType := c.Query("event_type")
	licensee := c.Query("licensee")

	events, total, err := h.eventService.Query(models.Address(caller), h.registry, eventType, licensee, params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(events, total, params)
	utils.PaginatedResponse(c, result)
}
