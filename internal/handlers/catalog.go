// internal/handlers/catalog.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type CatalogHandler struct {
	catalogService *services.CatalogService
}

func NewCatalogHandler(catalogService *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{
		catalogService: catalogService,
	}
}

// POST /licenses
func (h *CatalogHandler) AddLicenseType(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req services.AddLicenseTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	licenseType, err := h.catalogService.AddLicenseType(models.Address(caller), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"license_type": licenseType})
}

// PUT /licenses/:hash
func (h *CatalogHandler) UpdateLicenseType(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req services.UpdateLicenseTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	licenseType, err := h.catalogService.UpdateLicenseType(models.Address(caller), c.Param("hash"), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"license_type": licenseType})
}

// DELETE /licenses/:hash
func (h *CatalogHandler) RemoveLicenseType(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if err := h.catalogService.RemoveLicenseType(models.Address(caller), c.Param("hash")); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"removed": c.Param("hash")})
}

// GET /licenses/:hash
func (h *CatalogHandler) GetLicenseType(c *gin.Context) {
	licenseType, err := h.catalogService.GetLicenseType(c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"license_type": licenseType})
}

// GET /licenses
func (h *CatalogHandler) ListLicenseTypes(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	licenseTypes, total, err := h.catalogService.ListLicenseTypes(params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(licenseTypes, total, params)
	utils.PaginatedResponse(c, result)
}
