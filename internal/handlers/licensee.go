// internal/handlers/licensee.go
package handlers

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type LicenseeHandler struct {
	licenseeService *services.LicenseeService
}

func NewLicenseeHandler(licenseeService *services.LicenseeService) *LicenseeHandler {
	return &LicenseeHandler{
		licenseeService: licenseeService,
	}
}

type licenseeDataRequest struct {
	Address string `json:"address" binding:"required"`
	Data    string `json:"data" binding:"required"` // base64
}

func (r *licenseeDataRequest) decode() (models.Address, []byte, error) {
	data, err := base64.StdEncoding.DecodeString(r.Data)
	if err != nil {
		return "", nil, err
	}
	return models.NormalizeAddress(r.Address), data, nil
}

// POST /licensees
func (h *LicenseeHandler) RegisterLicensee(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req licenseeDataRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	addr, data, err := req.decode()
	if err != nil {
		utils.BadRequestResponse(c, "Data must be base64 encoded", nil)
		return
	}

	licensee, err := h.licenseeService.RegisterLicensee(models.Address(caller), addr, data)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"licensee": licensee})
}

// PUT /licensees/:address
func (h *LicenseeHandler) UpdateLicenseeData(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req struct {
		Data string `json:"data" binding:"required"` // base64
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	data, err := base64.StdEncoding.DecodeString(req.Data)
	if err != nil {
		utils.BadRequestResponse(c, "Data must be base64 encoded", nil)
		return
	}

	addr := models.NormalizeAddress(c.Param("address"))
	licensee, err := h.licenseeService.UpdateLicenseeData(models.Address(caller), addr, data)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"licensee": licensee})
}

// PUT /licensees/:address/usable
func (h *LicenseeHandler) SetLicenseeUsable(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req struct {
		Usable *bool `json:"usable" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	addr := models.NormalizeAddress(c.Param("address"))
	licensee, err := h.licenseeService.SetLicenseeUsable(models.Address(caller), addr, *req.Usable)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"licensee": licensee})
}

// DELETE /licensees/:address
func (h *LicenseeHandler) RemoveLicensee(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	addr := models.NormalizeAddress(c.Param("address"))
	if err := h.licenseeService.RemoveLicensee(models.Address(caller), addr); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"removed": addr})
}

// GET /licensees/:address
func (h *LicenseeHandler) GetLicensee(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	addr := models.NormalizeAddress(c.Param("address"))
	licensee, err := h.licenseeService.GetLicensee(models.Address(caller), addr)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"licensee": licensee})
}

// GET /licensees
func (h *LicenseeHandler) ListLicensees(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	licensees, total, err := h.licenseeService.ListLicensees(models.Address(caller), params)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	result := utils.CreatePaginationResult(licensees, total, params)
	utils.PaginatedResponse(c, result)
}
