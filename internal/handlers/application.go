// internal/handlers/application.go
package handlers

import (
	"encoding/base64"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type ApplicationHandler struct {
	applicationService *services.ApplicationService
}

func NewApplicationHandler(applicationService *services.ApplicationService) *ApplicationHandler {
	return &ApplicationHandler{
		applicationService: applicationService,
	}
}

// POST /applications
func (h *ApplicationHandler) SubmitApplication(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req services.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	agreement, err := h.applicationService.SubmitApplication(models.Address(caller), &req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"agreement": agreement})
}

// POST /applications/:licensee/:hash/pay
// License fees are self-pay only; the path licensee must be the caller.
func (h *ApplicationHandler) PayLicenseFee(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if models.NormalizeAddress(c.Param("licensee")) != models.Address(caller) {
		utils.ForbiddenResponse(c, "license fees can only be paid by the applicant")
		return
	}

	agreement, err := h.applicationService.PayLicenseFee(models.Address(caller), c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// PUT /applications/:licensee/:hash/approve
func (h *ApplicationHandler) ApproveApplication(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.ApproveApplication(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// PUT /applications/:licensee/:hash/usable
func (h *ApplicationHandler) UpdateLicenseUsable(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.UpdateLicenseUsable(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// PUT /applications/:licensee/:hash/modifications
func (h *ApplicationHandler) AddModifications(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req struct {
		Modifications string `json:"modifications" binding:"required"` // base64
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	modifications, err := base64.StdEncoding.DecodeString(req.Modifications)
	if err != nil {
		utils.BadRequestResponse(c, "Modifications must be base64 encoded", nil)
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.AddModifications(models.Address(caller), licensee, c.Param("hash"), modifications)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

type reportingFieldRequest struct {
	Seconds uint64 `json:"seconds"`
}

// PUT /applications/:licensee/:hash/reporting-frequency
func (h *ApplicationHandler) UpdateReportingFrequency(c *gin.Context) {
	h.updateReportingField(c, h.applicationService.UpdateReportingFrequency)
}

// PUT /applications/:licensee/:hash/reporting-grace-period
func (h *ApplicationHandler) UpdateReportingGracePeriod(c *gin.Context) {
	h.updateReportingField(c, h.applicationService.UpdateReportingGracePeriod)
}

// PUT /applications/:licensee/:hash/royalty-grace-period
func (h *ApplicationHandler) UpdateRoyaltyGracePeriod(c *gin.Context) {
	h.updateReportingField(c, h.applicationService.UpdateRoyaltyGracePeriod)
}

func (h *ApplicationHandler) updateReportingField(c *gin.Context, update func(caller, licensee models.Address, applicationHash string, seconds uint64) (*models.LicenseAgreement, error)) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req reportingFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := update(models.Address(caller), licensee, c.Param("hash"), req.Seconds)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// POST /applications/:licensee/:hash/untimely-reports
func (h *ApplicationHandler) IncrementUntimelyReports(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.IncrementUntimelyReports(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// POST /applications/:licensee/:hash/untimely-royalty-payments
func (h *ApplicationHandler) IncrementUntimelyRoyaltyPayments(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.IncrementUntimelyRoyaltyPayments(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// DELETE /applications/:licensee/:hash
func (h *ApplicationHandler) RemoveApplication(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	reason := c.Query("reason")
	if err := h.applicationService.RemoveApplication(models.Address(caller), licensee, c.Param("hash"), reason); err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"removed": c.Param("hash")})
}

// GET /applications/:licensee/:hash
func (h *ApplicationHandler) GetAgreement(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreement, err := h.applicationService.GetAgreement(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreement": agreement})
}

// GET /applications/:licensee
func (h *ApplicationHandler) ListAgreements(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	agreements, err := h.applicationService.ListAgreements(models.Address(caller), licensee)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"agreements": agreements})
}
