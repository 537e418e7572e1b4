// internal/handlers/royalty.go
package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

type RoyaltyHandler struct {
	royaltyService *services.RoyaltyService
	storageService *services.StorageService
}

func NewRoyaltyHandler(royaltyService *services.RoyaltyService, storageService *services.StorageService) *RoyaltyHandler {
	return &RoyaltyHandler{
		royaltyService: royaltyService,
		storageService: storageService,
	}
}

func reportIndexParam(c *gin.Context) (int, bool) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 {
		utils.BadRequestResponse(c, "Invalid report index", nil)
		return 0, false
	}
	return index, true
}

// POST /royalties/:licensee/:hash/reports
func (h *RoyaltyHandler) SubmitReport(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	report, err := h.royaltyService.SubmitReport(models.Address(caller), licensee, c.Param("hash"), req.URL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{"report": report})
}

// POST /royalties/documents
// Uploads the report document itself; the returned URL is what SubmitReport
// records on the ledger.
func (h *RoyaltyHandler) UploadReportDocument(c *gin.Context) {
	if _, ok := callerAddress(c); !ok {
		return
	}

	file, header, err := c.Request.FormFile("document")
	if err != nil {
		utils.BadRequestResponse(c, "Document file is required", nil)
		return
	}
	defer file.Close()

	options := h.storageService.GetDefaultUploadOptions("royalty_reports")
	options.Checksum = c.PostForm("checksum")
	result, err := h.storageService.UploadFile(file, header, options)
	if err != nil {
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{"document": result})
}

// PUT /royalties/:licensee/:hash/reports/:index
func (h *RoyaltyHandler) ChangeReport(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	index, ok := reportIndexParam(c)
	if !ok {
		return
	}

	var req struct {
		URL string `json:"url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	report, err := h.royaltyService.ChangeReport(models.Address(caller), licensee, c.Param("hash"), index, req.URL)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// PUT /royalties/:licensee/:hash/reports/:index/approve
func (h *RoyaltyHandler) ApproveReport(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	index, ok := reportIndexParam(c)
	if !ok {
		return
	}

	var req struct {
		AmountDue       string `json:"amount_due" binding:"required"`
		PaymentDeadline uint64 `json:"payment_deadline"`
		DeadlineSeconds uint64 `json:"deadline_seconds"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	amount, err := parseAmount(req.AmountDue)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid amount", nil)
		return
	}

	// A relative deadline is resolved against the current time.
	deadline := req.PaymentDeadline
	if deadline == 0 && req.DeadlineSeconds > 0 {
		deadline = uint64(time.Now().Unix()) + req.DeadlineSeconds
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	report, err := h.royaltyService.ApproveReport(models.Address(caller), licensee, c.Param("hash"), index, deadline, amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// POST /royalties/:licensee/:hash/reports/:index/pay
// Royalties are self-pay only; the path licensee must be the caller.
func (h *RoyaltyHandler) PayRoyalty(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	if models.NormalizeAddress(c.Param("licensee")) != models.Address(caller) {
		utils.ForbiddenResponse(c, "royalties can only be paid by the licensee")
		return
	}

	index, ok := reportIndexParam(c)
	if !ok {
		return
	}

	var req struct {
		Amount string `json:"amount" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, "Invalid input", err.Error())
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		utils.BadRequestResponse(c, "Invalid amount", nil)
		return
	}

	report, err := h.royaltyService.PayRoyalty(models.Address(caller), c.Param("hash"), index, amount)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// GET /royalties/:licensee/:hash/reports/:index
func (h *RoyaltyHandler) GetReport(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	index, ok := reportIndexParam(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	report, err := h.royaltyService.GetReport(models.Address(caller), licensee, c.Param("hash"), index)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}

// GET /royalties/:licensee/:hash/reports
func (h *RoyaltyHandler) ListReports(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	reports, err := h.royaltyService.ListReports(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"reports": reports})
}

// GET /royalties/:licensee/:hash/reports/current
func (h *RoyaltyHandler) CurrentReport(c *gin.Context) {
	caller, ok := callerAddress(c)
	if !ok {
		return
	}

	licensee := models.NormalizeAddress(c.Param("licensee"))
	report, err := h.royaltyService.CurrentReport(models.Address(caller), licensee, c.Param("hash"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"report": report})
}
