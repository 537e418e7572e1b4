// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/holiman/uint256"

	"github.com/licenseforge/royalty-backend/internal/services"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// respondServiceError maps the service layer's sentinel errors onto HTTP
// statuses. Anything unrecognized is treated as an internal error so service
// internals never leak through a 4xx.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrUnauthorized),
		errors.Is(err, services.ErrNotMainAdmin),
		errors.Is(err, services.ErrNotOwnerOrAdmin),
		errors.Is(err, services.ErrNotOwner):
		utils.ForbiddenResponse(c, err.Error())

	case errors.Is(err, services.ErrApplicationNotFound),
		errors.Is(err, services.ErrLicenseNotFound),
		errors.Is(err, services.ErrLicenseeNotFound),
		errors.Is(err, services.ErrNoReportsFound),
		errors.Is(err, services.ErrReportNotFound),
		errors.Is(err, services.ErrAccountNotFound),
		errors.Is(err, services.ErrNotAdmin):
		utils.ErrorResponse(c, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)

	case errors.Is(err, services.ErrApplicationExists),
		errors.Is(err, services.ErrLicenseExists),
		errors.Is(err, services.ErrLicenseeExists),
		errors.Is(err, services.ErrAlreadyAdmin),
		errors.Is(err, services.ErrAccountExists):
		utils.ConflictResponse(c, err.Error())

	case errors.Is(err, services.ErrApplicationNotPaid),
		errors.Is(err, services.ErrApplicationAlreadyPaid),
		errors.Is(err, services.ErrLicenseAlreadyUsable),
		errors.Is(err, services.ErrLicenseNotUsable),
		errors.Is(err, services.ErrLicenseeNotUsable),
		errors.Is(err, services.ErrReportAlreadyApproved),
		errors.Is(err, services.ErrReportNotYetApproved),
		errors.Is(err, services.ErrRoyaltyAlreadyPaid),
		errors.Is(err, services.ErrNewReportNotYetAllowed),
		errors.Is(err, services.ErrInsufficientFunds):
		utils.UnprocessableResponse(c, err.Error())

	case errors.Is(err, services.ErrInvalidCredentials):
		utils.UnauthorizedResponse(c, err.Error())

	case errors.Is(err, services.ErrInvalidLicenseFee),
		errors.Is(err, services.ErrInvalidExpirationDate),
		errors.Is(err, services.ErrInvalidExtraDataLength),
		errors.Is(err, services.ErrInvalidSignature),
		errors.Is(err, services.ErrRoyaltyAmountMismatch),
		errors.Is(err, services.ErrEmptyLicenseeData),
		errors.Is(err, services.ErrEmptyLicenseHash),
		errors.Is(err, services.ErrEmptyURL),
		errors.Is(err, services.ErrInvalidIdentity),
		errors.Is(err, services.ErrFieldOverflow):
		utils.BadRequestResponse(c, err.Error(), nil)

	case strings.Contains(err.Error(), "validation failed"):
		utils.BadRequestResponse(c, err.Error(), nil)

	default:
		utils.InternalErrorResponse(c, err.Error())
	}
}

// callerAddress extracts the authenticated ledger address set by the auth
// middleware.
func callerAddress(c *gin.Context) (string, bool) {
	addr, exists := utils.GetAddressFromContext(c)
	if !exists {
		utils.UnauthorizedResponse(c, "")
		return "", false
	}
	return addr, true
}

// parseAmount accepts 0x-prefixed hex or plain decimal 256-bit amounts.
func parseAmount(s string) (*uint256.Int, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return uint256.FromHex(s)
	}
	return uint256.FromDecimal(s)
}
