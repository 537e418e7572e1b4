// internal/services/errors.go
package services

import "errors"

// Authorization failures.
var (
	ErrUnauthorized         = errors.New("caller is not authorized")
	ErrNotMainAdmin         = errors.New("caller is not the main admin")
	ErrNotOwnerOrAdmin      = errors.New("caller is neither the record owner nor an admin")
	ErrNotOwner             = errors.New("caller is not the record owner")
)

// Not-found failures.
var (
	ErrApplicationNotFound = errors.New("license application not found")
	ErrLicenseNotFound     = errors.New("license type not found")
	ErrLicenseeNotFound    = errors.New("licensee not found")
	ErrNoReportsFound      = errors.New("no royalty reports found")
	ErrReportNotFound      = errors.New("royalty report not found")
	ErrAccountNotFound     = errors.New("account not found")
	ErrNotAdmin            = errors.New("address is not an admin")
)

// Precondition failures.
var (
	ErrApplicationExists       = errors.New("application already exists")
	ErrApplicationNotPaid      = errors.New("license fee has not been paid")
	ErrApplicationAlreadyPaid  = errors.New("license fee already paid")
	ErrLicenseAlreadyUsable    = errors.New("license is already usable")
	ErrLicenseNotUsable        = errors.New("license is not usable")
	ErrLicenseeNotUsable       = errors.New("licensee is not usable")
	ErrReportAlreadyApproved   = errors.New("royalty report already approved")
	ErrReportNotYetApproved    = errors.New("royalty report not yet approved")
	ErrRoyaltyAlreadyPaid      = errors.New("royalty already paid")
	ErrNewReportNotYetAllowed  = errors.New("reporting period has not elapsed")
	ErrLicenseExists           = errors.New("license type already registered")
	ErrLicenseeExists          = errors.New("licensee already registered")
	ErrAlreadyAdmin            = errors.New("address is already an admin")
	ErrAccountExists           = errors.New("account already registered")
)

// Validation failures.
var (
	ErrInvalidLicenseFee       = errors.New("license fee exceeds the allowed maximum")
	ErrInvalidExpirationDate   = errors.New("expiration date is not in the future")
	ErrInvalidExtraDataLength  = errors.New("extra data exceeds the allowed length")
	ErrInvalidSignature        = errors.New("signature does not recover to the caller")
	ErrRoyaltyAmountMismatch   = errors.New("payment amount does not match the amount due")
	ErrEmptyLicenseeData       = errors.New("licensee data must not be empty")
	ErrEmptyLicenseHash        = errors.New("license hash must not be empty")
	ErrEmptyURL                = errors.New("url must not be empty")
	ErrInvalidIdentity         = errors.New("invalid account address")
	ErrFieldOverflow           = errors.New("value does not fit the target field")
	ErrInsufficientFunds       = errors.New("insufficient funds for transfer")
	ErrInvalidCredentials      = errors.New("invalid address or password")
)
