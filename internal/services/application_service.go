// internal/services/application_service.go
package services

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/holiman/uint256"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/codec"
	"github.com/licenseforge/royalty-backend/internal/database"
	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// maxLicenseFee bounds the fee extracted from a submitted terms word.
var maxLicenseFee = func() *uint256.Int {
	m := new(uint256.Int).Lsh(uint256.NewInt(1), 144)
	return m.Sub(m, uint256.NewInt(1))
}()

// ApplicationService is the agreement ledger: one LicenseAgreement per
// (licensee, applicationHash), moving through
// pending(unpaid) -> pending(paid) -> usable, with an admin usable toggle.
// Every mutating operation takes the per-agreement lock, runs in one
// database transaction, and samples the clock exactly once.
type ApplicationService struct {
	db           *gorm.DB
	registry     *AccessRegistry
	licensees    *LicenseeService
	catalog      *CatalogService
	transfer     ValueTransfer
	events       *EventService
	verifier     SignatureVerifier
	clock        Clock
	feeReceiver  models.Address
	maxExtraData int
	locks        *keyedMutex
	seqMu        sync.Mutex
}

type SubmitApplicationRequest struct {
	LicenseHash     string        `json:"license_hash" validate:"required"`
	AppliedTermsURL string        `json:"applied_terms_url" validate:"required,url"`
	Terms           *uint256.Int  `json:"terms" validate:"required"`
	Reporting       *uint256.Int  `json:"reporting" validate:"required"`
	Signature       []byte        `json:"signature" validate:"required"`
	Modifications   []byte        `json:"modifications,omitempty"`
	Salt            []byte        `json:"salt,omitempty"`
}

// AgreementDetails is the unpacked read view of an agreement.
type AgreementDetails struct {
	Licensee                models.Address `json:"licensee"`
	ApplicationHash         string         `json:"application_hash"`
	Sequence                uint64         `json:"sequence"`
	LicenseHash             string         `json:"license_hash"`
	AppliedTermsURL         string         `json:"applied_terms_url"`
	SubmissionDate          uint64         `json:"submission_date"`
	ApprovalDate            uint64         `json:"approval_date"`
	ExpirationDate          uint64         `json:"expiration_date"`
	LicenseFee              string         `json:"license_fee"`
	ReportingFrequency      uint64         `json:"reporting_frequency"`
	ReportingGracePeriod    uint64         `json:"reporting_grace_period"`
	RoyaltyGracePeriod      uint64         `json:"royalty_grace_period"`
	UntimelyReports         uint64         `json:"untimely_reports"`
	UntimelyRoyaltyPayments uint64         `json:"untimely_royalty_payments"`
	ExtraData               string         `json:"extra_data"`
	Usable                  bool           `json:"usable"`
	FeePaid                 bool           `json:"fee_paid"`
	Modifications           []byte         `json:"modifications,omitempty"`
}

func NewApplicationService(
	db *gorm.DB,
	registry *AccessRegistry,
	licensees *LicenseeService,
	catalog *CatalogService,
	transfer ValueTransfer,
	events *EventService,
	verifier SignatureVerifier,
	clock Clock,
	feeReceiver models.Address,
	maxExtraData int,
) *ApplicationService {
	return &ApplicationService{
		db:           db,
		registry:     registry,
		licensees:    licensees,
		catalog:      catalog,
		transfer:     transfer,
		events:       events,
		verifier:     verifier,
		clock:        clock,
		feeReceiver:  feeReceiver,
		maxExtraData: maxExtraData,
		locks:        newKeyedMutex(),
	}
}

// SubmitApplication validates and records a signed license application.
// The application hash is the canonical submission digest, so the same
// licensee can hold several applications for one license type by varying
// the salt; arbitration between them is an admin concern.
func (s *ApplicationService) SubmitApplication(caller models.Address, req *SubmitApplicationRequest) (*models.LicenseAgreement, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !caller.Valid() {
		return nil, ErrInvalidIdentity
	}
	if !s.licensees.IsUsable(caller) {
		return nil, ErrLicenseeNotUsable
	}
	if !s.catalog.Exists(req.LicenseHash) {
		return nil, ErrLicenseNotFound
	}
	if len(req.Modifications) > s.maxExtraData {
		return nil, ErrInvalidExtraDataLength
	}

	now := uint64(s.clock.Now().Unix())

	fee := codec.Get(req.Terms, codec.LicenseFee)
	if fee.Cmp(maxLicenseFee) > 0 {
		return nil, ErrInvalidLicenseFee
	}
	if codec.GetUint64(req.Terms, codec.ExpirationDate) <= now {
		return nil, ErrInvalidExpirationDate
	}

	digest := SubmissionDigest(caller, req.LicenseHash, req.Terms, req.Reporting, req.Modifications, req.Salt)
	signer, err := s.verifier.Recover(digest, req.Signature)
	if err != nil {
		return nil, err
	}
	if signer != caller {
		return nil, ErrInvalidSignature
	}
	applicationHash := fmt.Sprintf("0x%x", digest)

	// Submission stamps its own date and starts unapproved regardless of
	// what the caller packed into those fields.
	terms := codec.SetUint64(req.Terms, codec.SubmissionDate, now)
	terms = codec.SetUint64(terms, codec.ApprovalDate, 0)
	// Counters start at zero; the licensee cannot pre-load them.
	reporting := codec.SetUint64(req.Reporting, codec.UntimelyReports, 0)
	reporting = codec.SetUint64(reporting, codec.UntimelyRoyaltyPayments, 0)

	unlock := s.locks.Lock(agreementKey(string(caller), applicationHash))
	defer unlock()

	var agreement *models.LicenseAgreement
	err = database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var existing models.LicenseAgreement
		if err := tx.Where("licensee = ? AND application_hash = ?", caller, applicationHash).
			First(&existing).Error; err == nil {
			return ErrApplicationExists
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("database error: %w", err)
		}

		sequence, err := s.nextSequence(tx)
		if err != nil {
			return err
		}

		agreement = &models.LicenseAgreement{
			Licensee:        caller,
			ApplicationHash: applicationHash,
			Sequence:        sequence,
			LicenseHash:     req.LicenseHash,
			AppliedTermsURL: req.AppliedTermsURL,
			Terms:           models.NewWord256(terms),
			Reporting:       models.NewWord256(reporting),
			Signature:       req.Signature,
			Modifications:   req.Modifications,
			Usable:          false,
			FeePaid:         false,
		}
		if err := tx.Create(agreement).Error; err != nil {
			return fmt.Errorf("failed to create agreement: %w", err)
		}

		return s.events.Record(tx, models.EventApplicationSubmitted, caller, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"license_hash": req.LicenseHash, "sequence": sequence})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// PayLicenseFee transfers the packed license fee to the configured receiver
// and marks the agreement paid. One-way; there is no refund path.
func (s *ApplicationService) PayLicenseFee(caller models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	unlock := s.locks.Lock(agreementKey(string(caller), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, caller, applicationHash)
		if err != nil {
			return err
		}
		if agreement.FeePaid {
			return ErrApplicationAlreadyPaid
		}

		fee := codec.Get(&agreement.Terms.Int, codec.LicenseFee)
		if err := s.transfer.Transfer(tx, caller, s.feeReceiver, fee, models.TransactionTypeLicenseFee, applicationHash, time.Unix(int64(now), 0)); err != nil {
			return err
		}

		agreement.FeePaid = true
		if err := tx.Save(agreement).Error; err != nil {
			return fmt.Errorf("failed to update agreement: %w", err)
		}

		return s.events.Record(tx, models.EventLicenseFeePaid, caller, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"fee": fee.Hex()})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// ApproveApplication makes a paid, pending agreement usable and stamps the
// approval date. Admin only; the fee check applies to this first approval,
// not to later usable toggles.
func (s *ApplicationService) ApproveApplication(caller, licensee models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}
		if !agreement.FeePaid {
			return ErrApplicationNotPaid
		}
		if agreement.Usable {
			return ErrLicenseAlreadyUsable
		}

		agreement.Terms = models.NewWord256(codec.SetUint64(&agreement.Terms.Int, codec.ApprovalDate, now))
		agreement.Usable = true
		if err := tx.Save(agreement).Error; err != nil {
			return fmt.Errorf("failed to update agreement: %w", err)
		}

		return s.events.Record(tx, models.EventApplicationApproved, licensee, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"approved_by": caller})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// UpdateLicenseUsable flips the usable flag on an approved agreement, e.g.
// to blacklist and later reinstate a licensee's agreement.
func (s *ApplicationService) UpdateLicenseUsable(caller, licensee models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}
		// The toggle edge only exists once the agreement has been approved;
		// usable always implies a non-zero approval date.
		if codec.GetUint64(&agreement.Terms.Int, codec.ApprovalDate) == 0 {
			return ErrLicenseNotUsable
		}

		agreement.Usable = !agreement.Usable
		if err := tx.Save(agreement).Error; err != nil {
			return fmt.Errorf("failed to update agreement: %w", err)
		}

		return s.events.Record(tx, models.EventLicenseUsableUpdated, licensee, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"usable": agreement.Usable, "updated_by": caller})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// AddModifications replaces the admin override/restriction bytes.
func (s *ApplicationService) AddModifications(caller, licensee models.Address, applicationHash string, modifications []byte) (*models.LicenseAgreement, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if len(modifications) > s.maxExtraData {
		return nil, ErrInvalidExtraDataLength
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}

		agreement.Modifications = modifications
		if err := tx.Save(agreement).Error; err != nil {
			return fmt.Errorf("failed to update agreement: %w", err)
		}

		return s.events.Record(tx, models.EventModificationsAdded, licensee, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"added_by": caller})
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

func (s *ApplicationService) UpdateReportingFrequency(caller, licensee models.Address, applicationHash string, seconds uint64) (*models.LicenseAgreement, error) {
	return s.setReportingField(caller, licensee, applicationHash, codec.ReportingFrequency, seconds)
}

func (s *ApplicationService) UpdateReportingGracePeriod(caller, licensee models.Address, applicationHash string, seconds uint64) (*models.LicenseAgreement, error) {
	return s.setReportingField(caller, licensee, applicationHash, codec.ReportingGracePeriod, seconds)
}

func (s *ApplicationService) UpdateRoyaltyGracePeriod(caller, licensee models.Address, applicationHash string, seconds uint64) (*models.LicenseAgreement, error) {
	return s.setReportingField(caller, licensee, applicationHash, codec.RoyaltyGracePeriod, seconds)
}

func (s *ApplicationService) setReportingField(caller, licensee models.Address, applicationHash string, field codec.Field, value uint64) (*models.LicenseAgreement, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if !field.FitsUint64(value) {
		return nil, ErrFieldOverflow
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}

		agreement.Reporting = models.NewWord256(codec.SetUint64(&agreement.Reporting.Int, field, value))
		if err := tx.Save(agreement).Error; err != nil {
			return fmt.Errorf("failed to update agreement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// IncrementUntimelyReports bumps the 8-bit untimely-report counter.
// Admin entry point; the royalty ledger's penalty path uses the same
// in-transaction helper.
func (s *ApplicationService) IncrementUntimelyReports(caller, licensee models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	return s.incrementCounter(caller, licensee, applicationHash, codec.UntimelyReports)
}

func (s *ApplicationService) IncrementUntimelyRoyaltyPayments(caller, licensee models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	return s.incrementCounter(caller, licensee, applicationHash, codec.UntimelyRoyaltyPayments)
}

func (s *ApplicationService) incrementCounter(caller, licensee models.Address, applicationHash string, field codec.Field) (*models.LicenseAgreement, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	var agreement *models.LicenseAgreement
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		agreement, err = s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}
		return s.bumpCounter(tx, agreement, field)
	})
	if err != nil {
		return nil, err
	}
	return agreement, nil
}

// bumpCounter saturates at the 8-bit maximum rather than wrapping: wrapping
// would silently erase recorded violations. TODO(product): widen the counter
// fields if 255 recorded violations ever becomes a real ceiling.
func (s *ApplicationService) bumpCounter(tx *gorm.DB, agreement *models.LicenseAgreement, field codec.Field) error {
	current := codec.GetUint64(&agreement.Reporting.Int, field)
	if current >= field.Max().Uint64() {
		return nil
	}

	agreement.Reporting = models.NewWord256(codec.SetUint64(&agreement.Reporting.Int, field, current+1))
	if err := tx.Save(agreement).Error; err != nil {
		return fmt.Errorf("failed to update agreement: %w", err)
	}
	return nil
}

// RemoveApplication deletes the agreement entirely. Royalty history for the
// key is preserved as orphaned audit data.
func (s *ApplicationService) RemoveApplication(caller, licensee models.Address, applicationHash, reason string) error {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return ErrNotOwnerOrAdmin
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	return database.WithTransaction(s.db, func(tx *gorm.DB) error {
		agreement, err := s.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}

		if err := tx.Unscoped().Delete(agreement).Error; err != nil {
			return fmt.Errorf("failed to remove agreement: %w", err)
		}

		return s.events.Record(tx, models.EventApplicationRemoved, licensee, applicationHash, nil,
			time.Unix(int64(now), 0), models.JSONB{"removed_by": caller, "reason": reason})
	})
}

// GetAgreement returns the unpacked agreement for its owner or an admin.
func (s *ApplicationService) GetAgreement(caller, licensee models.Address, applicationHash string) (*AgreementDetails, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}

	agreement, err := s.loadAgreementTx(s.db, licensee, applicationHash)
	if err != nil {
		return nil, err
	}
	return unpackAgreement(agreement), nil
}

// ListAgreements returns a licensee's agreements (owner or admin).
func (s *ApplicationService) ListAgreements(caller, licensee models.Address) ([]AgreementDetails, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}

	var agreements []models.LicenseAgreement
	if err := s.db.Where("licensee = ?", licensee).Order("sequence ASC").Find(&agreements).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch agreements: %w", err)
	}

	details := make([]AgreementDetails, 0, len(agreements))
	for i := range agreements {
		details = append(details, *unpackAgreement(&agreements[i]))
	}
	return details, nil
}

func unpackAgreement(a *models.LicenseAgreement) *AgreementDetails {
	return &AgreementDetails{
		Licensee:                a.Licensee,
		ApplicationHash:         a.ApplicationHash,
		Sequence:                a.Sequence,
		LicenseHash:             a.LicenseHash,
		AppliedTermsURL:         a.AppliedTermsURL,
		SubmissionDate:          codec.GetUint64(&a.Terms.Int, codec.SubmissionDate),
		ApprovalDate:            codec.GetUint64(&a.Terms.Int, codec.ApprovalDate),
		ExpirationDate:          codec.GetUint64(&a.Terms.Int, codec.ExpirationDate),
		LicenseFee:              codec.Get(&a.Terms.Int, codec.LicenseFee).Hex(),
		ReportingFrequency:      codec.GetUint64(&a.Reporting.Int, codec.ReportingFrequency),
		ReportingGracePeriod:    codec.GetUint64(&a.Reporting.Int, codec.ReportingGracePeriod),
		RoyaltyGracePeriod:      codec.GetUint64(&a.Reporting.Int, codec.RoyaltyGracePeriod),
		UntimelyReports:         codec.GetUint64(&a.Reporting.Int, codec.UntimelyReports),
		UntimelyRoyaltyPayments: codec.GetUint64(&a.Reporting.Int, codec.UntimelyRoyaltyPayments),
		ExtraData:               codec.Get(&a.Reporting.Int, codec.AgreementExtraData).Hex(),
		Usable:                  a.Usable,
		FeePaid:                 a.FeePaid,
		Modifications:           a.Modifications,
	}
}

func (s *ApplicationService) loadAgreementTx(tx *gorm.DB, licensee models.Address, applicationHash string) (*models.LicenseAgreement, error) {
	var agreement models.LicenseAgreement
	if err := tx.Where("licensee = ? AND application_hash = ?", licensee, applicationHash).
		First(&agreement).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &agreement, nil
}

// nextSequence increments the global agreement counter. Sequence numbers
// survive removals and are never reused.
func (s *ApplicationService) nextSequence(tx *gorm.DB) (uint64, error) {
	s.seqMu.Lock()
	defer s.seqMu.Unlock()

	var counter models.SequenceCounter
	err := tx.Where("name = ?", models.AgreementSequence).First(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		counter = models.SequenceCounter{Name: models.AgreementSequence, Value: 0}
		if err := tx.Create(&counter).Error; err != nil {
			return 0, fmt.Errorf("failed to create sequence counter: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("database error: %w", err)
	}

	counter.Value++
	if err := tx.Save(&counter).Error; err != nil {
		return 0, fmt.Errorf("failed to advance sequence counter: %w", err)
	}
	return counter.Value, nil
}
