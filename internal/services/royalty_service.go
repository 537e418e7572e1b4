// internal/services/royalty_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/codec"
	"github.com/licenseforge/royalty-backend/internal/database"
	"github.com/licenseforge/royalty-backend/internal/models"
)

// RoyaltyService is the royalty ledger: an append-only report log per
// agreement, with reports moving submitted -> approved -> paid and lateness
// fed back into the agreement's packed untimely counters.
//
// Two distinct pieces of timing arithmetic share the frequency fields and
// must not be merged: the submission gate uses reportingFrequency alone,
// the lateness penalty uses reportingFrequency + reportingGracePeriod.
type RoyaltyService struct {
	db              *gorm.DB
	registry        *AccessRegistry
	applications    *ApplicationService
	transfer        ValueTransfer
	events          *EventService
	clock           Clock
	royaltyReceiver models.Address
	locks           *keyedMutex
}

// ReportDetails is the unpacked read view of one royalty report.
type ReportDetails struct {
	Licensee        models.Address `json:"licensee"`
	ApplicationHash string         `json:"application_hash"`
	ReportIndex     int            `json:"report_index"`
	URL             string         `json:"url"`
	AmountDue       string         `json:"amount_due"`
	SubmittedAt     uint64         `json:"submitted_at"`
	ApprovedAt      uint64         `json:"approved_at"`
	PaymentDeadline uint64         `json:"payment_deadline"`
	PaidAt          uint64         `json:"paid_at"`
	ChangedAt       uint64         `json:"changed_at"`
}

func NewRoyaltyService(
	db *gorm.DB,
	registry *AccessRegistry,
	applications *ApplicationService,
	transfer ValueTransfer,
	events *EventService,
	clock Clock,
	royaltyReceiver models.Address,
) *RoyaltyService {
	return &RoyaltyService{
		db:              db,
		registry:        registry,
		applications:    applications,
		transfer:        transfer,
		events:          events,
		clock:           clock,
		royaltyReceiver: royaltyReceiver,
		locks:           newKeyedMutex(),
	}
}

// SubmitReport appends a new report to the agreement's log. A report may
// only be submitted once the reporting frequency has elapsed since the
// previous submission (or the approval date for the first report). A
// submission past frequency + grace is still accepted but bumps the
// agreement's untimely-report counter first.
func (s *RoyaltyService) SubmitReport(caller, licensee models.Address, applicationHash, url string) (*models.RoyaltyReport, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}
	if url == "" {
		return nil, ErrEmptyURL
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var report *models.RoyaltyReport
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		agreement, err := s.applications.loadAgreementTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}
		if !agreement.Usable {
			return ErrLicenseNotUsable
		}

		frequency := codec.GetUint64(&agreement.Reporting.Int, codec.ReportingFrequency)
		grace := codec.GetUint64(&agreement.Reporting.Int, codec.ReportingGracePeriod)

		last, count, err := s.lastReportTx(tx, licensee, applicationHash)
		if err != nil {
			return err
		}

		// Baseline for both checks: previous submission, or the approval
		// date when no report exists yet.
		baseline := codec.GetUint64(&agreement.Terms.Int, codec.ApprovalDate)
		if last != nil {
			baseline = codec.GetUint64(&last.Timing.Int, codec.ReportSubmittedAt)
		}

		if now < baseline+frequency {
			return ErrNewReportNotYetAllowed
		}

		if now > baseline+frequency+grace {
			if err := s.applications.bumpCounter(tx, agreement, codec.UntimelyReports); err != nil {
				return err
			}
			idx := count
			if err := s.events.Record(tx, models.EventUntimelyReport, licensee, applicationHash, &idx,
				time.Unix(int64(now), 0), models.JSONB{"baseline": baseline, "frequency": frequency, "grace": grace}); err != nil {
				return err
			}
		}

		timing := codec.SetUint64(new(uint256.Int), codec.ReportSubmittedAt, now)
		report = &models.RoyaltyReport{
			Licensee:        licensee,
			ApplicationHash: applicationHash,
			ReportIndex:     count,
			URL:             url,
			AmountDue:       models.NewWord256(nil),
			Timing:          models.NewWord256(timing),
		}
		if err := tx.Create(report).Error; err != nil {
			return fmt.Errorf("failed to create report: %w", err)
		}

		idx := report.ReportIndex
		return s.events.Record(tx, models.EventReportSubmitted, licensee, applicationHash, &idx,
			time.Unix(int64(now), 0), models.JSONB{"url": url})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ChangeReport replaces the report URL while the report is still pending.
func (s *RoyaltyService) ChangeReport(caller, licensee models.Address, applicationHash string, reportIndex int, newURL string) (*models.RoyaltyReport, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}
	if newURL == "" {
		return nil, ErrEmptyURL
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var report *models.RoyaltyReport
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		report, err = s.loadReportTx(tx, licensee, applicationHash, reportIndex)
		if err != nil {
			return err
		}
		if codec.GetUint64(&report.Timing.Int, codec.ReportApprovedAt) != 0 {
			return ErrReportAlreadyApproved
		}

		report.URL = newURL
		report.Timing = models.NewWord256(codec.SetUint64(&report.Timing.Int, codec.ReportChangedAt, now))
		if err := tx.Save(report).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		idx := report.ReportIndex
		return s.events.Record(tx, models.EventReportChanged, licensee, applicationHash, &idx,
			time.Unix(int64(now), 0), models.JSONB{"url": newURL})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// ApproveReport freezes a pending report: approval timestamp, payment
// deadline and the amount due. Any index can be targeted, so older periods
// can be settled out of order.
func (s *RoyaltyService) ApproveReport(caller, licensee models.Address, applicationHash string, reportIndex int, paymentDeadline uint64, amountDue *uint256.Int) (*models.RoyaltyReport, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if !codec.ReportPaymentDeadline.FitsUint64(paymentDeadline) {
		return nil, ErrFieldOverflow
	}

	unlock := s.locks.Lock(agreementKey(string(licensee), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var report *models.RoyaltyReport
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		var err error
		report, err = s.loadReportTx(tx, licensee, applicationHash, reportIndex)
		if err != nil {
			return err
		}
		if codec.GetUint64(&report.Timing.Int, codec.ReportApprovedAt) != 0 {
			return ErrReportAlreadyApproved
		}

		timing := codec.SetUint64(&report.Timing.Int, codec.ReportApprovedAt, now)
		timing = codec.SetUint64(timing, codec.ReportPaymentDeadline, paymentDeadline)
		report.Timing = models.NewWord256(timing)
		report.AmountDue = models.NewWord256(amountDue)
		report.ApprovedBy = caller
		if err := tx.Save(report).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		idx := report.ReportIndex
		return s.events.Record(tx, models.EventReportApproved, licensee, applicationHash, &idx,
			time.Unix(int64(now), 0), models.JSONB{
				"amount_due":       amountDue.Hex(),
				"payment_deadline": paymentDeadline,
				"approved_by":      caller,
			})
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// PayRoyalty settles an approved report. Self-pay only: the record owner is
// the caller and an admin cannot pay on a licensee's behalf. The amount must
// match the amount due exactly. The lateness check runs after the payment
// has succeeded and never blocks it.
func (s *RoyaltyService) PayRoyalty(caller models.Address, applicationHash string, reportIndex int, amount *uint256.Int) (*models.RoyaltyReport, error) {
	unlock := s.locks.Lock(agreementKey(string(caller), applicationHash))
	defer unlock()

	now := uint64(s.clock.Now().Unix())

	var report *models.RoyaltyReport
	err := database.WithTransaction(s.db, func(tx *gorm.DB) error {
		agreement, err := s.applications.loadAgreementTx(tx, caller, applicationHash)
		if err != nil {
			return err
		}

		report, err = s.loadReportTx(tx, caller, applicationHash, reportIndex)
		if err != nil {
			return err
		}
		if codec.GetUint64(&report.Timing.Int, codec.ReportApprovedAt) == 0 {
			return ErrReportNotYetApproved
		}
		if codec.GetUint64(&report.Timing.Int, codec.ReportPaidAt) != 0 {
			return ErrRoyaltyAlreadyPaid
		}
		if amount == nil || !amount.Eq(&report.AmountDue.Int) {
			return ErrRoyaltyAmountMismatch
		}

		reference := fmt.Sprintf("%s#%d", applicationHash, reportIndex)
		if err := s.transfer.Transfer(tx, caller, s.royaltyReceiver, amount, models.TransactionTypeRoyalty, reference, time.Unix(int64(now), 0)); err != nil {
			return err
		}

		report.Timing = models.NewWord256(codec.SetUint64(&report.Timing.Int, codec.ReportPaidAt, now))
		if err := tx.Save(report).Error; err != nil {
			return fmt.Errorf("failed to update report: %w", err)
		}

		idx := report.ReportIndex
		if err := s.events.Record(tx, models.EventRoyaltyPaid, caller, applicationHash, &idx,
			time.Unix(int64(now), 0), models.JSONB{"amount": amount.Hex()}); err != nil {
			return err
		}

		deadline := codec.GetUint64(&report.Timing.Int, codec.ReportPaymentDeadline)
		royaltyGrace := codec.GetUint64(&agreement.Reporting.Int, codec.RoyaltyGracePeriod)
		if now > deadline+royaltyGrace {
			if err := s.applications.bumpCounter(tx, agreement, codec.UntimelyRoyaltyPayments); err != nil {
				return err
			}
			if err := s.events.Record(tx, models.EventUntimelyRoyaltyPayment, caller, applicationHash, &idx,
				time.Unix(int64(now), 0), models.JSONB{"deadline": deadline, "grace": royaltyGrace}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return report, nil
}

// GetReport returns one unpacked report (owner or admin).
func (s *RoyaltyService) GetReport(caller, licensee models.Address, applicationHash string, reportIndex int) (*ReportDetails, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}

	report, err := s.loadReportTx(s.db, licensee, applicationHash, reportIndex)
	if err != nil {
		return nil, err
	}
	return unpackReport(report), nil
}

// ListReports returns the agreement's full report log in index order.
func (s *RoyaltyService) ListReports(caller, licensee models.Address, applicationHash string) ([]ReportDetails, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}

	var reports []models.RoyaltyReport
	err := s.db.Where("licensee = ? AND application_hash = ?", licensee, applicationHash).
		Order("report_index ASC").
		Find(&reports).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reports: %w", err)
	}
	if len(reports) == 0 {
		return nil, ErrNoReportsFound
	}

	details := make([]ReportDetails, 0, len(reports))
	for i := range reports {
		details = append(details, *unpackReport(&reports[i]))
	}
	return details, nil
}

// CurrentReport returns the last element of the log.
func (s *RoyaltyService) CurrentReport(caller, licensee models.Address, applicationHash string) (*ReportDetails, error) {
	if caller != licensee && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}

	last, _, err := s.lastReportTx(s.db, licensee, applicationHash)
	if err != nil {
		return nil, err
	}
	if last == nil {
		return nil, ErrNoReportsFound
	}
	return unpackReport(last), nil
}

func unpackReport(r *models.RoyaltyReport) *ReportDetails {
	return &ReportDetails{
		Licensee:        r.Licensee,
		ApplicationHash: r.ApplicationHash,
		ReportIndex:     r.ReportIndex,
		URL:             r.URL,
		AmountDue:       r.AmountDue.Hex(),
		SubmittedAt:     codec.GetUint64(&r.Timing.Int, codec.ReportSubmittedAt),
		ApprovedAt:      codec.GetUint64(&r.Timing.Int, codec.ReportApprovedAt),
		PaymentDeadline: codec.GetUint64(&r.Timing.Int, codec.ReportPaymentDeadline),
		PaidAt:          codec.GetUint64(&r.Timing.Int, codec.ReportPaidAt),
		ChangedAt:       codec.GetUint64(&r.Timing.Int, codec.ReportChangedAt),
	}
}

func (s *RoyaltyService) loadReportTx(tx *gorm.DB, licensee models.Address, applicationHash string, reportIndex int) (*models.RoyaltyReport, error) {
	var count int64
	err := tx.Model(&models.RoyaltyReport{}).
		Where("licensee = ? AND application_hash = ?", licensee, applicationHash).
		Count(&count).Error
	if err != nil {
		return nil, fmt.Errorf("database error: %w", err)
	}
	if count == 0 {
		return nil, ErrNoReportsFound
	}

	var report models.RoyaltyReport
	err = tx.Where("licensee = ? AND application_hash = ? AND report_index = ?",
		licensee, applicationHash, reportIndex).
		First(&report).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &report, nil
}

// lastReportTx returns the highest-index report and the log length.
func (s *RoyaltyService) lastReportTx(tx *gorm.DB, licensee models.Address, applicationHash string) (*models.RoyaltyReport, int, error) {
	var reports []models.RoyaltyReport
	err := tx.Where("licensee = ? AND application_hash = ?", licensee, applicationHash).
		Order("report_index DESC").
		Limit(1).
		Find(&reports).Error
	if err != nil {
		return nil, 0, fmt.Errorf("database error: %w", err)
	}
	if len(reports) == 0 {
		return nil, 0, nil
	}
	return &reports[0], reports[0].ReportIndex + 1, nil
}
