// internal/services/royalty_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/royalty-backend/internal/models"
)

const reportURL = "https://reports.example.com/q1.pdf"

func TestSubmitReportGate(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	// The frequency has not elapsed since approval.
	_, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	assert.ErrorIs(t, err, ErrNewReportNotYetAllowed)

	f.clock.Advance(100 * time.Second)
	report, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ReportIndex)

	// On-time submission does not bump the counter.
	details, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Zero(t, details.UntimelyReports)

	// The next period is measured from the previous submission.
	_, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	assert.ErrorIs(t, err, ErrNewReportNotYetAllowed)

	f.clock.Advance(100 * time.Second)
	report, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReportIndex)
}

func TestSubmitReportLatePenalty(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	// Past frequency + grace: still accepted, but the counter bumps.
	f.clock.Advance(151 * time.Second)
	report, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)
	assert.Equal(t, 0, report.ReportIndex)

	details, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), details.UntimelyReports)

	// Exactly at the grace boundary is still on time.
	f.clock.Advance(150 * time.Second)
	_, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)

	details, err = f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), details.UntimelyReports)
}

func TestSubmitReportPreconditions(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)
	f.clock.Advance(100 * time.Second)

	_, err := f.royalties.SubmitReport(addr, addr, hash, "")
	assert.ErrorIs(t, err, ErrEmptyURL)

	stranger := models.Address("0x00000000000000000000000000000000000000cc")
	_, err = f.royalties.SubmitReport(stranger, addr, hash, reportURL)
	assert.ErrorIs(t, err, ErrNotOwnerOrAdmin)

	// A toggled-off agreement cannot report.
	_, err = f.apps.UpdateLicenseUsable(testMainAdmin, addr, hash)
	require.NoError(t, err)
	_, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	assert.ErrorIs(t, err, ErrLicenseNotUsable)
}

func TestChangeReport(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)
	f.clock.Advance(100 * time.Second)

	_, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)

	f.clock.Advance(10 * time.Second)
	changed, err := f.royalties.ChangeReport(addr, addr, hash, 0, "https://reports.example.com/q1-fixed.pdf")
	require.NoError(t, err)
	assert.Equal(t, "https://reports.example.com/q1-fixed.pdf", changed.URL)

	details, err := f.royalties.GetReport(addr, addr, hash, 0)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Unix(), details.ChangedAt)

	// Approval freezes the report.
	_, err = f.royalties.ApproveReport(testMainAdmin, addr, hash, 0, f.clock.Unix()+3600, uint256.NewInt(500))
	require.NoError(t, err)
	_, err = f.royalties.ChangeReport(addr, addr, hash, 0, "https://reports.example.com/too-late.pdf")
	assert.ErrorIs(t, err, ErrReportAlreadyApproved)
}

func TestApproveAndPayRoyalty(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)
	f.clock.Advance(100 * time.Second)

	_, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)

	// Payment requires approval first.
	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(500))
	assert.ErrorIs(t, err, ErrReportNotYetApproved)

	deadline := f.clock.Unix() + 3600
	approved, err := f.royalties.ApproveReport(testMainAdmin, addr, hash, 0, deadline, uint256.NewInt(500))
	require.NoError(t, err)
	assert.Equal(t, testMainAdmin, approved.ApprovedBy)

	_, err = f.royalties.ApproveReport(testMainAdmin, addr, hash, 0, deadline, uint256.NewInt(500))
	assert.ErrorIs(t, err, ErrReportAlreadyApproved)

	// Approval is admin only.
	_, err = f.royalties.ApproveReport(addr, addr, hash, 0, deadline, uint256.NewInt(500))
	assert.ErrorIs(t, err, ErrUnauthorized)

	// The payment must match the amount due exactly.
	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(499))
	assert.ErrorIs(t, err, ErrRoyaltyAmountMismatch)
	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(501))
	assert.ErrorIs(t, err, ErrRoyaltyAmountMismatch)

	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(500))
	require.NoError(t, err)
	details, err := f.royalties.GetReport(addr, addr, hash, 0)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Unix(), details.PaidAt)

	balance, err := f.transfer.Balance(testRoyaltyReceiver)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(500), balance)

	// On-time payment leaves the counter alone.
	agreementDetails, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Zero(t, agreementDetails.UntimelyRoyaltyPayments)

	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(500))
	assert.ErrorIs(t, err, ErrRoyaltyAlreadyPaid)
}

func TestPayRoyaltyLatePenalty(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)
	f.clock.Advance(100 * time.Second)

	_, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)

	deadline := f.clock.Unix()
	_, err = f.royalties.ApproveReport(testMainAdmin, addr, hash, 0, deadline, uint256.NewInt(500))
	require.NoError(t, err)

	// Past deadline + royalty grace: the payment still settles, then the
	// untimely-payment counter bumps.
	f.clock.Advance(31 * time.Second)
	_, err = f.royalties.PayRoyalty(addr, hash, 0, uint256.NewInt(500))
	require.NoError(t, err)

	details, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), details.UntimelyRoyaltyPayments)

	balance, err := f.transfer.Balance(testRoyaltyReceiver)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(500), balance)
}

func TestReportLookups(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	_, err := f.royalties.ListReports(addr, addr, hash)
	assert.ErrorIs(t, err, ErrNoReportsFound)
	_, err = f.royalties.CurrentReport(addr, addr, hash)
	assert.ErrorIs(t, err, ErrNoReportsFound)

	f.clock.Advance(100 * time.Second)
	_, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)
	f.clock.Advance(100 * time.Second)
	_, err = f.royalties.SubmitReport(addr, addr, hash, "https://reports.example.com/q2.pdf")
	require.NoError(t, err)

	reports, err := f.royalties.ListReports(addr, addr, hash)
	require.NoError(t, err)
	require.Len(t, reports, 2)
	assert.Equal(t, 0, reports[0].ReportIndex)
	assert.Equal(t, 1, reports[1].ReportIndex)

	current, err := f.royalties.CurrentReport(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, 1, current.ReportIndex)
	assert.Equal(t, "https://reports.example.com/q2.pdf", current.URL)

	_, err = f.royalties.GetReport(addr, addr, hash, 5)
	assert.ErrorIs(t, err, ErrReportNotFound)

	stranger := models.Address("0x00000000000000000000000000000000000000dd")
	_, err = f.royalties.ListReports(stranger, addr, hash)
	assert.ErrorIs(t, err, ErrNotOwnerOrAdmin)
}

// Royalty history survives agreement removal as orphaned audit data.
func TestReportsSurviveAgreementRemoval(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	f.clock.Advance(100 * time.Second)
	_, err := f.royalties.SubmitReport(addr, addr, hash, reportURL)
	require.NoError(t, err)

	require.NoError(t, f.apps.RemoveApplication(testMainAdmin, addr, hash, "terminated"))

	reports, err := f.royalties.ListReports(testMainAdmin, addr, hash)
	require.NoError(t, err)
	assert.Len(t, reports, 1)

	// New submissions against the removed agreement fail.
	_, err = f.royalties.SubmitReport(addr, addr, hash, reportURL)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}
