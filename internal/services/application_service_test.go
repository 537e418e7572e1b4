// internal/services/application_service_test.go
package services

import (
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/royalty-backend/internal/models"
)

func TestApplicationLifecycle(t *testing.T) {
	f := newLedgerFixture(t)
	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)

	terms := buildTerms(1000, f.clock.Unix()+3600)
	reporting := buildReporting(100, 50, 30)
	agreement := f.submitApplication(t, priv, addr, terms, reporting, []byte("salt-a"))

	assert.Equal(t, uint64(1), agreement.Sequence)
	assert.False(t, agreement.Usable)
	assert.False(t, agreement.FeePaid)
	assert.Regexp(t, "^0x[0-9a-f]{64}$", agreement.ApplicationHash)

	details, err := f.apps.GetAgreement(addr, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Unix(), details.SubmissionDate)
	assert.Zero(t, details.ApprovalDate)
	assert.Equal(t, uint256.NewInt(1000).Hex(), details.LicenseFee)

	// Approval is gated on the fee.
	_, err = f.apps.ApproveApplication(testMainAdmin, addr, agreement.ApplicationHash)
	assert.ErrorIs(t, err, ErrApplicationNotPaid)

	// Paying without funds fails and commits nothing.
	_, err = f.apps.PayLicenseFee(addr, agreement.ApplicationHash)
	assert.ErrorIs(t, err, ErrInsufficientFunds)

	f.fund(t, addr, 5000)
	paid, err := f.apps.PayLicenseFee(addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.True(t, paid.FeePaid)

	_, err = f.apps.PayLicenseFee(addr, agreement.ApplicationHash)
	assert.ErrorIs(t, err, ErrApplicationAlreadyPaid)

	receiverBalance, err := f.transfer.Balance(testFeeReceiver)
	require.NoError(t, err)
	assert.Equal(t, uint256.NewInt(1000), receiverBalance)

	f.clock.Advance(60 * time.Second)
	approved, err := f.apps.ApproveApplication(testMainAdmin, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.True(t, approved.Usable)

	details, err = f.apps.GetAgreement(addr, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Unix(), details.ApprovalDate)

	_, err = f.apps.ApproveApplication(testMainAdmin, addr, agreement.ApplicationHash)
	assert.ErrorIs(t, err, ErrLicenseAlreadyUsable)
}

func TestSubmitApplicationValidation(t *testing.T) {
	f := newLedgerFixture(t)
	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)

	goodTerms := buildTerms(1000, f.clock.Unix()+3600)
	reporting := buildReporting(100, 50, 30)

	t.Run("expiration in the past", func(t *testing.T) {
		terms := buildTerms(1000, f.clock.Unix()-1)
		signature := signSubmission(priv, addr, testLicenseHash, terms, reporting, nil, nil)
		_, err := f.apps.SubmitApplication(addr, &SubmitApplicationRequest{
			LicenseHash:     testLicenseHash,
			AppliedTermsURL: "https://terms.example.com/a.pdf",
			Terms:           terms,
			Reporting:       reporting,
			Signature:       signature,
		})
		assert.ErrorIs(t, err, ErrInvalidExpirationDate)
	})

	t.Run("signature from another key", func(t *testing.T) {
		otherPriv, _ := newTestKey(t)
		signature := signSubmission(otherPriv, addr, testLicenseHash, goodTerms, reporting, nil, nil)
		_, err := f.apps.SubmitApplication(addr, &SubmitApplicationRequest{
			LicenseHash:     testLicenseHash,
			AppliedTermsURL: "https://terms.example.com/a.pdf",
			Terms:           goodTerms,
			Reporting:       reporting,
			Signature:       signature,
		})
		assert.ErrorIs(t, err, ErrInvalidSignature)
	})

	t.Run("unknown license type", func(t *testing.T) {
		unknown := "0x2222222222222222222222222222222222222222222222222222222222222222"
		signature := signSubmission(priv, addr, unknown, goodTerms, reporting, nil, nil)
		_, err := f.apps.SubmitApplication(addr, &SubmitApplicationRequest{
			LicenseHash:     unknown,
			AppliedTermsURL: "https://terms.example.com/a.pdf",
			Terms:           goodTerms,
			Reporting:       reporting,
			Signature:       signature,
		})
		assert.ErrorIs(t, err, ErrLicenseNotFound)
	})

	t.Run("unusable licensee", func(t *testing.T) {
		otherPriv, otherAddr := newTestKey(t)
		signature := signSubmission(otherPriv, otherAddr, testLicenseHash, goodTerms, reporting, nil, nil)
		_, err := f.apps.SubmitApplication(otherAddr, &SubmitApplicationRequest{
			LicenseHash:     testLicenseHash,
			AppliedTermsURL: "https://terms.example.com/a.pdf",
			Terms:           goodTerms,
			Reporting:       reporting,
			Signature:       signature,
		})
		assert.ErrorIs(t, err, ErrLicenseeNotUsable)
	})

	t.Run("duplicate submission", func(t *testing.T) {
		salt := []byte("dup-salt")
		f.submitApplication(t, priv, addr, goodTerms, reporting, salt)

		signature := signSubmission(priv, addr, testLicenseHash, goodTerms, reporting, nil, salt)
		_, err := f.apps.SubmitApplication(addr, &SubmitApplicationRequest{
			LicenseHash:     testLicenseHash,
			AppliedTermsURL: "https://terms.example.com/a.pdf",
			Terms:           goodTerms,
			Reporting:       reporting,
			Signature:       signature,
			Salt:            salt,
		})
		assert.ErrorIs(t, err, ErrApplicationExists)
	})
}

func TestSubmissionStampsDatesAndCounters(t *testing.T) {
	f := newLedgerFixture(t)
	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)

	// The caller cannot pre-load submission date, approval date, or counters.
	terms := buildTerms(1000, f.clock.Unix()+3600)
	terms.Or(terms, uint256.NewInt(12345)) // garbage in submission date bits
	reporting := buildReporting(100, 50, 30)
	reporting.Or(reporting, new(uint256.Int).Lsh(uint256.NewInt(0xffff), 96)) // garbage counters

	agreement := f.submitApplication(t, priv, addr, terms, reporting, []byte("stamp"))
	details, err := f.apps.GetAgreement(addr, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.Equal(t, f.clock.Unix(), details.SubmissionDate)
	assert.Zero(t, details.ApprovalDate)
	assert.Zero(t, details.UntimelyReports)
	assert.Zero(t, details.UntimelyRoyaltyPayments)
}

func TestSequenceMonotonicAcrossRemovals(t *testing.T) {
	f := newLedgerFixture(t)
	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)

	terms := buildTerms(1000, f.clock.Unix()+3600)
	reporting := buildReporting(100, 50, 30)

	first := f.submitApplication(t, priv, addr, terms, reporting, []byte("s1"))
	second := f.submitApplication(t, priv, addr, terms, reporting, []byte("s2"))
	assert.Equal(t, uint64(1), first.Sequence)
	assert.Equal(t, uint64(2), second.Sequence)

	require.NoError(t, f.apps.RemoveApplication(addr, addr, first.ApplicationHash, "withdrawn"))

	third := f.submitApplication(t, priv, addr, terms, reporting, []byte("s3"))
	assert.Equal(t, uint64(3), third.Sequence)

	_, err := f.apps.GetAgreement(addr, addr, first.ApplicationHash)
	assert.ErrorIs(t, err, ErrApplicationNotFound)
}

func TestUpdateLicenseUsableRequiresApproval(t *testing.T) {
	f := newLedgerFixture(t)
	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)
	f.fund(t, addr, 5000)

	terms := buildTerms(1000, f.clock.Unix()+3600)
	reporting := buildReporting(100, 50, 30)
	agreement := f.submitApplication(t, priv, addr, terms, reporting, []byte("toggle"))

	_, err := f.apps.UpdateLicenseUsable(testMainAdmin, addr, agreement.ApplicationHash)
	assert.ErrorIs(t, err, ErrLicenseNotUsable)

	_, err = f.apps.PayLicenseFee(addr, agreement.ApplicationHash)
	require.NoError(t, err)
	_, err = f.apps.ApproveApplication(testMainAdmin, addr, agreement.ApplicationHash)
	require.NoError(t, err)

	toggled, err := f.apps.UpdateLicenseUsable(testMainAdmin, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.False(t, toggled.Usable)

	toggled, err = f.apps.UpdateLicenseUsable(testMainAdmin, addr, agreement.ApplicationHash)
	require.NoError(t, err)
	assert.True(t, toggled.Usable)
}

func TestReportingFieldSetters(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	_, err := f.apps.UpdateReportingFrequency(testMainAdmin, addr, hash, 7200)
	require.NoError(t, err)
	_, err = f.apps.UpdateReportingGracePeriod(testMainAdmin, addr, hash, 600)
	require.NoError(t, err)
	_, err = f.apps.UpdateRoyaltyGracePeriod(testMainAdmin, addr, hash, 900)
	require.NoError(t, err)

	details, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(7200), details.ReportingFrequency)
	assert.Equal(t, uint64(600), details.ReportingGracePeriod)
	assert.Equal(t, uint64(900), details.RoyaltyGracePeriod)

	// A 32-bit field rejects wider values instead of truncating.
	_, err = f.apps.UpdateReportingFrequency(testMainAdmin, addr, hash, uint64(1)<<40)
	assert.ErrorIs(t, err, ErrFieldOverflow)

	// Setters are admin only.
	_, err = f.apps.UpdateReportingFrequency(addr, addr, hash, 60)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestIncrementCounters(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	_, err := f.apps.IncrementUntimelyReports(addr, addr, hash)
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.apps.IncrementUntimelyReports(testMainAdmin, addr, hash)
	require.NoError(t, err)
	_, err = f.apps.IncrementUntimelyRoyaltyPayments(testMainAdmin, addr, hash)
	require.NoError(t, err)
	_, err = f.apps.IncrementUntimelyRoyaltyPayments(testMainAdmin, addr, hash)
	require.NoError(t, err)

	details, err := f.apps.GetAgreement(addr, addr, hash)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), details.UntimelyReports)
	assert.Equal(t, uint64(2), details.UntimelyRoyaltyPayments)
}

func TestAgreementAccessControl(t *testing.T) {
	f := newLedgerFixture(t)
	_, addr, hash := f.approvedAgreement(t, 100, 50, 30)

	stranger := models.Address("0x00000000000000000000000000000000000000bb")
	_, err := f.apps.GetAgreement(stranger, addr, hash)
	assert.ErrorIs(t, err, ErrNotOwnerOrAdmin)

	_, err = f.apps.ListAgreements(stranger, addr)
	assert.ErrorIs(t, err, ErrNotOwnerOrAdmin)

	// Admins can read anyone's agreements.
	agreements, err := f.apps.ListAgreements(testMainAdmin, addr)
	require.NoError(t, err)
	assert.Len(t, agreements, 1)
}
