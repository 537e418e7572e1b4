// internal/codec/codec.go
// Package codec packs and unpacks the narrow integer fields that make up an
// agreement's two 256-bit data words and a royalty report's timing word.
// All operations are pure; callers own width validation except where noted.
package codec

import (
	"github.com/holiman/uint256"
)

// Field describes one sub-field inside a 256-bit word.
type Field struct {
	Name   string
	Offset uint // bit offset from the least significant bit
	Width  uint // width in bits
}

// Agreement terms word (word 1).
var (
	SubmissionDate = Field{"submission_date", 0, 40}
	ApprovalDate   = Field{"approval_date", 40, 40}
	ExpirationDate = Field{"expiration_date", 80, 40}
	LicenseFee     = Field{"license_fee", 120, 136}
)

// Agreement reporting word (word 2).
var (
	ReportingFrequency      = Field{"reporting_frequency", 0, 32}
	ReportingGracePeriod    = Field{"reporting_grace_period", 32, 32}
	RoyaltyGracePeriod      = Field{"royalty_grace_period", 64, 32}
	UntimelyReports         = Field{"untimely_reports", 96, 8}
	UntimelyRoyaltyPayments = Field{"untimely_royalty_payments", 104, 8}
	AgreementExtraData      = Field{"agreement_extra_data", 112, 144}
)

// Royalty report timing word.
var (
	ReportSubmittedAt     = Field{"report_submitted_at", 0, 40}
	ReportApprovedAt      = Field{"report_approved_at", 40, 40}
	ReportPaymentDeadline = Field{"report_payment_deadline", 80, 40}
	ReportPaidAt          = Field{"report_paid_at", 120, 40}
	ReportChangedAt       = Field{"report_changed_at", 160, 40}
	ReportExtraData       = Field{"report_extra_data", 200, 56}
)

var one = uint256.NewInt(1)

// Max returns the largest value the field can hold: 2^width - 1.
func (f Field) Max() *uint256.Int {
	if f.Width >= 256 {
		return new(uint256.Int).Not(new(uint256.Int))
	}
	m := new(uint256.Int).Lsh(one, f.Width)
	return m.Sub(m, one)
}

// Fits reports whether v can be stored in the field without truncation.
func (f Field) Fits(v *uint256.Int) bool {
	return v.Cmp(f.Max()) <= 0
}

// FitsUint64 is Fits for plain integer values.
func (f Field) FitsUint64(v uint64) bool {
	return f.Fits(uint256.NewInt(v))
}

func (f Field) mask() *uint256.Int {
	return new(uint256.Int).Lsh(f.Max(), f.Offset)
}

// Get extracts the field's value from the word.
func Get(word *uint256.Int, f Field) *uint256.Int {
	v := new(uint256.Int).Rsh(word, f.Offset)
	return v.And(v, f.Max())
}

// GetUint64 extracts a field known to be at most 64 bits wide.
func GetUint64(word *uint256.Int, f Field) uint64 {
	return Get(word, f).Uint64()
}

// Set returns a copy of word with the field replaced by v and every other
// bit untouched. v must fit the field; oversized values are masked, so
// callers validate with Fits first where truncation matters.
func Set(word *uint256.Int, f Field, v *uint256.Int) *uint256.Int {
	cleared := new(uint256.Int).And(word, new(uint256.Int).Not(f.mask()))
	shifted := new(uint256.Int).And(v, f.Max())
	shifted.Lsh(shifted, f.Offset)
	return cleared.Or(cleared, shifted)
}

// SetUint64 is Set for plain integer values.
func SetUint64(word *uint256.Int, f Field, v uint64) *uint256.Int {
	return Set(word, f, uint256.NewInt(v))
}

// Pack builds a word from scratch out of (field, value) assignments.
func Pack(assignments map[Field]*uint256.Int) *uint256.Int {
	word := new(uint256.Int)
	for f, v := range assignments {
		word = Set(word, f, v)
	}
	return word
}
