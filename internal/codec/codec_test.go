// internal/codec/codec_test.go
package codec

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var agreementWord1Fields = []Field{SubmissionDate, ApprovalDate, ExpirationDate, LicenseFee}

var agreementWord2Fields = []Field{
	ReportingFrequency, ReportingGracePeriod, RoyaltyGracePeriod,
	UntimelyReports, UntimelyRoyaltyPayments, AgreementExtraData,
}

var reportFields = []Field{
	ReportSubmittedAt, ReportApprovedAt, ReportPaymentDeadline,
	ReportPaidAt, ReportChangedAt, ReportExtraData,
}

func TestFieldLayoutsCoverWord(t *testing.T) {
	for name, fields := range map[string][]Field{
		"agreement_word1": agreementWord1Fields,
		"agreement_word2": agreementWord2Fields,
		"report_word":     reportFields,
	} {
		var total uint
		next := uint(0)
		for _, f := range fields {
			assert.Equal(t, next, f.Offset, "%s: field %s offset", name, f.Name)
			next = f.Offset + f.Width
			total += f.Width
		}
		assert.Equal(t, uint(256), total, "%s: widths must sum to 256", name)
	}
}

func TestPackGetRoundTrip(t *testing.T) {
	assignments := map[Field]*uint256.Int{
		SubmissionDate: uint256.NewInt(1700000000),
		ApprovalDate:   uint256.NewInt(1700007890),
		ExpirationDate: uint256.NewInt(1731536000),
		LicenseFee:     uint256.NewInt(1000),
	}

	word := Pack(assignments)
	for f, want := range assignments {
		assert.True(t, Get(word, f).Eq(want), "field %s", f.Name)
	}
}

func TestSetPreservesOtherFields(t *testing.T) {
	for _, fields := range [][]Field{agreementWord1Fields, agreementWord2Fields, reportFields} {
		// Start from a word with every field at its maximum, then rewrite
		// each field in turn and verify the rest is untouched.
		word := new(uint256.Int)
		for _, f := range fields {
			word = Set(word, f, f.Max())
		}

		for _, target := range fields {
			updated := Set(word, target, uint256.NewInt(7))
			for _, other := range fields {
				if other == target {
					assert.True(t, Get(updated, other).Eq(uint256.NewInt(7)),
						"field %s should hold the new value", other.Name)
					continue
				}
				assert.True(t, Get(updated, other).Eq(Get(word, other)),
					"field %s disturbed by setting %s", other.Name, target.Name)
			}
		}
	}
}

func TestSetTwiceLastValueWins(t *testing.T) {
	word := new(uint256.Int)
	word = Set(word, ReportingFrequency, uint256.NewInt(7890000))
	word = Set(word, ReportingFrequency, uint256.NewInt(1209600))
	assert.Equal(t, uint64(1209600), GetUint64(word, ReportingFrequency))
}

func TestFieldBoundaries(t *testing.T) {
	for _, f := range append(append(agreementWord1Fields, agreementWord2Fields...), reportFields...) {
		word := Set(new(uint256.Int), f, f.Max())
		assert.True(t, Get(word, f).Eq(f.Max()), "field %s max round-trip", f.Name)

		word = Set(word, f, new(uint256.Int))
		assert.True(t, Get(word, f).IsZero(), "field %s zero round-trip", f.Name)

		overflow := new(uint256.Int).Add(f.Max(), uint256.NewInt(1))
		assert.False(t, f.Fits(overflow), "field %s must reject max+1", f.Name)
		assert.True(t, f.Fits(f.Max()), "field %s must accept max", f.Name)
	}
}

func TestCounterFieldsAreOneByte(t *testing.T) {
	require.True(t, UntimelyReports.FitsUint64(255))
	require.False(t, UntimelyReports.FitsUint64(256))
	require.True(t, UntimelyRoyaltyPayments.FitsUint64(255))
	require.False(t, UntimelyRoyaltyPayments.FitsUint64(256))
}

func TestGetUint64OnNarrowFields(t *testing.T) {
	word := SetUint64(new(uint256.Int), RoyaltyGracePeriod, 1209600)
	assert.Equal(t, uint64(1209600), GetUint64(word, RoyaltyGracePeriod))
	assert.Equal(t, uint64(0), GetUint64(word, ReportingFrequency))
}
