// internal/models/agreement.go
package models

// LicenseAgreement is one signed license application, keyed by
// (licensee, application hash). Sequence numbers come from a global counter
// and are never reused, even after removal.
//
// Terms packs submissionDate, approvalDate, expirationDate and licenseFee;
// Reporting packs reportingFrequency, reportingGracePeriod,
// royaltyGracePeriod, the two untimely counters and extra data. Field
// offsets live in internal/codec.
type LicenseAgreement struct {
	BaseModel
	Licensee        Address `json:"licensee" gorm:"size:42;not null;uniqueIndex:idx_agreements_key,priority:1"`
	ApplicationHash string  `json:"application_hash" gorm:"size:66;not null;uniqueIndex:idx_agreements_key,priority:2"`
	Sequence        uint64  `json:"sequence" gorm:"not null;uniqueIndex"`
	LicenseHash     string  `json:"license_hash" gorm:"size:66;not null;index"`
	AppliedTermsURL string  `json:"applied_terms_url" gorm:"size:2048"`
	Terms           Word256 `json:"terms" gorm:"size:66;not null"`
	Reporting       Word256 `json:"reporting" gorm:"size:66;not null"`
	Signature       []byte  `json:"signature" gorm:"not null"`
	Modifications   []byte  `json:"modifications"`
	Usable          bool    `json:"usable" gorm:"default:false;index"`
	FeePaid         bool    `json:"fee_paid" gorm:"default:false"`
}

// SequenceCounter backs the global monotonic agreement sequence. One named
// row, incremented inside the submission transaction.
type SequenceCounter struct {
	Name  string `gorm:"size:50;primary_key"`
	Value uint64 `gorm:"not null"`
}

const AgreementSequence = "agreement_sequence"
