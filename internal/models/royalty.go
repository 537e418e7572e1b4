// internal/models/royalty.go
package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// RoyaltyReport is one entry in an agreement's append-only report log.
// ReportIndex is the report's identity within the agreement; reports are
// never reordered or deleted, and they survive removal of the owning
// agreement as audit history.
//
// Timing packs submittedAt, approvedAt, paymentDeadline, paidAt and
// changedAt (see internal/codec). AmountDue is set at approval time and
// zero before it.
type RoyaltyReport struct {
	BaseModel
	Licensee        Address `json:"licensee" gorm:"size:42;not null;uniqueIndex:idx_reports_key,priority:1"`
	ApplicationHash string  `json:"application_hash" gorm:"size:66;not null;uniqueIndex:idx_reports_key,priority:2"`
	ReportIndex     int     `json:"report_index" gorm:"not null;uniqueIndex:idx_reports_key,priority:3"`
	URL             string  `json:"url" gorm:"size:2048;not null"`
	AmountDue       Word256 `json:"amount_due" gorm:"size:66;not null"`
	Timing          Word256 `json:"timing" gorm:"size:66;not null"`
	ApprovedBy      Address `json:"approved_by,omitempty" gorm:"size:42"`
}

// RoyaltyTransaction is one completed or failed value movement on the
// internal ledger: license fees, royalty payments and test/seed deposits.
type RoyaltyTransaction struct {
	BaseModel
	TransactionType  TransactionType   `json:"transaction_type" gorm:"type:varchar(20);not null;index"`
	FromAddress      Address           `json:"from_address" gorm:"size:42;not null;index"`
	ToAddress        Address           `json:"to_address" gorm:"size:42;not null;index"`
	Amount           Word256           `json:"amount" gorm:"size:66;not null"`
	Status           TransactionStatus `json:"status" gorm:"type:varchar(20);default:'pending';index"`
	Reference        string            `json:"reference" gorm:"size:255"`
	PaymentReference string            `json:"payment_reference" gorm:"size:255"`
	ProcessedAt      *time.Time        `json:"processed_at"`
}

// LedgerEvent is the persisted form of the observability events every
// mutating operation emits. Written inside the operation's transaction so a
// rolled-back call leaves no event behind.
type LedgerEvent struct {
	BaseModel
	EventType       EventType `json:"event_type" gorm:"type:varchar(40);not null;index"`
	Licensee        Address   `json:"licensee" gorm:"size:42;not null;index"`
	ApplicationHash string    `json:"application_hash" gorm:"size:66;index"`
	ReportIndex     *int      `json:"report_index,omitempty"`
	OccurredAt      time.Time `json:"occurred_at" gorm:"not null;index"`
	Data            JSONB     `json:"data" gorm:"type:jsonb"`
}

// Account is a login identity for the HTTP surface. Ledger authorization is
// decided by the access registry and record ownership, not by the account
// role; the role only routes admin UI access.
type Account struct {
	BaseModel
	Address      Address     `json:"address" gorm:"size:42;not null;uniqueIndex"`
	PasswordHash string      `json:"-" gorm:"size:255;not null"`
	Role         AccountRole `json:"role" gorm:"type:varchar(20);default:'licensee'"`
	LastLoginAt  *time.Time  `json:"last_login_at"`
}

func (a *Account) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hashedPassword)
	return nil
}

func (a *Account) CheckPassword(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password))
}
