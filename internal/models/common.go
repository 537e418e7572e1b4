// internal/models/common.go
package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uuid.UUID      `json:"id" gorm:"type:uuid;primary_key"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// IDs are assigned client-side so the same models work against Postgres in
// production and the in-memory sqlite driver in tests.
func (m *BaseModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// JSONB type for PostgreSQL
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		if s, ok := value.(string); ok {
			bytes = []byte(s)
		} else {
			return nil
		}
	}

	return json.Unmarshal(bytes, j)
}

// Address is a 20-byte account identifier in 0x-prefixed lowercase hex,
// recovered from submission signatures or configured at deployment.
type Address string

var addressPattern = regexp.MustCompile(`^0x[0-9a-f]{40}$`)

func (a Address) Valid() bool {
	return addressPattern.MatchString(string(a))
}

func NormalizeAddress(s string) Address {
	return Address(strings.ToLower(s))
}

// Word256 is a 256-bit bit-packed word persisted as a hex string column.
type Word256 struct {
	uint256.Int
}

func NewWord256(v *uint256.Int) Word256 {
	var w Word256
	if v != nil {
		w.Int.Set(v)
	}
	return w
}

func (w Word256) Value() (driver.Value, error) {
	return w.Hex(), nil
}

func (w *Word256) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		w.Int.Clear()
		return nil
	case string:
		return w.SetFromHex(v)
	case []byte:
		return w.SetFromHex(string(v))
	default:
		return fmt.Errorf("cannot scan %T into Word256", value)
	}
}

// Enums

type AccountRole string

const (
	AccountRoleLicensee AccountRole = "licensee"
	AccountRoleAdmin    AccountRole = "admin"
)

type TransactionType string

const (
	TransactionTypeLicenseFee TransactionType = "license_fee"
	TransactionTypeRoyalty    TransactionType = "royalty"
	TransactionTypeDeposit    TransactionType = "deposit"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
)

type EventType string

const (
	EventApplicationSubmitted   EventType = "application_submitted"
	EventApplicationApproved    EventType = "application_approved"
	EventApplicationRemoved     EventType = "application_removed"
	EventLicenseFeePaid         EventType = "license_fee_paid"
	EventLicenseUsableUpdated   EventType = "license_usable_updated"
	EventModificationsAdded     EventType = "modifications_added"
	EventReportSubmitted        EventType = "report_submitted"
	EventReportApproved         EventType = "report_approved"
	EventReportChanged          EventType = "report_changed"
	EventRoyaltyPaid            EventType = "royalty_paid"
	EventUntimelyReport         EventType = "untimely_report"
	EventUntimelyRoyaltyPayment EventType = "untimely_royalty_payment"
)
