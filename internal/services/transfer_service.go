// internal/services/transfer_service.go
package services

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/paymentintent"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
)

// ValueTransfer moves value between accounts as part of a ledger operation.
// It runs inside the caller's transaction: an error aborts the whole
// operation with no state committed, including the transfer record itself.
// The caller passes its single clock sample as at, so the transaction row
// carries the same timestamp as the rest of the operation.
type ValueTransfer interface {
	Transfer(tx *gorm.DB, from, to models.Address, amount *uint256.Int, kind models.TransactionType, reference string, at time.Time) error
}

// LedgerTransfer settles against the internal balance ledger: every movement
// is a RoyaltyTransaction row and an account's balance is the sum of its
// completed credits minus its completed debits.
type LedgerTransfer struct {
	db *gorm.DB
}

func NewLedgerTransfer(db *gorm.DB) *LedgerTransfer {
	return &LedgerTransfer{db: db}
}

func (t *LedgerTransfer) Transfer(tx *gorm.DB, from, to models.Address, amount *uint256.Int, kind models.TransactionType, reference string, at time.Time) error {
	balance, err := t.balanceIn(tx, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientFunds
	}

	record := &models.RoyaltyTransaction{
		TransactionType: kind,
		FromAddress:     from,
		ToAddress:       to,
		Amount:          models.NewWord256(amount),
		Status:          models.TransactionStatusCompleted,
		Reference:       reference,
		ProcessedAt:     &at,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}

// Deposit credits an account from outside the ledger, e.g. an on-ramp.
func (t *LedgerTransfer) Deposit(to models.Address, amount *uint256.Int, reference string, at time.Time) error {
	record := &models.RoyaltyTransaction{
		TransactionType: models.TransactionTypeDeposit,
		FromAddress:     models.Address("0x0000000000000000000000000000000000000000"),
		ToAddress:       to,
		Amount:          models.NewWord256(amount),
		Status:          models.TransactionStatusCompleted,
		Reference:       reference,
		ProcessedAt:     &at,
	}
	if err := t.db.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record deposit: %w", err)
	}
	return nil
}

// Balance sums completed credits minus completed debits for an account.
// Amounts are 256-bit words stored as hex, so the sum runs in Go rather
// than SQL.
func (t *LedgerTransfer) Balance(addr models.Address) (*uint256.Int, error) {
	return t.balanceIn(t.db, addr)
}

func (t *LedgerTransfer) balanceIn(tx *gorm.DB, addr models.Address) (*uint256.Int, error) {
	var rows []models.RoyaltyTransaction
	err := tx.Where("status = ? AND (from_address = ? OR to_address = ?)",
		models.TransactionStatusCompleted, addr, addr).
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}

	balance := new(uint256.Int)
	for _, row := range rows {
		if row.ToAddress == addr {
			balance.Add(balance, &row.Amount.Int)
		}
		if row.FromAddress == addr {
			balance.Sub(balance, &row.Amount.Int)
		}
	}
	return balance, nil
}

func (t *LedgerTransfer) History(addr models.Address) ([]models.RoyaltyTransaction, error) {
	var rows []models.RoyaltyTransaction
	err := t.db.Where("from_address = ? OR to_address = ?", addr, addr).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	return rows, nil
}

// StripeTransfer settles off-platform through a Stripe PaymentIntent and
// records the settlement reference on the transaction row. Amounts must fit
// Stripe's signed 64-bit minor-unit amounts.
type StripeTransfer struct {
	currency string
}

func NewStripeTransfer(secretKey, currency string) *StripeTransfer {
	stripe.Key = secretKey
	if currency == "" {
		currency = "usd"
	}
	return &StripeTransfer{currency: currency}
}

func (t *StripeTransfer) Transfer(tx *gorm.DB, from, to models.Address, amount *uint256.Int, kind models.TransactionType, reference string, at time.Time) error {
	if !amount.IsUint64() || amount.Uint64() > uint64(1)<<62 {
		return fmt.Errorf("%w: amount too large for stripe settlement", ErrInvalidLicenseFee)
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(int64(amount.Uint64())),
		Currency: stripe.String(t.currency),
		Confirm:  stripe.Bool(true),
	}
	params.AddMetadata("from", string(from))
	params.AddMetadata("to", string(to))
	params.AddMetadata("kind", string(kind))
	params.AddMetadata("reference", reference)

	pi, err := paymentintent.New(params)
	if err != nil {
		return fmt.Errorf("stripe settlement failed: %w", err)
	}
	if pi.Status != stripe.PaymentIntentStatusSucceeded {
		return fmt.Errorf("stripe settlement not completed: %s", pi.Status)
	}

	record := &models.RoyaltyTransaction{
		TransactionType:  kind,
		FromAddress:      from,
		ToAddress:        to,
		Amount:           models.NewWord256(amount),
		Status:           models.TransactionStatusCompleted,
		Reference:        reference,
		PaymentReference: pi.ID,
		ProcessedAt:      &at,
	}
	if err := tx.Create(record).Error; err != nil {
		return fmt.Errorf("failed to record transfer: %w", err)
	}
	return nil
}
