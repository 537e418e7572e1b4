// internal/services/helpers_test.go
package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	secpecdsa "github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/glebarez/sqlite"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/licenseforge/royalty-backend/internal/codec"
	"github.com/licenseforge/royalty-backend/internal/models"
)

const (
	testMainAdmin       = models.Address("0x00000000000000000000000000000000000000aa")
	testFeeReceiver     = models.Address("0x00000000000000000000000000000000000000fe")
	testRoyaltyReceiver = models.Address("0x00000000000000000000000000000000000000f0")
	testLicenseHash     = "0x1111111111111111111111111111111111111111111111111111111111111111"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	// A single connection keeps every session on the same in-memory database.
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&models.Admin{},
		&models.LicenseType{},
		&models.Licensee{},
		&models.LicenseAgreement{},
		&models.SequenceCounter{},
		&models.RoyaltyReport{},
		&models.RoyaltyTransaction{},
		&models.LedgerEvent{},
		&models.Account{},
	))
	return db
}

// fakeClock is a manually advanced Clock.
type fakeClock struct {
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func (c *fakeClock) Unix() uint64 { return uint64(c.now.Unix()) }

// ledgerFixture wires the full service graph against an in-memory database.
type ledgerFixture struct {
	db        *gorm.DB
	clock     *fakeClock
	registry  *AccessRegistry
	catalog   *CatalogService
	licensees *LicenseeService
	transfer  *LedgerTransfer
	events    *EventService
	apps      *ApplicationService
	royalties *RoyaltyService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()

	db := newTestDB(t)
	clock := newFakeClock()

	registry := NewAccessRegistry(db, testMainAdmin)
	require.NoError(t, registry.Bootstrap())

	catalog := NewCatalogService(db, registry)
	licensees := NewLicenseeService(db, registry)
	transfer := NewLedgerTransfer(db)
	events := NewEventService(db)

	apps := NewApplicationService(
		db, registry, licensees, catalog, transfer, events,
		Secp256k1Verifier{}, clock, testFeeReceiver, 64,
	)
	royalties := NewRoyaltyService(
		db, registry, apps, transfer, events, clock, testRoyaltyReceiver,
	)

	return &ledgerFixture{
		db:        db,
		clock:     clock,
		registry:  registry,
		catalog:   catalog,
		licensees: licensees,
		transfer:  transfer,
		events:    events,
		apps:      apps,
		royalties: royalties,
	}
}

// newTestKey generates a real secp256k1 key and its derived ledger address.
func newTestKey(t *testing.T) (*secp256k1.PrivateKey, models.Address) {
	t.Helper()

	priv, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	return priv, PublicKeyAddress(priv.PubKey())
}

func signSubmission(priv *secp256k1.PrivateKey, caller models.Address, licenseHash string, terms, reporting *uint256.Int, modifications, salt []byte) []byte {
	digest := SubmissionDigest(caller, licenseHash, terms, reporting, modifications, salt)
	return secpecdsa.SignCompact(priv, digest[:], false)
}

func (f *ledgerFixture) registerUsableLicensee(t *testing.T, addr models.Address) {
	t.Helper()

	_, err := f.licensees.RegisterLicensee(testMainAdmin, addr, []byte(`{"name":"test licensee"}`))
	require.NoError(t, err)
	_, err = f.licensees.SetLicenseeUsable(testMainAdmin, addr, true)
	require.NoError(t, err)
}

func (f *ledgerFixture) addLicenseType(t *testing.T, licenseHash string) {
	t.Helper()

	_, err := f.catalog.AddLicenseType(testMainAdmin, &AddLicenseTypeRequest{
		LicenseHash: licenseHash,
		TermsURL:    "https://terms.example.com/standard.pdf",
	})
	require.NoError(t, err)
}

func (f *ledgerFixture) fund(t *testing.T, addr models.Address, amount uint64) {
	t.Helper()
	require.NoError(t, f.transfer.Deposit(addr, uint256.NewInt(amount), "test deposit", f.clock.Now()))
}

func buildTerms(fee, expiration uint64) *uint256.Int {
	return codec.Pack(map[codec.Field]*uint256.Int{
		codec.LicenseFee:     uint256.NewInt(fee),
		codec.ExpirationDate: uint256.NewInt(expiration),
	})
}

func buildReporting(frequency, grace, royaltyGrace uint64) *uint256.Int {
	return codec.Pack(map[codec.Field]*uint256.Int{
		codec.ReportingFrequency:   uint256.NewInt(frequency),
		codec.ReportingGracePeriod: uint256.NewInt(grace),
		codec.RoyaltyGracePeriod:   uint256.NewInt(royaltyGrace),
	})
}

// submitApplication signs and submits in one step, varying the salt so a key
// can hold several applications.
func (f *ledgerFixture) submitApplication(t *testing.T, priv *secp256k1.PrivateKey, addr models.Address, terms, reporting *uint256.Int, salt []byte) *models.LicenseAgreement {
	t.Helper()

	signature := signSubmission(priv, addr, testLicenseHash, terms, reporting, nil, salt)
	agreement, err := f.apps.SubmitApplication(addr, &SubmitApplicationRequest{
		LicenseHash:     testLicenseHash,
		AppliedTermsURL: "https://terms.example.com/applied.pdf",
		Terms:           terms,
		Reporting:       reporting,
		Signature:       signature,
		Salt:            salt,
	})
	require.NoError(t, err)
	return agreement
}

// approvedAgreement builds the common starting point for royalty tests: a
// funded licensee with a paid, approved agreement.
func (f *ledgerFixture) approvedAgreement(t *testing.T, frequency, grace, royaltyGrace uint64) (*secp256k1.PrivateKey, models.Address, string) {
	t.Helper()

	priv, addr := newTestKey(t)
	f.registerUsableLicensee(t, addr)
	f.addLicenseType(t, testLicenseHash)
	f.fund(t, addr, 1_000_000)

	terms := buildTerms(1000, f.clock.Unix()+365*24*3600)
	reporting := buildReporting(frequency, grace, royaltyGrace)
	agreement := f.submitApplication(t, priv, addr, terms, reporting, []byte("salt-0"))

	_, err := f.apps.PayLicenseFee(addr, agreement.ApplicationHash)
	require.NoError(t, err)
	_, err = f.apps.ApproveApplication(testMainAdmin, addr, agreement.ApplicationHash)
	require.NoError(t, err)

	return priv, addr, agreement.ApplicationHash
}

func testAddr(n byte) models.Address {
	return models.NormalizeAddress(fmt.Sprintf("0x%040x", n))
}
