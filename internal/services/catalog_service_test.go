// internal/services/catalog_service_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/licenseforge/royalty-backend/internal/utils"
)

func TestCatalogLifecycle(t *testing.T) {
	db := newTestDB(t)
	registry := NewAccessRegistry(db, testMainAdmin)
	require.NoError(t, registry.Bootstrap())
	catalog := NewCatalogService(db, registry)

	req := &AddLicenseTypeRequest{
		LicenseHash: testLicenseHash,
		TermsURL:    "https://terms.example.com/standard.pdf",
		Description: "Standard commercial license",
		Tags:        []string{"commercial", "standard"},
	}

	// Admin gated.
	_, err := catalog.AddLicenseType(testAddr(0x01), req)
	assert.ErrorIs(t, err, ErrUnauthorized)

	created, err := catalog.AddLicenseType(testMainAdmin, req)
	require.NoError(t, err)
	assert.Equal(t, testMainAdmin, created.CreatedBy)
	assert.True(t, catalog.Exists(testLicenseHash))

	_, err = catalog.AddLicenseType(testMainAdmin, req)
	assert.ErrorIs(t, err, ErrLicenseExists)

	updated, err := catalog.UpdateLicenseType(testMainAdmin, testLicenseHash, &UpdateLicenseTypeRequest{
		TermsURL:    "https://terms.example.com/standard-v2.pdf",
		Description: "Standard commercial license v2",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://terms.example.com/standard-v2.pdf", updated.TermsURL)

	listed, total, err := catalog.ListLicenseTypes(utils.PaginationParams{Page: 1, Limit: 20, Sort: "created_at", Order: "desc"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Len(t, listed, 1)

	require.NoError(t, catalog.RemoveLicenseType(testMainAdmin, testLicenseHash))
	assert.False(t, catalog.Exists(testLicenseHash))
	assert.ErrorIs(t, catalog.RemoveLicenseType(testMainAdmin, testLicenseHash), ErrLicenseNotFound)
}

func TestLicenseeLifecycle(t *testing.T) {
	db := newTestDB(t)
	registry := NewAccessRegistry(db, testMainAdmin)
	require.NoError(t, registry.Bootstrap())
	licensees := NewLicenseeService(db, registry)

	addr := testAddr(0x42)

	// Admin gated and validated.
	_, err := licensees.RegisterLicensee(addr, addr, []byte("data"))
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = licensees.RegisterLicensee(testMainAdmin, "not-an-address", []byte("data"))
	assert.ErrorIs(t, err, ErrInvalidIdentity)
	_, err = licensees.RegisterLicensee(testMainAdmin, addr, nil)
	assert.ErrorIs(t, err, ErrEmptyLicenseeData)

	created, err := licensees.RegisterLicensee(testMainAdmin, addr, []byte(`{"name":"acme"}`))
	require.NoError(t, err)
	// New licensees start unusable until an admin flips them.
	assert.False(t, created.Usable)
	assert.False(t, licensees.IsUsable(addr))

	_, err = licensees.RegisterLicensee(testMainAdmin, addr, []byte("again"))
	assert.ErrorIs(t, err, ErrLicenseeExists)

	_, err = licensees.SetLicenseeUsable(testMainAdmin, addr, true)
	require.NoError(t, err)
	assert.True(t, licensees.IsUsable(addr))

	updated, err := licensees.UpdateLicenseeData(testMainAdmin, addr, []byte(`{"name":"acme v2"}`))
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"name":"acme v2"}`), updated.Data)

	// Owner can read their own record, strangers cannot.
	_, err = licensees.GetLicensee(addr, addr)
	require.NoError(t, err)
	_, err = licensees.GetLicensee(testAddr(0x43), addr)
	assert.ErrorIs(t, err, ErrNotOwnerOrAdmin)

	require.NoError(t, licensees.RemoveLicensee(testMainAdmin, addr))
	assert.False(t, licensees.IsUsable(addr))
	assert.ErrorIs(t, licensees.RemoveLicensee(testMainAdmin, addr), ErrLicenseeNotFound)
}
