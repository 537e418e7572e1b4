// internal/services/access_registry_test.go
package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccessRegistryBootstrap(t *testing.T) {
	db := newTestDB(t)
	registry := NewAccessRegistry(db, testMainAdmin)

	require.NoError(t, registry.Bootstrap())
	// Idempotent across restarts.
	require.NoError(t, registry.Bootstrap())

	admins, err := registry.ListAdmins()
	require.NoError(t, err)
	require.Len(t, admins, 1)
	assert.True(t, admins[0].IsMain)
	assert.Equal(t, testMainAdmin, admins[0].Address)

	assert.True(t, registry.IsMainAdmin(testMainAdmin))
	assert.True(t, registry.IsAdmin(testMainAdmin))
}

func TestAccessRegistryAddRemoveAdmin(t *testing.T) {
	db := newTestDB(t)
	registry := NewAccessRegistry(db, testMainAdmin)
	require.NoError(t, registry.Bootstrap())

	second := testAddr(0x02)
	third := testAddr(0x03)

	// Only the main admin can grow the set.
	assert.ErrorIs(t, registry.AddAdmin(second, third), ErrNotMainAdmin)

	require.NoError(t, registry.AddAdmin(testMainAdmin, second))
	assert.True(t, registry.IsAdmin(second))
	assert.False(t, registry.IsMainAdmin(second))

	assert.ErrorIs(t, registry.AddAdmin(testMainAdmin, second), ErrAlreadyAdmin)

	// A secondary admin cannot remove anyone.
	assert.ErrorIs(t, registry.RemoveAdmin(second, second), ErrNotMainAdmin)

	// The main admin is irremovable.
	assert.ErrorIs(t, registry.RemoveAdmin(testMainAdmin, testMainAdmin), ErrInvalidIdentity)

	require.NoError(t, registry.RemoveAdmin(testMainAdmin, second))
	assert.False(t, registry.IsAdmin(second))

	assert.ErrorIs(t, registry.RemoveAdmin(testMainAdmin, second), ErrNotAdmin)
}
