// internal/services/access_registry.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
)

// AccessRegistry answers the authorization predicate every other service
// consumes: is an address the main admin, an additional admin, or neither.
// The main admin is fixed at bootstrap; the additional set is unbounded and
// mutable by the main admin only.
type AccessRegistry struct {
	db        *gorm.DB
	mainAdmin models.Address
}

func NewAccessRegistry(db *gorm.DB, mainAdmin models.Address) *AccessRegistry {
	return &AccessRegistry{
		db:        db,
		mainAdmin: mainAdmin,
	}
}

// Bootstrap seeds the main admin row. Idempotent across restarts.
func (r *AccessRegistry) Bootstrap() error {
	if !r.mainAdmin.Valid() {
		return fmt.Errorf("main admin: %w", ErrInvalidIdentity)
	}

	var existing models.Admin
	err := r.db.Where("address = ?", r.mainAdmin).First(&existing).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("database error: %w", err)
	}

	admin := &models.Admin{
		Address: r.mainAdmin,
		IsMain:  true,
	}
	if err := r.db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to seed main admin: %w", err)
	}
	return nil
}

func (r *AccessRegistry) IsMainAdmin(addr models.Address) bool {
	return addr == r.mainAdmin
}

func (r *AccessRegistry) IsAdmin(addr models.Address) bool {
	if addr == r.mainAdmin {
		return true
	}

	var count int64
	if err := r.db.Model(&models.Admin{}).Where("address = ?", addr).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

func (r *AccessRegistry) AddAdmin(caller, addr models.Address) error {
	if !r.IsMainAdmin(caller) {
		return ErrNotMainAdmin
	}
	if !addr.Valid() {
		return ErrInvalidIdentity
	}
	if r.IsAdmin(addr) {
		return ErrAlreadyAdmin
	}

	admin := &models.Admin{
		Address: addr,
		AddedBy: caller,
	}
	if err := r.db.Create(admin).Error; err != nil {
		return fmt.Errorf("failed to add admin: %w", err)
	}
	return nil
}

func (r *AccessRegistry) RemoveAdmin(caller, addr models.Address) error {
	if !r.IsMainAdmin(caller) {
		return ErrNotMainAdmin
	}
	if !addr.Valid() {
		return ErrInvalidIdentity
	}
	if r.IsMainAdmin(addr) {
		return ErrInvalidIdentity
	}

	result := r.db.Unscoped().Where("address = ? AND is_main = ?", addr, false).Delete(&models.Admin{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove admin: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotAdmin
	}
	return nil
}

// ListAdmins returns the registry contents, main admin first.
func (r *AccessRegistry) ListAdmins() ([]models.Admin, error) {
	var admins []models.Admin
	if err := r.db.Order("is_main DESC, created_at ASC").Find(&admins).Error; err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	return admins, nil
}
