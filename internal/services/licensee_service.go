// internal/services/licensee_service.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// LicenseeService maintains the keyed set of licensee accounts: an address
// mapping to opaque registration data plus an admin-controlled usable flag.
// The application ledger only depends on IsUsable.
type LicenseeService struct {
	db       *gorm.DB
	registry *AccessRegistry
}

func NewLicenseeService(db *gorm.DB, registry *AccessRegistry) *LicenseeService {
	return &LicenseeService{
		db:       db,
		registry: registry,
	}
}

func (s *LicenseeService) RegisterLicensee(caller, addr models.Address, data []byte) (*models.Licensee, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if !addr.Valid() {
		return nil, ErrInvalidIdentity
	}
	if len(data) == 0 {
		return nil, ErrEmptyLicenseeData
	}

	var existing models.Licensee
	if err := s.db.Where("address = ?", addr).First(&existing).Error; err == nil {
		return nil, ErrLicenseeExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	licensee := &models.Licensee{
		Address:      addr,
		Data:         data,
		Usable:       false,
		RegisteredBy: caller,
	}
	if err := s.db.Create(licensee).Error; err != nil {
		return nil, fmt.Errorf("failed to register licensee: %w", err)
	}
	return licensee, nil
}

func (s *LicenseeService) UpdateLicenseeData(caller, addr models.Address, data []byte) (*models.Licensee, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if len(data) == 0 {
		return nil, ErrEmptyLicenseeData
	}

	licensee, err := s.getByAddress(addr)
	if err != nil {
		return nil, err
	}

	licensee.Data = data
	if err := s.db.Save(licensee).Error; err != nil {
		return nil, fmt.Errorf("failed to update licensee: %w", err)
	}
	return licensee, nil
}

// SetLicenseeUsable flips the usability flag, e.g. to blacklist an account.
func (s *LicenseeService) SetLicenseeUsable(caller, addr models.Address, usable bool) (*models.Licensee, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}

	licensee, err := s.getByAddress(addr)
	if err != nil {
		return nil, err
	}

	licensee.Usable = usable
	if err := s.db.Save(licensee).Error; err != nil {
		return nil, fmt.Errorf("failed to update licensee: %w", err)
	}
	return licensee, nil
}

func (s *LicenseeService) RemoveLicensee(caller, addr models.Address) error {
	if !s.registry.IsAdmin(caller) {
		return ErrUnauthorized
	}

	result := s.db.Unscoped().Where("address = ?", addr).Delete(&models.Licensee{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove licensee: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLicenseeNotFound
	}
	return nil
}

// IsUsable is the read contract the application ledger depends on.
func (s *LicenseeService) IsUsable(addr models.Address) bool {
	var count int64
	err := s.db.Model(&models.Licensee{}).
		Where("address = ? AND usable = ?", addr, true).
		Count(&count).Error
	if err != nil {
		return false
	}
	return count > 0
}

func (s *LicenseeService) GetLicensee(caller, addr models.Address) (*models.Licensee, error) {
	if caller != addr && !s.registry.IsAdmin(caller) {
		return nil, ErrNotOwnerOrAdmin
	}
	return s.getByAddress(addr)
}

func (s *LicenseeService) ListLicensees(caller models.Address, params utils.PaginationParams) ([]models.Licensee, int64, error) {
	if !s.registry.IsAdmin(caller) {
		return nil, 0, ErrUnauthorized
	}

	query := s.db.Model(&models.Licensee{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count licensees: %w", err)
	}

	allowedSortFields := []string{"created_at", "address"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licensees []models.Licensee
	if err := query.Find(&licensees).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch licensees: %w", err)
	}
	return licensees, total, nil
}

func (s *LicenseeService) getByAddress(addr models.Address) (*models.Licensee, error) {
	var licensee models.Licensee
	if err := s.db.Where("address = ?", addr).First(&licensee).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseeNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &licensee, nil
}
