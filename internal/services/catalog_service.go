// internal/services/catalog_service.go
package services

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// CatalogService maintains the keyed set of license types: a hash of the
// legal terms mapping to the canonical terms document. Thin admin-gated CRUD;
// the application ledger only depends on Exists.
type CatalogService struct {
	db       *gorm.DB
	registry *AccessRegistry
}

type AddLicenseTypeRequest struct {
	LicenseHash string   `json:"license_hash" validate:"required"`
	TermsURL    string   `json:"terms_url" validate:"required,url"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

type UpdateLicenseTypeRequest struct {
	TermsURL    string   `json:"terms_url" validate:"required,url"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

func NewCatalogService(db *gorm.DB, registry *AccessRegistry) *CatalogService {
	return &CatalogService{
		db:       db,
		registry: registry,
	}
}

func (s *CatalogService) AddLicenseType(caller models.Address, req *AddLicenseTypeRequest) (*models.LicenseType, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}
	if req.LicenseHash == "" {
		return nil, ErrEmptyLicenseHash
	}

	var existing models.LicenseType
	if err := s.db.Where("license_hash = ?", req.LicenseHash).First(&existing).Error; err == nil {
		return nil, ErrLicenseExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	licenseType := &models.LicenseType{
		LicenseHash: req.LicenseHash,
		TermsURL:    req.TermsURL,
		Description: req.Description,
		Tags:        req.Tags,
		CreatedBy:   caller,
	}
	if err := s.db.Create(licenseType).Error; err != nil {
		return nil, fmt.Errorf("failed to create license type: %w", err)
	}
	return licenseType, nil
}

func (s *CatalogService) UpdateLicenseType(caller models.Address, licenseHash string, req *UpdateLicenseTypeRequest) (*models.LicenseType, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	if !s.registry.IsAdmin(caller) {
		return nil, ErrUnauthorized
	}

	var licenseType models.LicenseType
	if err := s.db.Where("license_hash = ?", licenseHash).First(&licenseType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	licenseType.TermsURL = req.TermsURL
	licenseType.Description = req.Description
	licenseType.Tags = req.Tags
	if err := s.db.Save(&licenseType).Error; err != nil {
		return nil, fmt.Errorf("failed to update license type: %w", err)
	}
	return &licenseType, nil
}

func (s *CatalogService) RemoveLicenseType(caller models.Address, licenseHash string) error {
	if !s.registry.IsAdmin(caller) {
		return ErrUnauthorized
	}
	if licenseHash == "" {
		return ErrEmptyLicenseHash
	}

	result := s.db.Unscoped().Where("license_hash = ?", licenseHash).Delete(&models.LicenseType{})
	if result.Error != nil {
		return fmt.Errorf("failed to remove license type: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLicenseNotFound
	}
	return nil
}

// Exists is the read contract the application ledger depends on.
func (s *CatalogService) Exists(licenseHash string) bool {
	var count int64
	if err := s.db.Model(&models.LicenseType{}).Where("license_hash = ?", licenseHash).Count(&count).Error; err != nil {
		return false
	}
	return count > 0
}

func (s *CatalogService) GetLicenseType(licenseHash string) (*models.LicenseType, error) {
	var licenseType models.LicenseType
	if err := s.db.Where("license_hash = ?", licenseHash).First(&licenseType).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrLicenseNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &licenseType, nil
}

func (s *CatalogService) ListLicenseTypes(params utils.PaginationParams) ([]models.LicenseType, int64, error) {
	query := s.db.Model(&models.LicenseType{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count license types: %w", err)
	}

	allowedSortFields := []string{"created_at", "license_hash"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var licenseTypes []models.LicenseType
	if err := query.Find(&licenseTypes).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch license types: %w", err)
	}
	return licenseTypes, total, nil
}
