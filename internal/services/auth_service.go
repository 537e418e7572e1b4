// internal/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// AuthService issues tokens for the HTTP surface. Accounts are keyed by the
// same addresses the ledger uses, so a token's address is what ledger
// operations treat as the caller.
type AuthService struct {
	db         *gorm.DB
	registry   *AccessRegistry
	validator  *validator.Validate
	tokenTTL   int
	refreshTTL int
}

type RegisterRequest struct {
	Address  string `json:"address" validate:"required"`
	Password string `json:"password" validate:"required,min=8"`
}

type LoginRequest struct {
	Address  string `json:"address" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type AuthResponse struct {
	Account      *models.Account `json:"account"`
	Token        string          `json:"token"`
	RefreshToken string          `json:"refresh_token"`
}

func NewAuthService(db *gorm.DB, registry *AccessRegistry, tokenTTL, refreshTTL int) *AuthService {
	if tokenTTL <= 0 {
		tokenTTL = 24
	}
	if refreshTTL <= 0 {
		refreshTTL = tokenTTL * 7
	}
	return &AuthService{
		db:         db,
		registry:   registry,
		validator:  validator.New(),
		tokenTTL:   tokenTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	addr := models.NormalizeAddress(req.Address)
	if !addr.Valid() {
		return nil, ErrInvalidIdentity
	}

	var existing models.Account
	if err := s.db.Where("address = ?", addr).First(&existing).Error; err == nil {
		return nil, ErrAccountExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("database error: %w", err)
	}

	role := models.AccountRoleLicensee
	if s.registry.IsAdmin(addr) {
		role = models.AccountRoleAdmin
	}

	account := &models.Account{
		Address: addr,
		Role:    role,
	}
	if err := account.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.db.Create(account).Error; err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	return s.issueTokens(account)
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	addr := models.NormalizeAddress(req.Address)

	var account models.Account
	if err := s.db.Where("address = ?", addr).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	if err := account.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	// Admin status can change between logins, keep the role in sync.
	role := models.AccountRoleLicensee
	if s.registry.IsAdmin(account.Address) {
		role = models.AccountRoleAdmin
	}

	now := time.Now()
	account.Role = role
	account.LastLoginAt = &now
	if err := s.db.Save(&account).Error; err != nil {
		return nil, fmt.Errorf("failed to update account: %w", err)
	}

	return s.issueTokens(&account)
}

func (s *AuthService) RefreshToken(refreshToken string) (*AuthResponse, error) {
	accountID, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}

	return s.issueTokens(&account)
}

func (s *AuthService) GetAccount(accountID string) (*models.Account, error) {
	var account models.Account
	if err := s.db.Where("id = ?", accountID).First(&account).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &account, nil
}

func (s *AuthService) issueTokens(account *models.Account) (*AuthResponse, error) {
	token, err := utils.GenerateJWT(account.ID, string(account.Address), string(account.Role), s.tokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(account.ID, s.refreshTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		Account:      account,
		Token:        token,
		RefreshToken: refreshToken,
	}, nil
}
