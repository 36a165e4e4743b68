package user

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofrs/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"

	"github.com/barelle/storefront/internal/pricing"
)

const minPasswordLength = 8

var (
	ErrWeakPassword          = errors.New("password must be at least 8 characters")
	ErrInvalidEmail          = errors.New("email is required")
	ErrInvalidRole           = errors.New("unknown role")
	ErrInvalidCustomerType   = errors.New("unknown customer type")
	ErrCompanyInfoRequired   = errors.New("business customers need a company name and tax id")
	ErrCannotUpdateAdminUser = errors.New("admin accounts cannot be changed through the API")
)

type Service interface {
	Register(ctx context.Context, input RegisterInput) (*User, error)
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error)
	SetAccess(ctx context.Context, id uuid.UUID, update AccessUpdate) (*User, error)
	FindOrCreateExternal(ctx context.Context, identity ExternalIdentity) (*User, error)
	PromoteToAdmin(ctx context.Context, id uuid.UUID) (*User, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) Register(ctx context.Context, input RegisterInput) (*User, error) {
	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrWeakPassword
	}
	class := input.CustomerType
	if class == "" {
		class = pricing.B2C
	}
	if !class.Valid() {
		return nil, ErrInvalidCustomerType
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error().Err(err).Msg("service: failed to hash password")
		return nil, fmt.Errorf("service: failed to hash password: %w", err)
	}

	u := &User{
		Email:           email,
		PasswordHash:    string(hash),
		AuthProvider:    ProviderLocal,
		FirstName:       strings.TrimSpace(input.FirstName),
		LastName:        strings.TrimSpace(input.LastName),
		Phone:           strings.TrimSpace(input.Phone),
		Role:            RoleUser,
		CustomerType:    class,
		CompanyName:     strings.TrimSpace(input.CompanyName),
		TaxID:           strings.TrimSpace(input.TaxID),
		CompanyAddress:  strings.TrimSpace(input.CompanyAddress),
		CompanyCity:     strings.TrimSpace(input.CompanyCity),
		CompanyDistrict: strings.TrimSpace(input.CompanyDistrict),
		IsActive:        true,
	}
	if err := checkCompanyInfo(u); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Str("email", email).Msg("service: registration with existing email")
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create user")
		return nil, fmt.Errorf("service: failed to save user: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Stringer("customer_type", u.CustomerType).Msg("service: user registered")
	return u, nil
}

func (s *service) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to get user by id")
		return nil, fmt.Errorf("service: failed to get user by id '%s': %w", id, err)
	}
	return u, nil
}

func (s *service) GetByEmail(ctx context.Context, email string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Msg("service: failed to get user by email")
		return nil, fmt.Errorf("service: failed to get user by email: %w", err)
	}
	return u, nil
}

func (s *service) UpdateProfile(ctx context.Context, id uuid.UUID, update ProfileUpdate) (*User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	setTrimmed(&u.FirstName, update.FirstName)
	setTrimmed(&u.LastName, update.LastName)
	setTrimmed(&u.Phone, update.Phone)
	setTrimmed(&u.CompanyName, update.CompanyName)
	setTrimmed(&u.TaxID, update.TaxID)
	setTrimmed(&u.CompanyAddress, update.CompanyAddress)
	setTrimmed(&u.CompanyCity, update.CompanyCity)
	setTrimmed(&u.CompanyDistrict, update.CompanyDistrict)
	if update.CustomerType != nil {
		if !update.CustomerType.Valid() {
			return nil, ErrInvalidCustomerType
		}
		u.CustomerType = *update.CustomerType
	}
	if err := checkCompanyInfo(u); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, u); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update profile")
		return nil, fmt.Errorf("service: failed to update profile '%s': %w", id, err)
	}
	return u, nil
}

// SetAccess changes role and active flag. Admin accounts are never changed
// here.
func (s *service) SetAccess(ctx context.Context, id uuid.UUID, update AccessUpdate) (*User, error) {
	if update.Role != nil && !update.Role.Valid() {
		return nil, ErrInvalidRole
	}

	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if u.Role == RoleAdmin {
		log.Warn().Stringer("user_id", id).Msg("service: attempt to change admin access")
		return nil, ErrCannotUpdateAdminUser
	}

	if update.Role != nil {
		u.Role = *update.Role
	}
	if update.IsActive != nil {
		u.IsActive = *update.IsActive
	}

	if err := s.repo.Update(ctx, u); err != nil {
		log.Error().Err(err).Stringer("user_id", id).Msg("service: failed to update access")
		return nil, fmt.Errorf("service: failed to update access '%s': %w", id, err)
	}

	log.Info().Stringer("user_id", id).Stringer("role", u.Role).Bool("active", u.IsActive).Msg("service: user access updated")
	return u, nil
}

// PromoteToAdmin is the operator path used by the CLI; it bypasses the
// SetAccess guard.
func (s *service) PromoteToAdmin(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	u.Role = RoleAdmin
	u.IsActive = true
	if err := s.repo.Update(ctx, u); err != nil {
		return nil, fmt.Errorf("service: failed to promote user '%s': %w", id, err)
	}
	log.Info().Stringer("user_id", id).Msg("service: user promoted to admin")
	return u, nil
}

func (s *service) FindOrCreateExternal(ctx context.Context, identity ExternalIdentity) (*User, error) {
	u, err := s.repo.GetByProviderSubject(ctx, identity.Provider, identity.Subject)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, ErrNotFound) {
		log.Error().Err(err).Str("provider", identity.Provider).Msg("service: failed to look up external identity")
		return nil, fmt.Errorf("service: failed to look up external identity: %w", err)
	}

	email := normalizeEmail(identity.Email)
	if email == "" {
		return nil, ErrInvalidEmail
	}
	subject := identity.Subject
	u = &User{
		Email:           email,
		AuthProvider:    identity.Provider,
		ProviderSubject: &subject,
		FirstName:       strings.TrimSpace(identity.FirstName),
		LastName:        strings.TrimSpace(identity.LastName),
		Role:            RoleUser,
		CustomerType:    pricing.B2C,
		IsActive:        true,
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, ErrEmailExists) {
			log.Warn().Str("provider", identity.Provider).Msg("service: external login email belongs to another account")
			return nil, ErrEmailExists
		}
		log.Error().Err(err).Msg("service: failed to create external user")
		return nil, fmt.Errorf("service: failed to create external user: %w", err)
	}

	log.Info().Stringer("user_id", u.ID).Str("provider", identity.Provider).Msg("service: external user created")
	return u, nil
}

func checkCompanyInfo(u *User) error {
	if u.CustomerType == pricing.B2B && (u.CompanyName == "" || u.TaxID == "") {
		return ErrCompanyInfoRequired
	}
	return nil
}

func setTrimmed(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
