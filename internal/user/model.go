package user

import (
	"strings"
	"time"

	"github.com/gofrs/uuid"

	"github.com/barelle/storefront/internal/pricing"
)

type Role string

const (
	RoleUser    Role = "user"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

func (r Role) String() string {
	return string(r)
}

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleSupport || r == RoleAdmin
}

// IsStaff reports whether the role may use the admin API.
func (r Role) IsStaff() bool {
	return r == RoleSupport || r == RoleAdmin
}

const ProviderLocal = "local"

type User struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	Email           string                 `json:"email" db:"email"`
	PasswordHash    string                 `json:"-" db:"password_hash"`
	AuthProvider    string                 `json:"authProvider" db:"auth_provider"`
	ProviderSubject *string                `json:"-" db:"provider_subject"`
	FirstName       string                 `json:"firstName" db:"first_name"`
	LastName        string                 `json:"lastName" db:"last_name"`
	Phone           string                 `json:"phone" db:"phone"`
	Role            Role                   `json:"role" db:"role"`
	CustomerType    pricing.Classification `json:"customerType" db:"customer_type"`
	CompanyName     string                 `json:"companyName" db:"company_name"`
	TaxID           string                 `json:"taxId" db:"tax_id"`
	CompanyAddress  string                 `json:"companyAddress" db:"company_address"`
	CompanyCity     string                 `json:"companyCity" db:"company_city"`
	CompanyDistrict string                 `json:"companyDistrict" db:"company_district"`
	IsActive        bool                   `json:"isActive" db:"is_active"`
	CreatedAt       time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time              `json:"updatedAt" db:"updated_at"`
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

type RegisterInput struct {
	Email           string
	Password        string
	FirstName       string
	LastName        string
	Phone           string
	CustomerType    pricing.Classification
	CompanyName     string
	TaxID           string
	CompanyAddress  string
	CompanyCity     string
	CompanyDistrict string
}

// ProfileUpdate changes the non-nil fields only.
type ProfileUpdate struct {
	FirstName       *string
	LastName        *string
	Phone           *string
	CustomerType    *pricing.Classification
	CompanyName     *string
	TaxID           *string
	CompanyAddress  *string
	CompanyCity     *string
	CompanyDistrict *string
}

type AccessUpdate struct {
	Role     *Role
	IsActive *bool
}

// ExternalIdentity is a user as vouched for by an OAuth provider.
type ExternalIdentity struct {
	Provider  string
	Subject   string
	Email     string
	FirstName string
	LastName  string
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
