package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barelle/storefront/internal/admin"
	"github.com/barelle/storefront/internal/auth"
	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/catalog"
	handler "github.com/barelle/storefront/internal/handler/http"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/pricing"
	"github.com/barelle/storefront/internal/user"
)

type MockCatalogService struct {
	mock.Mock
}

func (m *MockCatalogService) ListProducts(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetProductBySlug(ctx context.Context, slug string) (*catalog.Product, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) GetProductByID(ctx context.Context, id uuid.UUID) (*catalog.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) ListCategories(ctx context.Context) ([]catalog.Category, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Category), args.Error(1)
}

func (m *MockCatalogService) CreateProduct(ctx context.Context, input catalog.ProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) UpdateProduct(ctx context.Context, id uuid.UUID, input catalog.ProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockCatalogService) CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.Category, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

type MockCartService struct {
	mock.Mock
}

func (m *MockCartService) ListLines(ctx context.Context, owner cart.Owner) ([]cart.Line, error) {
	args := m.Called(ctx, owner)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cart.Line), args.Error(1)
}

func (m *MockCartService) AddLine(ctx context.Context, owner cart.Owner, productID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, owner, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) SetQuantity(ctx context.Context, owner cart.Owner, lineID uuid.UUID, quantity int) (*cart.Line, error) {
	args := m.Called(ctx, owner, lineID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Line), args.Error(1)
}

func (m *MockCartService) RemoveLine(ctx context.Context, owner cart.Owner, lineID uuid.UUID) error {
	args := m.Called(ctx, owner, lineID)
	return args.Error(0)
}

func (m *MockCartService) Clear(ctx context.Context, owner cart.Owner) error {
	args := m.Called(ctx, owner)
	return args.Error(0)
}

func (m *MockCartService) Merge(ctx context.Context, from, to cart.Owner) error {
	args := m.Called(ctx, from, to)
	return args.Error(0)
}

func (m *MockCartService) Summary(ctx context.Context, owner cart.Owner, class pricing.Classification) (*pricing.Quote, error) {
	args := m.Called(ctx, owner, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pricing.Quote), args.Error(1)
}

type MockOrderService struct {
	mock.Mock
}

func (m *MockOrderService) CreateOrder(ctx context.Context, owner cart.Owner, info order.CustomerInfo, class pricing.Classification) (*order.Order, error) {
	args := m.Called(ctx, owner, info, class)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	args := m.Called(ctx, number)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderService) ListForUser(ctx context.Context, userID uuid.UUID) ([]order.Order, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]order.Order), args.Error(1)
}

func (m *MockOrderService) UpdateStatus(ctx context.Context, id uuid.UUID, update order.StatusUpdate) (*order.Order, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Register(ctx context.Context, input user.RegisterInput) (*user.User, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetByID(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) UpdateProfile(ctx context.Context, id uuid.UUID, update user.ProfileUpdate) (*user.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) SetAccess(ctx context.Context, id uuid.UUID, update user.AccessUpdate) (*user.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) FindOrCreateExternal(ctx context.Context, identity user.ExternalIdentity) (*user.User, error) {
	args := m.Called(ctx, identity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockUserService) PromoteToAdmin(ctx context.Context, id uuid.UUID) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, provider string, creds auth.Credentials) (*auth.LoginResult, error) {
	args := m.Called(ctx, provider, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginResult), args.Error(1)
}

func (m *MockAuthService) IssueFor(u *user.User) (*auth.LoginResult, error) {
	args := m.Called(u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.LoginResult), args.Error(1)
}

func (m *MockAuthService) Authenticate(token string) (*auth.Identity, error) {
	args := m.Called(token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*auth.Identity), args.Error(1)
}

func (m *MockAuthService) Providers() []string {
	args := m.Called()
	return args.Get(0).([]string)
}

type MockAdminService struct {
	mock.Mock
}

func (m *MockAdminService) Stats(ctx context.Context) (*admin.Stats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.Stats), args.Error(1)
}

func (m *MockAdminService) ListOrders(ctx context.Context, filter admin.OrderFilter, page admin.Page) (*admin.PageResult[admin.OrderSummary], error) {
	args := m.Called(ctx, filter, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.PageResult[admin.OrderSummary]), args.Error(1)
}

func (m *MockAdminService) GetOrder(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockAdminService) UpdateOrderStatus(ctx context.Context, id uuid.UUID, update order.StatusUpdate) (*order.Order, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockAdminService) ListUsers(ctx context.Context, page admin.Page) (*admin.PageResult[admin.UserSummary], error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.PageResult[admin.UserSummary]), args.Error(1)
}

func (m *MockAdminService) UpdateUserAccess(ctx context.Context, id uuid.UUID, update user.AccessUpdate) (*user.User, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *MockAdminService) ListProducts(ctx context.Context, page admin.Page) (*admin.PageResult[admin.ProductSummary], error) {
	args := m.Called(ctx, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*admin.PageResult[admin.ProductSummary]), args.Error(1)
}

func (m *MockAdminService) CreateProduct(ctx context.Context, input catalog.ProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockAdminService) UpdateProduct(ctx context.Context, id uuid.UUID, input catalog.ProductInput) (*catalog.Product, error) {
	args := m.Called(ctx, id, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Product), args.Error(1)
}

func (m *MockAdminService) CreateCategory(ctx context.Context, input catalog.CategoryInput) (*catalog.Category, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Category), args.Error(1)
}

const testSessionKey = "0123456789abcdef0123456789abcdef"

// testServer wires NewRouter to mocks. Tokens "customer", "business",
// "support" and "admin" authenticate as the matching identities.
type testServer struct {
	router  http.Handler
	catalog *MockCatalogService
	carts   *MockCartService
	orders  *MockOrderService
	users   *MockUserService
	auth    *MockAuthService
	admin   *MockAdminService

	identities map[string]*auth.Identity
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	s := &testServer{
		catalog: new(MockCatalogService),
		carts:   new(MockCartService),
		orders:  new(MockOrderService),
		users:   new(MockUserService),
		auth:    new(MockAuthService),
		admin:   new(MockAdminService),
		identities: map[string]*auth.Identity{
			"customer": {UserID: uuid.Must(uuid.NewV4()), Role: user.RoleUser, CustomerType: pricing.B2C},
			"business": {UserID: uuid.Must(uuid.NewV4()), Role: user.RoleUser, CustomerType: pricing.B2B},
			"support":  {UserID: uuid.Must(uuid.NewV4()), Role: user.RoleSupport, CustomerType: pricing.B2C},
			"admin":    {UserID: uuid.Must(uuid.NewV4()), Role: user.RoleAdmin, CustomerType: pricing.B2C},
		},
	}
	for token, identity := range s.identities {
		s.auth.On("Authenticate", token).Return(identity, nil).Maybe()
	}
	s.auth.On("Authenticate", mock.Anything).Return(nil, auth.ErrInvalidToken).Maybe()

	s.router = handler.NewRouter(handler.Dependencies{
		Catalog:        s.catalog,
		Carts:          s.carts,
		Orders:         s.orders,
		Users:          s.users,
		Auth:           s.auth,
		Admin:          s.admin,
		Sessions:       handler.NewCartSessions([]byte(testSessionKey), false),
		Limiter:        handler.NewRateLimiter(100, 100),
		AllowedOrigins: []string{"http://localhost:5173"},
	})

	t.Cleanup(func() {
		s.catalog.AssertExpectations(t)
		s.carts.AssertExpectations(t)
		s.orders.AssertExpectations(t)
		s.users.AssertExpectations(t)
		s.auth.AssertExpectations(t)
		s.admin.AssertExpectations(t)
	})
	return s
}

func (s *testServer) identity(token string) *auth.Identity {
	return s.identities[token]
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}

func withCookies(cookies []*http.Cookie) requestOption {
	return func(r *http.Request) {
		for _, c := range cookies {
			r.AddCookie(c)
		}
	}
}

func (s *testServer) do(t *testing.T, method, target string, body any, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}

	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "Failed to decode response body")
	return v
}
