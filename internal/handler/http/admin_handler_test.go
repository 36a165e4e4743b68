package http_test

import (
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barelle/storefront/internal/admin"
	"github.com/barelle/storefront/internal/catalog"
	handler "github.com/barelle/storefront/internal/handler/http"
	"github.com/barelle/storefront/internal/order"
	"github.com/barelle/storefront/internal/user"
)

func TestAdminHandler_Access(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		method   string
		target   string
		body     any
		wantCode int
	}{
		{name: "anonymous_stats", method: http.MethodGet, target: "/api/admin/stats", wantCode: http.StatusUnauthorized},
		{name: "customer_stats", token: "customer", method: http.MethodGet, target: "/api/admin/stats", wantCode: http.StatusForbidden},
		{name: "support_creates_product", token: "support", method: http.MethodPost, target: "/api/admin/products",
			body: handler.ProductRequest{Name: "Tea", Price: ptr(decimal.NewFromInt(10))}, wantCode: http.StatusForbidden},
		{name: "support_changes_user", token: "support", method: http.MethodPatch, target: "/api/admin/users/" + uuid.Must(uuid.NewV4()).String(),
			body: handler.UpdateUserAccessRequest{IsActive: ptr(false)}, wantCode: http.StatusForbidden},
		{name: "support_creates_category", token: "support", method: http.MethodPost, target: "/api/admin/categories",
			body: handler.CategoryRequest{Name: "Tea"}, wantCode: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			var opts []requestOption
			if tt.token != "" {
				opts = append(opts, withToken(tt.token))
			}
			rr := s.do(t, tt.method, tt.target, tt.body, opts...)
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestAdminHandler_Stats(t *testing.T) {
	s := newTestServer(t)
	stats := &admin.Stats{
		OrdersByStatus: map[order.Status]int{order.StatusPending: 2, order.StatusCancelled: 1},
		TotalOrders:    3,
		Revenue:        decimal.NewFromInt(45000),
		Users:          7,
		ActiveProducts: 12,
	}
	s.admin.On("Stats", mock.Anything).Return(stats, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/admin/stats", nil, withToken("support"))
	require.Equal(t, http.StatusOK, rr.Code)

	got := decodeBody[admin.Stats](t, rr)
	assert.Equal(t, 3, got.TotalOrders)
	assert.Equal(t, 2, got.OrdersByStatus[order.StatusPending])
	assert.True(t, stats.Revenue.Equal(got.Revenue))
}

func TestAdminHandler_ListOrders_ParsesFilter(t *testing.T) {
	s := newTestServer(t)
	want := admin.OrderFilter{
		Statuses: []order.Status{order.StatusPending, order.StatusShipped, order.StatusCancelled},
		Search:   "acme",
	}
	s.admin.On("ListOrders", mock.Anything, want, admin.Page{Page: 2, Limit: 50}).
		Return(&admin.PageResult[admin.OrderSummary]{Items: []admin.OrderSummary{}, Total: 0, Page: 2, Limit: 50}, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/admin/orders?page=2&limit=50&status=pending,shipped&status=cancelled&search=acme", nil, withToken("support"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 2, decodeBody[admin.PageResult[admin.OrderSummary]](t, rr).Page)
}

func TestAdminHandler_ListOrders_BadInput(t *testing.T) {
	t.Run("bad_page", func(t *testing.T) {
		s := newTestServer(t)
		rr := s.do(t, http.MethodGet, "/api/admin/orders?page=two", nil, withToken("admin"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("unknown_status", func(t *testing.T) {
		s := newTestServer(t)
		s.admin.On("ListOrders", mock.Anything, mock.Anything, mock.Anything).Return(nil, admin.ErrInvalidFilter).Once()

		rr := s.do(t, http.MethodGet, "/api/admin/orders?status=lost", nil, withToken("admin"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestAdminHandler_UpdateOrderStatus(t *testing.T) {
	id := uuid.Must(uuid.NewV4())
	confirmed := "confirmed"
	paid := "paid"

	tests := []struct {
		name     string
		body     handler.UpdateOrderStatusRequest
		err      error
		wantCode int
	}{
		{name: "both_fields", body: handler.UpdateOrderStatusRequest{OrderStatus: &confirmed, PaymentStatus: &paid}, wantCode: http.StatusOK},
		{name: "illegal_transition", body: handler.UpdateOrderStatusRequest{OrderStatus: &confirmed}, err: order.ErrInvalidStatusTransition, wantCode: http.StatusBadRequest},
		{name: "lost_race", body: handler.UpdateOrderStatusRequest{PaymentStatus: &paid}, err: order.ErrConcurrentUpdate, wantCode: http.StatusConflict},
		{name: "missing_order", body: handler.UpdateOrderStatusRequest{OrderStatus: &confirmed}, err: order.ErrOrderNotFound, wantCode: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			matcher := mock.MatchedBy(func(u order.StatusUpdate) bool {
				return (tt.body.OrderStatus == nil) == (u.Status == nil) &&
					(tt.body.PaymentStatus == nil) == (u.PaymentStatus == nil)
			})
			if tt.err != nil {
				s.admin.On("UpdateOrderStatus", mock.Anything, id, matcher).Return(nil, tt.err).Once()
			} else {
				s.admin.On("UpdateOrderStatus", mock.Anything, id, matcher).
					Return(&order.Order{ID: id, Status: order.StatusConfirmed, PaymentStatus: order.PaymentPaid}, nil).Once()
			}

			rr := s.do(t, http.MethodPatch, "/api/admin/orders/"+id.String()+"/status", tt.body, withToken("support"))
			assert.Equal(t, tt.wantCode, rr.Code)
		})
	}
}

func TestAdminHandler_UpdateOrderStatus_Validation(t *testing.T) {
	s := newTestServer(t)
	id := uuid.Must(uuid.NewV4()).String()
	lost := "lost"

	rr := s.do(t, http.MethodPatch, "/api/admin/orders/"+id+"/status", handler.UpdateOrderStatusRequest{}, withToken("support"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = s.do(t, http.MethodPatch, "/api/admin/orders/"+id+"/status", handler.UpdateOrderStatusRequest{OrderStatus: &lost}, withToken("support"))
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeBody[handler.ValidationErrorResponse](t, rr).Details, "orderStatus")
}

func TestAdminHandler_UpdateUserAccess(t *testing.T) {
	id := uuid.Must(uuid.NewV4())

	t.Run("ok", func(t *testing.T) {
		s := newTestServer(t)
		role := user.RoleSupport
		s.admin.On("UpdateUserAccess", mock.Anything, id, user.AccessUpdate{Role: &role}).
			Return(&user.User{ID: id, Role: user.RoleSupport}, nil).Once()

		rr := s.do(t, http.MethodPatch, "/api/admin/users/"+id.String(), handler.UpdateUserAccessRequest{Role: ptr("support")}, withToken("admin"))
		require.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, user.RoleSupport, decodeBody[user.User](t, rr).Role)
	})

	t.Run("admin_target", func(t *testing.T) {
		s := newTestServer(t)
		s.admin.On("UpdateUserAccess", mock.Anything, id, mock.Anything).Return(nil, user.ErrCannotUpdateAdminUser).Once()

		rr := s.do(t, http.MethodPatch, "/api/admin/users/"+id.String(), handler.UpdateUserAccessRequest{IsActive: ptr(false)}, withToken("admin"))
		assert.Equal(t, http.StatusForbidden, rr.Code)
	})
}

func TestAdminHandler_CreateProduct(t *testing.T) {
	s := newTestServer(t)
	categoryID := uuid.Must(uuid.NewV4())

	s.admin.On("CreateProduct", mock.Anything, mock.MatchedBy(func(in catalog.ProductInput) bool {
		return in.Name == "Olive oil 5L" &&
			in.Price.Equal(decimal.NewFromInt(1200)) &&
			in.B2BPrice.Valid && in.B2BPrice.Decimal.Equal(decimal.NewFromInt(900)) &&
			in.CategoryID != nil && *in.CategoryID == categoryID &&
			in.IsActive
	})).Return(&catalog.Product{ID: uuid.Must(uuid.NewV4()), Name: "Olive oil 5L", Slug: "olive-oil-5l"}, nil).Once()

	body := `{"categoryId":"` + categoryID.String() + `","name":"Olive oil 5L","price":"1200.00","b2bPrice":"900","stock":4}`
	rr := s.do(t, http.MethodPost, "/api/admin/products", body, withToken("admin"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "olive-oil-5l", decodeBody[catalog.Product](t, rr).Slug)
}

func TestAdminHandler_CreateProduct_Errors(t *testing.T) {
	t.Run("missing_price", func(t *testing.T) {
		s := newTestServer(t)
		rr := s.do(t, http.MethodPost, "/api/admin/products", `{"name":"Tea"}`, withToken("admin"))
		require.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, decodeBody[handler.ValidationErrorResponse](t, rr).Details, "price")
	})

	t.Run("business_price_above_retail", func(t *testing.T) {
		s := newTestServer(t)
		s.admin.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, catalog.ErrInvalidPrice).Once()

		rr := s.do(t, http.MethodPost, "/api/admin/products", `{"name":"Tea","price":"10","b2bPrice":"20"}`, withToken("admin"))
		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("slug_taken", func(t *testing.T) {
		s := newTestServer(t)
		s.admin.On("CreateProduct", mock.Anything, mock.Anything).Return(nil, catalog.ErrSlugExists).Once()

		rr := s.do(t, http.MethodPost, "/api/admin/products", `{"name":"Tea","price":"10"}`, withToken("admin"))
		assert.Equal(t, http.StatusConflict, rr.Code)
	})
}

func TestAdminHandler_UpdateProduct_Inactive(t *testing.T) {
	s := newTestServer(t)
	id := uuid.Must(uuid.NewV4())

	s.admin.On("UpdateProduct", mock.Anything, id, mock.MatchedBy(func(in catalog.ProductInput) bool {
		return !in.IsActive && !in.B2BPrice.Valid
	})).Return(&catalog.Product{ID: id, IsActive: false}, nil).Once()

	rr := s.do(t, http.MethodPut, "/api/admin/products/"+id.String(), `{"name":"Tea","price":"10","b2bPrice":null,"isActive":false}`, withToken("admin"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminHandler_ListProductsAndUsers(t *testing.T) {
	s := newTestServer(t)
	s.admin.On("ListProducts", mock.Anything, admin.Page{}).
		Return(&admin.PageResult[admin.ProductSummary]{Items: []admin.ProductSummary{{CategoryName: "Oils"}}, Total: 1, Page: 1, Limit: 20}, nil).Once()
	s.admin.On("ListUsers", mock.Anything, admin.Page{Limit: 5}).
		Return(&admin.PageResult[admin.UserSummary]{Items: []admin.UserSummary{}, Page: 1, Limit: 5}, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/admin/products", nil, withToken("support"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, decodeBody[admin.PageResult[admin.ProductSummary]](t, rr).Total)

	rr = s.do(t, http.MethodGet, "/api/admin/users?limit=5", nil, withToken("support"))
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAdminHandler_CreateCategory(t *testing.T) {
	s := newTestServer(t)
	s.admin.On("CreateCategory", mock.Anything, catalog.CategoryInput{Name: "Spices", SortOrder: 3}).
		Return(&catalog.Category{ID: uuid.Must(uuid.NewV4()), Name: "Spices", Slug: "spices"}, nil).Once()

	rr := s.do(t, http.MethodPost, "/api/admin/categories", handler.CategoryRequest{Name: "Spices", SortOrder: 3}, withToken("admin"))
	require.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "spices", decodeBody[catalog.Category](t, rr).Slug)
}

func ptr[T any](v T) *T {
	return &v
}
