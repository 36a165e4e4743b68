package http_test

import (
	"net/http"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/barelle/storefront/internal/cart"
	"github.com/barelle/storefront/internal/catalog"
	handler "github.com/barelle/storefront/internal/handler/http"
	"github.com/barelle/storefront/internal/pricing"
)

func TestCartHandler_GuestSessionIsStable(t *testing.T) {
	s := newTestServer(t)
	productID := uuid.Must(uuid.NewV4())

	var guest cart.Owner
	s.carts.On("AddLine", mock.Anything, mock.MatchedBy(func(o cart.Owner) bool {
		return o.Kind == cart.OwnerSession && o.ID != ""
	}), productID, 2).
		Run(func(args mock.Arguments) { guest = args.Get(1).(cart.Owner) }).
		Return(&cart.Line{ID: uuid.Must(uuid.NewV4()), ProductID: productID, Quantity: 2}, nil).Once()

	rr := s.do(t, http.MethodPost, "/api/cart/add", handler.AddToCartRequest{ProductID: productID.String(), Quantity: 2})
	require.Equal(t, http.StatusCreated, rr.Code)
	cookies := rr.Result().Cookies()
	require.NotEmpty(t, cookies, "guest session cookie not set")

	s.carts.On("ListLines", mock.Anything, mock.MatchedBy(func(o cart.Owner) bool { return o == guest })).
		Return([]cart.Line{{ProductID: productID, Quantity: 2}}, nil).Once()

	rr = s.do(t, http.MethodGet, "/api/cart", nil, withCookies(cookies))
	require.Equal(t, http.StatusOK, rr.Code)
	lines := decodeBody[[]cart.Line](t, rr)
	require.Len(t, lines, 1)
	assert.Equal(t, 2, lines[0].Quantity)
}

func TestCartHandler_AuthenticatedUserOwnsCart(t *testing.T) {
	s := newTestServer(t)
	owner := cart.UserOwner(s.identity("customer").UserID)

	s.carts.On("ListLines", mock.Anything, owner).Return([]cart.Line{}, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/cart", nil, withToken("customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Empty(t, rr.Result().Cookies(), "signed-in users need no guest cookie")
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestCartHandler_AddLine_Validation(t *testing.T) {
	tests := []struct {
		name  string
		body  any
		field string
	}{
		{name: "zero_quantity", body: handler.AddToCartRequest{ProductID: uuid.Must(uuid.NewV4()).String(), Quantity: 0}, field: "quantity"},
		{name: "negative_quantity", body: handler.AddToCartRequest{ProductID: uuid.Must(uuid.NewV4()).String(), Quantity: -3}, field: "quantity"},
		{name: "bad_product_id", body: handler.AddToCartRequest{ProductID: "olive-oil", Quantity: 1}, field: "productId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)

			rr := s.do(t, http.MethodPost, "/api/cart/add", tt.body)
			require.Equal(t, http.StatusBadRequest, rr.Code)

			resp := decodeBody[handler.ValidationErrorResponse](t, rr)
			assert.Equal(t, "Validation failed", resp.Error)
			assert.Contains(t, resp.Details, tt.field)
		})
	}
}

func TestCartHandler_AddLine_UnknownField(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodPost, "/api/cart/add", `{"productId":"x","quantity":1,"price":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartHandler_AddLine_ProductNotFound(t *testing.T) {
	s := newTestServer(t)
	productID := uuid.Must(uuid.NewV4())
	s.carts.On("AddLine", mock.Anything, mock.Anything, productID, 1).Return(nil, catalog.ErrProductNotFound).Once()

	rr := s.do(t, http.MethodPost, "/api/cart/add", handler.AddToCartRequest{ProductID: productID.String(), Quantity: 1}, withToken("customer"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_SetQuantity(t *testing.T) {
	s := newTestServer(t)
	owner := cart.UserOwner(s.identity("customer").UserID)
	lineID := uuid.Must(uuid.NewV4())

	s.carts.On("SetQuantity", mock.Anything, owner, lineID, 5).Return(&cart.Line{ID: lineID, Quantity: 5}, nil).Once()

	rr := s.do(t, http.MethodPatch, "/api/cart/"+lineID.String(), handler.UpdateCartLineRequest{Quantity: 5}, withToken("customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 5, decodeBody[cart.Line](t, rr).Quantity)
}

func TestCartHandler_SetQuantity_ForeignLine(t *testing.T) {
	s := newTestServer(t)
	lineID := uuid.Must(uuid.NewV4())

	s.carts.On("SetQuantity", mock.Anything, mock.Anything, lineID, 1).Return(nil, cart.ErrLineNotFound).Once()

	rr := s.do(t, http.MethodPatch, "/api/cart/"+lineID.String(), handler.UpdateCartLineRequest{Quantity: 1}, withToken("customer"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCartHandler_RemoveAndClear(t *testing.T) {
	s := newTestServer(t)
	owner := cart.UserOwner(s.identity("customer").UserID)
	lineID := uuid.Must(uuid.NewV4())

	s.carts.On("RemoveLine", mock.Anything, owner, lineID).Return(nil).Once()
	s.carts.On("Clear", mock.Anything, owner).Return(nil).Once()

	rr := s.do(t, http.MethodDelete, "/api/cart/"+lineID.String(), nil, withToken("customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[handler.SuccessResponse](t, rr).Success)

	rr = s.do(t, http.MethodDelete, "/api/cart", nil, withToken("customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, decodeBody[handler.SuccessResponse](t, rr).Success)

	rr = s.do(t, http.MethodDelete, "/api/cart/not-a-uuid", nil, withToken("customer"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartHandler_Summary_Classification(t *testing.T) {
	tests := []struct {
		name  string
		query string
		token string
		want  pricing.Classification
	}{
		{name: "guest_defaults_to_retail", want: pricing.B2C},
		{name: "guest_may_preview_business", query: "?classification=b2b", want: pricing.B2B},
		{name: "guest_unknown_classification", query: "?classification=wholesale", want: pricing.B2C},
		{name: "business_account", token: "business", want: pricing.B2B},
		{name: "account_type_wins_over_query", token: "customer", query: "?classification=b2b", want: pricing.B2C},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			quote := pricing.DefaultPolicy.Quote(nil, tt.want)
			s.carts.On("Summary", mock.Anything, mock.Anything, tt.want).Return(&quote, nil).Once()

			var opts []requestOption
			if tt.token != "" {
				opts = append(opts, withToken(tt.token))
			}
			rr := s.do(t, http.MethodGet, "/api/cart/summary"+tt.query, nil, opts...)
			require.Equal(t, http.StatusOK, rr.Code)

			got := decodeBody[pricing.Quote](t, rr)
			assert.Equal(t, tt.want, got.Classification)
		})
	}
}

func TestCartHandler_Summary_DecimalsAreStrings(t *testing.T) {
	s := newTestServer(t)
	quote := pricing.Quote{
		Classification: pricing.B2C,
		Subtotal:       decimal.NewFromInt(20000),
		DeliveryFee:    decimal.NewFromInt(2500),
		Total:          decimal.NewFromInt(22500),
		MinimumOrder:   decimal.Zero,
		MeetsMinimum:   true,
	}
	s.carts.On("Summary", mock.Anything, mock.Anything, pricing.B2C).Return(&quote, nil).Once()

	rr := s.do(t, http.MethodGet, "/api/cart/summary", nil, withToken("customer"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"total":"22500"`)
}

func TestCartHandler_BadToken(t *testing.T) {
	s := newTestServer(t)

	rr := s.do(t, http.MethodGet, "/api/cart", nil, withToken("forged"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}
