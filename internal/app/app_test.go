package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"camera-kingdom/internal/config"
	"camera-kingdom/internal/identity"
	"camera-kingdom/internal/models"
	"camera-kingdom/internal/repository"
)

type testServer struct {
	t         *testing.T
	container *Container
	router    *gin.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	c, err := NewContainer(context.Background(), &config.Config{
		StoreDriver:    config.StoreMemory,
		JWTSecret:      "test-secret",
		CouponCacheTTL: time.Minute,
		RequestTimeout: time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Shutdown(context.Background()) })

	return &testServer{t: t, container: c, router: Router(c)}
}

func (s *testServer) token(p identity.Principal) string {
	s.t.Helper()
	tok, err := s.container.Verifier.NewToken(p, time.Hour)
	require.NoError(s.t, err)
	return tok
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(s.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) product(brand, model string, price float64, stock int) string {
	s.t.Helper()
	p := &models.Product{Brand: brand, Model: model, Price: price, Stock: stock, IsActive: true}
	require.NoError(s.t, s.container.Store.Products.Create(context.Background(), p))
	return p.ID
}

func (s *testServer) stock(id string) int {
	s.t.Helper()
	p, err := s.container.Store.Products.FindByID(context.Background(), id)
	require.NoError(s.t, err)
	return p.Stock
}

func checkoutForm() map[string]any {
	return map[string]any{
		"contact":  map[string]any{"name": "Ada Lovelace", "phone": "0501234567", "email": "ada@example.com"},
		"shipping": map[string]any{"street": "Herzl", "house": "12", "city": "Haifa", "delivery": "Standard"},
		"card": map[string]any{
			"cardholderName": "Ada Lovelace",
			"cardNumber":     "4580 1234 5678 9012",
			"expiration":     "12/30",
			"cvc":            "123",
		},
		"confirmed": true,
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCheckoutAndLifecycleOverHTTP(t *testing.T) {
	s := newTestServer(t)
	camera := s.product("Canon", "EOS R8", 200, 1)
	customer := s.token(identity.Principal{UserID: "u1", Name: "ada"})
	stranger := s.token(identity.Principal{UserID: "u2"})
	admin := s.token(identity.Principal{UserID: "ops", Admin: true})

	w := s.do(http.MethodPost, "/v1/cart/items/"+camera, customer, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodPost, "/v1/checkout", customer, checkoutForm())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	orderID := decode[map[string]string](t, w)["orderId"]
	require.NotEmpty(t, orderID)
	assert.Equal(t, 0, s.stock(camera))

	w = s.do(http.MethodGet, "/v1/orders/"+orderID, customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode[models.Order](t, w)
	assert.Equal(t, models.StatusPending, order.Status)
	assert.Equal(t, int64(1000), order.OrderNumber)
	assert.Equal(t, 200.0, order.Purchase.TotalPrice)
	assert.Equal(t, "**** **** **** 9012", order.Payment.CardNumber)

	w = s.do(http.MethodGet, "/v1/orders/"+orderID, stranger, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/v1/cart", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[map[string][]models.CartLine](t, w)["lines"])

	w = s.do(http.MethodPost, "/v1/admin/orders/"+orderID+"/refund", admin, nil)
	assert.Equal(t, http.StatusConflict, w.Code, "refund of a pending order")
	assert.Equal(t, 0, s.stock(camera))

	for _, step := range []string{"confirm", "process", "ship", "complete", "refund"} {
		w = s.do(http.MethodPost, "/v1/admin/orders/"+orderID+"/"+step, admin, nil)
		require.Equal(t, http.StatusOK, w.Code, "%s: %s", step, w.Body.String())
	}
	assert.Equal(t, 1, s.stock(camera))

	w = s.do(http.MethodGet, "/v1/me/orders", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	mirror := decode[[]models.Order](t, w)
	require.Len(t, mirror, 1)
	assert.Equal(t, models.StatusRefunded, mirror[0].Status)
	assert.Nil(t, mirror[0].Saga)

	w = s.do(http.MethodGet, "/v1/admin/orders?page=1&page_size=5&sort=orderNumber:asc", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["total"])
}

func TestCheckoutErrorsOverHTTP(t *testing.T) {
	s := newTestServer(t)
	camera := s.product("Nikon", "Z6", 300, 1)
	customer := s.token(identity.Principal{UserID: "u1"})
	rival := s.token(identity.Principal{UserID: "u2"})

	w := s.do(http.MethodPost, "/v1/checkout", customer, checkoutForm())
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cart", decode[map[string]any](t, w)["field"])

	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/cart/items/"+camera, customer, nil).Code)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/cart/items/"+camera, rival, nil).Code)

	form := checkoutForm()
	form["couponCode"] = "nope"
	w = s.do(http.MethodPost, "/v1/checkout", customer, form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "coupon", decode[map[string]any](t, w)["field"])

	form = checkoutForm()
	form["card"].(map[string]any)["cvc"] = "12"
	w = s.do(http.MethodPost, "/v1/checkout", customer, form)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "cvc", decode[map[string]any](t, w)["field"])

	require.Equal(t, http.StatusCreated, s.do(http.MethodPost, "/v1/checkout", rival, checkoutForm()).Code)

	w = s.do(http.MethodPost, "/v1/checkout", customer, checkoutForm())
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
	body := decode[map[string]any](t, w)
	assert.NotEmpty(t, body["conflicts"])
	assert.Equal(t, 0, s.stock(camera))

	w = s.do(http.MethodPost, "/v1/cart/prune", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	pruned := decode[map[string][]models.CartLine](t, w)
	assert.Empty(t, pruned["lines"])
	assert.Len(t, pruned["removed"], 1)
}

func TestCheckoutWithCoupon(t *testing.T) {
	s := newTestServer(t)
	coupons, ok := s.container.Store.Coupons.(*repository.MemoryCoupons)
	require.True(t, ok)
	coupons.Put(models.Coupon{Code: "SPRING10", DiscountPercent: 10})

	lens := s.product("Sigma", "35mm Art", 100, 5)
	customer := s.token(identity.Principal{UserID: "u1"})
	for range 2 {
		require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/v1/cart/items/"+lens, customer, nil).Code)
	}

	form := checkoutForm()
	form["couponCode"] = " spring10 "
	form["installments"] = 3
	w := s.do(http.MethodPost, "/v1/checkout", customer, form)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/v1/orders/"+decode[map[string]string](t, w)["orderId"], customer, nil)
	order := decode[models.Order](t, w)
	require.NotNil(t, order.Purchase.DiscountedPrice)
	assert.Equal(t, 180.0, *order.Purchase.DiscountedPrice)
	assert.Len(t, order.Purchase.Installments, 3)
	assert.Equal(t, 3, s.stock(lens))
}

func TestAuthAndAdminGuards(t *testing.T) {
	s := newTestServer(t)
	customer := s.token(identity.Principal{UserID: "u1"})

	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/cart", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, s.do(http.MethodGet, "/v1/cart", "garbage", nil).Code)
	assert.Equal(t, http.StatusForbidden, s.do(http.MethodGet, "/v1/admin/orders", customer, nil).Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/health", "", nil).Code)

	w := s.do(http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "camerakingdom_http_requests_total"))
}

func TestAdminCatalog(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(identity.Principal{UserID: "ops", Admin: true})

	w := s.do(http.MethodPost, "/v1/admin/products", admin, map[string]any{
		"brand": "Fujifilm", "model": "X100VI", "price": 1599, "stock": 4,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id := decode[models.Product](t, w).ID

	w = s.do(http.MethodGet, "/v1/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, w)["total"])

	require.Equal(t, http.StatusOK, s.do(http.MethodDelete, "/v1/admin/products/"+id, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/v1/products/"+id, "", nil).Code)

	w = s.do(http.MethodGet, "/v1/products", "", nil)
	assert.EqualValues(t, 0, decode[map[string]any](t, w)["total"], "list cache is invalidated")
}
