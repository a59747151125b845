package httpx

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordercart/internal/cart"
	"ordercart/internal/clients"
	"ordercart/internal/orders"
)

type stubStore struct {
	orders map[string]*orders.Order
}

func (s *stubStore) CreateOrder(_ context.Context, o *orders.Order) error {
	s.orders[o.ID] = o
	return nil
}

func (s *stubStore) GetOrder(_ context.Context, orderID, userID string) (*orders.Order, error) {
	o, ok := s.orders[orderID]
	if !ok || (userID != "" && o.UserID != userID) {
		return nil, orders.ErrOrderNotFound
	}
	return o, nil
}

func (s *stubStore) ListOrders(_ context.Context, _ string, _ orders.Filter, _, _ int) ([]orders.Summary, int, error) {
	return nil, 0, nil
}

func (s *stubStore) UpdateOrder(_ context.Context, orderID, userID string, mutate func(*orders.Order) error) (*orders.Order, error) {
	o, err := s.GetOrder(context.Background(), orderID, userID)
	if err != nil {
		return nil, err
	}
	if err := mutate(o); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *stubStore) Statistics(_ context.Context, _ string) (orders.Stats, error) {
	return orders.Stats{}, nil
}

type stubDirectory struct{}

func (stubDirectory) Resolve(_ context.Context, _ string) (clients.Product, error) {
	return clients.Product{}, clients.ErrProductNotFound
}

func (stubDirectory) AdjustStock(_ context.Context, _ string, _ int) error { return nil }

// stubAuth treats the bearer token as the user id.
type stubAuth struct{}

func (stubAuth) Validate(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", clients.ErrInvalidToken
	}
	return token, nil
}

type stubNotifier struct{}

func (stubNotifier) Send(_, _, _ string) {}

type stubGateway struct{}

func (stubGateway) Charge(_ context.Context, _ string, _ string, _ decimal.Decimal, _ map[string]any) (clients.ChargeResult, error) {
	return clients.ChargeResult{}, clients.ErrUnavailable
}

type stubPublisher struct{}

func (stubPublisher) Publish(_ string, _, _ []byte) {}

type stubClaims struct{}

func (stubClaims) Claim(_ context.Context, _ string) (bool, error) { return true, nil }
func (stubClaims) Record(_ context.Context, _, _ string)           {}
func (stubClaims) Release(_ context.Context, _ string)             {}

type stubCarts struct{}

func (stubCarts) Get(_ context.Context, _ cart.OwnerKey) (*cart.Cart, error) {
	return &cart.Cart{}, nil
}

func (stubCarts) Clear(_ context.Context, _ cart.OwnerKey) (*cart.Cart, error) {
	return &cart.Cart{}, nil
}

func newStatusRouter(t *testing.T, store *stubStore) (*chi.Mux, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	svc := orders.NewService(store, stubDirectory{}, stubAuth{}, stubNotifier{},
		stubGateway{}, stubPublisher{}, stubCarts{}, stubClaims{}, nil, "test")
	h := &OrdersHandler{Orders: svc, Auth: stubAuth{}, Redis: rdb}

	r := chi.NewRouter()
	h.Register(r)
	return r, mr
}

func getStatusAs(r http.Handler, user, orderID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/orders/"+orderID+"/status", nil)
	req.Header.Set("Authorization", "Bearer "+user)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestGetStatusScopedToOwner(t *testing.T) {
	store := &stubStore{orders: map[string]*orders.Order{
		"ord-1": {
			ID:            "ord-1",
			UserID:        "alice",
			Status:        orders.StatusPending,
			PaymentStatus: orders.PaymentPending,
		},
	}}
	router, mr := newStatusRouter(t, store)

	// owner poll populates the cache
	rec := getStatusAs(router, "alice", "ord-1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)
	_, err := mr.Get("order_status:alice:ord-1")
	require.NoError(t, err, "owner poll should populate the cache")

	// a different user must not be served the cached copy
	rec = getStatusAs(router, "bob", "ord-1")
	assert.Equal(t, http.StatusNotFound, rec.Code,
		"another user's cached status must not leak")

	// the owner keeps getting cache hits
	rec = getStatusAs(router, "alice", "ord-1")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetStatusServesFromCache(t *testing.T) {
	store := &stubStore{orders: map[string]*orders.Order{
		"ord-1": {
			ID:            "ord-1",
			UserID:        "alice",
			Status:        orders.StatusPending,
			PaymentStatus: orders.PaymentPending,
		},
	}}
	router, _ := newStatusRouter(t, store)

	rec := getStatusAs(router, "alice", "ord-1")
	require.Equal(t, http.StatusOK, rec.Code)

	// delete the row; the cached status keeps serving
	delete(store.orders, "ord-1")
	rec = getStatusAs(router, "alice", "ord-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"pending"`)
}

func TestParseFilter(t *testing.T) {
	t.Run("all params", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet,
			"/orders?status=shipped&payment_status=paid"+
				"&start_date=2026-01-01T00:00:00Z&end_date=2026-02-01T00:00:00Z"+
				"&min_amount=100.50&max_amount=2000", nil)
		f, err := parseFilter(req)
		require.NoError(t, err)

		require.NotNil(t, f.Status)
		assert.Equal(t, orders.StatusShipped, *f.Status)
		require.NotNil(t, f.PaymentStatus)
		assert.Equal(t, orders.PaymentPaid, *f.PaymentStatus)
		require.NotNil(t, f.CreatedFrom)
		assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), f.CreatedFrom.UTC())
		require.NotNil(t, f.CreatedTo)
		assert.Equal(t, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), f.CreatedTo.UTC())
		require.NotNil(t, f.MinTotal)
		assert.True(t, f.MinTotal.Equal(decimal.RequireFromString("100.50")))
		require.NotNil(t, f.MaxTotal)
		assert.True(t, f.MaxTotal.Equal(decimal.RequireFromString("2000")))
	})

	t.Run("empty query constrains nothing", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/orders", nil)
		f, err := parseFilter(req)
		require.NoError(t, err)
		assert.Equal(t, orders.Filter{}, f)
	})

	bad := map[string]string{
		"unknown status":         "status=teleported",
		"unknown payment status": "payment_status=iou",
		"malformed start date":   "start_date=yesterday",
		"malformed end date":     "end_date=2026-13-45",
		"malformed min amount":   "min_amount=lots",
		"malformed max amount":   "max_amount=1.2.3",
	}
	for name, query := range bad {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/orders?"+query, nil)
			_, err := parseFilter(req)
			assert.ErrorIs(t, err, orders.ErrInvalidRequest)
		})
	}
}
