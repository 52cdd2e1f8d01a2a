package routes

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"gravecare-api/controllers"
	"gravecare-api/metrics"
	"gravecare-api/models"
	"gravecare-api/services"
	"gravecare-api/store"
	"gravecare-api/utils"
)

func newTestHandler(t *testing.T) (http.Handler, *store.MemoryOrderStore) {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	tokens := utils.NewTokenIssuer("secret", time.Hour)
	orders := store.NewMemoryOrderStore()
	h := NewHandler(Deps{
		Users:    controllers.NewUserController(services.NewCredentialService(store.NewMemoryUserStore(), tokens, bcrypt.MinCost, log)),
		Orders:   controllers.NewOrderController(services.NewOrderService(orders, nil, log)),
		Health:   &controllers.HealthController{Log: log},
		Verifier: tokens,
		Metrics:  metrics.New(),
		Log:      log,
	}, []string{"*"})
	return h, orders
}

func call(h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func register(t *testing.T, h http.Handler, email string) services.AuthResult {
	t.Helper()
	rec := call(h, http.MethodPost, "/register", "", `{"name":"Ani","email":"`+email+`","password":"pw"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var res services.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	return res
}

const orderBody = `{"lat":40.1,"lng":44.5,"name":"Ani","email":"a@x.com","phone":"+37491000000","address":"Yerevan"}`

func TestOrderLifecycle(t *testing.T) {
	h, orders := newTestHandler(t)
	a := register(t, h, "a@example.com")
	b := register(t, h, "b@example.com")

	rec := call(h, http.MethodPost, "/orders", a.Token, orderBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created services.SubmitResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, a.User.ID, created.Order.UserID.Hex())
	assert.Equal(t, 40.1, created.Order.Lat)
	assert.Equal(t, 44.5, created.Order.Lng)
	assert.Equal(t, "+37491000000", created.Order.Phone)

	require.Equal(t, http.StatusCreated, call(h, http.MethodPost, "/orders", b.Token, orderBody).Code)
	assert.Equal(t, 2, orders.Len())

	rec = call(h, http.MethodGet, "/orders", a.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, created.Order.ID, list[0].ID)

	rec = call(h, http.MethodGet, "/me", b.Token, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+b.User.ID+`","name":"Ani","email":"b@example.com"}`, rec.Body.String())
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	h, orders := newTestHandler(t)

	for _, path := range []string{"/orders", "/me"} {
		assert.Equal(t, http.StatusUnauthorized, call(h, http.MethodGet, path, "", "").Code, path)
		assert.Equal(t, http.StatusForbidden, call(h, http.MethodGet, path, "garbage", "").Code, path)
	}
	assert.Equal(t, http.StatusUnauthorized, call(h, http.MethodPost, "/orders", "", orderBody).Code)
	assert.Zero(t, orders.Len())
}

func TestLoginRoute(t *testing.T) {
	h, _ := newTestHandler(t)
	reg := register(t, h, "a@example.com")

	rec := call(h, http.MethodPost, "/login", "", `{"email":"a@example.com","password":"pw"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	var res services.AuthResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, reg.User, res.User)

	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/orders", res.Token, "").Code)
}

func TestHealthMetricsAndPreflight(t *testing.T) {
	h, _ := newTestHandler(t)

	assert.Equal(t, http.StatusOK, call(h, http.MethodGet, "/health", "", "").Code)
	call(h, http.MethodPost, "/orders", "", orderBody)

	rec := call(h, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `http_requests_total{method="POST",route="/orders",status="401"} 1`)

	req := httptest.NewRequest(http.MethodOptions, "/orders", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "https://app.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
}
