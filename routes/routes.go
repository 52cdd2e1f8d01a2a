// routes/routes.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"gravecare-api/controllers"
	"gravecare-api/metrics"
	"gravecare-api/middleware"
)

// Deps are the collaborators the routes are wired to
type Deps struct {
	Users    *controllers.UserController
	Orders   *controllers.OrderController
	Health   *controllers.HealthController
	Verifier middleware.TokenVerifier
	Metrics  *metrics.Metrics
	Log      logrus.FieldLogger
}

// RegisterRoutes sets up all the routes for the application
func RegisterRoutes(router *mux.Router, d Deps) {
	router.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		router.Use(middleware.Metrics(d.Metrics))
		router.Handle("/metrics", promhttp.HandlerFor(d.Metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	}

	// Public routes
	router.HandleFunc("/register", d.Users.Register).Methods(http.MethodPost)
	router.HandleFunc("/login", d.Users.Login).Methods(http.MethodPost)
	if d.Health != nil {
		router.HandleFunc("/health", d.Health.Health).Methods(http.MethodGet)
	}

	// Protected routes
	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.AuthMiddleware(d.Verifier, d.Log))
	protected.HandleFunc("/me", d.Users.Me).Methods(http.MethodGet)
	protected.HandleFunc("/orders", d.Orders.CreateOrder).Methods(http.MethodPost)
	protected.HandleFunc("/orders", d.Orders.GetOrders).Methods(http.MethodGet)
}

// NewHandler builds the router and wraps it with CORS. CORS sits outside the
// router so preflight requests to unmatched methods are still answered.
func NewHandler(d Deps, corsOrigins []string) http.Handler {
	router := mux.NewRouter()
	RegisterRoutes(router, d)
	return middleware.CORS(corsOrigins)(router)
}
