package handler

import (
	"encoding/json"
	"net/http"

	"fsanano/marketplace/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

type Handler struct {
	router   *chi.Mux
	root     http.Handler
	log      *zap.Logger
	purchase *service.PurchaseService
	catalog  *service.Catalog
}

func NewHandler(log *zap.Logger, purchase *service.PurchaseService, catalog *service.Catalog) *Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)
	router.Use(RequestLogger(log))
	router.Use(BrotliCompress)

	h := &Handler{
		router:   router,
		root:     otelhttp.NewHandler(router, "marketplace"),
		log:      log,
		purchase: purchase,
		catalog:  catalog,
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	h.router.Route("/v1", func(r chi.Router) {
		r.Get("/health", h.HealthCheck)
		r.Get("/items", h.ListItems)
		r.Get("/items/{itemID}", h.GetItem)

		// Endpoints acting on behalf of an authenticated caller.
		r.Group(func(r chi.Router) {
			r.Use(TrustedIdentity)
			r.Post("/items/{itemID}/purchase", h.PurchaseItem)
			r.Get("/orders/my", h.MyPurchases)
			r.Get("/orders/sales", h.MySales)
		})
	})
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.root.ServeHTTP(w, r)
}

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
