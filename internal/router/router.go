package router

import (
	"net/http"

	"github.com/donana/kitchen-api/internal/config"
	"github.com/donana/kitchen-api/internal/handler"
	mw "github.com/donana/kitchen-api/internal/middleware"
	"github.com/donana/kitchen-api/internal/service"
	"github.com/donana/kitchen-api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Services bundles what the routes are served from.
type Services struct {
	Catalog   *service.CatalogService
	Scheduler *service.SchedulerService
	Ledger    *service.LedgerService
	Projector *service.ProjectorService
}

// New creates a Chi router with every route wired up. Menu and order routes
// need any valid token; /admin routes need the ADMIN role.
func New(cfg *config.Config, svc Services, hub *ws.Hub, log logrus.FieldLogger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(mw.RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// Websocket auth travels in the query string.
	r.Get("/ws/kitchen", ws.ServeKitchen(hub, cfg.JWTSecret))

	catalogHandler := handler.NewCatalogHandler(svc.Catalog, svc.Ledger, log)
	orderHandler := handler.NewOrderHandler(svc.Scheduler, hub, log)
	purchaseHandler := handler.NewPurchaseHandler(svc.Ledger, svc.Projector, hub, log)

	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		catalogHandler.RegisterRoutes(r)
		orderHandler.RegisterRoutes(r)

		r.Route("/admin", func(r chi.Router) {
			r.Use(mw.RequireAdmin)
			catalogHandler.RegisterAdminRoutes(r)
			orderHandler.RegisterAdminRoutes(r)
			purchaseHandler.RegisterAdminRoutes(r)
		})
	})

	return r
}
