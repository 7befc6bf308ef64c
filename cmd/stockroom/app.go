package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"gorm.io/gorm"

	"github.com/diewo77/stockroom/auth"
	"github.com/diewo77/stockroom/internal/handlers"
	"github.com/diewo77/stockroom/internal/identity"
	"github.com/diewo77/stockroom/internal/policy"
	"github.com/diewo77/stockroom/internal/services"
)

// RouterConfig holds everything the router needs.
type RouterConfig struct {
	Authenticator auth.Authenticator
	Guards        *policy.Guards

	ProductHandler  *handlers.ProductHandler
	ProjectHandler  *handlers.ProjectHandler
	CategoryHandler *handlers.CategoryHandler
	MeHandler       *handlers.MeHandler
	AdminHandler    *handlers.AdminHandler
	PageHandler     *handlers.PageHandler
}

// NewRouterConfig wires services, guards and handlers on db.
func NewRouterConfig(db *gorm.DB, authn auth.Authenticator, users *identity.UserStore, roles identity.Invalidator) *RouterConfig {
	guards := policy.NewGuards(db)
	products := services.NewProductService(db)
	return &RouterConfig{
		Authenticator:   authn,
		Guards:          guards,
		ProductHandler:  handlers.NewProductHandler(products),
		ProjectHandler:  handlers.NewProjectHandler(services.NewProjectService(db)),
		CategoryHandler: handlers.NewCategoryHandler(services.NewCategoryService(db)),
		MeHandler:       handlers.NewMeHandler(users, guards),
		AdminHandler:    handlers.NewAdminHandler(services.NewOwnershipService(db), guards, users, roles),
		PageHandler:     handlers.NewPageHandler(products),
	}
}

// NewRouter builds the HTTP handler. Every mutation of an existing row
// goes through its resource guard.
func NewRouter(rc *RouterConfig, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   corsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(auth.Middleware(rc.Authenticator))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })

	// ─────────────────────────────────────────────────────────────────────
	// Pages
	// ─────────────────────────────────────────────────────────────────────
	pages := rc.PageHandler
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/products", http.StatusSeeOther)
	})
	r.Get("/products", pages.Inventory)
	r.Get("/catalog", pages.Catalog)

	// ─────────────────────────────────────────────────────────────────────
	// API
	// ─────────────────────────────────────────────────────────────────────
	g := rc.Guards
	ph, pjh, ch := rc.ProductHandler, rc.ProjectHandler, rc.CategoryHandler

	r.Route("/api", func(api chi.Router) {
		api.Get("/catalog", ph.Public)

		api.Group(func(a chi.Router) {
			a.Use(auth.RequireAuth)

			a.Get("/me", rc.MeHandler.Me)
			a.Get("/me/permissions", rc.MeHandler.Permissions)

			a.Route("/products", func(r chi.Router) {
				r.Get("/", ph.List)
				r.Post("/", ph.Create)
				r.Get("/{id}", ph.Get)
				r.With(g.Product.Middleware("id")).Patch("/{id}", ph.Update)
				r.With(g.Product.Strict().Middleware("id")).Delete("/{id}", ph.Delete)
			})

			a.Route("/projects", func(r chi.Router) {
				r.Get("/", pjh.List)
				r.Post("/", pjh.Create)
				r.Get("/{id}", pjh.Get)
				r.With(g.Project.Middleware("id")).Patch("/{id}", pjh.Update)
				r.With(g.Project.Middleware("id")).Delete("/{id}", pjh.Delete)
				r.With(g.Project.Middleware("id")).Post("/{id}/products", pjh.AttachProduct)
				r.With(g.Project.Middleware("id")).Delete("/{id}/products/{productId}", pjh.DetachProduct)
			})

			a.Route("/categories", func(r chi.Router) {
				r.Get("/", ch.List)
				r.Post("/", ch.Create)
				r.Get("/{id}", ch.Get)
				r.With(g.Category.Middleware("id")).Patch("/{id}", ch.Update)
				r.With(g.Category.Middleware("id")).Delete("/{id}", ch.Delete)
			})

			a.Route("/admin", func(r chi.Router) {
				r.Use(auth.RequireAdmin)
				r.Get("/users", rc.AdminHandler.Users)
				r.Put("/users/{id}/role", rc.AdminHandler.SetRole)
				r.Put("/{kind}/{id}/owner", rc.AdminHandler.Transfer)
			})
		})
	})
	return r
}
