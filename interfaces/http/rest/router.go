package rest

import (
	"net/http"

	"libreria/application/services"
	"libreria/domain"
	"libreria/infrastructure/config"
	"libreria/interfaces/http/rest/handlers"
	"libreria/interfaces/http/rest/middleware"
	"libreria/pkg/auth"
	"libreria/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Router creates and configures the HTTP router
type Router struct {
	cfg      *config.Config
	users    *services.UserService
	books    *services.BookService
	carts    *services.CartService
	invoices *services.InvoiceService
	tokens   *auth.TokenManager
	tracer   *observability.Tracer
	logger   *zap.Logger
}

// NewRouter creates a new router instance
func NewRouter(
	cfg *config.Config,
	users *services.UserService,
	books *services.BookService,
	carts *services.CartService,
	invoices *services.InvoiceService,
	tokens *auth.TokenManager,
	tracer *observability.Tracer,
	logger *zap.Logger,
) *Router {
	return &Router{
		cfg:      cfg,
		users:    users,
		books:    books,
		carts:    carts,
		invoices: invoices,
		tokens:   tokens,
		tracer:   tracer,
		logger:   logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.logger))

	if rt.cfg.EnableTracing {
		router.Use(middleware.Tracing(rt.tracer))
	}

	if rt.cfg.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)

	authHandler := handlers.NewAuthHandler(rt.users, rt.tokens, rt.logger)
	bookHandler := handlers.NewBookHandler(rt.books, rt.logger)
	cartHandler := handlers.NewCartHandler(rt.carts, rt.logger)
	invoiceHandler := handlers.NewInvoiceHandler(rt.invoices, rt.logger)

	authenticate := middleware.Authenticate(rt.tokens, rt.logger)

	router.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", authHandler.Register)
		r.Post("/auth/login", authHandler.Login)
		r.Get("/books", bookHandler.List)
		r.Get("/books/{bookID}", bookHandler.Get)

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(authenticate)

			r.Get("/auth/me", authHandler.Me)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.Get)
				r.Delete("/", cartHandler.Clear)
				r.Post("/items", cartHandler.Add)
				r.Put("/items/{bookID}", cartHandler.SetQuantity)
				r.Post("/items/{bookID}/increment", cartHandler.Increment)
				r.Post("/items/{bookID}/decrement", cartHandler.Decrement)
				r.Delete("/items/{bookID}", cartHandler.Remove)
			})

			r.Route("/invoices", func(r chi.Router) {
				r.Post("/", invoiceHandler.Create)
				r.Get("/", invoiceHandler.List)
				r.Get("/{invoiceID}", invoiceHandler.Get)
			})
		})

		// Admin routes
		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Use(middleware.RequireRole(domain.RoleAdmin))

			r.Post("/books", bookHandler.Create)
			r.Put("/books/{bookID}", bookHandler.Update)
			r.Delete("/books/{bookID}", bookHandler.Delete)
		})
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
