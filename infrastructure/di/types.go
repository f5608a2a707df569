package di

import (
	"libreria/application/services"
	"libreria/infrastructure/config"
	"libreria/infrastructure/persistence/store"
	"libreria/interfaces/http/rest"
	"libreria/pkg/auth"
	"libreria/pkg/observability"

	"go.uber.org/zap"
)

// Container holds all application dependencies
type Container struct {
	Config   *config.Config
	Logger   *zap.Logger
	Store    store.ItemStore
	Users    *services.UserService
	Books    *services.BookService
	Carts    *services.CartService
	Invoices *services.InvoiceService
	Tokens   *auth.TokenManager
	Metrics  *observability.Metrics
	Tracer   *observability.Tracer
	Router   *rest.Router
}
