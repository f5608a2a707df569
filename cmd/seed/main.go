// Command seed provisions an admin account and a starter catalog. Intended
// for development and fresh deployments; safe to re-run, existing records
// are left alone.
package main

import (
	"context"
	"flag"
	"log"

	"libreria/application/services"
	"libreria/domain"
	"libreria/infrastructure/config"
	"libreria/infrastructure/di"

	pkgerrors "libreria/pkg/errors"

	"go.uber.org/zap"
)

func main() {
	var (
		adminEmail    = flag.String("admin-email", "admin@libreria.local", "admin account email")
		adminPassword = flag.String("admin-password", "", "admin account password (required)")
		resetAdmins   = flag.Bool("reset-admins", false, "remove existing admin accounts first")
		withCatalog   = flag.Bool("catalog", true, "seed the sample catalog")
	)
	flag.Parse()

	if *adminPassword == "" {
		log.Fatal("-admin-password is required")
	}

	ctx := context.Background()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	logger := container.Logger

	if *resetAdmins {
		removed, err := container.Users.RemoveByRole(ctx, domain.RoleAdmin)
		if err != nil {
			logger.Fatal("admin reset failed", zap.Error(err))
		}
		logger.Info("admin accounts removed", zap.Int("count", removed))
	}

	admin, err := container.Users.Register(ctx, services.RegisterUserInput{
		NationalID: "00000000A",
		FirstName:  "Admin",
		LastName:   "Libreria",
		Email:      *adminEmail,
		Password:   *adminPassword,
		Role:       domain.RoleAdmin,
	})
	switch {
	case pkgerrors.IsConflict(err):
		logger.Info("admin account already present", zap.String("email", *adminEmail))
	case err != nil:
		logger.Fatal("admin registration failed", zap.Error(err))
	default:
		logger.Info("admin account created", zap.String("userId", admin.ID))
	}

	if *withCatalog {
		for _, b := range sampleBooks() {
			created, err := container.Books.Add(ctx, b)
			if pkgerrors.IsConflict(err) {
				logger.Info("book already present", zap.String("isbn", b.ISBN))
				continue
			}
			if err != nil {
				logger.Fatal("catalog seed failed", zap.String("isbn", b.ISBN), zap.Error(err))
			}
			logger.Info("book created", zap.String("bookId", created.ID), zap.String("title", created.Title))
		}
	}

	logger.Info("seed complete")
}

func sampleBooks() []domain.Book {
	return []domain.Book{
		{ISBN: "9788437604947", Title: "Cien años de soledad", Authors: "Gabriel García Márquez", Price: 21.90, Stock: 12},
		{ISBN: "9788420412146", Title: "La sombra del viento", Authors: "Carlos Ruiz Zafón", Price: 19.50, Stock: 8},
		{ISBN: "9788490626582", Title: "Don Quijote de la Mancha", Authors: "Miguel de Cervantes", Price: 24.00, Stock: 5},
		{ISBN: "9788408172177", Title: "Patria", Authors: "Fernando Aramburu", Price: 22.90, Stock: 10},
	}
}
