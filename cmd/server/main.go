package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"graph-ontology-api/internal/api"
	"graph-ontology-api/internal/config"
	"graph-ontology-api/internal/db"
	"graph-ontology-api/internal/export"
	"graph-ontology-api/internal/inference"
	"graph-ontology-api/internal/middleware"
	"graph-ontology-api/internal/repository"

	"github.com/rs/cors"
)

func main() {
	// Create context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load(".")
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup database connection
	conn, err := db.NewConnection(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer conn.Close()

	// Run migrations
	if err := db.RunMigrations(cfg.MigrationsPath, cfg.DB); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Create repositories
	graphRepo := repository.NewGraphRepository(conn)
	taxonomyRepo := repository.NewTaxonomyRepository(conn)
	ontologyRepo := repository.NewOntologyRepository(conn)
	tenantRepo := repository.NewTenantRepository(conn)

	// Inference engine and export service
	engine := inference.NewEngine(graphRepo, ontologyRepo)
	exportService := export.NewService(graphRepo)

	// Setup CORS
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
	})

	wrap := func(h http.Handler) http.Handler {
		return corsHandler.Handler(
			middleware.LoggingMiddleware(
				middleware.TenantMiddleware(
					middleware.DataLoaderMiddleware(graphRepo)(h),
				),
			),
		)
	}

	graphHandler := api.NewGraphHandler(graphRepo)
	http.Handle("/api/graph", wrap(graphHandler))
	http.Handle("/api/graph/", wrap(graphHandler))
	http.Handle("/api/catalog/", wrap(api.NewCatalogHandler(taxonomyRepo, ontologyRepo)))
	http.Handle("/api/ontology/", wrap(api.NewOntologyHandler(engine)))
	http.Handle("/api/tenants", wrap(api.NewTenantHandler(tenantRepo)))
	http.Handle("/api/tenants/", wrap(api.NewTenantHandler(tenantRepo)))
	http.Handle("/api/export/graph", wrap(export.NewHTTPHandler(exportService)))

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.ListenAddr,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting graph ontology server on %s", cfg.ListenAddr)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
