package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/eve-tsu/eve-kasse/internal/config"
	"github.com/eve-tsu/eve-kasse/internal/database"
	"github.com/eve-tsu/eve-kasse/internal/eveapi"
	mW "github.com/eve-tsu/eve-kasse/internal/middleware"
	"github.com/eve-tsu/eve-kasse/internal/services"
	"github.com/eve-tsu/eve-kasse/internal/wallet"
)

func main() {
	config.Init()
	config.ApplyLogLevel()
	log := config.GetLogger()

	db := database.InitDatabase()
	defer database.CloseDB()
	if err := database.EnsureSchema(db); err != nil {
		log.Fatalf("Failed to prepare schema: %v", err)
	}

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	syncCfg := config.LoadSyncConfig()
	var cache eveapi.Cache
	if redisClient != nil {
		cache = eveapi.NewRedisCache(redisClient)
	}
	apiClient := eveapi.NewClient(syncCfg.BaseURL, cache, log)
	api := wallet.ClientAPI{Client: apiClient}

	scheduler := wallet.NewScheduler(db, api, log, wallet.Options{
		Period:   syncCfg.Period,
		Warmup:   syncCfg.Warmup,
		RowCount: syncCfg.RowCount,
		Debug:    syncCfg.Debug,
	})
	supervisor := wallet.NewSupervisor(scheduler.Run, log, syncCfg.Debug)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var workers sync.WaitGroup
	workers.Add(1)
	go func() {
		defer workers.Done()
		if err := supervisor.Run(ctx); err != nil {
			log.WithError(err).Error("wallet synchronization terminated")
		}
	}()

	authService := services.NewAuthService(db)
	keypairService := services.NewKeypairService(db, api)
	reportService := services.NewReportService(db)
	tagService := services.NewTagService(db)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)

		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/keypairs", keypairService.Announce)
			r.Get("/keypairs", keypairService.List)
			r.Delete("/keypairs/{keyID}", keypairService.Delete)

			r.Get("/wallet/journal", reportService.JournalEntries)
			r.Get("/wallet/transactions", reportService.Transactions)
			r.Get("/wallet/summary", reportService.Summary)

			r.Post("/wallet/tags", tagService.Create)
			r.Get("/wallet/tags", tagService.List)
			r.Delete("/wallet/tags/{tagID}", tagService.Delete)
			r.Put("/wallet/journal/{refID}/tag", tagService.AssignJournalTag)
			r.Put("/wallet/transactions/{transactionID}/tag", tagService.AssignTransactionTag)

			r.Post("/wallet/item-defaults", tagService.CreateItemDefault)
			r.Get("/wallet/item-defaults", tagService.ListItemDefaults)
			r.Delete("/wallet/item-defaults/{defaultID}", tagService.DeleteItemDefault)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Server shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	workers.Wait()
	log.Info("Server stopped")
}
