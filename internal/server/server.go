package server

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/rajpalom13/move-meal-sub001/internal/auth"
	"github.com/rajpalom13/move-meal-sub001/internal/config"
	hrest "github.com/rajpalom13/move-meal-sub001/internal/handler/http"
	wshandler "github.com/rajpalom13/move-meal-sub001/internal/handler/ws"
	"github.com/rajpalom13/move-meal-sub001/internal/rate"
	"github.com/rajpalom13/move-meal-sub001/internal/repository"
	"github.com/rajpalom13/move-meal-sub001/internal/router"
	"github.com/rajpalom13/move-meal-sub001/internal/service"
	"github.com/rajpalom13/move-meal-sub001/pkg/cache"
	"github.com/rajpalom13/move-meal-sub001/pkg/id"
	"github.com/rajpalom13/move-meal-sub001/pkg/ws"
)

// NewServer wires the whole service and returns the HTTP server plus a
// cleanup func the caller runs on shutdown.
func NewServer(cfg config.Config) (*http.Server, func()) {
	// --- DB connection ---
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	dbpool, err := cfg.ConnectDB(ctx)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	// --- Snowflake ID generator ---
	sf, err := id.NewSnowflake(7)
	if err != nil {
		log.Fatalf("failed to init snowflake: %v", err)
	}

	// --- Redis ---
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPass,
		DB:       0,
	})
	codeCache := cache.NewCacheFromClient(rdb)

	// --- Auth ---
	verifier := auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience)
	authMW := auth.NewMiddleware(verifier)

	// --- Repos ---
	foodRepo := repository.NewFoodRepo(dbpool)
	rideRepo := repository.NewRideRepo(dbpool)
	deliveryRepo := repository.NewDeliveryRepo(dbpool)
	otpRepo := repository.NewOTPRepo(dbpool)

	// --- WS hub ---
	hub := ws.NewHub()
	stopHeartbeat := make(chan struct{})
	go hub.Heartbeat(cfg.HeartbeatInterval, stopHeartbeat)

	// Retire audit rows whose validity lapsed without a verify.
	go func() {
		ticker := time.NewTicker(10 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-stopHeartbeat:
				return
			case <-ticker.C:
				if n, err := otpRepo.ExpireStale(context.Background()); err != nil {
					log.Printf("OTP sweep failed: %v", err)
				} else if n > 0 {
					log.Printf("Expired %d stale OTP rows", n)
				}
			}
		}
	}()
	wsHandler := wshandler.NewWSHandler(hub, verifier)

	// --- Services ---
	limiter := rate.NewLimiter(codeCache, cfg.OTPWindow, cfg.OTPMaxPerWindow, cfg.OTPCooldown)
	otpSvc := service.NewOTPService(codeCache, otpRepo, limiter, sf, cfg.OTPTTL)

	var ranker service.Ranker
	if cfg.RecommendURL != "" {
		ranker = service.NewHTTPRanker(cfg.RecommendURL)
	}

	pricing := service.DeliveryPricing{BaseFee: cfg.DeliveryBaseFee, PerKm: cfg.DeliveryPerKm}
	foodSvc := service.NewFoodService(foodRepo, otpSvc, hub, sf, pricing)
	rideSvc := service.NewRideService(rideRepo, hub, sf, ranker)
	deliverySvc := service.NewDeliveryService(deliveryRepo, foodRepo, otpSvc, hub, sf)

	// --- Handlers ---
	foodHandler := hrest.NewFoodHandler(foodSvc)
	rideHandler := hrest.NewRideHandler(rideSvc)
	deliveryHandler := hrest.NewDeliveryHandler(deliverySvc)

	// --- HTTP routes ---
	r := chi.NewRouter()
	router.SetupRoutes(r, foodHandler, rideHandler, deliveryHandler, wsHandler, authMW, rdb)

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	cleanup := func() {
		close(stopHeartbeat)
		hub.Shutdown()
		dbpool.Close()
		if err := rdb.Close(); err != nil {
			log.Printf("redis close: %v", err)
		}
	}
	return srv, cleanup
}
