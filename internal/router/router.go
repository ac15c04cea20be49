package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/rajpalom13/move-meal-sub001/internal/auth"
	hrest "github.com/rajpalom13/move-meal-sub001/internal/handler/http"
	wshandler "github.com/rajpalom13/move-meal-sub001/internal/handler/ws"
)

// SetupRoutes configures the HTTP routes for the clustering service.
func SetupRoutes(
	r chi.Router,
	food *hrest.FoodHandler,
	ride *hrest.RideHandler,
	delivery *hrest.DeliveryHandler,
	wsHandler *wshandler.WSHandler,
	authMW *auth.Middleware,
	rdb redis.UniversalClient,
) chi.Router {
	// ---- Global Middleware ----
	r.Use(auth.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept",
			"Authorization",
			"Content-Type",
			"X-CSRF-Token",
			"X-Request-ID",
		},
		ExposedHeaders:   []string{"Link", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Use(auth.RateLimit(rdb, 100, time.Minute, 10*time.Minute, "global"))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	// WebSocket authenticates via token query param, not the bearer header.
	r.Get("/api/v1/ws", wsHandler.Handle)

	r.Route("/api/v1/food-clusters", func(r chi.Router) {
		r.Use(authMW.Require)

		r.Post("/", food.Create)
		r.Get("/", food.List)
		r.Get("/my", food.ListMine)
		r.Get("/nearby", food.Nearby)
		r.Get("/{id}", food.Get)
		r.Get("/{id}/delivery-quote", food.DeliveryQuote)
		r.Post("/{id}/join", food.Join)
		r.Post("/{id}/leave", food.Leave)
		r.Put("/{id}/order", food.UpdateOrder)
		r.Patch("/{id}/status", food.UpdateStatus)
		r.Post("/{id}/cancel", food.Cancel)
		r.Post("/{id}/verify-otp", food.VerifyOTP)
		r.Post("/{id}/resend-otp", food.ResendOTP)
	})

	r.Route("/api/v1/ride-clusters", func(r chi.Router) {
		r.Use(authMW.Require)

		r.Post("/", ride.Create)
		r.Get("/", ride.List)
		r.Get("/my", ride.ListMine)
		r.Get("/nearby", ride.Nearby)
		r.Get("/{id}", ride.Get)
		r.Post("/{id}/join", ride.Join)
		r.Post("/{id}/leave", ride.Leave)
		r.Put("/{id}/pickup", ride.UpdatePickup)
		r.Patch("/{id}/status", ride.UpdateStatus)
		r.Post("/{id}/cancel", ride.Cancel)
	})

	r.Route("/api/v1/deliveries", func(r chi.Router) {
		r.Use(authMW.Require)

		r.Post("/", delivery.Create)
		r.Get("/{id}", delivery.Get)
		r.Post("/{id}/start", delivery.Start)
		r.Post("/{id}/verify-otp", delivery.VerifyOTP)
		r.Post("/{id}/cancel", delivery.Cancel)
	})

	return r
}
