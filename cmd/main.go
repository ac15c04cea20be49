package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rajpalom13/move-meal-sub001/internal/config"
	"github.com/rajpalom13/move-meal-sub001/internal/server"
)

func main() {
	cfg := config.Load()

	srv, cleanup := server.NewServer(cfg)
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🍱 MoveMeal clustering service starting on %s", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log.Println("🛑 MoveMeal clustering service shutting down gracefully...")
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("shutdown error: %v", err)
		}
	case err := <-errCh:
		log.Fatalf("server failed: %v", err)
	}
}
