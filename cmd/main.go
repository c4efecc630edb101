package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/talktera/talktera-scheduling-service/internal/config"
	"github.com/talktera/talktera-scheduling-service/internal/di"
)

func main() {
	config.LoadEnv()
	cfg := config.New()

	di.EnsureTopicExists(cfg.KafkaBroker, cfg.KafkaTopic)
	server, cleanup := di.HTTPSetup(cfg)
	defer cleanup()

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve HTTP server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Graceful shutdown failed: %v", err)
	}
}
