package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"github.com/ctrlix/bookkeeper/internal/api/handlers"
	"github.com/ctrlix/bookkeeper/internal/api/middleware"
	"github.com/ctrlix/bookkeeper/internal/extract"
	"github.com/ctrlix/bookkeeper/internal/logger"
	"github.com/ctrlix/bookkeeper/internal/sheetsync"
	"github.com/ctrlix/bookkeeper/internal/store/filestore"
)

func main() {
	_ = godotenv.Load()

	var (
		port    = flag.String("port", "8080", "HTTP server port")
		dataDir = flag.String("data", os.Getenv("BOOKKEEPER_DATA"), "data directory (or set BOOKKEEPER_DATA env)")
	)
	flag.Parse()

	log := logger.New()

	if *dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to resolve home directory")
		}
		*dataDir = home + "/.bookkeeper"
	}

	st, err := filestore.Open(*dataDir)
	if err != nil {
		log.Fatal().Err(err).Str("dir", *dataDir).Msg("Failed to open data directory")
	}

	remote := sheetsync.NewClient(st.Endpoint)
	syncSvc := sheetsync.NewService(st, remote, log)
	defer syncSvc.Close()

	handler := handlers.NewHandler(st, syncSvc, extract.NewGeminiExtractor(), log)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.CORS)
	r.Mount("/", handler.Routes())

	server := &http.Server{
		Addr:         ":" + *port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Info().Str("port", *port).Str("data", *dataDir).Msg("Starting bookkeeper API")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Forced shutdown")
	}
}
