package handler

import (
	"context"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"

	"filer-api/internal/config"
	"filer-api/internal/logger"
	"filer-api/internal/server"
)

var (
	handler     http.Handler
	mu          sync.Mutex
	initialized bool
)

// initHandler builds the HTTP handler once and reuses it across invocations.
// A failed initialization is retried on the next request.
//
// Note: cloud clients are not explicitly closed as Vercel's serverless
// runtime handles resource cleanup on function termination.
func initHandler() error {
	mu.Lock()
	defer mu.Unlock()

	if initialized {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger.Init(cfg.LogLevel, cfg.PrettyLogs())

	svcs, err := server.InitServices(context.Background(), cfg)
	if err != nil {
		return err
	}

	handler = server.CreateHandler(svcs, cfg)
	initialized = true

	log.Info().Msg("Handler initialized successfully")
	return nil
}

// Handler is the Vercel serverless function entry point
func Handler(w http.ResponseWriter, r *http.Request) {
	if err := initHandler(); err != nil {
		log.Error().Err(err).Msg("Handler initialization failed")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	handler.ServeHTTP(w, r)
}
