package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/Lunexa-AI/right-line-sub002/internal/config"
	"github.com/Lunexa-AI/right-line-sub002/internal/database"
)

// Server exposes a read-only status surface over persisted ingestion runs
type Server struct {
	runs   database.RunStore
	config config.Config
}

// New builds the HTTP server around the run store
func New(cfg config.Config, runs database.RunStore) *http.Server {
	server := Server{
		runs:   runs,
		config: cfg,
	}

	return &http.Server{
		Addr:         fmt.Sprintf(":%v", cfg.Port),
		Handler:      server.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}
