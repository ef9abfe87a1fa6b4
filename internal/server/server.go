package server

import (
	"fmt"
	"net/http"
	"time"

	"safeform/internal/config"
	"safeform/internal/database"
	"safeform/internal/models"
	"safeform/internal/notify"
	"safeform/internal/storage"
)

type Server struct {
	cfg       *config.Config
	db        database.Service
	directory models.Directory
	storage   storage.AttachmentStore
	notifier  *notify.Notifier
}

func (s *Server) GetDB() database.Service {
	return s.db
}

func (s *Server) GetDirectory() models.Directory {
	return s.directory
}

func (s *Server) GetStorage() storage.AttachmentStore {
	return s.storage
}

func (s *Server) GetNotifier() *notify.Notifier {
	return s.notifier
}

func (s *Server) GetConfig() *config.Config {
	return s.cfg
}

// New wires the server's dependencies. store may be nil when attachment
// storage is not configured.
func New(cfg *config.Config, db database.Service, directory models.Directory, store storage.AttachmentStore) *Server {
	return &Server{
		cfg:       cfg,
		db:        db,
		directory: directory,
		storage:   store,
		notifier:  notify.New(db, directory),
	}
}

func NewServer(cfg *config.Config, db database.Service, directory models.Directory, store storage.AttachmentStore) *http.Server {
	s := New(cfg, db, directory, store)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}
