// Package dashboard serves the synced tab list over HTTP.
//
// It is the read/delete surface of the shared store: list tabs grouped by
// device, filter by device, and delete a single tab. Changes made by other
// devices show up on the next request; there is no push channel.
package dashboard

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/tabsync/tabsync/internal/turso/schema"
)

// Store is the part of the tab store the dashboard reads and deletes from.
type Store interface {
	ListAll(ctx context.Context) ([]*schema.TabRecord, error)
	ListByDevice(ctx context.Context, device string) ([]*schema.TabRecord, error)
	DeleteByID(ctx context.Context, id int64) (bool, error)
	CountByDevice(ctx context.Context) (map[string]int, error)
}

// Server serves the tab list API.
type Server struct {
	addr     string
	listener net.Listener
	server   *http.Server
	router   chi.Router

	store  Store
	device string
	status func() any

	wg     sync.WaitGroup
	logger *log.Logger
}

// Config holds server configuration
type Config struct {
	// Addr to listen on (default: 127.0.0.1:8787). Port 0 picks a free port.
	Addr string

	// Device is this machine's name, marked in responses as "self".
	Device string

	// Status, when set, backs GET /api/status (e.g. the daemon's run history).
	Status func() any

	// Logger for server activity (default: stderr logger)
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Addr:   "127.0.0.1:8787",
		Logger: log.Default(),
	}
}

// NewServer creates a dashboard server over store.
func NewServer(store Store, config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Logger == nil {
		config.Logger = log.Default()
	}
	if config.Addr == "" {
		config.Addr = DefaultConfig().Addr
	}

	s := &Server{
		addr:   config.Addr,
		store:  store,
		device: config.Device,
		status: config.Status,
		logger: config.Logger,
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: s.logger, NoColor: true}))
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/tabs", s.handleListTabs)
		r.Delete("/tabs/{id}", s.handleDeleteTab)
		r.Get("/devices", s.handleDevices)
		r.Get("/status", s.handleStatus)
	})
	return r
}

// Handler returns the HTTP handler, for embedding or tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins serving in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	s.server = &http.Server{
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("Dashboard listening on http://%s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("Server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the server
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}
	s.logger.Println("Stopping dashboard server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	s.wg.Wait()

	s.logger.Println("Dashboard server stopped")
	return nil
}

// GetAddr returns the server's listening address
func (s *Server) GetAddr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}
