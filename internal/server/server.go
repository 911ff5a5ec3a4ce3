package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/teamline-chat/teamline/internal/server/store"
)

// Config holds the dev server configuration
type Config struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	DatabasePath string `toml:"database_path"`
	Debug        bool   `toml:"debug"`
}

// DefaultConfig returns the default server configuration
func DefaultConfig() *Config {
	return &Config{
		Host:         "0.0.0.0",
		Port:         8080,
		DatabasePath: "teamline.db",
	}
}

// Server is the loopback development server: the REST contract plus the
// WebSocket gateway the client core talks to. It is not the production
// fan-out service.
type Server struct {
	config   *Config
	hub      *Hub
	api      *API
	store    *store.Store
	upgrader websocket.Upgrader
	httpSrv  *http.Server
	log      zerolog.Logger
}

// New creates a new server instance
func New(config *Config, log zerolog.Logger) (*Server, error) {
	st, err := store.New(config.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	hub := NewHub(log)
	api := NewAPI(st, hub, log)

	return &Server{
		config: config,
		hub:    hub,
		api:    api,
		store:  st,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev server only
		},
		log: log.With().Str("component", "server").Logger(),
	}, nil
}

// Store exposes the backing store for seeding dev data
func (s *Server) Store() *store.Store {
	return s.store
}

// Run starts the hub and the HTTP listener, blocking until ctx is canceled
func (s *Server) Run(ctx context.Context) error {
	go s.hub.Run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/api/login", s.api.HandleLogin)
	mux.HandleFunc("/api/messages", s.api.HandleMessages)
	mux.HandleFunc("/api/messages/", s.api.HandleMessageByID)
	mux.HandleFunc("/api/users", s.api.HandleUsers)
	mux.HandleFunc("/api/conversations", s.api.HandleConversations)

	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpSrv = &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("listening")
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpSrv.Shutdown(shutCtx)
		s.store.Close()
		return nil
	}
}

// handleWebSocket upgrades the connection and starts the client pumps
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := NewClient(conn, s.hub, s.api, s.log)
	go client.WritePump()
	client.SendHello()
	go client.ReadPump()
}
