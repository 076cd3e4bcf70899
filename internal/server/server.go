package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"
	"github.com/gravitas-games/depot/internal/catalog"
	"github.com/gravitas-games/depot/internal/config"
	"github.com/gravitas-games/depot/internal/inventory"
	"github.com/gravitas-games/depot/internal/persistence"
	"github.com/gravitas-games/depot/pkg/models"
)

// Server is the WebSocket gateway in front of the inventory engine
type Server struct {
	config       *config.Config
	catalog      *catalog.Catalog
	session      *Session
	engine       *inventory.Engine
	store        persistence.Store
	writer       *persistence.Writer
	upgrader     websocket.Upgrader
	httpSrv      *http.Server
	jwtValidator *JWTValidator
	redis        *redis.Client

	// Connection tracking
	connections map[*Connection]bool
	connMu      sync.RWMutex

	// Shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new server instance around a loaded item catalog
func New(cfg *config.Config, cat *catalog.Catalog) (*Server, error) {
	log.Println("Initializing server...")

	ctx, cancel := context.WithCancel(context.Background())

	// Initialize Redis client (auth blacklist, and storage when selected)
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := redisClient.Ping(ctx).Err(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	log.Println("Connected to Redis")

	// Select the persistence backend
	var store persistence.Store
	switch cfg.Storage.Backend {
	case "redis":
		store = persistence.NewRedisStore(redisClient, cfg.Redis.ContainerPrefix)
	case "sqlite":
		sqliteStore, err := persistence.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		store = sqliteStore
	default:
		cancel()
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
	log.Printf("Using %s storage backend", cfg.Storage.Backend)

	writer := persistence.NewWriter(store, cfg.Storage.QueueSize)
	engine := inventory.NewEngine(inventory.NewDirectory(cat, store, writer))

	srv := &Server{
		config:      cfg,
		catalog:     cat,
		engine:      engine,
		store:       store,
		writer:      writer,
		connections: make(map[*Connection]bool),
		ctx:         ctx,
		cancel:      cancel,
		redis:       redisClient,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// TODO: Add proper origin checking in production
				return true
			},
		},
	}

	// Initialize JWT validator
	jwtValidator, err := NewJWTValidator(cfg, redisClient)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize JWT validator: %w", err)
	}
	srv.jwtValidator = jwtValidator

	// Initialize session and wire it up as the presentation subscriber
	srv.session = NewSession("main", cfg)
	engine.Subscribe(srv.session)

	log.Println("Server initialized successfully")
	return srv, nil
}

// Engine exposes the inventory engine for use-handler registration
func (s *Server) Engine() *inventory.Engine {
	return s.engine
}

// Start begins listening for connections
func (s *Server) Start(addr string) error {
	log.Printf("Starting WebSocket server on %s", addr)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Printf("WebSocket endpoint: ws://%s/ws", addr)
	log.Printf("Health endpoint: http://%s/health", addr)

	if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}

	return nil
}

// Shutdown gracefully stops the server. Every connected player is evicted
// (awaiting their final save) before storage is torn down.
func (s *Server) Shutdown() error {
	log.Println("Shutting down server...")

	// Cancel context to signal shutdown
	s.cancel()

	// Shutdown HTTP server with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if s.httpSrv != nil {
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			log.Printf("HTTP server shutdown error: %v", err)
		}
	}

	// Close all WebSocket connections; each joined player gets evicted
	// with an awaited final save
	s.connMu.Lock()
	conns := make([]*Connection, 0, len(s.connections))
	for conn := range s.connections {
		conns = append(conns, conn)
	}
	s.connections = make(map[*Connection]bool)
	s.connMu.Unlock()
	for _, conn := range conns {
		conn.Close()
	}

	// Stop the engine, then drain the async save queue
	s.engine.Close()
	s.writer.Close()

	if err := s.store.Close(); err != nil {
		log.Printf("Store close error: %v", err)
	}

	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			log.Printf("Redis close error: %v", err)
		}
	}

	log.Println("Server shutdown complete")
	return nil
}

// handleWebSocket handles WebSocket connection requests
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	log.Printf("New WebSocket connection request from %s", r.RemoteAddr)

	// Extract JWT token from header
	tokenString := extractTokenFromHeader(r)
	if tokenString == "" {
		log.Printf("Missing JWT token from %s", r.RemoteAddr)
		http.Error(w, "Missing authentication token", http.StatusUnauthorized)
		return
	}

	// Validate JWT token
	player, err := s.jwtValidator.ValidateToken(tokenString)
	if err != nil {
		log.Printf("Invalid JWT token from %s: %v", r.RemoteAddr, err)
		http.Error(w, fmt.Sprintf("Invalid token: %v", err), http.StatusUnauthorized)
		return
	}

	if s.session.PlayerCount() >= s.config.Session.MaxPlayers {
		http.Error(w, "Session full", http.StatusServiceUnavailable)
		return
	}

	log.Printf("Authenticated user: %s (%s) from %s", player.Username, player.ID, r.RemoteAddr)

	// Upgrade HTTP connection to WebSocket
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	// Create connection with authenticated player
	conn := NewConnection(ws, s)
	conn.player = player
	conn.authenticated = true

	// Register connection
	s.connMu.Lock()
	s.connections[conn] = true
	s.connMu.Unlock()

	log.Printf("WebSocket connection established: %s (%s)", player.Username, r.RemoteAddr)

	// Handle connection (blocking)
	conn.Handle()

	// Unregister connection when done
	s.connMu.Lock()
	delete(s.connections, conn)
	s.connMu.Unlock()

	log.Printf("WebSocket connection closed: %s (%s)", player.Username, r.RemoteAddr)
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","players":%d}`, s.session.PlayerCount())
}

// playerTemplate returns the container template for personal inventories
func (s *Server) playerTemplate() inventory.Template {
	return inventory.Template{
		Label:     "Player Inventory",
		Slots:     s.config.Inventory.PlayerSlots,
		MaxWeight: s.config.Inventory.PlayerMaxWeight,
	}
}

// sharedTemplate resolves a shared container id to its template by id
// scheme. Clients name containers; they never choose sizes.
func (s *Server) sharedTemplate(id string) (inventory.Template, bool) {
	switch containerKind(id) {
	case "trunk":
		return inventory.Template{
			Label:     "Trunk",
			Slots:     s.config.Inventory.TrunkSlots,
			MaxWeight: s.config.Inventory.TrunkMaxWeight,
		}, true
	case "stash":
		return inventory.Template{
			Label:     "Stash",
			Slots:     s.config.Inventory.StashSlots,
			MaxWeight: s.config.Inventory.StashMaxWeight,
		}, true
	default:
		return inventory.Template{}, false
	}
}

// dispatchDrop hands a removed stack to the drop effect dispatcher. The
// engine's part ended when the removal committed; spawning a ground
// entity belongs to the world layer.
func (s *Server) dispatchDrop(player *models.Player, stack inventory.ItemStack) {
	log.Printf("Player %s dropped %s x%d", player.Username, stack.Name, stack.Quantity)
}
