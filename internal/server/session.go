package server

import (
	"log"
	"sync"
	"time"

	"github.com/gravitas-games/depot/internal/config"
	"github.com/gravitas-games/depot/internal/inventory"
	"github.com/gravitas-games/depot/internal/network"
	"github.com/gravitas-games/depot/pkg/models"
)

// Session tracks the connected players and which containers each of them
// is currently viewing. It is the presentation subscriber of the inventory
// engine: every committed mutation arrives here as a snapshot and is
// pushed to every viewer of that container.
type Session struct {
	ID        string
	CreatedAt time.Time

	// Player management
	players     map[string]*models.Player // playerID -> Player
	connections map[string]*Connection    // playerID -> Connection

	// Viewer index: containerID -> set of playerIDs with that container
	// open. A player always views their own container while connected.
	viewers map[string]map[string]bool

	mu sync.RWMutex

	// Configuration
	config *config.Config
}

// NewSession creates a new session
func NewSession(id string, cfg *config.Config) *Session {
	log.Printf("Creating session: %s", id)

	return &Session{
		ID:          id,
		CreatedAt:   time.Now(),
		players:     make(map[string]*models.Player),
		connections: make(map[string]*Connection),
		viewers:     make(map[string]map[string]bool),
		config:      cfg,
	}
}

// AddPlayer adds a player to the session and registers them as a viewer of
// their own container
func (s *Session) AddPlayer(player *models.Player, conn *Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.players[player.ID] = player
	s.connections[player.ID] = conn
	s.watchLocked(player.ID, player.InventoryID())

	log.Printf("Player %s (%s) joined session %s", player.Username, player.ID, s.ID)
	return nil
}

// RemovePlayer removes a player and clears all their viewer entries
func (s *Session) RemovePlayer(playerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if player, exists := s.players[playerID]; exists {
		log.Printf("Player %s (%s) left session %s", player.Username, playerID, s.ID)
		delete(s.players, playerID)
		delete(s.connections, playerID)
		for containerID, set := range s.viewers {
			delete(set, playerID)
			if len(set) == 0 {
				delete(s.viewers, containerID)
			}
		}
	}
}

// GetPlayer retrieves a player by ID
func (s *Session) GetPlayer(playerID string) (*models.Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	player, exists := s.players[playerID]
	return player, exists
}

// PlayerCount returns the number of connected players
func (s *Session) PlayerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.players)
}

// Watch registers a player as a viewer of a container
func (s *Session) Watch(playerID, containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchLocked(playerID, containerID)
}

func (s *Session) watchLocked(playerID, containerID string) {
	set, ok := s.viewers[containerID]
	if !ok {
		set = make(map[string]bool)
		s.viewers[containerID] = set
	}
	set[playerID] = true
}

// Unwatch removes a player's viewer entry for a container
func (s *Session) Unwatch(playerID, containerID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if set, ok := s.viewers[containerID]; ok {
		delete(set, playerID)
		if len(set) == 0 {
			delete(s.viewers, containerID)
		}
	}
}

// ContainerChanged implements inventory.Subscriber: the authoritative
// snapshot of a mutated container is pushed to every player currently
// viewing it.
func (s *Session) ContainerChanged(snap inventory.Snapshot) {
	msg := &network.ServerMessage{
		Type:    network.MsgTypeSyncInventory,
		Payload: network.SyncInventoryPayload{Container: snap},
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for playerID := range s.viewers[snap.ID] {
		if conn, ok := s.connections[playerID]; ok {
			conn.SendMessage(msg)
		}
	}
}

// BroadcastMessage sends a message to all connected players
func (s *Session) BroadcastMessage(msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		conn.SendMessage(msg)
	}
}

// BroadcastExcept sends a message to all players except the specified connection
func (s *Session) BroadcastExcept(exclude *Connection, msg *network.ServerMessage) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, conn := range s.connections {
		if conn != exclude {
			conn.SendMessage(msg)
		}
	}
}
