package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/gravitas-games/depot/internal/inventory"
	"github.com/gravitas-games/depot/internal/network"
	"github.com/gravitas-games/depot/pkg/models"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer
	maxMessageSize = 8192
)

// Connection represents a WebSocket connection to a client
type Connection struct {
	// WebSocket connection
	ws *websocket.Conn

	// Server reference
	server *Server

	// Player information (set after authentication)
	player *models.Player

	// Buffered channel for outbound messages
	send chan []byte

	// Is connection authenticated
	authenticated bool

	// Has the player joined (inventory loaded, session registered)
	joined bool

	closeOnce sync.Once
}

// NewConnection creates a new connection
func NewConnection(ws *websocket.Conn, server *Server) *Connection {
	return &Connection{
		ws:            ws,
		server:        server,
		send:          make(chan []byte, 256),
		authenticated: false,
	}
}

// Handle manages the connection lifecycle
func (c *Connection) Handle() {
	c.ws.SetReadLimit(maxMessageSize)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	// Start read and write pumps
	go c.writePump()
	c.readPump() // Blocking
}

// readPump pumps messages from the WebSocket connection to the server
func (c *Connection) readPump() {
	defer func() {
		c.Close()
	}()

	for {
		_, message, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error: %v", err)
			}
			break
		}

		var clientMsg network.ClientMessage
		if err := json.Unmarshal(message, &clientMsg); err != nil {
			log.Printf("Failed to parse client message: %v", err)
			c.SendError("invalid_message", "Failed to parse message")
			continue
		}

		c.handleMessage(&clientMsg)
	}
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Channel closed
				c.ws.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.ws.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Printf("WebSocket write error: %v", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.server.ctx.Done():
			// Server shutting down
			return
		}
	}
}

// handleMessage routes messages to appropriate handlers
func (c *Connection) handleMessage(msg *network.ClientMessage) {
	switch msg.Type {
	case network.MsgTypeJoin:
		c.handleJoin()

	case network.MsgTypeLeave:
		c.handleLeave()

	case network.MsgTypeMoveItem:
		c.handleMoveItem(msg.Payload)

	case network.MsgTypeUseItem:
		c.handleUseItem(msg.Payload)

	case network.MsgTypeDropItem:
		c.handleDropItem(msg.Payload)

	case network.MsgTypeGiveItem:
		c.handleGiveItem(msg.Payload)

	case network.MsgTypeOpenContainer:
		c.handleOpenContainer(msg.Payload)

	case network.MsgTypeCloseContainer:
		c.handleCloseContainer(msg.Payload)

	case network.MsgTypePing:
		c.handlePing()

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		c.SendError("unknown_message_type", "Unknown message type")
	}
}

// requireJoined guards the inventory handlers
func (c *Connection) requireJoined() bool {
	if !c.authenticated || c.player == nil || !c.joined {
		c.SendError("not_joined", "Join the session first")
		return false
	}
	return true
}

// handleJoin loads the player's inventory and registers them with the
// session. The welcome, the item catalog and the initial inventory
// snapshot go out in that order so the client can render immediately.
func (c *Connection) handleJoin() {
	if !c.authenticated || c.player == nil {
		c.SendError("not_authenticated", "Connection not authenticated")
		return
	}
	if c.joined {
		return
	}

	invID := c.player.InventoryID()
	snap, err := c.server.engine.LoadForPrincipal(context.Background(), c.player.ID, invID, c.server.playerTemplate())
	if err != nil {
		log.Printf("Failed to load inventory %s: %v", invID, err)
		c.SendError("join_failed", "Failed to load inventory")
		return
	}

	c.player.Connected = true
	c.player.ConnectedAt = time.Now()
	c.player.SessionID = c.server.session.ID

	if err := c.server.session.AddPlayer(c.player, c); err != nil {
		log.Printf("Failed to add player to session: %v", err)
		c.SendError("join_failed", "Failed to join session")
		return
	}
	c.joined = true

	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeWelcome,
		Payload: network.WelcomePayload{
			PlayerID:    c.player.ID,
			Username:    c.player.Username,
			CitizenID:   c.player.CitizenID,
			SessionID:   c.server.session.ID,
			InventoryID: invID,
		},
	})
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeCatalog,
		Payload: network.CatalogPayload{Items: c.server.catalog.All()},
	})
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeSyncInventory,
		Payload: network.SyncInventoryPayload{Container: snap},
	})

	c.server.session.BroadcastExcept(c, &network.ServerMessage{
		Type: network.MsgTypePlayerJoined,
		Payload: network.PlayerJoinedPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})

	log.Printf("Player %s joined session %s", c.player.Username, c.server.session.ID)
}

// handleLeave evicts the player's inventory (awaiting the final save) and
// removes them from the session
func (c *Connection) handleLeave() {
	if c.player == nil || !c.joined {
		return
	}
	c.joined = false

	if err := c.server.engine.Evict(context.Background(), c.player.ID); err != nil {
		log.Printf("Eviction save failed for %s: %v", c.player.ID, err)
	}
	c.server.session.RemovePlayer(c.player.ID)

	c.server.session.BroadcastMessage(&network.ServerMessage{
		Type: network.MsgTypePlayerLeft,
		Payload: network.PlayerLeftPayload{
			PlayerID: c.player.ID,
			Username: c.player.Username,
		},
	})
}

// handleMoveItem forwards a move request to the engine
func (c *Connection) handleMoveItem(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var move network.MoveItemPayload
	if err := json.Unmarshal(payload, &move); err != nil {
		log.Printf("Failed to parse move payload: %v", err)
		c.SendError("invalid_move", "Invalid move request")
		return
	}

	err := c.server.engine.Move(c.player.ID, inventory.MoveRequest{
		From:     move.From,
		To:       move.To,
		Quantity: move.Quantity,
	})
	if err != nil {
		log.Printf("Move rejected for %s: %v", c.player.ID, err)
		c.SendError(errorCode(err), "Cannot move that")
	}
}

// handleUseItem forwards a direct-use request to the engine
func (c *Connection) handleUseItem(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var use network.UseItemPayload
	if err := json.Unmarshal(payload, &use); err != nil {
		c.SendError("invalid_use", "Invalid use request")
		return
	}
	if use.Inventory == "" {
		use.Inventory = c.player.InventoryID()
	}

	if err := c.server.engine.Use(c.player.ID, use.Inventory, use.Slot); err != nil {
		log.Printf("Use rejected for %s: %v", c.player.ID, err)
		c.SendError(errorCode(err), "Cannot use that")
	}
}

// handleDropItem removes the stack and hands the fact to the drop effect
// dispatcher. The engine has no notion of the ground; what happens to the
// dropped stack is someone else's business.
func (c *Connection) handleDropItem(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var drop network.DropItemPayload
	if err := json.Unmarshal(payload, &drop); err != nil {
		c.SendError("invalid_drop", "Invalid drop request")
		return
	}
	if drop.Inventory == "" {
		drop.Inventory = c.player.InventoryID()
	}

	stack, err := c.server.engine.Remove(c.player.ID, drop.Inventory, drop.Slot, drop.Quantity)
	if err != nil {
		log.Printf("Drop rejected for %s: %v", c.player.ID, err)
		c.SendError(errorCode(err), "Cannot drop that")
		return
	}

	c.server.dispatchDrop(c.player, stack)
}

// handleGiveItem removes the stack from the giver and inserts it into the
// recipient's inventory as a trusted server-side grant. If the recipient
// cannot take it, the stack goes back.
func (c *Connection) handleGiveItem(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var give network.GiveItemPayload
	if err := json.Unmarshal(payload, &give); err != nil {
		c.SendError("invalid_give", "Invalid give request")
		return
	}
	if give.Inventory == "" {
		give.Inventory = c.player.InventoryID()
	}

	target, ok := c.server.session.GetPlayer(give.Target)
	if !ok {
		c.SendError("target_not_found", "That player is not here")
		return
	}

	stack, err := c.server.engine.Remove(c.player.ID, give.Inventory, give.Slot, give.Quantity)
	if err != nil {
		log.Printf("Give rejected for %s: %v", c.player.ID, err)
		c.SendError(errorCode(err), "Cannot give that")
		return
	}

	if err := c.server.engine.Add(target.InventoryID(), stack.Name, stack.Quantity, stack.Metadata); err != nil {
		// Recipient full or overweight: return the items to the giver.
		if backErr := c.server.engine.Add(give.Inventory, stack.Name, stack.Quantity, stack.Metadata); backErr != nil {
			log.Printf("Failed to return %s x%d to %s after rejected give: %v", stack.Name, stack.Quantity, c.player.ID, backErr)
		}
		c.SendError(errorCode(err), "They cannot carry that")
		return
	}

	log.Printf("Player %s gave %s x%d to %s", c.player.Username, stack.Name, stack.Quantity, target.Username)
}

// handleOpenContainer opens a shared container and starts syncing it to
// this viewer
func (c *Connection) handleOpenContainer(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var open network.OpenContainerPayload
	if err := json.Unmarshal(payload, &open); err != nil {
		c.SendError("invalid_open", "Invalid open request")
		return
	}

	tmpl, ok := c.server.sharedTemplate(open.ID)
	if !ok {
		c.SendError("invalid_container", "Unknown container kind")
		return
	}

	snap, err := c.server.engine.OpenShared(context.Background(), c.player.ID, open.ID, tmpl)
	if err != nil {
		log.Printf("Open rejected for %s: %v", c.player.ID, err)
		c.SendError(errorCode(err), "Cannot open that")
		return
	}

	c.server.session.Watch(c.player.ID, open.ID)
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypeSyncInventory,
		Payload: network.SyncInventoryPayload{Container: snap},
	})
}

// handleCloseContainer stops syncing a shared container to this viewer
func (c *Connection) handleCloseContainer(payload json.RawMessage) {
	if !c.requireJoined() {
		return
	}

	var cl network.CloseContainerPayload
	if err := json.Unmarshal(payload, &cl); err != nil {
		c.SendError("invalid_close", "Invalid close request")
		return
	}

	c.server.session.Unwatch(c.player.ID, cl.ID)
	c.server.engine.RevokeAccess(c.player.ID, cl.ID)
}

// handlePing handles ping requests
func (c *Connection) handlePing() {
	c.SendMessage(&network.ServerMessage{
		Type:    network.MsgTypePong,
		Payload: map[string]interface{}{"timestamp": time.Now().Unix()},
	})
}

// SendMessage sends a message to the client
func (c *Connection) SendMessage(msg *network.ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal message: %v", err)
		return
	}

	select {
	case c.send <- data:
	default:
		log.Printf("Send buffer full, dropping message")
	}
}

// SendError sends an error message to the client
func (c *Connection) SendError(code, message string) {
	c.SendMessage(&network.ServerMessage{
		Type: network.MsgTypeError,
		Payload: network.ErrorPayload{
			Code:    code,
			Message: message,
		},
	})
}

// Close closes the connection. Safe to call from both the read pump and
// server shutdown.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		// Evict the player's inventory if they had joined
		if c.authenticated && c.player != nil {
			c.handleLeave()
		}

		// Close send channel
		close(c.send)

		// Close WebSocket connection
		c.ws.Close()
	})
}

// errorCode maps engine rejections to wire error codes
func errorCode(err error) string {
	switch {
	case errors.Is(err, inventory.ErrContainerNotFound):
		return "container_not_found"
	case errors.Is(err, inventory.ErrInvalidSlot):
		return "invalid_slot"
	case errors.Is(err, inventory.ErrSlotEmpty):
		return "slot_empty"
	case errors.Is(err, inventory.ErrInsufficientQuantity):
		return "insufficient_quantity"
	case errors.Is(err, inventory.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, inventory.ErrAccessDenied):
		return "access_denied"
	case errors.Is(err, inventory.ErrItemUnknown):
		return "item_unknown"
	default:
		return "request_failed"
	}
}

// containerKind returns the id scheme prefix, e.g. "trunk" for "trunk-42"
func containerKind(id string) string {
	if i := strings.IndexByte(id, '-'); i > 0 {
		return id[:i]
	}
	return ""
}
