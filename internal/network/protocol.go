package network

import (
	"encoding/json"

	"github.com/gravitas-games/depot/internal/catalog"
	"github.com/gravitas-games/depot/internal/inventory"
)

// Message types - Client → Server
const (
	MsgTypeJoin           = "join"
	MsgTypeLeave          = "leave"
	MsgTypeMoveItem       = "move_item"
	MsgTypeUseItem        = "use_item"
	MsgTypeDropItem       = "drop_item"
	MsgTypeGiveItem       = "give_item"
	MsgTypeOpenContainer  = "open_container"
	MsgTypeCloseContainer = "close_container"
	MsgTypePing           = "ping"
)

// Message types - Server → Client
const (
	MsgTypeWelcome       = "welcome"
	MsgTypeCatalog       = "catalog"
	MsgTypeSyncInventory = "sync_inventory"
	MsgTypePlayerJoined  = "player_joined"
	MsgTypePlayerLeft    = "player_left"
	MsgTypeError         = "error"
	MsgTypePong          = "pong"
)

// ClientMessage represents any message from client to server
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ServerMessage represents any message from server to client
type ServerMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// --- Client Message Payloads ---

// MoveItemPayload asks to move a stack (or part of it) between slots,
// possibly across containers. Quantity 0 means the whole stack.
type MoveItemPayload struct {
	From     inventory.SlotRef `json:"from"`
	To       inventory.SlotRef `json:"to"`
	Quantity int               `json:"quantity,omitempty"`
}

// UseItemPayload asks to use the item in a slot.
type UseItemPayload struct {
	Inventory string `json:"inventory"`
	Slot      int    `json:"slot"`
}

// DropItemPayload asks to drop items from a slot onto the ground.
// Quantity 0 means the whole stack.
type DropItemPayload struct {
	Inventory string `json:"inventory"`
	Slot      int    `json:"slot"`
	Quantity  int    `json:"quantity,omitempty"`
}

// GiveItemPayload asks to hand items from a slot to another player.
type GiveItemPayload struct {
	Inventory string `json:"inventory"`
	Slot      int    `json:"slot"`
	Quantity  int    `json:"quantity,omitempty"`
	Target    string `json:"target"` // recipient player id
}

// OpenContainerPayload asks to open a secondary container (trunk, stash).
// The slot/weight template is resolved server-side from the id scheme;
// clients only name the container.
type OpenContainerPayload struct {
	ID string `json:"id"`
}

// CloseContainerPayload tells the server a viewer closed a container.
type CloseContainerPayload struct {
	ID string `json:"id"`
}

// --- Server Message Payloads ---

// WelcomePayload is sent to client after successful connection
type WelcomePayload struct {
	PlayerID    string `json:"player_id"`
	Username    string `json:"username"`
	CitizenID   string `json:"citizen_id"`
	SessionID   string `json:"session_id"`
	InventoryID string `json:"inventory_id"`
}

// CatalogPayload pushes the static item definitions once on join.
type CatalogPayload struct {
	Items []catalog.Item `json:"items"`
}

// SyncInventoryPayload carries the full authoritative snapshot of a
// container. The snapshot is the source of truth; clients replace, never
// merge.
type SyncInventoryPayload struct {
	Container inventory.Snapshot `json:"container"`
}

// PlayerJoinedPayload notifies clients when a player joins
type PlayerJoinedPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// PlayerLeftPayload notifies clients when a player leaves
type PlayerLeftPayload struct {
	PlayerID string `json:"player_id"`
	Username string `json:"username"`
}

// ErrorPayload contains error information
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
