package models

import "time"

// Player represents a connected principal
type Player struct {
	// From JWT claims
	ID          string `json:"id"`           // Converted from int64 user_id
	Username    string `json:"username"`     // JWT claim
	Email       string `json:"email"`        // JWT claim
	CitizenID   string `json:"citizen_id"`   // JWT claim: persistent character id
	Permissions int64  `json:"permissions"`  // JWT claim: bitwise permission flags
	Activated   int64  `json:"activated"`    // JWT claim: activation timestamp or ban status
	AuthMethod  string `json:"auth_method"`  // JWT claim: "password" or "oauth"

	// Connection state
	Connected   bool      `json:"connected"`
	ConnectedAt time.Time `json:"connected_at"`
	LastSeen    time.Time `json:"last_seen"`

	// Session state
	SessionID string `json:"session_id"`
}

// InventoryID returns the persistent container id for this player's
// personal inventory, keyed by character rather than connection so it
// survives reconnects.
func (p *Player) InventoryID() string {
	return "player-" + p.CitizenID
}

// IsActive checks if the player account is activated and not banned
func (p *Player) IsActive() bool {
	// activated > 0 means activated
	// activated == 0 means not activated
	// activated == -1 means banned
	return p.Activated > 0
}

// IsBanned checks if the player is banned
func (p *Player) IsBanned() bool {
	return p.Activated == -1
}

// IsConnected checks if the player is currently connected
func (p *Player) IsConnected() bool {
	return p.Connected
}
