package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	JWT       JWTConfig       `yaml:"jwt"`
	Redis     RedisConfig     `yaml:"redis"`
	Storage   StorageConfig   `yaml:"storage"`
	Session   SessionConfig   `yaml:"session"`
	Inventory InventoryConfig `yaml:"inventory"`
	Catalog   CatalogConfig   `yaml:"catalog"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
	ContainerPrefix string `yaml:"container_prefix"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend    string `yaml:"backend"` // "redis" or "sqlite"
	SQLitePath string `yaml:"sqlite_path"`
	QueueSize  int    `yaml:"queue_size"` // async save queue depth
}

// SessionConfig holds game session settings
type SessionConfig struct {
	MaxPlayers int `yaml:"max_players"`
}

// InventoryConfig holds the container templates used when no persisted
// state exists yet
type InventoryConfig struct {
	PlayerSlots     int `yaml:"player_slots"`
	PlayerMaxWeight int `yaml:"player_max_weight"` // grams
	TrunkSlots      int `yaml:"trunk_slots"`
	TrunkMaxWeight  int `yaml:"trunk_max_weight"`
	StashSlots      int `yaml:"stash_slots"`
	StashMaxWeight  int `yaml:"stash_max_weight"`
}

// CatalogConfig holds item definition loading settings
type CatalogConfig struct {
	Dir        string `yaml:"dir"`
	SchemaPath string `yaml:"schema_path"`
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if not provided
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "redis"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "./data/containers.db"
	}
	if cfg.Storage.QueueSize == 0 {
		cfg.Storage.QueueSize = 256
	}
	if cfg.Session.MaxPlayers == 0 {
		cfg.Session.MaxPlayers = 100
	}
	if cfg.Inventory.PlayerSlots == 0 {
		cfg.Inventory.PlayerSlots = 40
	}
	if cfg.Inventory.PlayerMaxWeight == 0 {
		cfg.Inventory.PlayerMaxWeight = 100000
	}
	if cfg.Inventory.TrunkSlots == 0 {
		cfg.Inventory.TrunkSlots = 20
	}
	if cfg.Inventory.TrunkMaxWeight == 0 {
		cfg.Inventory.TrunkMaxWeight = 60000
	}
	if cfg.Inventory.StashSlots == 0 {
		cfg.Inventory.StashSlots = 50
	}
	if cfg.Inventory.StashMaxWeight == 0 {
		cfg.Inventory.StashMaxWeight = 200000
	}
	if cfg.Catalog.Dir == "" {
		cfg.Catalog.Dir = "./config/items"
	}
	if cfg.Catalog.SchemaPath == "" {
		cfg.Catalog.SchemaPath = "./schemas/item.schema.json"
	}

	return &cfg, nil
}
