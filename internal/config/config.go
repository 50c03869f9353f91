// Package config loads application configuration from defaults, an optional
// YAML file, a .env file and the environment, in that order of precedence
// (environment wins).
package config

import (
	"time"
)

// Config is the application configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Logging  LoggingConfig  `koanf:"logging"`
	Detector DetectorConfig `koanf:"detector"`
	Vision   VisionConfig   `koanf:"vision"`
	Spotify  SpotifyConfig  `koanf:"spotify"`
	Playback PlaybackConfig `koanf:"playback"`
	Store    StoreConfig    `koanf:"store"`
	Database DatabaseConfig `koanf:"database"`
	Cache    CacheConfig    `koanf:"cache"`
	LastFM   LastFMConfig   `koanf:"lastfm"`
	Trend    TrendConfig    `koanf:"trend"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr            string        `koanf:"addr" validate:"required,hostname_port"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	DetectRate      int           `koanf:"detect_rate" validate:"gte=0"` // detections per minute per IP; 0 disables
	MaxImageBytes   int64         `koanf:"max_image_bytes" validate:"gt=0"`
}

// LoggingConfig configures zerolog and file rotation.
type LoggingConfig struct {
	Level      string `koanf:"level" validate:"oneof=trace debug info warn error"`
	Format     string `koanf:"format" validate:"oneof=json console"`
	Caller     bool   `koanf:"caller"`
	File       string `koanf:"file"`
	MaxSizeMB  int    `koanf:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `koanf:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `koanf:"max_age_days" validate:"gte=0"`
	Compress   bool   `koanf:"compress"`
}

// DetectorConfig configures the emotion detector.
type DetectorConfig struct {
	ModelAssetPath string   `koanf:"model_asset_path" validate:"required"`
	RunningMode    string   `koanf:"running_mode" validate:"oneof=IMAGE VIDEO"`
	NumFaces       int      `koanf:"num_faces" validate:"gte=1"`
	Delegates      []string `koanf:"delegates" validate:"min=1,dive,oneof=GPU CPU"`
	AllowMock      bool     `koanf:"allow_mock"`
}

// VisionConfig locates the face-landmark service.
type VisionConfig struct {
	Endpoint string        `koanf:"endpoint" validate:"omitempty,url"`
	Timeout  time.Duration `koanf:"timeout" validate:"gt=0"`
}

// SpotifyConfig holds the streaming service credential.
type SpotifyConfig struct {
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	RedirectURL  string `koanf:"redirect_url" validate:"required,url"`
	TokenCache   string `koanf:"token_cache"`
	BaseURL      string `koanf:"base_url" validate:"omitempty,url"`
}

// PlaybackConfig configures the playback controller.
type PlaybackConfig struct {
	Storefront   string        `koanf:"storefront" validate:"required,len=2,alpha"`
	SearchLimit  int           `koanf:"search_limit" validate:"gte=1,lte=50"`
	ReadyTimeout time.Duration `koanf:"ready_timeout" validate:"gt=0"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"gt=0"`
}

// StoreConfig selects where the playback authorization flag is kept.
type StoreConfig struct {
	Kind string `koanf:"kind" validate:"oneof=memory file badger postgres"`
	Path string `koanf:"path"`
}

// DatabaseConfig configures PostgreSQL. An empty URL disables the archive.
type DatabaseConfig struct {
	URL string `koanf:"url"`
}

// CacheConfig configures the search cache. An empty address keeps the cache
// in memory.
type CacheConfig struct {
	RedisAddr     string        `koanf:"redis_addr" validate:"omitempty,hostname_port"`
	RedisPassword string        `koanf:"redis_password"`
	RedisDB       int           `koanf:"redis_db" validate:"gte=0"`
	TTL           time.Duration `koanf:"ttl" validate:"gt=0"`
}

// LastFMConfig configures the Last.fm client. An empty key disables it.
type LastFMConfig struct {
	APIKey string `koanf:"api_key"`
}

// TrendConfig configures mood-trend clustering.
type TrendConfig struct {
	NumClusters  int `koanf:"num_clusters" validate:"gte=1"`
	MinSamples   int `koanf:"min_samples" validate:"gte=1"`
	ArchiveLimit int `koanf:"archive_limit" validate:"gte=1"`
}
