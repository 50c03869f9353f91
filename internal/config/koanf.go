package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar names the environment variable holding the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:            "127.0.0.1:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			CORSOrigins:     []string{"http://localhost:5173"},
			DetectRate:      60,
			MaxImageBytes:   10 << 20,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Detector: DetectorConfig{
			ModelAssetPath: "face_landmarker.task",
			RunningMode:    "VIDEO",
			NumFaces:       1,
			Delegates:      []string{"GPU", "CPU"},
			AllowMock:      true,
		},
		Vision: VisionConfig{
			Timeout: 30 * time.Second,
		},
		Spotify: SpotifyConfig{
			RedirectURL: "http://127.0.0.1:8888/callback",
		},
		Playback: PlaybackConfig{
			Storefront:   "us",
			SearchLimit:  5,
			ReadyTimeout: 10 * time.Second,
			PollInterval: 100 * time.Millisecond,
		},
		Store: StoreConfig{
			Kind: "file",
		},
		Cache: CacheConfig{
			TTL: 30 * time.Minute,
		},
		Trend: TrendConfig{
			NumClusters:  3,
			MinSamples:   5,
			ArchiveLimit: 100,
		},
	}
}

// Load reads configuration. A missing .env or config file is not an error.
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

var sliceConfigPaths = []string{
	"server.cors_origins",
	"detector.delegates",
}

// processSliceFields splits comma-separated environment values.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}

		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_addr":             "server.addr",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"cors_origins":          "server.cors_origins",
	"detect_rate_limit":     "server.detect_rate",
	"max_image_bytes":       "server.max_image_bytes",

	"log_level":       "logging.level",
	"log_format":      "logging.format",
	"log_caller":      "logging.caller",
	"log_file":        "logging.file",
	"log_max_size_mb": "logging.max_size_mb",
	"log_max_backups": "logging.max_backups",
	"log_max_age":     "logging.max_age_days",
	"log_compress":    "logging.compress",

	"model_asset_path":    "detector.model_asset_path",
	"detector_mode":       "detector.running_mode",
	"detector_num_faces":  "detector.num_faces",
	"detector_delegates":  "detector.delegates",
	"detector_allow_mock": "detector.allow_mock",

	"vision_endpoint": "vision.endpoint",
	"vision_timeout":  "vision.timeout",

	"spotify_id":           "spotify.client_id",
	"spotify_secret":       "spotify.client_secret",
	"spotify_redirect_url": "spotify.redirect_url",
	"spotify_token_cache":  "spotify.token_cache",
	"spotify_base_url":     "spotify.base_url",

	"storefront":             "playback.storefront",
	"search_limit":           "playback.search_limit",
	"playback_ready_timeout": "playback.ready_timeout",
	"playback_poll_interval": "playback.poll_interval",

	"state_store":      "store.kind",
	"state_store_path": "store.path",

	"database_url": "database.url",

	"redis_addr":     "cache.redis_addr",
	"redis_password": "cache.redis_password",
	"redis_db":       "cache.redis_db",
	"search_ttl":     "cache.ttl",

	"lastfm_api_key": "lastfm.api_key",

	"trend_clusters":      "trend.num_clusters",
	"trend_min_samples":   "trend.min_samples",
	"trend_archive_limit": "trend.archive_limit",
}

// envTransformFunc maps environment variable names to config keys. Unknown
// variables are dropped.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
