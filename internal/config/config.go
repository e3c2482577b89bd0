package config

import "time"

// LiveKit holds connection settings for the media backend.
type LiveKit struct {
	// Host is the control-plane HTTP endpoint (e.g. https://livekit.example.com).
	Host string `mapstructure:"host" yaml:"host"`
	// WSURL is the media endpoint clients connect to (e.g. wss://livekit.example.com).
	WSURL     string `mapstructure:"ws_url" yaml:"ws_url"`
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`
	APISecret string `mapstructure:"api_secret" yaml:"api_secret"`
}

// Config holds server configuration values.
type Config struct {
	Addr              string        `mapstructure:"addr" yaml:"addr"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout" yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	LogLevel          string        `mapstructure:"log_level" yaml:"log_level"`

	// JWT settings for verifying bearer tokens minted by the auth subsystem.
	JWTSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	JWTIssuer   string `mapstructure:"jwt_issuer" yaml:"jwt_issuer"`
	JWTAudience string `mapstructure:"jwt_audience" yaml:"jwt_audience"`

	LiveKit LiveKit `mapstructure:"livekit" yaml:"livekit"`

	// GrantTTL bounds the lifetime of issued access grants. Short on purpose:
	// a grant is expected to be re-issued per join, not cached for hours.
	GrantTTL time.Duration `mapstructure:"grant_ttl" yaml:"grant_ttl"`

	// Room defaults applied when a create request omits them.
	RoomIdleTimeout     time.Duration `mapstructure:"room_idle_timeout" yaml:"room_idle_timeout"`
	RoomMaxParticipants int           `mapstructure:"room_max_participants" yaml:"room_max_participants"`

	// WatchInterval is the push period of the room-watch stream.
	WatchInterval time.Duration `mapstructure:"watch_interval" yaml:"watch_interval"`
}

// Default returns configuration with reasonable starter defaults.
func Default() Config {
	return Config{
		Addr:              ":8080",
		ReadHeaderTimeout: 5 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		LogLevel:          "info",
		JWTIssuer:         "parley",
		JWTAudience:       "parley",
		LiveKit: LiveKit{
			Host:  "http://localhost:7880",
			WSURL: "ws://localhost:7880",
		},
		GrantTTL:            5 * time.Minute,
		RoomIdleTimeout:     10 * time.Minute,
		RoomMaxParticipants: 20,
		WatchInterval:       2 * time.Second,
	}
}

// UpdateFrom overwrites non-zero values from other config into receiver.
func (c *Config) UpdateFrom(other Config) {
	if other.Addr != "" {
		c.Addr = other.Addr
	}
	if other.ReadHeaderTimeout != 0 {
		c.ReadHeaderTimeout = other.ReadHeaderTimeout
	}
	if other.ShutdownTimeout != 0 {
		c.ShutdownTimeout = other.ShutdownTimeout
	}
	if other.LogLevel != "" {
		c.LogLevel = other.LogLevel
	}
	if other.JWTSecret != "" {
		c.JWTSecret = other.JWTSecret
	}
	if other.JWTIssuer != "" {
		c.JWTIssuer = other.JWTIssuer
	}
	if other.JWTAudience != "" {
		c.JWTAudience = other.JWTAudience
	}
	if other.LiveKit.Host != "" {
		c.LiveKit.Host = other.LiveKit.Host
	}
	if other.LiveKit.WSURL != "" {
		c.LiveKit.WSURL = other.LiveKit.WSURL
	}
	if other.LiveKit.APIKey != "" {
		c.LiveKit.APIKey = other.LiveKit.APIKey
	}
	if other.LiveKit.APISecret != "" {
		c.LiveKit.APISecret = other.LiveKit.APISecret
	}
	if other.GrantTTL != 0 {
		c.GrantTTL = other.GrantTTL
	}
	if other.RoomIdleTimeout != 0 {
		c.RoomIdleTimeout = other.RoomIdleTimeout
	}
	if other.RoomMaxParticipants != 0 {
		c.RoomMaxParticipants = other.RoomMaxParticipants
	}
	if other.WatchInterval != 0 {
		c.WatchInterval = other.WatchInterval
	}
}
