package config

import (
	"fmt"
	"strconv"
)

// Config represents the persistent buddy configuration stored as config.toml
// in the .buddy/ directory. The TOML layout uses sections for logical grouping.
//
// Secrets are never part of Config. They are read from BUDDY_UPSTREAM_API_KEY,
// BUDDY_API_KEY and BUDDY_ADMIN_PASSWORD only (see Secrets).
type Config struct {
	Version int           `toml:"version"`
	Gateway GatewayConfig `toml:"gateway"`
	API     APIConfig     `toml:"api"`
	Client  ClientConfig  `toml:"client"`
	Storage StorageConfig `toml:"storage"`
	Events  EventsConfig  `toml:"events"`
}

// GatewayConfig holds chat gateway settings.
type GatewayConfig struct {
	Listen      string `toml:"listen,omitempty"`
	Upstream    string `toml:"upstream,omitempty"`
	Model       string `toml:"model,omitempty"`
	PromptFile  string `toml:"prompt_file,omitempty"`
	CORSOrigins string `toml:"cors_origins,omitempty"`
}

// APIConfig holds submissions and admin API settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// ClientConfig holds settings for CLI commands that connect to running
// servers (buddy chat, buddy submissions). Values are full URLs.
type ClientConfig struct {
	Endpoint  string `toml:"endpoint,omitempty"`
	APITarget string `toml:"api_target,omitempty"`
	// StallLimit bounds how many consecutive unparseable event lines the
	// chat client re-buffers before dropping one. 0 keeps re-buffering.
	StallLimit int `toml:"stall_limit,omitempty"`
}

// StorageConfig holds storage settings shared by the gateway and the API.
type StorageConfig struct {
	Driver      string `toml:"driver,omitempty"`
	SQLitePath  string `toml:"sqlite_path,omitempty"`
	PostgresDSN string `toml:"postgres_dsn,omitempty"`
}

// EventsConfig holds event publishing settings.
type EventsConfig struct {
	Provider string `toml:"provider,omitempty"`
	Brokers  string `toml:"brokers,omitempty"`
	Topic    string `toml:"topic,omitempty"`
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"gateway.listen": {
		get: func(c *Config) string { return c.Gateway.Listen },
		set: func(c *Config, v string) error { c.Gateway.Listen = v; return nil },
	},
	"gateway.upstream": {
		get: func(c *Config) string { return c.Gateway.Upstream },
		set: func(c *Config, v string) error { c.Gateway.Upstream = v; return nil },
	},
	"gateway.model": {
		get: func(c *Config) string { return c.Gateway.Model },
		set: func(c *Config, v string) error { c.Gateway.Model = v; return nil },
	},
	"gateway.prompt_file": {
		get: func(c *Config) string { return c.Gateway.PromptFile },
		set: func(c *Config, v string) error { c.Gateway.PromptFile = v; return nil },
	},
	"gateway.cors_origins": {
		get: func(c *Config) string { return c.Gateway.CORSOrigins },
		set: func(c *Config, v string) error { c.Gateway.CORSOrigins = v; return nil },
	},
	"api.listen": {
		get: func(c *Config) string { return c.API.Listen },
		set: func(c *Config, v string) error { c.API.Listen = v; return nil },
	},
	"client.endpoint": {
		get: func(c *Config) string { return c.Client.Endpoint },
		set: func(c *Config, v string) error { c.Client.Endpoint = v; return nil },
	},
	"client.api_target": {
		get: func(c *Config) string { return c.Client.APITarget },
		set: func(c *Config, v string) error { c.Client.APITarget = v; return nil },
	},
	"client.stall_limit": {
		get: func(c *Config) string { return strconv.Itoa(c.Client.StallLimit) },
		set: func(c *Config, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("invalid value for client.stall_limit: %q", v)
			}
			c.Client.StallLimit = n
			return nil
		},
	},
	"storage.driver": {
		get: func(c *Config) string { return c.Storage.Driver },
		set: func(c *Config, v string) error {
			if !isValidStorageDriver(v) {
				return fmt.Errorf("invalid value for storage.driver: %q (available: %s)", v, storageDriversHelp)
			}
			c.Storage.Driver = v
			return nil
		},
	},
	"storage.sqlite_path": {
		get: func(c *Config) string { return c.Storage.SQLitePath },
		set: func(c *Config, v string) error { c.Storage.SQLitePath = v; return nil },
	},
	"storage.postgres_dsn": {
		get: func(c *Config) string { return c.Storage.PostgresDSN },
		set: func(c *Config, v string) error { c.Storage.PostgresDSN = v; return nil },
	},
	"events.provider": {
		get: func(c *Config) string { return c.Events.Provider },
		set: func(c *Config, v string) error {
			if v != EventsNone && v != EventsKafka {
				return fmt.Errorf("invalid value for events.provider: %q (available: %s, %s)", v, EventsNone, EventsKafka)
			}
			c.Events.Provider = v
			return nil
		},
	},
	"events.brokers": {
		get: func(c *Config) string { return c.Events.Brokers },
		set: func(c *Config, v string) error { c.Events.Brokers = v; return nil },
	},
	"events.topic": {
		get: func(c *Config) string { return c.Events.Topic },
		set: func(c *Config, v string) error { c.Events.Topic = v; return nil },
	},
}
