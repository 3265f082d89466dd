package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/studybuddyai/buddy/pkg/backend"
	"github.com/studybuddyai/buddy/pkg/dotdir"
)

// Environment-only secret keys. With the BUDDY prefix these resolve to
// BUDDY_UPSTREAM_API_KEY, BUDDY_API_KEY and BUDDY_ADMIN_PASSWORD.
const (
	secretUpstreamAPIKey = "upstream_api_key"
	secretAPIKey         = "api_key"
	secretAdminPassword  = "admin_password"
)

// Secrets holds credentials that are only ever read from the environment.
type Secrets struct {
	// UpstreamAPIKey authenticates the gateway against the model provider.
	UpstreamAPIKey string

	// APIKey, when set, is the bearer token clients must present to the
	// gateway. The chat client sends it too.
	APIKey string

	// AdminPassword guards the admin contract.
	AdminPassword string
}

// InitViper creates and returns a configured *viper.Viper.
// It sets defaults from NewDefaultConfig(), reads the config.toml file
// (if found via dotdir resolution), and binds environment variables
// with the BUDDY_ prefix.
//
// Config precedence (highest to lowest):
//  1. CLI flags (once bound via BindRegisteredFlags)
//  2. Environment variables (BUDDY_GATEWAY_LISTEN, BUDDY_STORAGE_DRIVER, etc.)
//  3. config.toml file values
//  4. Defaults from NewDefaultConfig()
func InitViper(configDir string) (*viper.Viper, error) {
	v := viper.New()

	setViperDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("toml")

	ddm := dotdir.NewManager()
	target, err := ddm.Target(configDir)
	if err != nil {
		return nil, fmt.Errorf("resolving config dir: %w", err)
	}

	if target != "" {
		v.AddConfigPath(target)
	}

	if err := v.ReadInConfig(); err != nil {
		// Config file not found errors are fine, defaults will apply.
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	v.SetEnvPrefix("BUDDY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have no default, so AutomaticEnv alone would not surface them
	// through AllKeys; bind them explicitly.
	for _, key := range []string{secretUpstreamAPIKey, secretAPIKey, secretAdminPassword} {
		_ = v.BindEnv(key)
	}

	return v, nil
}

// SecretsFromViper reads the environment-only secrets.
func SecretsFromViper(v *viper.Viper) Secrets {
	return Secrets{
		UpstreamAPIKey: v.GetString(secretUpstreamAPIKey),
		APIKey:         v.GetString(secretAPIKey),
		AdminPassword:  v.GetString(secretAdminPassword),
	}
}

// StorageOptions reads the [storage] section.
func StorageOptions(v *viper.Viper) backend.StorageOptions {
	return backend.StorageOptions{
		Driver:      v.GetString("storage.driver"),
		SQLitePath:  v.GetString("storage.sqlite_path"),
		PostgresDSN: v.GetString("storage.postgres_dsn"),
	}
}

// EventsOptions reads the [events] section. events.brokers is a comma
// separated list.
func EventsOptions(v *viper.Viper) backend.EventsOptions {
	var brokers []string
	for _, b := range strings.Split(v.GetString("events.brokers"), ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}

	return backend.EventsOptions{
		Provider: v.GetString("events.provider"),
		Brokers:  brokers,
		Topic:    v.GetString("events.topic"),
	}
}

// setViperDefaults registers defaults from NewDefaultConfig() into viper
// using dotted-key notation. This keeps defaults.go as the single source of truth.
func setViperDefaults(v *viper.Viper) {
	d := NewDefaultConfig()

	v.SetDefault("version", d.Version)

	// Gateway
	v.SetDefault("gateway.listen", d.Gateway.Listen)
	v.SetDefault("gateway.upstream", d.Gateway.Upstream)
	v.SetDefault("gateway.model", d.Gateway.Model)
	v.SetDefault("gateway.prompt_file", d.Gateway.PromptFile)
	v.SetDefault("gateway.cors_origins", d.Gateway.CORSOrigins)

	// API
	v.SetDefault("api.listen", d.API.Listen)

	// Client
	v.SetDefault("client.endpoint", d.Client.Endpoint)
	v.SetDefault("client.api_target", d.Client.APITarget)
	v.SetDefault("client.stall_limit", d.Client.StallLimit)

	// Storage
	v.SetDefault("storage.driver", d.Storage.Driver)
	v.SetDefault("storage.sqlite_path", d.Storage.SQLitePath)
	v.SetDefault("storage.postgres_dsn", d.Storage.PostgresDSN)

	// Events
	v.SetDefault("events.provider", d.Events.Provider)
	v.SetDefault("events.brokers", d.Events.Brokers)
	v.SetDefault("events.topic", d.Events.Topic)
}
