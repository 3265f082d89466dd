package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flag is the single source of truth for a CLI flag.
// Commands reference flags by registry key rather than hard-coding names,
// shorthands, defaults, and descriptions inline. This prevents flag drift
// when the same logical flag appears on multiple commands (e.g., --upstream
// on both "buddy serve" and "buddy serve gateway").
type Flag struct {
	// Name is the long flag name (e.g. "upstream").
	Name string

	// Shorthand is the one-letter short flag (e.g. "u"). Empty for no shorthand.
	Shorthand string

	// ViperKey is the dotted config key this flag maps to (e.g. "gateway.upstream").
	ViperKey string

	// Description is the help text shown in --help output.
	Description string
}

// FlagSet is a mapping of flag names to Flag structs that hold their name,
// shorthand, viper key, etc.
type FlagSet map[string]Flag

// Flag registry keys.
// Use these constants when calling AddStringFlag, AddIntFlag,
// and BindRegisteredFlags to avoid typos or drift from one command to another.
const (
	FlagGatewayListen  = "gateway-listen"
	FlagAPIListen      = "api-listen"
	FlagUpstream       = "upstream"
	FlagModel          = "model"
	FlagPromptFile     = "prompt-file"
	FlagCORSOrigins    = "cors-origins"
	FlagStorageDriver  = "storage"
	FlagSQLite         = "sqlite"
	FlagPostgres       = "postgres"
	FlagEventsProvider = "events"
	FlagBrokers        = "brokers"
	FlagTopic          = "topic"
	FlagEndpoint       = "endpoint"
	FlagAPITarget      = "api-target"
	FlagStallLimit     = "stall-limit"

	// Standalone subcommand variants use "listen" as the flag name
	// but bind to different viper keys depending on the service.
	FlagGatewayListenStandalone = "gateway-listen-standalone"
	FlagAPIListenStandalone     = "api-listen-standalone"
)

// ServeFlags are shared by "buddy serve" and its subcommands.
var ServeFlags = FlagSet{
	FlagGatewayListen:           {Name: "gateway-listen", Shorthand: "p", ViperKey: "gateway.listen", Description: "Address for the chat gateway to listen on"},
	FlagAPIListen:               {Name: "api-listen", Shorthand: "a", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagGatewayListenStandalone: {Name: "listen", Shorthand: "l", ViperKey: "gateway.listen", Description: "Address for the chat gateway to listen on"},
	FlagAPIListenStandalone:     {Name: "listen", Shorthand: "l", ViperKey: "api.listen", Description: "Address for the API server to listen on"},
	FlagUpstream:                {Name: "upstream", Shorthand: "u", ViperKey: "gateway.upstream", Description: "OpenAI-compatible chat completions URL"},
	FlagModel:                   {Name: "model", Shorthand: "m", ViperKey: "gateway.model", Description: "Upstream model name"},
	FlagPromptFile:              {Name: "prompt-file", ViperKey: "gateway.prompt_file", Description: "System prompt file, reloaded on change (default: built-in prompt)"},
	FlagCORSOrigins:             {Name: "cors-origins", ViperKey: "gateway.cors_origins", Description: "Comma separated allowed CORS origins"},
	FlagStorageDriver:           {Name: "storage", ViperKey: "storage.driver", Description: "Storage driver (inmemory, sqlite, postgres)"},
	FlagSQLite:                  {Name: "sqlite", Shorthand: "s", ViperKey: "storage.sqlite_path", Description: "Path to SQLite database"},
	FlagPostgres:                {Name: "postgres", ViperKey: "storage.postgres_dsn", Description: "PostgreSQL connection string"},
	FlagEventsProvider:          {Name: "events", ViperKey: "events.provider", Description: "Event publisher (none, kafka)"},
	FlagBrokers:                 {Name: "brokers", ViperKey: "events.brokers", Description: "Comma separated Kafka brokers"},
	FlagTopic:                   {Name: "topic", ViperKey: "events.topic", Description: "Kafka topic for buddy events"},
}

// ClientFlags are shared by commands that talk to running servers.
var ClientFlags = FlagSet{
	FlagEndpoint:   {Name: "endpoint", Shorthand: "e", ViperKey: "client.endpoint", Description: "Chat gateway URL"},
	FlagAPITarget:  {Name: "api-target", ViperKey: "client.api_target", Description: "API server URL"},
	FlagStallLimit: {Name: "stall-limit", ViperKey: "client.stall_limit", Description: "Drop an unparseable event line after this many failed retries (0 keeps waiting)"},
}

// AddStringFlag registers a string flag on cmd from the given FlagSet.
// The flag's name, shorthand, default, and description all come from the
// FlagSet entry so they cannot drift across commands.
func AddStringFlag(cmd *cobra.Command, fs FlagSet, key string, target *string) {
	def, ok := fs[key]
	if !ok {
		return
	}

	defaultVal := defaultString(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().StringVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().StringVar(target, def.Name, defaultVal, def.Description)
	}
}

// AddIntFlag registers an int flag on cmd from the given FlagSet.
func AddIntFlag(cmd *cobra.Command, fs FlagSet, registryKey string, target *int) {
	def, ok := fs[registryKey]
	if !ok {
		return
	}

	defaultVal := defaultInt(def.ViperKey)
	if def.Shorthand != "" {
		cmd.Flags().IntVarP(target, def.Name, def.Shorthand, defaultVal, def.Description)
	} else {
		cmd.Flags().IntVar(target, def.Name, defaultVal, def.Description)
	}
}

// BindRegisteredFlags binds already-registered flags to viper using definitions
// from the given FlagSet. Call this in PreRunE after InitViper to connect flags
// to the viper precedence chain (flag > env > config file > default).
func BindRegisteredFlags(v *viper.Viper, cmd *cobra.Command, fs FlagSet, registryKeys []string) {
	for _, registryKey := range registryKeys {
		def, ok := fs[registryKey]
		if !ok {
			continue
		}

		f := cmd.Flags().Lookup(def.Name)
		if f == nil {
			continue
		}

		_ = v.BindPFlag(def.ViperKey, f)
	}
}

// defaultString returns the default string value for a viper key from NewDefaultConfig.
func defaultString(viperKey string) string {
	v := viper.New()
	setViperDefaults(v)
	return v.GetString(viperKey)
}

// defaultInt returns the default int value for a viper key from NewDefaultConfig.
func defaultInt(viperKey string) int {
	v := viper.New()
	setViperDefaults(v)
	return v.GetInt(viperKey)
}
