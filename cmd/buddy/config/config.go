// Package configcmder provides the config command for managing persistent
// buddy configuration stored in the .buddy/ directory.
package configcmder

import (
	"github.com/spf13/cobra"
)

const configLongDesc string = `Manage persistent buddy configuration.

Configuration is stored as config.toml in the .buddy/ directory and provides
default values for command flags. CLI flags and BUDDY_* environment variables
take precedence over config file values. Secrets are never stored here.

Keys use dotted notation matching the TOML section structure:
  gateway.listen, gateway.upstream, gateway.model, gateway.prompt_file,
  gateway.cors_origins, api.listen,
  client.endpoint, client.api_target, client.stall_limit,
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  events.provider, events.brokers, events.topic

Use subcommands to manage configuration values:
  buddy config init [--preset name]   Write a fresh config file
  buddy config set <key> <value>      Set a configuration value
  buddy config get <key>              Get a configuration value
  buddy config list                   List all configuration values

Examples:
  buddy config init --preset openai
  buddy config set gateway.model google/gemini-2.5-flash
  buddy config get storage.driver
  buddy config list`

const configShortDesc string = "Manage persistent buddy configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}
