package configcmder

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
)

const listLongDesc string = `List all configuration values.

Displays every configuration key with its effective value from the
config.toml file in the .buddy/ directory, or the default when unset.

Examples:
  buddy config list`

const listShortDesc string = "List all configuration values"

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: listShortDesc,
		Long:  listLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runList(cmd.OutOrStdout(), configDir)
		},
	}

	return cmd
}

func runList(out io.Writer, configDir string) error {
	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	printTarget(out, cfger)

	keys := config.ValidConfigKeys()
	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value, err := cfger.GetConfigValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = "<not set>"
		}
		rows = append(rows, []string{key, value})
	}

	fmt.Fprintln(out, cliui.Table([]string{"Key", "Value"}, rows))
	return nil
}
