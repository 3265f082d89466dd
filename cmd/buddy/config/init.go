package configcmder

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/dotdir"
)

const initLongDesc string = `Write a fresh config.toml.

The file is filled with the defaults of the chosen upstream preset:
  lovable   Lovable AI gateway with google/gemini-3-flash-preview (default)
  openai    OpenAI chat completions with gpt-4o-mini
  ollama    Local Ollama server with llama3.2 and in-memory storage

An existing config file is kept unless --force is given.

Examples:
  buddy config init
  buddy config init --preset ollama --force`

const initShortDesc string = "Write a fresh config file"

func newInitCmd() *cobra.Command {
	var preset string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			return runInit(cmd.OutOrStdout(), preset, force, configDir)
		},
	}

	cmd.Flags().StringVar(&preset, "preset", "lovable", "Upstream preset")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	_ = cmd.RegisterFlagCompletionFunc("preset", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return config.ValidPresetNames(), cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runInit(out io.Writer, preset string, force bool, configDir string) error {
	cfg, err := config.PresetConfig(preset)
	if err != nil {
		return err
	}

	if _, err := dotdir.NewManager().Ensure(configDir); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	cfger, err := config.NewConfiger(configDir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	target := cfger.GetTarget()
	if _, err := os.Stat(target); err == nil && !force {
		return fmt.Errorf("config file already exists: %s (use --force to overwrite)", target)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("reading config: %w", err)
	}

	if err := cfger.SaveConfig(cfg); err != nil {
		return err
	}

	fmt.Fprintf(out, "\n  %s Wrote %s preset to %s\n\n",
		cliui.SuccessMark,
		cliui.NameStyle.Render(preset),
		cliui.DimStyle.Render(target),
	)
	return nil
}
