// Package gatewaycmder provides the chat gateway server command.
package gatewaycmder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studybuddyai/buddy/gateway"
	"github.com/studybuddyai/buddy/pkg/backend"
	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/prompt"
	"github.com/studybuddyai/buddy/pkg/storage"
)

type gatewayCommander struct {
	flags   Flags
	logFile string
	debug   bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
}

// Flags holds the flag targets shared with "buddy serve".
type Flags struct {
	Listen      string
	Upstream    string
	Model       string
	PromptFile  string
	CORSOrigins string
}

// FlagKeys are the config.ServeFlags registry keys a gateway command binds.
var FlagKeys = []string{
	config.FlagUpstream,
	config.FlagModel,
	config.FlagPromptFile,
	config.FlagCORSOrigins,
}

// StorageFlagKeys are the storage and events registry keys shared by every
// serve command.
var StorageFlagKeys = []string{
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEventsProvider,
	config.FlagBrokers,
	config.FlagTopic,
}

const gatewayLongDesc string = `Run the chat gateway.

The gateway accepts {"messages": [...]} on POST /chat, prepends the system
prompt, forwards the conversation to the OpenAI-compatible upstream and
streams the Server-Sent Events answer back unchanged. Completed exchanges are
stored and announced as buddy.chat.completed events.

Secrets are read from the environment only:
  BUDDY_UPSTREAM_API_KEY   upstream provider key (required)
  BUDDY_API_KEY            bearer token clients must send (optional)`

const gatewayShortDesc string = "Run the chat gateway"

// storageFlags holds flag targets for storage and events.
type storageFlags struct {
	driver, sqlitePath, postgresDSN string
	events, brokers, topic          string
}

// AddStorageFlags registers the storage and events flags on cmd.
func AddStorageFlags(cmd *cobra.Command) {
	sf := &storageFlags{}
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagStorageDriver, &sf.driver)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagSQLite, &sf.sqlitePath)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPostgres, &sf.postgresDSN)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagEventsProvider, &sf.events)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagBrokers, &sf.brokers)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagTopic, &sf.topic)
	cmd.Flags().String("log-file", "", "Also append JSON logs to this file")
}

// AddFlags registers the gateway flags on cmd. listenKey selects between the
// standalone "--listen" and the combined "--gateway-listen" flag.
func AddFlags(cmd *cobra.Command, f *Flags, listenKey string) {
	config.AddStringFlag(cmd, config.ServeFlags, listenKey, &f.Listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagUpstream, &f.Upstream)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagModel, &f.Model)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagPromptFile, &f.PromptFile)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagCORSOrigins, &f.CORSOrigins)
}

func NewGatewayCmd() *cobra.Command {
	cmder := &gatewayCommander{}

	cmd := &cobra.Command{
		Use:   "gateway",
		Short: gatewayShortDesc,
		Long:  gatewayLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			keys := append([]string{config.FlagGatewayListenStandalone}, FlagKeys...)
			keys = append(keys, StorageFlagKeys...)
			config.BindRegisteredFlags(v, cmd, config.ServeFlags, keys)

			cmder.viper = v
			cmder.logFile, _ = cmd.Flags().GetString("log-file")
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.out = cmd.OutOrStdout()
			return cmder.run()
		},
	}

	AddFlags(cmd, &cmder.flags, config.FlagGatewayListenStandalone)
	AddStorageFlags(cmd)

	return cmd
}

func (c *gatewayCommander) run() error {
	var closeLog func() error
	var err error
	c.logger, closeLog, err = logger.NewService(c.debug, cliui.IsTerminal(os.Stderr), c.logFile)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var progress io.Writer
	if cliui.IsTerminal(c.out) {
		progress = c.out
	}
	driver, publisher, err := backend.Open(ctx, progress, config.StorageOptions(c.viper), config.EventsOptions(c.viper), c.logger)
	if err != nil {
		return err
	}
	defer driver.Close()
	defer publisher.Close()

	g, err := Build(ctx, c.viper, driver, publisher, c.logger)
	if err != nil {
		return err
	}

	errChan := make(chan error, 1)
	go func() {
		if err := g.Run(); err != nil {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		_ = g.Close()
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return g.Close()
	}
}

// Build creates a gateway from the resolved configuration and starts the
// prompt file watcher, which stops with ctx.
func Build(ctx context.Context, v *viper.Viper, driver storage.Driver, publisher eventstream.Publisher, l *slog.Logger) (*gateway.Gateway, error) {
	secrets := config.SecretsFromViper(v)
	if secrets.UpstreamAPIKey == "" {
		l.Warn("BUDDY_UPSTREAM_API_KEY is not set, chat requests will fail")
	}

	store, err := prompt.NewStore(v.GetString("gateway.prompt_file"), l)
	if err != nil {
		return nil, fmt.Errorf("loading system prompt: %w", err)
	}
	go func() {
		if err := store.Watch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			l.Error("prompt watcher stopped", "error", err)
		}
	}()

	g, err := gateway.New(gateway.Config{
		ListenAddr:     v.GetString("gateway.listen"),
		UpstreamURL:    v.GetString("gateway.upstream"),
		UpstreamAPIKey: secrets.UpstreamAPIKey,
		Model:          v.GetString("gateway.model"),
		APIKey:         secrets.APIKey,
		CORSOrigins:    v.GetString("gateway.cors_origins"),
		Prompt:         store,
		Publisher:      publisher,
	}, driver, l)
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	return g, nil
}
