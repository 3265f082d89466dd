// Package apicmder provides the submissions and admin API server command.
package apicmder

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/studybuddyai/buddy/api"
	gatewaycmder "github.com/studybuddyai/buddy/cmd/buddy/serve/gateway"
	"github.com/studybuddyai/buddy/pkg/backend"
	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/eventstream"
	"github.com/studybuddyai/buddy/pkg/logger"
	"github.com/studybuddyai/buddy/pkg/storage"
)

type apiCommander struct {
	listen  string
	logFile string
	debug   bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
}

const apiLongDesc string = `Run the buddy API server.

Endpoints:
  POST /submissions     Store a contact form submission
  POST /admin           {"password", "action"} with action "verify" or "get-submissions"
  GET  /transcripts     Stored chat transcripts (X-Admin-Password header)

The admin password is read from BUDDY_ADMIN_PASSWORD. Without it the admin
endpoints answer 503.`

const apiShortDesc string = "Run the buddy API server"

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			keys := append([]string{config.FlagAPIListenStandalone, config.FlagCORSOrigins}, gatewaycmder.StorageFlagKeys...)
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

	var cors string
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagCORSOrigins, &cors)
	gatewaycmder.AddStorageFlags(cmd)

	return cmd
}

func (c *apiCommander) run() error {
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

	server := Build(c.viper, driver, publisher, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return server.Shutdown()
	}
}

// Build creates an API server from the resolved configuration.
func Build(v *viper.Viper, driver storage.Driver, publisher eventstream.Publisher, l *slog.Logger) *api.Server {
	secrets := config.SecretsFromViper(v)
	if secrets.AdminPassword == "" {
		l.Warn("BUDDY_ADMIN_PASSWORD is not set, admin endpoints are disabled")
	}

	return api.NewServer(api.Config{
		ListenAddr:    v.GetString("api.listen"),
		AdminPassword: secrets.AdminPassword,
		CORSOrigins:   v.GetString("gateway.cors_origins"),
		Publisher:     publisher,
	}, driver, l)
}
