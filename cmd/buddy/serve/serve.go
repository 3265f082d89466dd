// Package servecmder provides the serve command with subcommands for running services.
package servecmder

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

	apicmder "github.com/studybuddyai/buddy/cmd/buddy/serve/api"
	gatewaycmder "github.com/studybuddyai/buddy/cmd/buddy/serve/gateway"
	"github.com/studybuddyai/buddy/pkg/backend"
	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/logger"
)

type ServeCommander struct {
	gatewayFlags gatewaycmder.Flags
	apiListen    string
	logFile      string
	debug        bool

	viper  *viper.Viper
	logger *slog.Logger
	out    io.Writer
}

const serveLongDesc string = `Run buddy services.

Use subcommands to run individual services or all services together:
  buddy serve            Run the chat gateway and API server together
  buddy serve gateway    Run just the chat gateway
  buddy serve api        Run just the API server

When run together both servers share one storage driver and one event
publisher.`

const serveShortDesc string = "Run buddy services"

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			keys := []string{config.FlagGatewayListen, config.FlagAPIListen}
			keys = append(keys, gatewaycmder.FlagKeys...)
			keys = append(keys, gatewaycmder.StorageFlagKeys...)
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

	gatewaycmder.AddFlags(cmd, &cmder.gatewayFlags, config.FlagGatewayListen)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &cmder.apiListen)
	gatewaycmder.AddStorageFlags(cmd)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(gatewaycmder.NewGatewayCmd())

	return cmd
}

func (c *ServeCommander) run() error {
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

	g, err := gatewaycmder.Build(ctx, c.viper, driver, publisher, c.logger)
	if err != nil {
		return err
	}
	defer g.Close()

	apiServer := apicmder.Build(c.viper, driver, publisher, c.logger)
	defer apiServer.Shutdown()

	// Channel to capture errors from goroutines
	errChan := make(chan error, 2)

	go func() {
		if err := g.Run(); err != nil {
			errChan <- fmt.Errorf("gateway error: %w", err)
		}
	}()

	go func() {
		if err := apiServer.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
		c.logger.Info("received signal, shutting down")
		return nil
	}
}
