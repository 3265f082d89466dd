// Package buddycmder provides the root buddy command.
package buddycmder

import (
	"github.com/spf13/cobra"

	chatcmder "github.com/studybuddyai/buddy/cmd/buddy/chat"
	configcmder "github.com/studybuddyai/buddy/cmd/buddy/config"
	servecmder "github.com/studybuddyai/buddy/cmd/buddy/serve"
	submissionscmder "github.com/studybuddyai/buddy/cmd/buddy/submissions"
	versioncmder "github.com/studybuddyai/buddy/cmd/buddy/version"
)

const buddyLongDesc string = `Study Buddy AI: a streaming study assistant for students.

Talk to the assistant:
  buddy chat                 Interactive chat through the gateway

Run services using:
  buddy serve gateway        Run the chat gateway
  buddy serve api            Run the submissions and admin API
  buddy serve                Run both servers together

Manage:
  buddy submissions          List contact form submissions
  buddy config               Manage persistent configuration`

const buddyShortDesc string = "Study Buddy AI"

func NewBuddyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "buddy",
		Short:         buddyShortDesc,
		Long:          buddyLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Override path to .buddy/ config directory")

	cmd.AddCommand(chatcmder.NewChatCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(submissionscmder.NewSubmissionsCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
