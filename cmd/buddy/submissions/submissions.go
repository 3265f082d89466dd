// Package submissionscmder provides the submissions command for reading
// contact-form submissions through the admin endpoint.
package submissionscmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/studybuddyai/buddy/pkg/admin"
	"github.com/studybuddyai/buddy/pkg/cliui"
	"github.com/studybuddyai/buddy/pkg/config"
	"github.com/studybuddyai/buddy/pkg/storage"
)

type submissionsCommander struct {
	apiTarget string
	verify    bool
	jsonOut   bool

	viper *viper.Viper
	out   io.Writer

	// readPassword prompts for the password when none is configured.
	readPassword func() (string, error)
}

const submissionsLongDesc string = `List contact-form submissions.

The password is read from BUDDY_ADMIN_PASSWORD, or prompted for when the
terminal is interactive. Use --verify to only check the password.

Examples:
  BUDDY_ADMIN_PASSWORD=secret buddy submissions
  buddy submissions --api-target https://api.example.com --json
  buddy submissions --verify`

const submissionsShortDesc string = "List contact-form submissions"

// maxMessageWidth bounds the message column in table output.
const maxMessageWidth = 60

func NewSubmissionsCmd() *cobra.Command {
	cmder := &submissionsCommander{}

	cmd := &cobra.Command{
		Use:   "submissions",
		Short: submissionsShortDesc,
		Long:  submissionsLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			configDir, _ := cmd.Flags().GetString("config-dir")
			v, err := config.InitViper(configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}

			config.BindRegisteredFlags(v, cmd, config.ClientFlags, []string{
				config.FlagAPITarget,
			})
			cmder.viper = v
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmder.out = cmd.OutOrStdout()
			cmder.readPassword = promptPassword
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.ClientFlags, config.FlagAPITarget, &cmder.apiTarget)
	cmd.Flags().BoolVar(&cmder.verify, "verify", false, "Only check the admin password")
	cmd.Flags().BoolVar(&cmder.jsonOut, "json", false, "Print submissions as JSON")

	return cmd
}

func (c *submissionsCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cliui.ConfigureColor(c.out)

	password := config.SecretsFromViper(c.viper).AdminPassword
	if password == "" && c.readPassword != nil {
		var err error
		password, err = c.readPassword()
		if err != nil {
			return err
		}
	}
	if password == "" {
		return errors.New("admin password is required: set BUDDY_ADMIN_PASSWORD")
	}

	endpoint := strings.TrimRight(c.viper.GetString("client.api_target"), "/") + "/admin"
	client, err := admin.NewClient(endpoint, nil)
	if err != nil {
		return err
	}

	if c.verify {
		if err := client.Verify(ctx, password); err != nil {
			return describe(err)
		}
		fmt.Fprintf(c.out, "%s Password accepted\n", cliui.SuccessMark)
		return nil
	}

	subs, err := client.Submissions(ctx, password)
	if err != nil {
		return describe(err)
	}

	if c.jsonOut {
		enc := json.NewEncoder(c.out)
		enc.SetIndent("", "  ")
		if subs == nil {
			subs = []*storage.Submission{}
		}
		return enc.Encode(subs)
	}

	if len(subs) == 0 {
		fmt.Fprintln(c.out, cliui.DimStyle.Render("No submissions yet."))
		return nil
	}

	rows := make([][]string, 0, len(subs))
	for _, s := range subs {
		rows = append(rows, []string{
			s.Name,
			s.SchoolName,
			s.Email,
			truncate(strings.Join(strings.Fields(s.Message), " "), maxMessageWidth),
			s.CreatedAt.Local().Format(time.DateTime),
		})
	}
	fmt.Fprintln(c.out, cliui.Table([]string{"Name", "School", "Email", "Message", "Created"}, rows))
	fmt.Fprintf(c.out, "%s\n", cliui.DimStyle.Render(fmt.Sprintf("%d submission(s)", len(subs))))
	return nil
}

func describe(err error) error {
	var adminErr *admin.Error
	if errors.As(err, &adminErr) && adminErr.Unauthorized() {
		return errors.New("invalid admin password")
	}
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", nil
	}

	fmt.Fprint(os.Stderr, "Admin password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}
