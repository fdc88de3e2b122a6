package commands

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/config"
	"github.com/spf13/cobra"
)

var (
	flagJSON      bool
	flagServerURL string

	cfg       *config.Config
	apiClient *api.Client

	// now is swapped in tests.
	now = time.Now
)

var rootCmd = &cobra.Command{
	Use:   "huddle",
	Short: "Huddle CLI: groups, events and Fun Scores from the terminal",
	Long: `Huddle CLI lets you join groups, RSVP to events, check in and
follow your Fun Score without leaving the terminal.

Get started:
  huddle login                  Authenticate with email and password
  huddle groups join ABC123     Join a group with its invite code
  huddle events list            See upcoming events across your groups
  huddle events checkin ID      Check in to an event you RSVP'd to`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		if flagServerURL != "" {
			cfg.ServerURL = flagServerURL
		}
		apiClient = api.NewClient(cfg.ServerURL, cfg.Token)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "Output as JSON")
	rootCmd.PersistentFlags().StringVar(&flagServerURL, "server", "", "Override server URL (default: from config or "+config.DefaultURL+")")
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

func requireAuth() error {
	if cfg == nil || !cfg.HasToken() {
		return errors.New("not authenticated: run \"huddle login\" first")
	}
	return nil
}

// wrapAuthError turns a 401 into a hint to log in again.
func wrapAuthError(action string, err error) error {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 401 {
		return fmt.Errorf("%s: session expired or invalid, run \"huddle login\" again", action)
	}
	return fmt.Errorf("%s: %w", action, err)
}

// currentUserID returns the logged-in user's id, asking the server when the
// config predates it being stored.
func currentUserID() (string, error) {
	if cfg.UserID != "" {
		return cfg.UserID, nil
	}
	var resp api.Response[api.User]
	if err := apiClient.Get("/auth/me", nil, &resp); err != nil {
		return "", wrapAuthError("fetching user", err)
	}
	cfg.UserID = resp.Data.ID
	_ = config.Save(cfg)
	return cfg.UserID, nil
}
