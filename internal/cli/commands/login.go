package commands

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/config"
	"github.com/huddle/server/internal/cli/output"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	flagEmail    string
	flagPassword string
	flagName     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Authenticate with your Huddle server",
	Long: `Authenticate with email and password. Missing values are prompted for.

  huddle login --email alice@example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		email, err := promptValue(in, "Email: ", flagEmail, false)
		if err != nil {
			return err
		}
		password, err := promptValue(in, "Password: ", flagPassword, true)
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL, "")
		var resp api.Response[api.AuthResult]
		if err := client.Post("/auth/login", map[string]string{"email": email, "password": password}, &resp); err != nil {
			var apiErr *api.APIError
			if errors.As(err, &apiErr) && apiErr.Status == 401 {
				return fmt.Errorf("login failed: %s", apiErr.Message)
			}
			return fmt.Errorf("logging in: %w", err)
		}
		return saveSession(resp.Data)
	},
}

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Create an account and log in",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := bufio.NewReader(cmd.InOrStdin())
		name, err := promptValue(in, "Name: ", flagName, false)
		if err != nil {
			return err
		}
		email, err := promptValue(in, "Email: ", flagEmail, false)
		if err != nil {
			return err
		}
		password, err := promptValue(in, "Password: ", flagPassword, true)
		if err != nil {
			return err
		}

		client := api.NewClient(cfg.ServerURL, "")
		var resp api.Response[api.AuthResult]
		body := map[string]string{"name": name, "email": email, "password": password}
		if err := client.Post("/auth/register", body, &resp); err != nil {
			return fmt.Errorf("registering: %w", err)
		}
		return saveSession(resp.Data)
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, registerCmd} {
		c.Flags().StringVar(&flagEmail, "email", "", "Account email")
		c.Flags().StringVar(&flagPassword, "password", "", "Account password (prompted when omitted)")
		rootCmd.AddCommand(c)
	}
	registerCmd.Flags().StringVar(&flagName, "name", "", "Display name")
}

func saveSession(result api.AuthResult) error {
	cfg.Token = result.Token
	cfg.UserID = result.User.ID
	cfg.Email = result.User.Email
	if err := config.Save(cfg); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	fmt.Fprintf(output.Out, "Logged in as %s (%s)\n", result.User.Name, result.User.Email)
	return nil
}

// promptValue returns preset when set, otherwise reads a line from in.
// Secrets are read without echo when stdin is a terminal.
func promptValue(in *bufio.Reader, label, preset string, secret bool) (string, error) {
	if preset != "" {
		return preset, nil
	}
	fmt.Fprint(output.Out, label)

	if secret && term.IsTerminal(int(os.Stdin.Fd())) {
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(output.Out)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return string(raw), nil
	}

	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("reading input: %w", err)
	}
	value := strings.TrimSpace(line)
	if value == "" {
		return "", fmt.Errorf("%s is required", strings.ToLower(strings.TrimSuffix(label, ": ")))
	}
	return value, nil
}
