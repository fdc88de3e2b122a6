package commands

import (
	"errors"
	"net/url"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	flagScoreGroup string
	flagScoreUser  string
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Show a Fun Score, overall or within one group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}
		userID, err := scoreSubject()
		if err != nil {
			return err
		}

		params := url.Values{}
		if flagScoreGroup != "" {
			params.Set("groupId", flagScoreGroup)
		}
		var resp api.Response[api.Score]
		if err := apiClient.Get("/scores/user/"+userID, params, &resp); err != nil {
			return wrapAuthError("fetching score", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.ScoreInfo(resp.Data)
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show how a Fun Score changed within a group",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}
		if flagScoreGroup == "" {
			return errors.New("--group is required")
		}
		userID, err := scoreSubject()
		if err != nil {
			return err
		}

		var resp api.Response[api.ScoreHistory]
		params := url.Values{"groupId": {flagScoreGroup}}
		if err := apiClient.Get("/scores/history/"+userID, params, &resp); err != nil {
			return wrapAuthError("fetching score history", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.HistoryTable(resp.Data, now())
		return nil
	},
}

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard GROUP_ID",
	Short: "Rank a group's members by Fun Score",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[[]api.LeaderboardEntry]
		if err := apiClient.Get("/scores/leaderboard/"+args[0], nil, &resp); err != nil {
			return wrapAuthError("fetching leaderboard", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.LeaderboardTable(resp.Data)
		return nil
	},
}

func scoreSubject() (string, error) {
	if flagScoreUser != "" {
		return flagScoreUser, nil
	}
	return currentUserID()
}

func init() {
	for _, c := range []*cobra.Command{scoreCmd, historyCmd} {
		c.Flags().StringVar(&flagScoreGroup, "group", "", "Group ID")
		c.Flags().StringVar(&flagScoreUser, "user", "", "User ID (default: you)")
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(leaderboardCmd)
}
