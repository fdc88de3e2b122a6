package commands

import (
	"fmt"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	flagGroupDescription string
	flagGroupMaxMembers  int
	flagGroupPrivate     bool
)

var groupsCmd = &cobra.Command{
	Use:     "groups",
	Aliases: []string{"group"},
	Short:   "List, create, join and leave groups",
}

var groupsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List the groups you belong to",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[[]api.Group]
		if err := apiClient.Get("/groups", nil, &resp); err != nil {
			return wrapAuthError("listing groups", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.GroupTable(resp.Data)
		return nil
	},
}

var groupsCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a group and become its admin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		body := map[string]interface{}{
			"name":        args[0],
			"description": flagGroupDescription,
			"isPrivate":   flagGroupPrivate,
		}
		if flagGroupMaxMembers > 0 {
			body["maxMembers"] = flagGroupMaxMembers
		}

		var resp api.Response[api.Group]
		if err := apiClient.Post("/groups", body, &resp); err != nil {
			return wrapAuthError("creating group", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Out, "Created %s (invite code %s)\n", resp.Data.Name, resp.Data.InviteCode)
		return nil
	},
}

var groupsJoinCmd = &cobra.Command{
	Use:   "join INVITE_CODE",
	Short: "Join a group with its invite code",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.Group]
		if err := apiClient.Post("/groups/join", map[string]string{"inviteCode": args[0]}, &resp); err != nil {
			return wrapAuthError("joining group", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintln(output.Out, resp.Message)
		return nil
	},
}

var groupsLeaveCmd = &cobra.Command{
	Use:   "leave GROUP_ID",
	Short: "Leave a group",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.LeaveResult]
		if err := apiClient.Delete("/groups/"+args[0]+"/leave", &resp); err != nil {
			return wrapAuthError("leaving group", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		if resp.Data.GroupDeleted {
			fmt.Fprintln(output.Out, "Left the group. It had no other members and was deleted.")
			return nil
		}
		fmt.Fprintln(output.Out, "Left the group.")
		return nil
	},
}

var groupsEventsCmd = &cobra.Command{
	Use:   "events GROUP_ID",
	Short: "List a group's upcoming events",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.EventList]
		if err := apiClient.Get("/groups/"+args[0]+"/events", nil, &resp); err != nil {
			return wrapAuthError("listing group events", err)
		}
		if flagJSON {
			output.JSON(resp.Data.Events)
			return nil
		}
		output.EventTable(resp.Data.Events, now())
		return nil
	},
}

func init() {
	groupsCreateCmd.Flags().StringVar(&flagGroupDescription, "description", "", "Group description")
	groupsCreateCmd.Flags().IntVar(&flagGroupMaxMembers, "max-members", 0, "Member cap (server default when omitted)")
	groupsCreateCmd.Flags().BoolVar(&flagGroupPrivate, "private", false, "Mark the group private")

	groupsCmd.AddCommand(groupsListCmd, groupsCreateCmd, groupsJoinCmd, groupsLeaveCmd, groupsEventsCmd)
	rootCmd.AddCommand(groupsCmd)
}
