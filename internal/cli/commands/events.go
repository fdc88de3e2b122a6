package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/huddle/server/internal/cli/api"
	"github.com/huddle/server/internal/cli/output"
	"github.com/spf13/cobra"
)

var (
	flagEventGroup       string
	flagEventTitle       string
	flagEventDescription string
	flagEventAt          string
	flagEventLocation    string
	flagEventAddress     string
	flagEventMax         int
	flagEventTags        []string
	flagCheckInLocation  string
)

var eventsCmd = &cobra.Command{
	Use:     "events",
	Aliases: []string{"event"},
	Short:   "Browse, create, RSVP to and check in to events",
}

var eventsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List upcoming events across your groups",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.EventList]
		if err := apiClient.Get("/events/user", nil, &resp); err != nil {
			return wrapAuthError("listing events", err)
		}
		if flagJSON {
			output.JSON(resp.Data.Events)
			return nil
		}
		output.EventTable(resp.Data.Events, now())
		return nil
	},
}

var eventsShowCmd = &cobra.Command{
	Use:   "show EVENT_ID",
	Short: "Show an event with its attendees",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var resp api.Response[api.Event]
		if err := apiClient.Get("/events/"+args[0], nil, &resp); err != nil {
			return wrapAuthError("fetching event", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		output.EventDetail(resp.Data)
		return nil
	},
}

var eventsCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an event in one of your groups",
	Example: `  huddle events create --group GROUP_ID --title "Trivia night" \
    --at 2026-06-01T19:30:00Z --location "The Crown" --tag quiz`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		at, err := time.Parse(time.RFC3339, flagEventAt)
		if err != nil {
			return fmt.Errorf("--at must be an RFC 3339 timestamp: %w", err)
		}

		body := map[string]interface{}{
			"title":       flagEventTitle,
			"description": flagEventDescription,
			"dateTime":    at,
			"groupId":     flagEventGroup,
			"location":    api.Location{Name: flagEventLocation, Address: flagEventAddress},
			"tags":        flagEventTags,
		}
		if flagEventMax > 0 {
			body["maxAttendees"] = flagEventMax
		}

		var resp api.Response[api.Event]
		if err := apiClient.Post("/events", body, &resp); err != nil {
			return wrapAuthError("creating event", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Out, "Created %s (%s)\n", resp.Data.Title, resp.Data.ID)
		return nil
	},
}

var eventsRSVPCmd = &cobra.Command{
	Use:       "rsvp EVENT_ID going|maybe|not_going",
	Short:     "Set your RSVP for an event",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"going", "maybe", "not_going"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		status := strings.ReplaceAll(strings.ToLower(args[1]), "-", "_")
		var resp api.Response[api.Event]
		if err := apiClient.Put("/events/"+args[0]+"/rsvp", map[string]string{"status": status}, &resp); err != nil {
			return wrapAuthError("updating RSVP", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Out, "RSVP for %s set to %s\n", resp.Data.Title, status)
		return nil
	},
}

var eventsCheckInCmd = &cobra.Command{
	Use:   "checkin EVENT_ID",
	Short: "Check in to an event you are going to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireAuth(); err != nil {
			return err
		}

		var body interface{}
		if flagCheckInLocation != "" {
			body = map[string]string{"location": flagCheckInLocation}
		}
		var resp api.Response[api.Event]
		if err := apiClient.Post("/events/"+args[0]+"/checkin", body, &resp); err != nil {
			return wrapAuthError("checking in", err)
		}
		if flagJSON {
			output.JSON(resp.Data)
			return nil
		}
		fmt.Fprintf(output.Out, "Checked in to %s\n", resp.Data.Title)
		return nil
	},
}

func init() {
	f := eventsCreateCmd.Flags()
	f.StringVar(&flagEventGroup, "group", "", "Group ID the event belongs to")
	f.StringVar(&flagEventTitle, "title", "", "Event title")
	f.StringVar(&flagEventDescription, "description", "", "Event description")
	f.StringVar(&flagEventAt, "at", "", "Start time (RFC 3339)")
	f.StringVar(&flagEventLocation, "location", "", "Venue name")
	f.StringVar(&flagEventAddress, "address", "", "Venue address")
	f.IntVar(&flagEventMax, "max", 0, "Attendee cap")
	f.StringSliceVar(&flagEventTags, "tag", nil, "Tag (repeatable)")
	for _, name := range []string{"group", "title", "at", "location"} {
		_ = eventsCreateCmd.MarkFlagRequired(name)
	}

	eventsCheckInCmd.Flags().StringVar(&flagCheckInLocation, "location", "", "Where you are checking in from")

	eventsCmd.AddCommand(eventsListCmd, eventsShowCmd, eventsCreateCmd, eventsRSVPCmd, eventsCheckInCmd)
	rootCmd.AddCommand(eventsCmd)
}
