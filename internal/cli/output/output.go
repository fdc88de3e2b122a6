package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/huddle/server/internal/cli/api"
)

// Out is where every printer writes.
var Out io.Writer = os.Stdout

func newTabWriter() *tabwriter.Writer {
	return tabwriter.NewWriter(Out, 0, 0, 2, ' ', 0)
}

// JSON prints v as indented JSON.
func JSON(v interface{}) {
	enc := json.NewEncoder(Out)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// GroupTable prints the caller's groups.
func GroupTable(groups []api.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(Out, "No groups found.")
		return
	}

	w := newTabWriter()
	fmt.Fprintln(w, "ID\tNAME\tMEMBERS\tROLE\tINVITE CODE")
	for _, g := range groups {
		role := g.UserRole
		if role == "" {
			role = "-"
		}
		members := fmt.Sprintf("%d/%d", g.MemberCount, g.Settings.MaxMembers)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", g.ID, g.Name, members, role, g.InviteCode)
	}
	w.Flush()
}

// EventTable prints events in the order given.
func EventTable(events []api.Event, now time.Time) {
	if len(events) == 0 {
		fmt.Fprintln(Out, "No events found.")
		return
	}

	w := newTabWriter()
	fmt.Fprintln(w, "ID\tTITLE\tWHEN\tWHERE\tGOING\tSTATUS")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Title, When(e.DateTime, now), e.Location.Name, capacity(e), e.Status)
	}
	w.Flush()
}

// EventDetail prints a single event with its attendee list.
func EventDetail(e api.Event) {
	w := newTabWriter()
	fmt.Fprintf(w, "Title:\t%s\n", e.Title)
	fmt.Fprintf(w, "ID:\t%s\n", e.ID)
	if e.Description != "" {
		fmt.Fprintf(w, "Description:\t%s\n", e.Description)
	}
	fmt.Fprintf(w, "When:\t%s\n", e.DateTime.Local().Format("Mon 02 Jan 2006 15:04"))
	fmt.Fprintf(w, "Where:\t%s\n", formatLocation(e.Location))
	fmt.Fprintf(w, "Organizer:\t%s\n", e.Organizer.Name)
	if e.Group != nil {
		fmt.Fprintf(w, "Group:\t%s\n", e.Group.Name)
	}
	fmt.Fprintf(w, "Status:\t%s\n", e.Status)
	fmt.Fprintf(w, "Going:\t%s\n", capacity(e))
	fmt.Fprintf(w, "Checked in:\t%d\n", e.CheckedInCount)
	if len(e.Tags) > 0 {
		fmt.Fprintf(w, "Tags:\t%s\n", strings.Join(e.Tags, ", "))
	}
	w.Flush()

	if len(e.Attendees) == 0 {
		return
	}
	fmt.Fprintln(Out)
	w = newTabWriter()
	fmt.Fprintln(w, "ATTENDEE\tRSVP\tCHECKED IN")
	for _, a := range e.Attendees {
		checked := "-"
		if a.CheckedIn {
			checked = "yes"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", a.User.Name, a.Status, checked)
	}
	w.Flush()
}

// UserInfo prints user details.
func UserInfo(u api.User) {
	w := newTabWriter()
	fmt.Fprintf(w, "Name:\t%s\n", u.Name)
	fmt.Fprintf(w, "Email:\t%s\n", u.Email)
	fmt.Fprintf(w, "Role:\t%s\n", u.Role)
	fmt.Fprintf(w, "ID:\t%s\n", u.ID)
	if u.Bio != "" {
		fmt.Fprintf(w, "Bio:\t%s\n", u.Bio)
	}
	w.Flush()
}

// ScoreInfo prints an overall or per-group Fun Score.
func ScoreInfo(s api.Score) {
	w := newTabWriter()
	fmt.Fprintf(w, "Fun Score:\t%d\n", s.Score)
	if s.Metrics == nil {
		fmt.Fprintf(w, "Groups:\t%d\n", s.GroupCount)
		w.Flush()
		return
	}
	fmt.Fprintf(w, "Attended:\t%d\n", s.Metrics.EventsAttended)
	fmt.Fprintf(w, "Hosted:\t%d\n", s.Metrics.EventsHosted)
	fmt.Fprintf(w, "No-shows:\t%d\n", s.Metrics.NoShows)
	fmt.Fprintf(w, "Attendance:\t%d%%\n", s.Metrics.AttendanceRate)
	w.Flush()
}

// LeaderboardTable prints ranked scores.
func LeaderboardTable(entries []api.LeaderboardEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(Out, "No scores yet.")
		return
	}

	w := newTabWriter()
	fmt.Fprintln(w, "RANK\tNAME\tSCORE\tATTENDED\tHOSTED\tNO-SHOWS")
	for _, e := range entries {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\t%d\n",
			e.Rank, e.User.Name, e.Score, e.Metrics.EventsAttended, e.Metrics.EventsHosted, e.Metrics.NoShows)
	}
	w.Flush()
}

func capacity(e api.Event) string {
	if e.MaxAttendees != nil {
		return fmt.Sprintf("%d/%d", e.AttendeeCount, *e.MaxAttendees)
	}
	return fmt.Sprintf("%d", e.AttendeeCount)
}

func formatLocation(l api.Location) string {
	if l.Address == "" {
		return l.Name
	}
	return l.Name + ", " + l.Address
}

// When formats an event time relative to now ("in 3h", "2d ago").
func When(t, now time.Time) string {
	d := t.Sub(now)
	if d < 0 {
		return RelativeTime(t, now)
	}
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("in %dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("in %dh", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("in %dd", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// RelativeTime formats a past timestamp relative to now (e.g. "2h ago").
func RelativeTime(t, now time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}

// HistoryTable prints score changes oldest first.
func HistoryTable(h api.ScoreHistory, now time.Time) {
	if len(h.History) == 0 {
		fmt.Fprintln(Out, "No score changes yet.")
		return
	}

	w := newTabWriter()
	fmt.Fprintln(w, "WHEN\tDELTA\tSCORE\tREASON")
	for _, entry := range h.History {
		fmt.Fprintf(w, "%s\t%+d\t%d\t%s\n", RelativeTime(entry.Timestamp, now), entry.Delta, entry.Score, entry.Reason)
	}
	w.Flush()
	if h.CurrentScore != nil {
		fmt.Fprintf(Out, "\nCurrent score: %d\n", *h.CurrentScore)
	}
}
