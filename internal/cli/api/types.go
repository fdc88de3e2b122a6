package api

import "time"

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Bio       string    `json:"bio"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	CreatedAt time.Time `json:"createdAt"`
}

type UserSummary struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type GroupSettings struct {
	IsPrivate       bool `json:"isPrivate"`
	RequireApproval bool `json:"requireApproval"`
	MaxMembers      int  `json:"maxMembers"`
}

type Group struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	InviteCode  string        `json:"inviteCode"`
	AdminID     string        `json:"adminID"`
	Settings    GroupSettings `json:"settings"`
	MemberCount int           `json:"memberCount"`
	UserRole    string        `json:"userRole,omitempty"`
	IsAdmin     bool          `json:"isAdmin"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type LeaveResult struct {
	GroupDeleted bool `json:"groupDeleted"`
}

type Location struct {
	Name      string   `json:"name"`
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Attendee struct {
	UserID      string     `json:"userID"`
	Status      string     `json:"status"`
	CheckedIn   bool       `json:"checkedIn"`
	CheckInTime *time.Time `json:"checkInTime,omitempty"`
	User        User       `json:"user"`
}

type Event struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	DateTime       time.Time  `json:"dateTime"`
	Location       Location   `json:"location"`
	OrganizerID    string     `json:"organizerID"`
	Organizer      User       `json:"organizer"`
	GroupID        string     `json:"groupID"`
	Group          *Group     `json:"group,omitempty"`
	MaxAttendees   *int       `json:"maxAttendees,omitempty"`
	Tags           []string   `json:"tags"`
	IsPublic       bool       `json:"isPublic"`
	Status         string     `json:"status"`
	Attendees      []Attendee `json:"attendees"`
	AttendeeCount  int        `json:"attendeeCount"`
	CheckedInCount int        `json:"checkedInCount"`
}

type EventList struct {
	Events []Event `json:"events"`
	Count  int     `json:"count"`
}

type ScoreMetrics struct {
	EventsAttended   int `json:"eventsAttended"`
	EventsHosted     int `json:"eventsHosted"`
	TotalRSVPs       int `json:"totalRSVPs"`
	NoShows          int `json:"noShows"`
	AttendanceRate   int `json:"attendanceRate"`
	HostingFrequency int `json:"hostingFrequency"`
}

// Score covers both the overall and the per-group score payloads.
type Score struct {
	Score      int           `json:"score"`
	GroupCount int           `json:"groupCount,omitempty"`
	Metrics    *ScoreMetrics `json:"metrics,omitempty"`
}

type LeaderboardEntry struct {
	Rank    int          `json:"rank"`
	User    UserSummary  `json:"user"`
	Score   int          `json:"score"`
	Metrics ScoreMetrics `json:"metrics"`
}

type HistoryEntry struct {
	EventID   *string   `json:"eventID,omitempty"`
	Score     int       `json:"score"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

type ScoreHistory struct {
	History      []HistoryEntry `json:"history"`
	CurrentScore *int           `json:"currentScore,omitempty"`
}
