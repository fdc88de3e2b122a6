package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// EventSchemaVersion identifies the structured-location, multi-group event
// shape. Rows written by older clients carry a lower version and are
// rewritten by the migration in the database package.
const EventSchemaVersion = 2

const (
	MaxEventTitleLength       = 100
	MaxEventDescriptionLength = 500
	MaxEventLocationLength    = 200
	MaxEventTagLength         = 20
)

type EventStatus string

const (
	EventStatusUpcoming  EventStatus = "upcoming"
	EventStatusOngoing   EventStatus = "ongoing"
	EventStatusCompleted EventStatus = "completed"
	EventStatusCancelled EventStatus = "cancelled"
)

type RSVPStatus string

const (
	RSVPGoing    RSVPStatus = "going"
	RSVPMaybe    RSVPStatus = "maybe"
	RSVPNotGoing RSVPStatus = "not_going"
)

func (s RSVPStatus) Valid() bool {
	switch s {
	case RSVPGoing, RSVPMaybe, RSVPNotGoing:
		return true
	default:
		return false
	}
}

type EventLocation struct {
	Name      string   `json:"name" gorm:"type:varchar(200);not null"`
	Address   string   `json:"address,omitempty" gorm:"type:varchar(300);not null;default:''"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

type Event struct {
	BaseModel
	SchemaVersion  int             `json:"schemaVersion" gorm:"not null;default:2"`
	Title          string          `json:"title" gorm:"type:varchar(100);not null"`
	Description    string          `json:"description" gorm:"type:varchar(500);not null;default:''"`
	DateTime       time.Time       `json:"dateTime" gorm:"not null;index"`
	Location       EventLocation   `json:"location" gorm:"embedded;embeddedPrefix:location_"`
	OrganizerID    uuid.UUID       `json:"organizerID" gorm:"type:uuid;not null;index"`
	Organizer      User            `json:"organizer" gorm:"foreignKey:OrganizerID"`
	GroupID        uuid.UUID       `json:"groupID" gorm:"type:uuid;not null;index"`
	Group          *Group          `json:"group,omitempty" gorm:"foreignKey:GroupID"`
	InvitedGroups  []Group         `json:"invitedGroups,omitempty" gorm:"many2many:event_invited_groups"`
	MaxAttendees   *int            `json:"maxAttendees,omitempty"`
	Tags           datatypes.JSON  `json:"tags" gorm:"type:json"`
	IsPublic       bool            `json:"isPublic" gorm:"not null;default:false"`
	Status         EventStatus     `json:"status" gorm:"type:varchar(20);not null;default:'upcoming';index"`
	SettledAt      *time.Time      `json:"settledAt,omitempty" gorm:"index"`
	Attendees      []EventAttendee `json:"attendees" gorm:"foreignKey:EventID"`
	AttendeeCount  int             `json:"attendeeCount" gorm:"-"`
	CheckedInCount int             `json:"checkedInCount" gorm:"-"`
}

// RefreshCounts derives the going and checked-in counters from the loaded
// attendee list. Only going attendees count as checked in.
func (e *Event) RefreshCounts() {
	e.AttendeeCount = 0
	e.CheckedInCount = 0
	for _, a := range e.Attendees {
		if a.Status != RSVPGoing {
			continue
		}
		e.AttendeeCount++
		if a.CheckedIn {
			e.CheckedInCount++
		}
	}
}

// FindAttendee returns the attendee record for userID, if loaded.
func (e *Event) FindAttendee(userID uuid.UUID) *EventAttendee {
	for i := range e.Attendees {
		if e.Attendees[i].UserID == userID {
			return &e.Attendees[i]
		}
	}
	return nil
}

// EventAttendee is the per-user RSVP and check-in record of an event. At most
// one row exists per (event, user).
type EventAttendee struct {
	BaseModel
	EventID         uuid.UUID  `json:"eventID" gorm:"type:uuid;not null;uniqueIndex:idx_event_user"`
	UserID          uuid.UUID  `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_event_user"`
	Status          RSVPStatus `json:"status" gorm:"type:varchar(20);not null"`
	RSVPAt          time.Time  `json:"rsvpAt" gorm:"column:rsvp_at;not null"`
	CheckedIn       bool       `json:"checkedIn" gorm:"not null;default:false"`
	CheckInTime     *time.Time `json:"checkInTime,omitempty"`
	CheckInLocation *string    `json:"checkInLocation,omitempty" gorm:"type:varchar(200)"`
	User            User       `json:"user" gorm:"foreignKey:UserID"`
}

func (EventAttendee) TableName() string {
	return "event_attendees"
}
