package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	MinFunScore     = 300
	MaxFunScore     = 850
	DefaultFunScore = 500
)

// ClampFunScore bounds a score to the valid Fun Score range.
func ClampFunScore(score int) int {
	if score < MinFunScore {
		return MinFunScore
	}
	if score > MaxFunScore {
		return MaxFunScore
	}
	return score
}

type FunScoreMetrics struct {
	EventsAttended   int `json:"eventsAttended" gorm:"not null;default:0"`
	EventsHosted     int `json:"eventsHosted" gorm:"not null;default:0"`
	TotalRSVPs       int `json:"totalRSVPs" gorm:"column:total_rsvps;not null;default:0"`
	NoShows          int `json:"noShows" gorm:"not null;default:0"`
	AttendanceRate   int `json:"attendanceRate" gorm:"not null;default:100"`
	HostingFrequency int `json:"hostingFrequency" gorm:"not null;default:0"`
}

// Recalculate derives the rate metrics from the counters.
func (m *FunScoreMetrics) Recalculate() {
	m.AttendanceRate = 100
	if m.TotalRSVPs > 0 {
		m.AttendanceRate = roundPercent(m.EventsAttended, m.TotalRSVPs)
	}
	m.HostingFrequency = 0
	if participated := m.EventsHosted + m.TotalRSVPs; participated > 0 {
		m.HostingFrequency = roundPercent(m.EventsHosted, participated)
	}
}

func roundPercent(part, whole int) int {
	return (part*200 + whole) / (whole * 2)
}

type FunScore struct {
	BaseModel
	UserID         uuid.UUID         `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_fun_score_user_group"`
	GroupID        uuid.UUID         `json:"groupID" gorm:"type:uuid;not null;index;uniqueIndex:idx_fun_score_user_group"`
	CurrentScore   int               `json:"currentScore" gorm:"not null;default:500;index"`
	Metrics        FunScoreMetrics   `json:"metrics" gorm:"embedded;embeddedPrefix:metrics_"`
	LastCalculated time.Time         `json:"lastCalculated" gorm:"not null"`
	History        []FunScoreHistory `json:"history,omitempty" gorm:"foreignKey:FunScoreID"`
	User           User              `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// FunScoreHistory is one entry of the append-only score change log.
// It does not use BaseModel because rows are never updated.
type FunScoreHistory struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	FunScoreID uuid.UUID  `json:"-" gorm:"type:uuid;not null;index"`
	EventID    *uuid.UUID `json:"eventID,omitempty" gorm:"type:uuid;index"`
	Score      int        `json:"score" gorm:"not null"`
	Delta      int        `json:"delta" gorm:"not null"`
	Reason     string     `json:"reason" gorm:"type:varchar(200);not null"`
	CreatedAt  time.Time  `json:"timestamp" gorm:"not null;index"`
}

func (h *FunScoreHistory) BeforeCreate(_ *gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	return nil
}

func (FunScoreHistory) TableName() string {
	return "fun_score_history"
}
