package services

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const LeaderboardLimit = 50

type ScoreService struct {
	DB   *gorm.DB
	Gate *MembershipGate
	Now  func() time.Time
}

func NewScoreService(db *gorm.DB, gate *MembershipGate) *ScoreService {
	return &ScoreService{DB: db, Gate: gate, Now: time.Now}
}

// OverallScore is a user's mean Fun Score across every group they have a
// score in.
type OverallScore struct {
	Score      int `json:"score"`
	GroupCount int `json:"groupCount"`
}

type GroupScore struct {
	Score          int                    `json:"score"`
	Metrics        models.FunScoreMetrics `json:"metrics"`
	LastCalculated time.Time              `json:"lastCalculated"`
}

type LeaderboardEntry struct {
	Rank    int                    `json:"rank"`
	User    models.UserSummary     `json:"user"`
	Score   int                    `json:"score"`
	Metrics models.FunScoreMetrics `json:"metrics"`
}

type ScoreHistory struct {
	History      []models.FunScoreHistory `json:"history"`
	CurrentScore *int                     `json:"currentScore,omitempty"`
}

// Overall averages userID's current scores, rounding half up. A user with
// no score anywhere has the default score.
func (s *ScoreService) Overall(ctx context.Context, userID uuid.UUID) (*OverallScore, error) {
	var scores []int
	if err := s.DB.WithContext(ctx).Model(&models.FunScore{}).
		Where("user_id = ?", userID).
		Pluck("current_score", &scores).Error; err != nil {
		return nil, err
	}
	if len(scores) == 0 {
		return &OverallScore{Score: models.DefaultFunScore}, nil
	}

	sum := 0
	for _, score := range scores {
		sum += score
	}
	n := len(scores)
	return &OverallScore{Score: (sum*2 + n) / (n * 2), GroupCount: n}, nil
}

// ForGroup returns userID's score in groupID, creating the default record
// on first access. Both the requester and userID must belong to the group.
func (s *ScoreService) ForGroup(ctx context.Context, requesterID, userID, groupID uuid.UUID) (*GroupScore, error) {
	if _, err := s.Gate.RequireGroupMember(ctx, groupID, requesterID, "you are not a member of this group"); err != nil {
		return nil, err
	}
	if requesterID != userID {
		member, err := s.Gate.IsMember(ctx, groupID, userID)
		if err != nil {
			return nil, err
		}
		if !member {
			return nil, notFoundError("user is not a member of this group")
		}
	}

	score, err := ensureScore(s.DB.WithContext(ctx), userID, groupID, s.Now().UTC())
	if err != nil {
		return nil, err
	}
	return &GroupScore{
		Score:          score.CurrentScore,
		Metrics:        score.Metrics,
		LastCalculated: score.LastCalculated,
	}, nil
}

// ensureScore returns the (user, group) score row, inserting the default
// one if absent. Concurrent callers converge on a single row.
func ensureScore(db *gorm.DB, userID, groupID uuid.UUID, now time.Time) (*models.FunScore, error) {
	fresh := models.FunScore{
		UserID:         userID,
		GroupID:        groupID,
		CurrentScore:   models.DefaultFunScore,
		Metrics:        models.FunScoreMetrics{AttendanceRate: 100},
		LastCalculated: now,
	}
	if err := db.Omit(clause.Associations).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "group_id"}},
		DoNothing: true,
	}).Create(&fresh).Error; err != nil {
		return nil, err
	}

	var score models.FunScore
	if err := db.First(&score, "user_id = ? AND group_id = ?", userID, groupID).Error; err != nil {
		return nil, err
	}
	return &score, nil
}

// Leaderboard ranks up to LeaderboardLimit scores of a group, highest first.
// Ties keep creation order.
func (s *ScoreService) Leaderboard(ctx context.Context, groupID, requesterID uuid.UUID) ([]LeaderboardEntry, error) {
	if _, err := s.Gate.RequireGroupMember(ctx, groupID, requesterID, "you are not a member of this group"); err != nil {
		return nil, err
	}

	var scores []models.FunScore
	if err := s.DB.WithContext(ctx).
		Preload("User").
		Where("group_id = ?", groupID).
		Order("current_score DESC").
		Order("created_at ASC").
		Order("id ASC").
		Limit(LeaderboardLimit).
		Find(&scores).Error; err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(scores))
	for i, score := range scores {
		entries = append(entries, LeaderboardEntry{
			Rank:    i + 1,
			User:    score.User.Summary(),
			Score:   score.CurrentScore,
			Metrics: score.Metrics,
		})
	}
	return entries, nil
}

// History returns userID's score changes in groupID, oldest first. Unlike
// ForGroup it never creates a record.
func (s *ScoreService) History(ctx context.Context, requesterID, userID, groupID uuid.UUID) (*ScoreHistory, error) {
	if _, err := s.Gate.RequireGroupMember(ctx, groupID, requesterID, "you are not a member of this group"); err != nil {
		return nil, err
	}

	result := &ScoreHistory{History: []models.FunScoreHistory{}}

	var score models.FunScore
	err := s.DB.WithContext(ctx).
		Preload("History", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		First(&score, "user_id = ? AND group_id = ?", userID, groupID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return result, nil
	}
	if err != nil {
		return nil, err
	}

	if score.History != nil {
		result.History = score.History
	}
	current := score.CurrentScore
	result.CurrentScore = &current
	return result, nil
}

type AttendanceStats struct {
	AttendanceRate   int                  `json:"attendanceRate"`
	TotalEvents      int                  `json:"totalEvents"`
	AttendedEvents   int                  `json:"attendedEvents"`
	HostedEvents     int                  `json:"hostedEvents"`
	UpcomingEvents   int                  `json:"upcomingEvents"`
	TotalRSVPs       int                  `json:"totalRSVPs"`
	NoShows          int                  `json:"noShows"`
	ReliabilityScore string               `json:"reliabilityScore"`
	Stats            AttendanceHighlights `json:"stats"`
}

type AttendanceHighlights struct {
	EventsThisMonth         int    `json:"eventsThisMonth"`
	AverageEventsPerMonth   int    `json:"averageEventsPerMonth"`
	FavoriteEventDay        string `json:"favoriteEventDay,omitempty"`
	LongestAttendanceStreak int    `json:"longestAttendanceStreak"`
}

func reliabilityLabel(rate int) string {
	switch {
	case rate >= 80:
		return "High"
	case rate >= 60:
		return "Medium"
	default:
		return "Low"
	}
}

// AttendanceStats summarises userID's record over every event of every group
// they belong to, cancelled ones included.
func (s *ScoreService) AttendanceStats(ctx context.Context, userID uuid.UUID) (*AttendanceStats, error) {
	now := s.Now().UTC()
	stats := &AttendanceStats{}

	groupIDs, err := s.Gate.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	var events []models.Event
	if len(groupIDs) > 0 {
		if err := s.DB.WithContext(ctx).
			Where("group_id IN ?", groupIDs).
			Preload("Attendees", "user_id = ?", userID).
			Order("date_time ASC").
			Find(&events).Error; err != nil {
			return nil, err
		}
	}

	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	weekdays := map[time.Weekday]int{}
	streak := 0

	for _, event := range events {
		if !event.DateTime.Before(monthStart) && event.DateTime.Before(monthStart.AddDate(0, 1, 0)) {
			stats.Stats.EventsThisMonth++
		}
		if event.DateTime.After(now) {
			stats.UpcomingEvents++
			continue
		}
		if event.OrganizerID == userID {
			stats.HostedEvents++
		}

		attendee := event.FindAttendee(userID)
		if attendee == nil || attendee.Status != models.RSVPGoing {
			continue
		}
		stats.TotalRSVPs++
		if attendee.CheckedIn {
			stats.AttendedEvents++
			weekdays[event.DateTime.Weekday()]++
			streak++
			if streak > stats.Stats.LongestAttendanceStreak {
				stats.Stats.LongestAttendanceStreak = streak
			}
		} else {
			stats.NoShows++
			streak = 0
		}
	}

	stats.TotalEvents = len(events)
	stats.AttendanceRate = 100
	if stats.TotalRSVPs > 0 {
		stats.AttendanceRate = (stats.AttendedEvents*200 + stats.TotalRSVPs) / (stats.TotalRSVPs * 2)
	}
	stats.ReliabilityScore = reliabilityLabel(stats.AttendanceRate)
	// Three months of history, rounded half up.
	stats.Stats.AverageEventsPerMonth = (stats.TotalEvents*2 + 3) / 6
	stats.Stats.FavoriteEventDay = favoriteWeekday(weekdays)
	return stats, nil
}

func favoriteWeekday(counts map[time.Weekday]int) string {
	if len(counts) == 0 {
		return ""
	}
	days := make([]time.Weekday, 0, len(counts))
	for day := range counts {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool {
		if counts[days[i]] != counts[days[j]] {
			return counts[days[i]] > counts[days[j]]
		}
		return days[i] < days[j]
	})
	return days[0].String()
}
