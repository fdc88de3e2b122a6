package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Settler turns finished events into Fun Score changes. An event becomes due
// once its check-in window has closed.
type Settler struct {
	DB    *gorm.DB
	Rules config.ScoringRules
	Audit *AuditService
	Now   func() time.Time
}

func NewSettler(db *gorm.DB, rules config.ScoringRules, audit *AuditService) *Settler {
	return &Settler{DB: db, Rules: rules, Audit: audit, Now: time.Now}
}

type SettlementResult struct {
	EventID   uuid.UUID `json:"eventID"`
	Attended  int       `json:"attended"`
	NoShows   int       `json:"noShows"`
	HostDelta int       `json:"hostDelta"`
}

// HostReward is the score change granted to an organizer whose event had
// checkedIn attendees.
func (s *Settler) HostReward(checkedIn int) int {
	bonus := checkedIn * s.Rules.HostBonusPerAttendee
	if bonus > s.Rules.HostBonusCap {
		bonus = s.Rules.HostBonusCap
	}
	return s.Rules.HostDelta + bonus
}

// SettleDue marks started events as ongoing and settles every event whose
// check-in window has closed.
func (s *Settler) SettleDue(ctx context.Context) ([]SettlementResult, error) {
	now := s.Now().UTC()

	if err := s.DB.WithContext(ctx).Model(&models.Event{}).
		Where("status = ? AND date_time <= ? AND settled_at IS NULL", models.EventStatusUpcoming, now).
		Update("status", models.EventStatusOngoing).Error; err != nil {
		return nil, fmt.Errorf("marking ongoing events: %w", err)
	}

	var due []uuid.UUID
	if err := s.DB.WithContext(ctx).Model(&models.Event{}).
		Where("settled_at IS NULL AND status <> ? AND date_time < ?", models.EventStatusCancelled, now.Add(-CheckInWindow)).
		Order("date_time ASC").
		Pluck("id", &due).Error; err != nil {
		return nil, fmt.Errorf("listing due events: %w", err)
	}

	results := make([]SettlementResult, 0, len(due))
	for _, eventID := range due {
		result, err := s.SettleEvent(ctx, eventID)
		if err != nil {
			return results, err
		}
		if result != nil {
			results = append(results, *result)
		}
	}
	return results, nil
}

// SettleEvent applies the score changes of one event. It returns nil when
// the event was already settled or is cancelled; the settled_at guard makes
// each event count exactly once even with several settlers running.
func (s *Settler) SettleEvent(ctx context.Context, eventID uuid.UUID) (*SettlementResult, error) {
	now := s.Now().UTC()
	var result *SettlementResult
	var event models.Event

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		claim := tx.Model(&models.Event{}).
			Where("id = ? AND settled_at IS NULL AND status <> ?", eventID, models.EventStatusCancelled).
			Updates(map[string]interface{}{
				"settled_at": now,
				"status":     models.EventStatusCompleted,
			})
		if claim.Error != nil {
			return claim.Error
		}
		if claim.RowsAffected == 0 {
			return nil
		}

		if err := tx.Preload("Attendees", "status = ?", models.RSVPGoing).
			First(&event, "id = ?", eventID).Error; err != nil {
			return err
		}

		res := SettlementResult{EventID: eventID}
		for _, attendee := range event.Attendees {
			if attendee.CheckedIn {
				res.Attended++
			} else {
				res.NoShows++
			}

			groupID, ok, err := scoreGroupFor(tx, &event, attendee.UserID)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}

			if attendee.CheckedIn {
				err = s.applyScoreChange(tx, attendee.UserID, groupID, &event.ID, s.Rules.AttendDelta,
					"attended "+event.Title, now, func(m *models.FunScoreMetrics) {
						m.TotalRSVPs++
						m.EventsAttended++
					})
			} else {
				err = s.applyScoreChange(tx, attendee.UserID, groupID, &event.ID, -s.Rules.NoShowPenalty,
					"no-show at "+event.Title, now, func(m *models.FunScoreMetrics) {
						m.TotalRSVPs++
						m.NoShows++
					})
			}
			if err != nil {
				return err
			}
		}

		groupID, ok, err := scoreGroupFor(tx, &event, event.OrganizerID)
		if err != nil {
			return err
		}
		if ok {
			res.HostDelta = s.HostReward(res.Attended)
			if err := s.applyScoreChange(tx, event.OrganizerID, groupID, &event.ID, res.HostDelta,
				"hosted "+event.Title, now, func(m *models.FunScoreMetrics) {
					m.EventsHosted++
				}); err != nil {
				return err
			}
		}

		result = &res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("settling event %s: %w", eventID, err)
	}
	if result == nil {
		return nil, nil
	}

	logger.Info("event_settled", map[string]interface{}{
		"event_id":   eventID.String(),
		"attended":   result.Attended,
		"no_shows":   result.NoShows,
		"host_delta": result.HostDelta,
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &event.OrganizerID,
		Action:       "event.settle",
		ResourceType: "event",
		ResourceID:   &eventID,
		GroupID:      &event.GroupID,
		Details: map[string]interface{}{
			"attended": result.Attended,
			"no_shows": result.NoShows,
		},
	})
	return result, nil
}

// scoreGroupFor picks the group a user's score for event is kept in: the
// primary group when they belong to it, otherwise the earliest joined of the
// invited groups. ok is false when the user belongs to none of them.
func scoreGroupFor(tx *gorm.DB, event *models.Event, userID uuid.UUID) (uuid.UUID, bool, error) {
	var count int64
	if err := tx.Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", event.GroupID, userID).
		Count(&count).Error; err != nil {
		return uuid.Nil, false, err
	}
	if count > 0 {
		return event.GroupID, true, nil
	}

	var membership models.GroupMembership
	err := tx.Where("user_id = ?", userID).
		Where("group_id IN (?)", tx.Table("event_invited_groups").Select("group_id").Where("event_id = ?", event.ID)).
		Order("joined_at ASC").
		First(&membership).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, err
	}
	return membership.GroupID, true, nil
}

// applyScoreChange adds delta to a score, clamped to the valid range, and
// appends the change actually applied to the history.
func (s *Settler) applyScoreChange(tx *gorm.DB, userID, groupID uuid.UUID, eventID *uuid.UUID, delta int, reason string, now time.Time, mutate func(*models.FunScoreMetrics)) error {
	if _, err := ensureScore(tx, userID, groupID, now); err != nil {
		return err
	}

	var score models.FunScore
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&score, "user_id = ? AND group_id = ?", userID, groupID).Error; err != nil {
		return err
	}

	next := models.ClampFunScore(score.CurrentScore + delta)
	applied := next - score.CurrentScore
	mutate(&score.Metrics)
	score.Metrics.Recalculate()
	score.CurrentScore = next
	score.LastCalculated = now

	if err := tx.Omit(clause.Associations).Save(&score).Error; err != nil {
		return err
	}

	if len(reason) > 200 {
		reason = reason[:200]
	}
	return tx.Create(&models.FunScoreHistory{
		FunScoreID: score.ID,
		EventID:    eventID,
		Score:      next,
		Delta:      applied,
		Reason:     reason,
		CreatedAt:  now,
	}).Error
}

// Start runs SettleDue every interval until ctx is cancelled.
func (s *Settler) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		logger.Info("settler_disabled", map[string]interface{}{
			"interval": interval.String(),
		})
		return
	}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := s.SettleDue(ctx); err != nil {
					logger.Error("settlement_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("settler_started", map[string]interface{}{
		"interval": interval.String(),
	})
}
