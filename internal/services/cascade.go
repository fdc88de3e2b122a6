package services

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"gorm.io/gorm"
)

// The helpers below run inside a caller-owned transaction. Score history rows
// that reference a deleted event are kept; history is never rewritten.

func deleteEventsTx(tx *gorm.DB, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	if err := tx.Where("event_id IN ?", eventIDs).Delete(&models.EventAttendee{}).Error; err != nil {
		return fmt.Errorf("deleting attendees: %w", err)
	}
	if err := tx.Exec("DELETE FROM event_invited_groups WHERE event_id IN ?", eventIDs).Error; err != nil {
		return fmt.Errorf("deleting event invitations: %w", err)
	}
	if err := tx.Where("id IN ?", eventIDs).Delete(&models.Event{}).Error; err != nil {
		return fmt.Errorf("deleting events: %w", err)
	}
	return nil
}

func deleteScoresTx(tx *gorm.DB, column string, id uuid.UUID) error {
	scoreIDs := tx.Model(&models.FunScore{}).Select("id").Where(column+" = ?", id)
	if err := tx.Where("fun_score_id IN (?)", scoreIDs).Delete(&models.FunScoreHistory{}).Error; err != nil {
		return fmt.Errorf("deleting score history: %w", err)
	}
	if err := tx.Where(column+" = ?", id).Delete(&models.FunScore{}).Error; err != nil {
		return fmt.Errorf("deleting scores: %w", err)
	}
	return nil
}

// deleteGroupTx removes a group with its events, memberships, invitations,
// scores and activity feed entries.
func deleteGroupTx(tx *gorm.DB, groupID uuid.UUID) error {
	var eventIDs []uuid.UUID
	if err := tx.Model(&models.Event{}).Where("group_id = ?", groupID).Pluck("id", &eventIDs).Error; err != nil {
		return fmt.Errorf("listing group events: %w", err)
	}
	if err := deleteEventsTx(tx, eventIDs); err != nil {
		return err
	}
	if err := tx.Exec("DELETE FROM event_invited_groups WHERE group_id = ?", groupID).Error; err != nil {
		return fmt.Errorf("deleting group invitations: %w", err)
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.GroupMembership{}).Error; err != nil {
		return fmt.Errorf("deleting memberships: %w", err)
	}
	if err := deleteScoresTx(tx, "group_id", groupID); err != nil {
		return err
	}
	if err := tx.Where("group_id = ?", groupID).Delete(&models.Activity{}).Error; err != nil {
		return fmt.Errorf("deleting activities: %w", err)
	}
	if err := tx.Where("id = ?", groupID).Delete(&models.Group{}).Error; err != nil {
		return fmt.Errorf("deleting group: %w", err)
	}
	return nil
}

// removeMemberTx drops userID from groupID. When userID administers the
// group the earliest-joined remaining member is promoted; when nobody is left
// the group is deleted. It reports whether the group was deleted.
func removeMemberTx(tx *gorm.DB, group *models.Group, userID uuid.UUID) (bool, error) {
	if err := tx.Where("group_id = ? AND user_id = ?", group.ID, userID).Delete(&models.GroupMembership{}).Error; err != nil {
		return false, fmt.Errorf("deleting membership: %w", err)
	}

	if group.AdminID != userID {
		return false, nil
	}

	var next models.GroupMembership
	err := tx.Where("group_id = ?", group.ID).Order("joined_at ASC").Order("id ASC").First(&next).Error
	if err == gorm.ErrRecordNotFound {
		return true, deleteGroupTx(tx, group.ID)
	}
	if err != nil {
		return false, fmt.Errorf("finding next admin: %w", err)
	}

	if err := tx.Model(&models.GroupMembership{}).Where("id = ?", next.ID).Update("role", models.GroupRoleAdmin).Error; err != nil {
		return false, fmt.Errorf("promoting member: %w", err)
	}
	if err := tx.Model(&models.Group{}).Where("id = ?", group.ID).Update("admin_id", next.UserID).Error; err != nil {
		return false, fmt.Errorf("transferring admin: %w", err)
	}
	group.AdminID = next.UserID
	return false, nil
}
