package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"gorm.io/gorm"
)

// MembershipGate answers group membership questions. Every answer is read
// from the store at call time so a revoked membership takes effect on the
// very next request.
type MembershipGate struct {
	DB *gorm.DB
}

func NewMembershipGate(db *gorm.DB) *MembershipGate {
	return &MembershipGate{DB: db}
}

// Membership returns the caller's membership row, or gorm.ErrRecordNotFound.
func (g *MembershipGate) Membership(ctx context.Context, groupID, userID uuid.UUID) (*models.GroupMembership, error) {
	var membership models.GroupMembership
	err := g.DB.WithContext(ctx).First(&membership, "group_id = ? AND user_id = ?", groupID, userID).Error
	if err != nil {
		return nil, err
	}
	return &membership, nil
}

func (g *MembershipGate) IsMember(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	err := g.DB.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("group_id = ? AND user_id = ?", groupID, userID).
		Count(&count).Error
	return count > 0, err
}

// RequireMember fails with a forbidden error carrying message unless userID
// belongs to groupID.
func (g *MembershipGate) RequireMember(ctx context.Context, groupID, userID uuid.UUID, message string) error {
	ok, err := g.IsMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return forbiddenError(message)
	}
	return nil
}

// RequireGroupMember loads the group and checks membership: a missing group
// is not found, a non-member is forbidden.
func (g *MembershipGate) RequireGroupMember(ctx context.Context, groupID, userID uuid.UUID, message string) (*models.Group, error) {
	var group models.Group
	if err := g.DB.WithContext(ctx).First(&group, "id = ?", groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("group not found")
		}
		return nil, err
	}
	if err := g.RequireMember(ctx, groupID, userID, message); err != nil {
		return nil, err
	}
	return &group, nil
}

// GroupIDsForUser lists the groups userID is a member of.
func (g *MembershipGate) GroupIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := g.DB.WithContext(ctx).
		Model(&models.GroupMembership{}).
		Where("user_id = ?", userID).
		Pluck("group_id", &ids).Error
	return ids, err
}

// CanAccessEvent reports whether userID belongs to the event's primary group
// or to one of the groups it was shared with.
func (g *MembershipGate) CanAccessEvent(ctx context.Context, eventID, groupID, userID uuid.UUID) (bool, error) {
	var count int64
	db := g.DB.WithContext(ctx)
	err := db.
		Model(&models.GroupMembership{}).
		Where("user_id = ?", userID).
		Where(
			db.Where("group_id = ?", groupID).
				Or("group_id IN (?)", db.Table("event_invited_groups").Select("group_id").Where("event_id = ?", eventID)),
		).
		Count(&count).Error
	return count > 0, err
}
