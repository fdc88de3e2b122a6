package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MaxGroupNameLength        = 50
	MaxGroupDescriptionLength = 300
	inviteCodeAttempts        = 10
	recentGroupEvents         = 5
)

type GroupService struct {
	DB    *gorm.DB
	Gate  *MembershipGate
	Audit *AuditService
	Now   func() time.Time
}

func NewGroupService(db *gorm.DB, gate *MembershipGate, audit *AuditService) *GroupService {
	return &GroupService{DB: db, Gate: gate, Audit: audit, Now: time.Now}
}

type CreateGroupInput struct {
	Name            string
	Description     string
	IsPrivate       bool
	RequireApproval bool
	MaxMembers      int
}

type UpdateGroupInput struct {
	Name            *string
	Description     *string
	IsPrivate       *bool
	RequireApproval *bool
	MaxMembers      *int
	IsActive        *bool
}

// GroupView is a group annotated from the caller's point of view.
type GroupView struct {
	models.Group
	MemberCount int                        `json:"memberCount"`
	UserRole    models.GroupMembershipRole `json:"userRole,omitempty"`
	IsAdmin     bool                       `json:"isAdmin"`
}

type GroupDetail struct {
	GroupView
	RecentEvents        []models.Event `json:"recentEvents"`
	UpcomingEventsCount int64          `json:"upcomingEventsCount"`
}

func newGroupView(group models.Group, userID uuid.UUID) GroupView {
	view := GroupView{Group: group, MemberCount: len(group.Memberships), IsAdmin: group.IsAdmin(userID)}
	for _, m := range group.Memberships {
		if m.UserID == userID {
			view.UserRole = m.Role
			break
		}
	}
	return view
}

func validateGroupFields(name, description string, maxMembers int) error {
	if name == "" {
		return validationError("group name is required")
	}
	if len(name) > MaxGroupNameLength {
		return validationError("group name cannot exceed %d characters", MaxGroupNameLength)
	}
	if len(description) > MaxGroupDescriptionLength {
		return validationError("description cannot exceed %d characters", MaxGroupDescriptionLength)
	}
	if maxMembers < 1 || maxMembers > models.MaxMembersLimit {
		return validationError("maxMembers must be between 1 and %d", models.MaxMembersLimit)
	}
	return nil
}

// Create stores a new group with adminID as its admin member. Invite codes
// are drawn until one is free; the unique index settles races between
// concurrent creators.
func (s *GroupService) Create(ctx context.Context, adminID uuid.UUID, in CreateGroupInput) (*GroupView, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if in.MaxMembers == 0 {
		in.MaxMembers = models.DefaultMaxMembers
	}
	if err := validateGroupFields(in.Name, in.Description, in.MaxMembers); err != nil {
		return nil, err
	}

	var admin models.User
	if err := s.DB.WithContext(ctx).First(&admin, "id = ?", adminID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationError("admin user not found")
		}
		return nil, err
	}

	for attempt := 1; attempt <= inviteCodeAttempts; attempt++ {
		code, err := utils.GenerateInviteCode()
		if err != nil {
			return nil, fmt.Errorf("generating invite code: %w", err)
		}

		taken, err := s.inviteCodeTaken(ctx, code)
		if err != nil {
			return nil, err
		}
		if taken {
			continue
		}

		group := models.Group{
			Name:        in.Name,
			Description: in.Description,
			InviteCode:  code,
			AdminID:     adminID,
			IsActive:    true,
			Settings: models.GroupSettings{
				IsPrivate:       in.IsPrivate,
				RequireApproval: in.RequireApproval,
				MaxMembers:      in.MaxMembers,
			},
		}

		err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&group).Error; err != nil {
				return err
			}
			return tx.Create(&models.GroupMembership{
				UserID:   adminID,
				GroupID:  group.ID,
				Role:     models.GroupRoleAdmin,
				JoinedAt: s.Now().UTC(),
			}).Error
		})
		if err != nil {
			if taken, checkErr := s.inviteCodeTaken(ctx, code); checkErr == nil && taken {
				continue
			}
			return nil, fmt.Errorf("creating group: %w", err)
		}

		logger.InfoWithUser(adminID.String(), "group_created", map[string]interface{}{
			"group_id": group.ID.String(),
			"attempts": attempt,
		})
		s.Audit.LogAsync(AuditEntry{
			UserID:       &adminID,
			Action:       "group.create",
			ResourceType: "group",
			ResourceID:   &group.ID,
			GroupID:      &group.ID,
			Details:      map[string]interface{}{"group_name": group.Name},
		})

		return s.view(ctx, group.ID, adminID)
	}

	return nil, fmt.Errorf("could not allocate a unique invite code after %d attempts", inviteCodeAttempts)
}

func (s *GroupService) inviteCodeTaken(ctx context.Context, code string) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.Group{}).Where("invite_code = ?", code).Count(&count).Error
	return count > 0, err
}

func (s *GroupService) load(ctx context.Context, groupID uuid.UUID) (*models.Group, error) {
	var group models.Group
	err := s.DB.WithContext(ctx).
		Preload("Admin").
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Memberships.User").
		First(&group, "id = ?", groupID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("group not found")
		}
		return nil, err
	}
	return &group, nil
}

func (s *GroupService) view(ctx context.Context, groupID, userID uuid.UUID) (*GroupView, error) {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	view := newGroupView(*group, userID)
	return &view, nil
}

// ListForUser returns the active groups userID belongs to, newest first.
func (s *GroupService) ListForUser(ctx context.Context, userID uuid.UUID) ([]GroupView, error) {
	var groups []models.Group
	db := s.DB.WithContext(ctx)
	err := db.
		Where("is_active = ?", true).
		Where("id IN (?)", db.Model(&models.GroupMembership{}).Select("group_id").Where("user_id = ?", userID)).
		Preload("Admin").
		Preload("Memberships", func(db *gorm.DB) *gorm.DB {
			return db.Order("joined_at ASC")
		}).
		Preload("Memberships.User").
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, err
	}

	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newGroupView(g, userID))
	}
	return views, nil
}

// Get returns the group with its recent events. Only members may read it.
func (s *GroupService) Get(ctx context.Context, groupID, userID uuid.UUID) (*GroupDetail, error) {
	if _, err := s.Gate.RequireGroupMember(ctx, groupID, userID, "you are not a member of this group"); err != nil {
		return nil, err
	}

	view, err := s.view(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	detail := GroupDetail{GroupView: *view}
	if err := s.DB.WithContext(ctx).
		Where("group_id = ?", groupID).
		Preload("Organizer").
		Order("date_time DESC").
		Limit(recentGroupEvents).
		Find(&detail.RecentEvents).Error; err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&models.Event{}).
		Where("group_id = ? AND date_time > ? AND status <> ?", groupID, s.Now().UTC(), models.EventStatusCancelled).
		Count(&detail.UpcomingEventsCount).Error; err != nil {
		return nil, err
	}
	return &detail, nil
}

// Update applies in to the group. Only the group admin may update it.
func (s *GroupService) Update(ctx context.Context, groupID, userID uuid.UUID, in UpdateGroupInput) (*GroupView, error) {
	group, err := s.Gate.RequireGroupMember(ctx, groupID, userID, "you are not a member of this group")
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(userID) {
		return nil, forbiddenError("only the group admin can update the group")
	}
	in.IsActive = nil
	if err := s.update(ctx, group, in); err != nil {
		return nil, err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       "group.update",
		ResourceType: "group",
		ResourceID:   &group.ID,
		GroupID:      &group.ID,
	})
	return s.view(ctx, groupID, userID)
}

// AdminUpdate is Update without the ownership check, for platform admins.
func (s *GroupService) AdminUpdate(ctx context.Context, groupID, actorID uuid.UUID, in UpdateGroupInput) (*GroupView, error) {
	group, err := s.load(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if err := s.update(ctx, group, in); err != nil {
		return nil, err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       "admin.group.update",
		ResourceType: "group",
		ResourceID:   &group.ID,
		GroupID:      &group.ID,
	})
	return s.view(ctx, groupID, actorID)
}

func (s *GroupService) update(ctx context.Context, group *models.Group, in UpdateGroupInput) error {
	name, description, maxMembers := group.Name, group.Description, group.Settings.MaxMembers
	if in.Name != nil {
		name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		description = strings.TrimSpace(*in.Description)
	}
	if in.MaxMembers != nil {
		maxMembers = *in.MaxMembers
	}
	if err := validateGroupFields(name, description, maxMembers); err != nil {
		return err
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if in.MaxMembers != nil {
			var count int64
			if err := tx.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
				return err
			}
			if int64(maxMembers) < count {
				return validationError("maxMembers cannot be lower than the current member count (%d)", count)
			}
		}

		updates := map[string]interface{}{
			"name":                 name,
			"description":          description,
			"settings_max_members": maxMembers,
		}
		if in.IsPrivate != nil {
			updates["settings_is_private"] = *in.IsPrivate
		}
		if in.RequireApproval != nil {
			updates["settings_require_approval"] = *in.RequireApproval
		}
		if in.IsActive != nil {
			updates["is_active"] = *in.IsActive
		}
		return tx.Model(&models.Group{}).Where("id = ?", group.ID).Updates(updates).Error
	})
}

// Join adds userID to the group owning inviteCode. The capacity check and
// the insert share one transaction with the group row locked.
func (s *GroupService) Join(ctx context.Context, userID uuid.UUID, inviteCode string) (*GroupView, error) {
	code := utils.NormalizeInviteCode(inviteCode)
	if code == "" {
		return nil, validationError("invite code is required")
	}

	var group models.Group
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("invite_code = ? AND is_active = ?", code, true).
			First(&group).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("invalid invite code")
			}
			return err
		}

		gate := NewMembershipGate(tx)
		member, err := gate.IsMember(ctx, group.ID, userID)
		if err != nil {
			return err
		}
		if member {
			return validationError("you are already a member of this group")
		}

		var count int64
		if err := tx.Model(&models.GroupMembership{}).Where("group_id = ?", group.ID).Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(group.Settings.MaxMembers) {
			return validationError("This group is at maximum capacity")
		}

		return tx.Create(&models.GroupMembership{
			UserID:   userID,
			GroupID:  group.ID,
			Role:     models.GroupRoleMember,
			JoinedAt: s.Now().UTC(),
		}).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(userID.String(), "group_joined", map[string]interface{}{
		"group_id": group.ID.String(),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       "group.join",
		ResourceType: "group",
		ResourceID:   &group.ID,
		GroupID:      &group.ID,
		Details:      map[string]interface{}{"group_name": group.Name},
	})

	return s.view(ctx, group.ID, userID)
}

// Leave removes userID from the group. It reports whether the group was
// deleted because its last member left.
func (s *GroupService) Leave(ctx context.Context, groupID, userID uuid.UUID) (bool, error) {
	var deleted bool
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var group models.Group
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&group, "id = ?", groupID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundError("group not found")
			}
			return err
		}

		member, err := NewMembershipGate(tx).IsMember(ctx, groupID, userID)
		if err != nil {
			return err
		}
		if !member {
			return validationError("you are not a member of this group")
		}

		deleted, err = removeMemberTx(tx, &group, userID)
		return err
	})
	if err != nil {
		return false, err
	}

	logger.InfoWithUser(userID.String(), "group_left", map[string]interface{}{
		"group_id":      groupID.String(),
		"group_deleted": deleted,
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       "group.leave",
		ResourceType: "group",
		ResourceID:   &groupID,
		Details:      map[string]interface{}{"group_deleted": deleted},
	})
	return deleted, nil
}

// Delete removes a group and everything scoped to it in one transaction.
func (s *GroupService) Delete(ctx context.Context, groupID, actorID uuid.UUID) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return notFoundError("group not found")
		}
		return deleteGroupTx(tx, groupID)
	})
	if err != nil {
		return err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       "admin.group.delete",
		ResourceType: "group",
		ResourceID:   &groupID,
	})
	return nil
}

// AdminList pages through every group, optionally filtered by name or
// description.
func (s *GroupService) AdminList(ctx context.Context, search string, page utils.PaginationParams) ([]GroupView, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Group{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var groups []models.Group
	err := utils.ApplyPagination(query, page).
		Preload("Admin").
		Preload("Memberships.User").
		Order("created_at DESC").
		Find(&groups).Error
	if err != nil {
		return nil, 0, err
	}

	views := make([]GroupView, 0, len(groups))
	for _, g := range groups {
		views = append(views, newGroupView(g, uuid.Nil))
	}
	return views, total, nil
}
