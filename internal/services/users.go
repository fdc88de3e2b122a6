package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/gorm"
)

const (
	MinPasswordLength  = 6
	MaxNameLength      = 100
	MaxBioLength       = 500
	recentStatsEntries = 5
)

type UserService struct {
	DB    *gorm.DB
	Audit *AuditService
}

func NewUserService(db *gorm.DB, audit *AuditService) *UserService {
	return &UserService{DB: db, Audit: audit}
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
	Bio      string
}

type CreateUserInput struct {
	RegisterInput
	Role     models.UserRole
	IsActive *bool
}

type UpdateUserInput struct {
	Name     *string
	Email    *string
	Bio      *string
	Role     *models.UserRole
	IsActive *bool
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", validationError("email is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return "", validationError("email is invalid")
	}
	return email, nil
}

func validateName(name string) error {
	if name == "" {
		return validationError("name is required")
	}
	if len(name) > MaxNameLength {
		return validationError("name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}

func validateBio(bio string) error {
	if len(bio) > MaxBioLength {
		return validationError("bio cannot exceed %d characters", MaxBioLength)
	}
	return nil
}

func (s *UserService) emailTaken(ctx context.Context, email string, except uuid.UUID) (bool, error) {
	var count int64
	err := s.DB.WithContext(ctx).Model(&models.User{}).
		Where("email = ? AND id <> ?", email, except).
		Count(&count).Error
	return count > 0, err
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role models.UserRole, active bool) (*models.User, error) {
	name := strings.TrimSpace(in.Name)
	if err := validateName(name); err != nil {
		return nil, err
	}
	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < MinPasswordLength {
		return nil, validationError("password must be at least %d characters", MinPasswordLength)
	}
	bio := strings.TrimSpace(in.Bio)
	if err := validateBio(bio); err != nil {
		return nil, err
	}

	taken, err := s.emailTaken(ctx, email, uuid.Nil)
	if err != nil {
		return nil, err
	}
	if taken {
		return nil, conflictError("email already registered")
	}

	hash, err := utils.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	user := models.User{
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Bio:          bio,
		Role:         role,
		IsActive:     active,
	}
	if err := s.DB.WithContext(ctx).Create(&user).Error; err != nil {
		if taken, checkErr := s.emailTaken(ctx, email, uuid.Nil); checkErr == nil && taken {
			return nil, conflictError("email already registered")
		}
		return nil, fmt.Errorf("creating user: %w", err)
	}
	return &user, nil
}

// Register creates an active member account.
func (s *UserService) Register(ctx context.Context, in RegisterInput, ip string) (*models.User, error) {
	user, err := s.create(ctx, in, models.UserRoleUser, true)
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "user_registered", map[string]interface{}{
		"email": user.Email,
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       "user.register",
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    ip,
	})
	return user, nil
}

// Authenticate checks credentials. Unknown emails, wrong passwords and
// disabled accounts all fail as unauthenticated.
func (s *UserService) Authenticate(ctx context.Context, email, password, ip string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, validationError("email and password are required")
	}

	var user models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, unauthenticatedError("invalid email or password")
		}
		return nil, err
	}
	if !utils.CheckPassword(password, user.PasswordHash) {
		logger.Warn("login_failed", map[string]interface{}{"email": email, "ip": ip})
		return nil, unauthenticatedError("invalid email or password")
	}
	if !user.IsActive {
		return nil, unauthenticatedError("account is disabled")
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &user.ID,
		Action:       "user.login",
		ResourceType: "user",
		ResourceID:   &user.ID,
		IPAddress:    ip,
	})
	return &user, nil
}

func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile changes the caller's own name and bio.
func (s *UserService) UpdateProfile(ctx context.Context, userID uuid.UUID, name, bio *string) (*models.User, error) {
	return s.Update(ctx, userID, userID, UpdateUserInput{Name: name, Bio: bio})
}

// Update applies in to a user. Role and active flag changes are for platform
// admins; UpdateProfile never sets them.
func (s *UserService) Update(ctx context.Context, actorID, userID uuid.UUID, in UpdateUserInput) (*models.User, error) {
	user, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if in.Bio != nil {
		bio := strings.TrimSpace(*in.Bio)
		if err := validateBio(bio); err != nil {
			return nil, err
		}
		updates["bio"] = bio
	}
	if in.Email != nil {
		email, err := normalizeEmail(*in.Email)
		if err != nil {
			return nil, err
		}
		taken, err := s.emailTaken(ctx, email, userID)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, conflictError("email already registered")
		}
		updates["email"] = email
	}
	if in.Role != nil {
		if *in.Role != models.UserRoleAdmin && *in.Role != models.UserRoleUser {
			return nil, validationError("role must be admin or user")
		}
		updates["role"] = *in.Role
	}
	if in.IsActive != nil {
		if !*in.IsActive && actorID == userID {
			return nil, validationError("you cannot deactivate your own account")
		}
		updates["is_active"] = *in.IsActive
	}

	if len(updates) > 0 {
		if err := s.DB.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("updating user: %w", err)
		}
		action := "user.update"
		if actorID != userID {
			action = "admin.user.update"
		}
		s.Audit.LogAsync(AuditEntry{
			UserID:       &actorID,
			Action:       action,
			ResourceType: "user",
			ResourceID:   &userID,
		})
	}
	return s.Get(ctx, userID)
}

// AdminCreate creates an account with an explicit role.
func (s *UserService) AdminCreate(ctx context.Context, actorID uuid.UUID, in CreateUserInput) (*models.User, error) {
	role := in.Role
	if role == "" {
		role = models.UserRoleUser
	}
	if role != models.UserRoleAdmin && role != models.UserRoleUser {
		return nil, validationError("role must be admin or user")
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}

	user, err := s.create(ctx, in.RegisterInput, role, active)
	if err != nil {
		return nil, err
	}
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       "admin.user.create",
		ResourceType: "user",
		ResourceID:   &user.ID,
	})
	return user, nil
}

// List pages through users, optionally filtered by name or email.
func (s *UserService) List(ctx context.Context, search string, page utils.PaginationParams) ([]models.User, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.User{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(name) LIKE ? OR LOWER(email) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	users := []models.User{}
	if err := utils.ApplyPagination(query.Order("created_at DESC"), page).Find(&users).Error; err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// Delete removes a user and everything they own in one transaction: group
// memberships (handing administered groups to the next member or deleting
// them), organised events, RSVPs, scores and feed entries.
func (s *UserService) Delete(ctx context.Context, actorID, userID uuid.UUID) error {
	if actorID == userID {
		return validationError("you cannot delete your own account")
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteUserTx(tx, userID)
	})
	if err != nil {
		return err
	}

	logger.InfoWithUser(actorID.String(), "user_deleted", map[string]interface{}{
		"deleted_user_id": userID.String(),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       "admin.user.delete",
		ResourceType: "user",
		ResourceID:   &userID,
	})
	return nil
}

// BulkDelete deletes every listed user that exists, skipping the actor, and
// returns how many were removed.
func (s *UserService) BulkDelete(ctx context.Context, actorID uuid.UUID, userIDs []uuid.UUID) (int, error) {
	if len(userIDs) == 0 {
		return 0, validationError("invalid user IDs")
	}

	deleted := 0
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seen := map[uuid.UUID]bool{}
		for _, id := range userIDs {
			if id == actorID || seen[id] {
				continue
			}
			seen[id] = true

			err := deleteUserTx(tx, id)
			if IsKind(err, KindNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       "admin.user.bulk_delete",
		ResourceType: "user",
		Details:      map[string]interface{}{"deleted": deleted},
	})
	return deleted, nil
}

func deleteUserTx(tx *gorm.DB, userID uuid.UUID) error {
	var user models.User
	if err := tx.First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return notFoundError("user not found")
		}
		return err
	}

	var groups []models.Group
	if err := tx.Where("id IN (?)", tx.Model(&models.GroupMembership{}).Select("group_id").Where("user_id = ?", userID)).
		Find(&groups).Error; err != nil {
		return fmt.Errorf("listing user groups: %w", err)
	}
	for i := range groups {
		if _, err := removeMemberTx(tx, &groups[i], userID); err != nil {
			return err
		}
	}

	// Groups administered without a membership row are handed over too.
	var orphaned []models.Group
	if err := tx.Where("admin_id = ?", userID).Find(&orphaned).Error; err != nil {
		return err
	}
	for i := range orphaned {
		if _, err := removeMemberTx(tx, &orphaned[i], userID); err != nil {
			return err
		}
	}

	var eventIDs []uuid.UUID
	if err := tx.Model(&models.Event{}).Where("organizer_id = ?", userID).Pluck("id", &eventIDs).Error; err != nil {
		return fmt.Errorf("listing organised events: %w", err)
	}
	if err := deleteEventsTx(tx, eventIDs); err != nil {
		return err
	}
	if err := tx.Where("user_id = ?", userID).Delete(&models.EventAttendee{}).Error; err != nil {
		return fmt.Errorf("deleting rsvps: %w", err)
	}
	if err := deleteScoresTx(tx, "user_id", userID); err != nil {
		return err
	}
	if err := tx.Where("user_id = ? OR actor_id = ?", userID, userID).Delete(&models.Activity{}).Error; err != nil {
		return fmt.Errorf("deleting activities: %w", err)
	}
	return tx.Delete(&user).Error
}

type PlatformStats struct {
	Users        UserCounts    `json:"users"`
	Groups       Total         `json:"groups"`
	Events       Total         `json:"events"`
	RecentUsers  []models.User `json:"recentUsers"`
	RecentGroups []GroupView   `json:"recentGroups"`
}

type UserCounts struct {
	Total  int64 `json:"total"`
	Active int64 `json:"active"`
}

type Total struct {
	Total int64 `json:"total"`
}

// Stats summarises the platform for the admin dashboard.
func (s *UserService) Stats(ctx context.Context) (*PlatformStats, error) {
	db := s.DB.WithContext(ctx)
	stats := &PlatformStats{}

	if err := db.Model(&models.User{}).Count(&stats.Users.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.User{}).Where("is_active = ?", true).Count(&stats.Users.Active).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Group{}).Count(&stats.Groups.Total).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Event{}).Count(&stats.Events.Total).Error; err != nil {
		return nil, err
	}

	stats.RecentUsers = []models.User{}
	if err := db.Order("created_at DESC").Limit(recentStatsEntries).Find(&stats.RecentUsers).Error; err != nil {
		return nil, err
	}

	var groups []models.Group
	if err := db.Preload("Admin").Preload("Memberships").
		Order("created_at DESC").Limit(recentStatsEntries).
		Find(&groups).Error; err != nil {
		return nil, err
	}
	stats.RecentGroups = make([]GroupView, 0, len(groups))
	for _, g := range groups {
		stats.RecentGroups = append(stats.RecentGroups, newGroupView(g, uuid.Nil))
	}
	return stats, nil
}
