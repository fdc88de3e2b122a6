package services

import (
	"context"
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
	maxGeneratedRecords = 100
	testDataPassword    = "password123"
)

type TestDataInput struct {
	UserCount  int
	GroupCount int
	EventCount int
}

type TestDataResult struct {
	Users  int    `json:"users"`
	Groups int    `json:"groups"`
	Events int    `json:"events"`
	Batch  string `json:"batch"`
}

type TestDataGenerator struct {
	DB  *gorm.DB
	Now func() time.Time
}

func NewTestDataGenerator(db *gorm.DB) *TestDataGenerator {
	return &TestDataGenerator{DB: db, Now: time.Now}
}

func DefaultTestDataInput() TestDataInput {
	return TestDataInput{UserCount: 10, GroupCount: 3, EventCount: 5}
}

// Generate seeds demo users, groups and future events in one transaction.
// Users are spread round-robin over the groups; every event is organised by
// a member of its group. Emails carry a batch suffix so repeated runs do not
// collide.
func (g *TestDataGenerator) Generate(ctx context.Context, in TestDataInput) (*TestDataResult, error) {
	for name, n := range map[string]int{"userCount": in.UserCount, "groupCount": in.GroupCount, "eventCount": in.EventCount} {
		if n < 0 || n > maxGeneratedRecords {
			return nil, validationError("%s must be between 0 and %d", name, maxGeneratedRecords)
		}
	}
	if in.GroupCount > 0 && in.UserCount == 0 {
		return nil, validationError("groups need at least one user")
	}
	if in.EventCount > 0 && in.GroupCount == 0 {
		return nil, validationError("events need at least one group")
	}

	batch, err := utils.GenerateInviteCode()
	if err != nil {
		return nil, err
	}
	batch = strings.ToLower(batch)

	hash, err := utils.HashPassword(testDataPassword)
	if err != nil {
		return nil, err
	}

	now := g.Now().UTC()
	result := &TestDataResult{Batch: batch}

	err = g.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make([]models.User, in.UserCount)
		for i := range users {
			users[i] = models.User{
				Name:         fmt.Sprintf("Test User %d", i+1),
				Email:        fmt.Sprintf("testuser%d-%s@example.com", i+1, batch),
				PasswordHash: hash,
				Bio:          fmt.Sprintf("This is test user %d's bio.", i+1),
				Role:         models.UserRoleUser,
				IsActive:     true,
			}
		}
		if len(users) > 0 {
			if err := tx.Omit(clause.Associations).Create(&users).Error; err != nil {
				return fmt.Errorf("creating users: %w", err)
			}
		}

		groups := make([]models.Group, in.GroupCount)
		members := make([][]uuid.UUID, in.GroupCount)
		for i := range groups {
			code, err := uniqueInviteCodeTx(tx)
			if err != nil {
				return err
			}
			admin := users[i%len(users)]
			groups[i] = models.Group{
				Name:        fmt.Sprintf("Test Group %d", i+1),
				Description: fmt.Sprintf("This is test group %d for testing purposes.", i+1),
				InviteCode:  code,
				AdminID:     admin.ID,
				IsActive:    true,
				Settings:    models.GroupSettings{MaxMembers: models.DefaultMaxMembers},
			}
			if err := tx.Omit(clause.Associations).Create(&groups[i]).Error; err != nil {
				return fmt.Errorf("creating group: %w", err)
			}
			if err := tx.Create(&models.GroupMembership{
				UserID:   admin.ID,
				GroupID:  groups[i].ID,
				Role:     models.GroupRoleAdmin,
				JoinedAt: now,
			}).Error; err != nil {
				return err
			}
			members[i] = []uuid.UUID{admin.ID}
		}

		if len(groups) > 0 {
			for j, user := range users {
				gi := j % len(groups)
				if groups[gi].AdminID == user.ID || len(members[gi]) >= groups[gi].Settings.MaxMembers {
					continue
				}
				if err := tx.Create(&models.GroupMembership{
					UserID:   user.ID,
					GroupID:  groups[gi].ID,
					Role:     models.GroupRoleMember,
					JoinedAt: now.Add(time.Duration(j+1) * time.Second),
				}).Error; err != nil {
					return err
				}
				members[gi] = append(members[gi], user.ID)
			}
		}

		for i := 0; i < in.EventCount; i++ {
			gi := i % len(groups)
			organizer := members[gi][(i/len(groups))%len(members[gi])]
			tags, _ := encodeTags([]string{"test"})
			event := models.Event{
				SchemaVersion: models.EventSchemaVersion,
				Title:         fmt.Sprintf("Test Event %d", i+1),
				Description:   fmt.Sprintf("This is test event %d for testing purposes.", i+1),
				DateTime:      now.Add(time.Duration(i+1) * 24 * time.Hour),
				Location:      models.EventLocation{Name: fmt.Sprintf("Test Location %d", i+1)},
				OrganizerID:   organizer,
				GroupID:       groups[gi].ID,
				Tags:          tags,
				Status:        models.EventStatusUpcoming,
			}
			if err := tx.Omit(clause.Associations).Create(&event).Error; err != nil {
				return fmt.Errorf("creating event: %w", err)
			}
		}

		result.Users = len(users)
		result.Groups = len(groups)
		result.Events = in.EventCount
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("test_data_generated", map[string]interface{}{
		"batch":  batch,
		"users":  result.Users,
		"groups": result.Groups,
		"events": result.Events,
	})
	return result, nil
}

func uniqueInviteCodeTx(tx *gorm.DB) (string, error) {
	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := utils.GenerateInviteCode()
		if err != nil {
			return "", err
		}
		var count int64
		if err := tx.Model(&models.Group{}).Where("invite_code = ?", code).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return code, nil
		}
	}
	return "", fmt.Errorf("could not allocate a unique invite code after %d attempts", inviteCodeAttempts)
}
