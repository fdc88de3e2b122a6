package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/database"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type testEnv struct {
	ctx     context.Context
	db      *gorm.DB
	clock   *testClock
	gate    *MembershipGate
	audit   *AuditService
	users   *UserService
	groups  *GroupService
	events  *EventService
	scores  *ScoreService
	settler *Settler
}

var loggerOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	loggerOnce.Do(logger.Init)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	require.NoError(t, database.Migrate(db))

	clock := &testClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
	audit := NewAuditService(db, nil)
	t.Cleanup(audit.Close)

	gate := NewMembershipGate(db)
	env := &testEnv{
		ctx:     context.Background(),
		db:      db,
		clock:   clock,
		gate:    gate,
		audit:   audit,
		users:   NewUserService(db, audit),
		groups:  NewGroupService(db, gate, audit),
		events:  NewEventService(db, gate, audit),
		scores:  NewScoreService(db, gate),
		settler: NewSettler(db, config.DefaultScoringRules(), audit),
	}
	env.groups.Now = clock.Now
	env.events.Now = clock.Now
	env.scores.Now = clock.Now
	env.settler.Now = clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, name string) *models.User {
	t.Helper()

	hash, err := utils.HashPassword("password123")
	require.NoError(t, err)

	user := &models.User{
		Name:         name,
		Email:        name + "-" + uuid.NewString()[:8] + "@example.com",
		PasswordHash: hash,
		Role:         models.UserRoleUser,
		IsActive:     true,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *testEnv) createGroup(t *testing.T, admin *models.User, maxMembers int) *GroupView {
	t.Helper()

	group, err := e.groups.Create(e.ctx, admin.ID, CreateGroupInput{Name: "Board Games", MaxMembers: maxMembers})
	require.NoError(t, err)
	return group
}

func (e *testEnv) join(t *testing.T, user *models.User, group *GroupView) {
	t.Helper()

	_, err := e.groups.Join(e.ctx, user.ID, group.InviteCode)
	require.NoError(t, err)
}

func (e *testEnv) createEvent(t *testing.T, organizer *models.User, groupID uuid.UUID, at time.Time) *models.Event {
	t.Helper()

	event, err := e.events.Create(e.ctx, organizer.ID, CreateEventInput{
		Title:    "Catan night",
		DateTime: at,
		Location: models.EventLocation{Name: "The Meeple Cafe"},
		GroupID:  groupID,
	})
	require.NoError(t, err)
	return event
}

func requireKind(t *testing.T, err error, kind ErrorKind) {
	t.Helper()

	require.Error(t, err)
	require.Equal(t, kind, KindOf(err), "unexpected error: %v", err)
}

func intPtr(v int) *int {
	return &v
}

func strPtr(v string) *string {
	return &v
}
