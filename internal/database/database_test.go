package database

import (
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/huddle/server/internal/config"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openMemory(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func TestMigrateCreatesTables(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "groups", "group_memberships", "events", "event_attendees", "fun_scores", "fun_score_history", "audit_logs", "activities", "event_invited_groups"} {
		assert.True(t, db.Migrator().HasTable(table), "expected table %s", table)
	}
}

func TestUpgradeLegacyEventLocation(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, db.AutoMigrate(models.All()...))
	require.NoError(t, db.Exec("ALTER TABLE events ADD COLUMN location TEXT").Error)

	id := uuid.New()
	require.NoError(t, db.Exec(
		`INSERT INTO events (id, created_at, updated_at, schema_version, title, description, date_time, location_name, location_address, organizer_id, group_id, is_public, status, location)
		 VALUES (?, ?, ?, 1, 'Picnic', '', ?, '', '', ?, ?, false, 'upcoming', 'Central Park')`,
		id, time.Now(), time.Now(), time.Now().Add(time.Hour), uuid.New(), uuid.New(),
	).Error)

	require.NoError(t, Migrate(db))

	var event models.Event
	require.NoError(t, db.First(&event, "id = ?", id).Error)
	assert.Equal(t, "Central Park", event.Location.Name)
	assert.Equal(t, models.EventSchemaVersion, event.SchemaVersion)
	assert.False(t, db.Migrator().HasColumn(&models.Event{}, "location"))

	var columns int64
	require.NoError(t, db.Raw("SELECT COUNT(*) FROM pragma_table_info('events') WHERE name = 'location'").Scan(&columns).Error)
	assert.Zero(t, columns)
	require.NoError(t, Migrate(db))
}

func TestSeedAdminUser(t *testing.T) {
	db := openMemory(t)
	require.NoError(t, Migrate(db))

	seed := config.AdminSeedConfig{Email: " Root@Huddle.Local ", Password: "seed-password"}
	require.NoError(t, seedAdminUser(db, seed))
	require.NoError(t, seedAdminUser(db, seed))

	var admins []models.User
	require.NoError(t, db.Where("role = ?", models.UserRoleAdmin).Find(&admins).Error)
	require.Len(t, admins, 1)
	assert.Equal(t, "root@huddle.local", admins[0].Email)
	assert.True(t, admins[0].IsActive)
	assert.True(t, utils.CheckPassword("seed-password", admins[0].PasswordHash))
}
