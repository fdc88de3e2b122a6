package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/huddle/server/internal/middleware"
	"github.com/huddle/server/internal/services"
	"gorm.io/gorm"
)

// Services are the collaborators the HTTP handlers are built from.
type Services struct {
	Users    *services.UserService
	Groups   *services.GroupService
	Events   *services.EventService
	Scores   *services.ScoreService
	Settler  *services.Settler
	TestData *services.TestDataGenerator
}

// RegisterRoutes mounts the /health probe and the /api tree on app.
func RegisterRoutes(app *fiber.App, db *gorm.DB, svc Services) {
	authHandler := NewAuthHandler(svc.Users)
	groupsHandler := NewGroupsHandler(svc.Groups, svc.Events)
	eventsHandler := NewEventsHandler(svc.Events, svc.Scores)
	scoresHandler := NewScoresHandler(svc.Scores)
	activitiesHandler := NewActivitiesHandler(db)
	auditHandler := NewAuditHandler(db)
	adminHandler := NewAdminHandler(svc.Users, svc.Groups, svc.Events, svc.Settler, svc.TestData)

	authMiddleware := middleware.NewAuthMiddleware(db)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)
	authRoutes.Get("/me", authMiddleware.RequireAuth, authHandler.Me)
	authRoutes.Put("/me", authMiddleware.RequireAuth, authHandler.UpdateMe)

	groupRoutes := api.Group("/groups", authMiddleware.RequireAuth)
	groupRoutes.Get("/", groupsHandler.List)
	groupRoutes.Post("/", groupsHandler.Create)
	groupRoutes.Post("/join", groupsHandler.Join)
	groupRoutes.Get("/:id", groupsHandler.Get)
	groupRoutes.Put("/:id", groupsHandler.Update)
	groupRoutes.Delete("/:id/leave", groupsHandler.Leave)
	groupRoutes.Get("/:id/events", groupsHandler.ListEvents)

	eventRoutes := api.Group("/events", authMiddleware.RequireAuth)
	eventRoutes.Get("/user", eventsHandler.ListForUser)
	eventRoutes.Get("/user/attendance-stats", eventsHandler.AttendanceStats)
	eventRoutes.Post("/", eventsHandler.Create)
	eventRoutes.Get("/:id", eventsHandler.Get)
	eventRoutes.Put("/:id", eventsHandler.Update)
	eventRoutes.Delete("/:id", eventsHandler.Delete)
	eventRoutes.Put("/:id/rsvp", eventsHandler.RSVP)
	eventRoutes.Post("/:id/checkin", eventsHandler.CheckIn)

	scoreRoutes := api.Group("/scores", authMiddleware.RequireAuth)
	scoreRoutes.Get("/user/:userId", scoresHandler.UserScore)
	scoreRoutes.Get("/leaderboard/:groupId", scoresHandler.Leaderboard)
	scoreRoutes.Get("/history/:userId", scoresHandler.History)

	activityRoutes := api.Group("/activities", authMiddleware.RequireAuth)
	activityRoutes.Get("/", activitiesHandler.List)
	activityRoutes.Get("/unread-count", activitiesHandler.UnreadCount)
	activityRoutes.Put("/read-all", activitiesHandler.MarkAllRead)
	activityRoutes.Put("/:id/read", activitiesHandler.MarkRead)

	api.Get("/audit-log/export", authMiddleware.RequireAuth, auditHandler.ExportMyLog)

	adminRoutes := api.Group("/admin", authMiddleware.RequireAuth, middleware.AdminOnly)
	adminRoutes.Get("/stats", adminHandler.Stats)
	adminRoutes.Get("/users", adminHandler.ListUsers)
	adminRoutes.Post("/users", adminHandler.CreateUser)
	adminRoutes.Post("/users/bulk-delete", adminHandler.BulkDeleteUsers)
	adminRoutes.Get("/users/:id", adminHandler.GetUser)
	adminRoutes.Put("/users/:id", adminHandler.UpdateUser)
	adminRoutes.Delete("/users/:id", adminHandler.DeleteUser)
	adminRoutes.Get("/groups", adminHandler.ListGroups)
	adminRoutes.Post("/groups", adminHandler.CreateGroup)
	adminRoutes.Put("/groups/:id", adminHandler.UpdateGroup)
	adminRoutes.Delete("/groups/:id", adminHandler.DeleteGroup)
	adminRoutes.Get("/events", adminHandler.ListEvents)
	adminRoutes.Post("/events", adminHandler.CreateEvent)
	adminRoutes.Put("/events/:id", adminHandler.UpdateEvent)
	adminRoutes.Delete("/events/:id", adminHandler.DeleteEvent)
	adminRoutes.Post("/generate-test-data", adminHandler.GenerateTestData)
	adminRoutes.Post("/scores/settle", adminHandler.SettleScores)
}
