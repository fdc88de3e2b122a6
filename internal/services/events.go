package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"github.com/huddle/server/pkg/utils"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CheckInWindow is how far from the scheduled time, in either direction, a
// check-in is accepted.
const CheckInWindow = 24 * time.Hour

type EventService struct {
	DB    *gorm.DB
	Gate  *MembershipGate
	Audit *AuditService
	Now   func() time.Time
}

func NewEventService(db *gorm.DB, gate *MembershipGate, audit *AuditService) *EventService {
	return &EventService{DB: db, Gate: gate, Audit: audit, Now: time.Now}
}

type CreateEventInput struct {
	Title           string
	Description     string
	DateTime        time.Time
	Location        models.EventLocation
	GroupID         uuid.UUID
	InvitedGroupIDs []uuid.UUID
	MaxAttendees    *int
	Tags            []string
	IsPublic        bool
}

type UpdateEventInput struct {
	Title        *string
	Description  *string
	DateTime     *time.Time
	Location     *models.EventLocation
	MaxAttendees *int
	Tags         *[]string
	IsPublic     *bool
	Status       *models.EventStatus
}

func (s *EventService) now() time.Time {
	return s.Now().UTC()
}

func validateEventTitle(title string) error {
	if title == "" {
		return validationError("title is required")
	}
	if len(title) > models.MaxEventTitleLength {
		return validationError("title cannot exceed %d characters", models.MaxEventTitleLength)
	}
	return nil
}

func validateEventDescription(description string) error {
	if len(description) > models.MaxEventDescriptionLength {
		return validationError("description cannot exceed %d characters", models.MaxEventDescriptionLength)
	}
	return nil
}

func normalizeLocation(loc models.EventLocation) (models.EventLocation, error) {
	loc.Name = strings.TrimSpace(loc.Name)
	loc.Address = strings.TrimSpace(loc.Address)
	if loc.Name == "" {
		return loc, validationError("location is required")
	}
	if len(loc.Name) > models.MaxEventLocationLength {
		return loc, validationError("location cannot exceed %d characters", models.MaxEventLocationLength)
	}
	if loc.Latitude != nil && (*loc.Latitude < -90 || *loc.Latitude > 90) {
		return loc, validationError("latitude must be between -90 and 90")
	}
	if loc.Longitude != nil && (*loc.Longitude < -180 || *loc.Longitude > 180) {
		return loc, validationError("longitude must be between -180 and 180")
	}
	return loc, nil
}

func encodeTags(tags []string) (datatypes.JSON, error) {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if len(tag) > models.MaxEventTagLength {
			return nil, validationError("tags cannot exceed %d characters", models.MaxEventTagLength)
		}
		cleaned = append(cleaned, tag)
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}

func validateMaxAttendees(max *int) error {
	if max != nil && *max < 1 {
		return validationError("maxAttendees must be at least 1")
	}
	return nil
}

func (s *EventService) requireFuture(dateTime time.Time) error {
	if dateTime.IsZero() {
		return validationError("dateTime is required")
	}
	if !dateTime.After(s.now()) {
		return validationError("event date must be in the future")
	}
	return nil
}

// load fetches an event with its organizer, groups and attendees and derives
// the attendance counters.
func (s *EventService) load(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	err := s.DB.WithContext(ctx).
		Preload("Organizer").
		Preload("Group").
		Preload("InvitedGroups").
		Preload("Attendees", func(db *gorm.DB) *gorm.DB {
			return db.Order("rsvp_at ASC")
		}).
		Preload("Attendees.User").
		First(&event, "id = ?", eventID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("event not found")
		}
		return nil, err
	}
	event.RefreshCounts()
	return &event, nil
}

func (s *EventService) find(ctx context.Context, eventID uuid.UUID) (*models.Event, error) {
	var event models.Event
	if err := s.DB.WithContext(ctx).First(&event, "id = ?", eventID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundError("event not found")
		}
		return nil, err
	}
	return &event, nil
}

func (s *EventService) requireAccess(ctx context.Context, event *models.Event, userID uuid.UUID, message string) error {
	ok, err := s.Gate.CanAccessEvent(ctx, event.ID, event.GroupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return forbiddenError(message)
	}
	return nil
}

// Create schedules a new event in in.GroupID organised by organizerID, who
// must be a member of that group.
func (s *EventService) Create(ctx context.Context, organizerID uuid.UUID, in CreateEventInput) (*models.Event, error) {
	event, err := s.buildEvent(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.Gate.RequireGroupMember(ctx, in.GroupID, organizerID, "you must be a member of the group to create events"); err != nil {
		return nil, err
	}

	event.OrganizerID = organizerID
	return s.insert(ctx, organizerID, event, in.InvitedGroupIDs)
}

// AdminCreate schedules an event on behalf of organizerID without the
// membership requirement.
func (s *EventService) AdminCreate(ctx context.Context, actorID, organizerID uuid.UUID, in CreateEventInput) (*models.Event, error) {
	event, err := s.buildEvent(in)
	if err != nil {
		return nil, err
	}

	var count int64
	if err := s.DB.WithContext(ctx).Model(&models.User{}).Where("id = ?", organizerID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, validationError("organizer not found")
	}
	if err := s.DB.WithContext(ctx).Model(&models.Group{}).Where("id = ?", in.GroupID).Count(&count).Error; err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, validationError("group not found")
	}

	event.OrganizerID = organizerID
	return s.insert(ctx, actorID, event, in.InvitedGroupIDs)
}

func (s *EventService) buildEvent(in CreateEventInput) (*models.Event, error) {
	title := strings.TrimSpace(in.Title)
	if err := validateEventTitle(title); err != nil {
		return nil, err
	}
	description := strings.TrimSpace(in.Description)
	if err := validateEventDescription(description); err != nil {
		return nil, err
	}
	location, err := normalizeLocation(in.Location)
	if err != nil {
		return nil, err
	}
	if err := s.requireFuture(in.DateTime); err != nil {
		return nil, err
	}
	if err := validateMaxAttendees(in.MaxAttendees); err != nil {
		return nil, err
	}
	tags, err := encodeTags(in.Tags)
	if err != nil {
		return nil, err
	}

	return &models.Event{
		SchemaVersion: models.EventSchemaVersion,
		Title:         title,
		Description:   description,
		DateTime:      in.DateTime.UTC(),
		Location:      location,
		GroupID:       in.GroupID,
		MaxAttendees:  in.MaxAttendees,
		Tags:          tags,
		IsPublic:      in.IsPublic,
		Status:        models.EventStatusUpcoming,
	}, nil
}

func (s *EventService) insert(ctx context.Context, actorID uuid.UUID, event *models.Event, invited []uuid.UUID) (*models.Event, error) {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(event).Error; err != nil {
			return fmt.Errorf("creating event: %w", err)
		}

		seen := map[uuid.UUID]bool{event.GroupID: true}
		for _, groupID := range invited {
			if seen[groupID] {
				continue
			}
			seen[groupID] = true

			var count int64
			if err := tx.Model(&models.Group{}).Where("id = ?", groupID).Count(&count).Error; err != nil {
				return err
			}
			if count == 0 {
				return notFoundError("invited group not found")
			}
			if err := tx.Exec(
				"INSERT INTO event_invited_groups (event_id, group_id) VALUES (?, ?)",
				event.ID, groupID,
			).Error; err != nil {
				return fmt.Errorf("inviting group: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(actorID.String(), "event_created", map[string]interface{}{
		"event_id": event.ID.String(),
		"group_id": event.GroupID.String(),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &event.OrganizerID,
		Action:       "event.create",
		ResourceType: "event",
		ResourceID:   &event.ID,
		GroupID:      &event.GroupID,
		Details:      map[string]interface{}{"title": event.Title},
	})

	return s.load(ctx, event.ID)
}

// Get returns an event to a member of its primary or invited groups.
func (s *EventService) Get(ctx context.Context, eventID, userID uuid.UUID) (*models.Event, error) {
	event, err := s.load(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, event, userID, "you do not have access to this event"); err != nil {
		return nil, err
	}
	return event, nil
}

// Update changes the mutable fields of an event. Only the organizer may do
// so; a new date must still be in the future and the only status change
// allowed is cancelling.
func (s *EventService) Update(ctx context.Context, eventID, userID uuid.UUID, in UpdateEventInput) (*models.Event, error) {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != userID {
		return nil, forbiddenError("only the organizer can update this event")
	}
	if event.Status == models.EventStatusCompleted || event.SettledAt != nil {
		return nil, validationError("completed events cannot be edited")
	}
	if in.DateTime != nil {
		if err := s.requireFuture(*in.DateTime); err != nil {
			return nil, err
		}
	}
	if in.Status != nil && *in.Status != event.Status && *in.Status != models.EventStatusCancelled {
		return nil, validationError("an event can only be cancelled")
	}

	if err := s.applyUpdate(ctx, userID, event, in, "event.update"); err != nil {
		return nil, err
	}
	return s.load(ctx, eventID)
}

// AdminUpdate changes an event on behalf of a platform admin. Any status is
// accepted.
func (s *EventService) AdminUpdate(ctx context.Context, eventID, actorID uuid.UUID, in UpdateEventInput) (*models.Event, error) {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if in.Status != nil {
		switch *in.Status {
		case models.EventStatusUpcoming, models.EventStatusOngoing, models.EventStatusCompleted, models.EventStatusCancelled:
		default:
			return nil, validationError("invalid event status")
		}
	}
	if in.DateTime != nil && in.DateTime.IsZero() {
		return nil, validationError("dateTime is required")
	}

	if err := s.applyUpdate(ctx, actorID, event, in, "admin.event.update"); err != nil {
		return nil, err
	}
	return s.load(ctx, eventID)
}

func (s *EventService) applyUpdate(ctx context.Context, actorID uuid.UUID, event *models.Event, in UpdateEventInput, action string) error {
	updates := map[string]interface{}{}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateEventTitle(title); err != nil {
			return err
		}
		updates["title"] = title
	}
	if in.Description != nil {
		description := strings.TrimSpace(*in.Description)
		if err := validateEventDescription(description); err != nil {
			return err
		}
		updates["description"] = description
	}
	if in.DateTime != nil {
		updates["date_time"] = in.DateTime.UTC()
	}
	if in.Location != nil {
		loc, err := normalizeLocation(*in.Location)
		if err != nil {
			return err
		}
		updates["location_name"] = loc.Name
		updates["location_address"] = loc.Address
		updates["location_latitude"] = loc.Latitude
		updates["location_longitude"] = loc.Longitude
	}
	if in.MaxAttendees != nil {
		if err := validateMaxAttendees(in.MaxAttendees); err != nil {
			return err
		}
		updates["max_attendees"] = *in.MaxAttendees
	}
	if in.Tags != nil {
		tags, err := encodeTags(*in.Tags)
		if err != nil {
			return err
		}
		updates["tags"] = tags
	}
	if in.IsPublic != nil {
		updates["is_public"] = *in.IsPublic
	}
	if in.Status != nil {
		updates["status"] = *in.Status
	}
	if len(updates) == 0 {
		return nil
	}

	if err := s.DB.WithContext(ctx).Model(&models.Event{}).Where("id = ?", event.ID).Updates(updates).Error; err != nil {
		return fmt.Errorf("updating event: %w", err)
	}

	if in.Status != nil && *in.Status == models.EventStatusCancelled && event.Status != models.EventStatusCancelled {
		action = "event.cancel"
	}
	logger.InfoWithUser(actorID.String(), "event_updated", map[string]interface{}{
		"event_id": event.ID.String(),
		"fields":   len(updates),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       action,
		ResourceType: "event",
		ResourceID:   &event.ID,
		GroupID:      &event.GroupID,
		Details:      map[string]interface{}{"title": event.Title},
	})
	return nil
}

// Delete removes an event organised by userID.
func (s *EventService) Delete(ctx context.Context, eventID, userID uuid.UUID) error {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return err
	}
	if event.OrganizerID != userID {
		return forbiddenError("only the organizer can delete this event")
	}
	return s.delete(ctx, userID, event, "event.delete")
}

// AdminDelete removes any event.
func (s *EventService) AdminDelete(ctx context.Context, eventID, actorID uuid.UUID) error {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return err
	}
	return s.delete(ctx, actorID, event, "admin.event.delete")
}

func (s *EventService) delete(ctx context.Context, actorID uuid.UUID, event *models.Event, action string) error {
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteEventsTx(tx, []uuid.UUID{event.ID})
	})
	if err != nil {
		return err
	}

	logger.InfoWithUser(actorID.String(), "event_deleted", map[string]interface{}{
		"event_id": event.ID.String(),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &actorID,
		Action:       action,
		ResourceType: "event",
		ResourceID:   &event.ID,
		GroupID:      &event.GroupID,
		Details:      map[string]interface{}{"title": event.Title},
	})
	return nil
}

// RSVP records userID's answer for the event. The attendee row is written
// with a single upsert on (event_id, user_id), so concurrent calls for the
// same user never produce two rows. Answering anything but going clears a
// previous check-in.
func (s *EventService) RSVP(ctx context.Context, eventID, userID uuid.UUID, status models.RSVPStatus) (*models.Event, error) {
	if !status.Valid() {
		return nil, validationError("status must be one of going, maybe, not_going")
	}

	event, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, event, userID, "you must be a member of the group to RSVP"); err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCancelled {
		return nil, validationError("cannot RSVP to a cancelled event")
	}
	if event.SettledAt != nil {
		return nil, validationError("event has already been settled")
	}

	now := s.now()
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if status == models.RSVPGoing && event.MaxAttendees != nil {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&models.Event{}, "id = ?", eventID).Error; err != nil {
				return err
			}
			var going int64
			if err := tx.Model(&models.EventAttendee{}).
				Where("event_id = ? AND user_id <> ? AND status = ?", eventID, userID, models.RSVPGoing).
				Count(&going).Error; err != nil {
				return err
			}
			if going >= int64(*event.MaxAttendees) {
				return validationError("event is full")
			}
		}

		attendee := models.EventAttendee{
			EventID: eventID,
			UserID:  userID,
			Status:  status,
			RSVPAt:  now,
		}
		// Leaving "going" drops any check-in; staying "going" keeps it, along
		// with the RSVP time it was recorded against.
		updates := map[string]interface{}{
			"status":     status,
			"updated_at": now,
		}
		if status == models.RSVPGoing {
			updates["rsvp_at"] = gorm.Expr("CASE WHEN event_attendees.checked_in THEN event_attendees.rsvp_at ELSE ? END", now)
		} else {
			updates["rsvp_at"] = now
			updates["checked_in"] = false
			updates["check_in_time"] = nil
			updates["check_in_location"] = nil
		}
		return tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "event_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(updates),
		}).Create(&attendee).Error
	})
	if err != nil {
		return nil, err
	}

	logger.InfoWithUser(userID.String(), "rsvp_updated", map[string]interface{}{
		"event_id": eventID.String(),
		"status":   string(status),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       "event.rsvp",
		ResourceType: "event",
		ResourceID:   &eventID,
		GroupID:      &event.GroupID,
		Details:      map[string]interface{}{"status": string(status)},
	})

	return s.load(ctx, eventID)
}

// CheckIn marks a going attendee as present. It is accepted within
// CheckInWindow of the scheduled time on either side; repeating it refreshes
// the check-in time.
func (s *EventService) CheckIn(ctx context.Context, eventID, userID uuid.UUID, locationHint *string) (*models.Event, error) {
	event, err := s.find(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if err := s.requireAccess(ctx, event, userID, "you must be a member of the group to check in"); err != nil {
		return nil, err
	}
	if event.Status == models.EventStatusCancelled {
		return nil, validationError("cannot check in to a cancelled event")
	}

	now := s.now()
	distance := now.Sub(event.DateTime)
	if distance < 0 {
		distance = -distance
	}
	if distance > CheckInWindow {
		return nil, validationError("check-in is only available within 24 hours of the event")
	}

	var attendee models.EventAttendee
	if err := s.DB.WithContext(ctx).First(&attendee, "event_id = ? AND user_id = ?", eventID, userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, validationError("must RSVP before checking in")
		}
		return nil, err
	}

	if locationHint != nil {
		hint := strings.TrimSpace(*locationHint)
		if len(hint) > models.MaxEventLocationLength {
			return nil, validationError("check-in location cannot exceed %d characters", models.MaxEventLocationLength)
		}
		if hint == "" {
			locationHint = nil
		} else {
			locationHint = &hint
		}
	}

	result := s.DB.WithContext(ctx).Model(&models.EventAttendee{}).
		Where("event_id = ? AND user_id = ? AND status = ?", eventID, userID, models.RSVPGoing).
		Updates(map[string]interface{}{
			"checked_in":        true,
			"check_in_time":     now,
			"check_in_location": locationHint,
		})
	if result.Error != nil {
		return nil, fmt.Errorf("checking in: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, validationError("only attendees who RSVP'd going can check in")
	}

	logger.InfoWithUser(userID.String(), "event_checkin", map[string]interface{}{
		"event_id": eventID.String(),
	})
	s.Audit.LogAsync(AuditEntry{
		UserID:       &userID,
		Action:       "event.checkin",
		ResourceType: "event",
		ResourceID:   &eventID,
		GroupID:      &event.GroupID,
	})

	return s.load(ctx, eventID)
}

func (s *EventService) listScoped(ctx context.Context, groupIDs []uuid.UUID) ([]models.Event, error) {
	events := []models.Event{}
	if len(groupIDs) == 0 {
		return events, nil
	}

	db := s.DB.WithContext(ctx)
	invited := db.Table("event_invited_groups").Select("event_id").Where("group_id IN ?", groupIDs)
	err := db.
		Where("group_id IN ?", groupIDs).
		Or("id IN (?)", invited).
		Preload("Organizer").
		Preload("Group").
		Preload("Attendees").
		Order("date_time ASC").
		Find(&events).Error
	if err != nil {
		return nil, err
	}
	for i := range events {
		events[i].RefreshCounts()
	}
	return events, nil
}

// ListForUser returns every event visible to userID in ascending date order.
func (s *EventService) ListForUser(ctx context.Context, userID uuid.UUID) ([]models.Event, error) {
	groupIDs, err := s.Gate.GroupIDsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.listScoped(ctx, groupIDs)
}

// ListForGroup returns the events of a group, including those it was
// invited to, to one of its members.
func (s *EventService) ListForGroup(ctx context.Context, groupID, userID uuid.UUID) ([]models.Event, error) {
	if _, err := s.Gate.RequireGroupMember(ctx, groupID, userID, "you are not a member of this group"); err != nil {
		return nil, err
	}
	return s.listScoped(ctx, []uuid.UUID{groupID})
}

// AdminList pages through every event, optionally filtered by title or
// description.
func (s *EventService) AdminList(ctx context.Context, search string, page utils.PaginationParams) ([]models.Event, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Event{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(description) LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	events := []models.Event{}
	err := utils.ApplyPagination(query.Order("created_at DESC"), page).
		Preload("Organizer").
		Preload("Group").
		Preload("Attendees.User").
		Find(&events).Error
	if err != nil {
		return nil, 0, err
	}
	for i := range events {
		events[i].RefreshCounts()
	}
	return events, total, nil
}
