package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/huddle/server/internal/models"
	"github.com/huddle/server/pkg/logger"
	"gorm.io/gorm"
)

// ArchiveWriter persists one NDJSON batch of audit rows under key.
type ArchiveWriter interface {
	WriteArchive(ctx context.Context, key string, body []byte, records int) error
}

type AuditEntry struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	GroupID      *uuid.UUID
	Details      map[string]interface{}
	IPAddress    string
}

type AuditService struct {
	DB      *gorm.DB
	Storage ArchiveWriter

	mu     sync.RWMutex
	closed bool
	queue  chan models.AuditLog
	done   chan struct{}
}

func NewAuditService(db *gorm.DB, storage ArchiveWriter) *AuditService {
	s := &AuditService{
		DB:      db,
		Storage: storage,
		queue:   make(chan models.AuditLog, 1000),
		done:    make(chan struct{}),
	}
	go s.processQueue()
	return s
}

// LogAsync queues an audit row; rows are dropped with a warning when the
// queue is full.
func (s *AuditService) LogAsync(entry AuditEntry) {
	if s == nil {
		return
	}

	row := models.AuditLog{
		UserID:       entry.UserID,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		GroupID:      entry.GroupID,
		Details:      entry.Details,
		IPAddress:    entry.IPAddress,
		CreatedAt:    time.Now().UTC(),
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}

	select {
	case s.queue <- row:
	default:
		logger.Warn("audit_queue_full", map[string]interface{}{
			"action":  entry.Action,
			"dropped": true,
		})
	}
}

// Close stops accepting entries and waits until the queue is written out.
func (s *AuditService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()
	<-s.done
}

func (s *AuditService) processQueue() {
	defer close(s.done)
	for row := range s.queue {
		if err := s.DB.Create(&row).Error; err != nil {
			logger.Error("audit_log_insert_failed", err, map[string]interface{}{
				"action": row.Action,
			})
			continue
		}
		s.generateActivities(row)
	}
}

func (s *AuditService) generateActivities(log models.AuditLog) {
	if log.UserID == nil || log.GroupID == nil {
		return
	}

	var message string
	switch log.Action {
	case "group.join":
		message = fmt.Sprintf("%s joined %s", s.getActorName(*log.UserID), detailString(log.Details, "group_name"))
	case "event.create":
		message = fmt.Sprintf("%s scheduled %s", s.getActorName(*log.UserID), detailString(log.Details, "title"))
	case "event.cancel":
		message = fmt.Sprintf("%s cancelled %s", s.getActorName(*log.UserID), detailString(log.Details, "title"))
	default:
		return
	}

	for _, memberID := range s.getGroupMemberIDs(*log.GroupID) {
		if memberID == *log.UserID {
			continue
		}
		activity := models.Activity{
			UserID:       memberID,
			ActorID:      *log.UserID,
			GroupID:      log.GroupID,
			Action:       log.Action,
			ResourceType: log.ResourceType,
			ResourceID:   log.ResourceID,
			Message:      message,
		}
		if err := s.DB.Create(&activity).Error; err != nil {
			logger.Error("activity_insert_failed", err, map[string]interface{}{
				"action":  log.Action,
				"user_id": memberID.String(),
			})
		}
	}
}

func (s *AuditService) getActorName(userID uuid.UUID) string {
	var user models.User
	if err := s.DB.Select("name").First(&user, "id = ?", userID).Error; err != nil || user.Name == "" {
		return "Someone"
	}
	return user.Name
}

func (s *AuditService) getGroupMemberIDs(groupID uuid.UUID) []uuid.UUID {
	var ids []uuid.UUID
	s.DB.Model(&models.GroupMembership{}).Where("group_id = ?", groupID).Pluck("user_id", &ids)
	return ids
}

// StartExporter periodically ships new audit rows to object storage as NDJSON
// until ctx is cancelled.
func (s *AuditService) StartExporter(ctx context.Context, interval time.Duration) {
	if s.Storage == nil {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "no storage client configured",
		})
		return
	}
	if interval <= 0 {
		logger.Info("audit_exporter_disabled", map[string]interface{}{
			"reason": "non-positive export interval",
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
				if _, err := s.ExportOnce(ctx); err != nil {
					logger.Error("audit_export_failed", err, nil)
				}
			}
		}
	}()

	logger.Info("audit_exporter_started", map[string]interface{}{
		"interval": interval.String(),
	})
}

// ExportOnce uploads audit rows newer than the export cursor and returns how
// many were shipped.
func (s *AuditService) ExportOnce(ctx context.Context) (int, error) {
	if s.Storage == nil {
		return 0, nil
	}

	var cursor models.AuditExportCursor
	err := s.DB.WithContext(ctx).First(&cursor).Error
	if err == gorm.ErrRecordNotFound {
		cursor = models.AuditExportCursor{LastExportAt: time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)}
		if err := s.DB.WithContext(ctx).Create(&cursor).Error; err != nil {
			return 0, fmt.Errorf("creating export cursor: %w", err)
		}
	} else if err != nil {
		return 0, fmt.Errorf("loading export cursor: %w", err)
	}

	var logs []models.AuditLog
	if err := s.DB.WithContext(ctx).
		Where("created_at > ?", cursor.LastExportAt).
		Order("created_at ASC").
		Limit(10000).
		Find(&logs).Error; err != nil {
		return 0, fmt.Errorf("querying audit logs: %w", err)
	}
	if len(logs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, row := range logs {
		if err := enc.Encode(row); err != nil {
			return 0, fmt.Errorf("encoding audit log %s: %w", row.ID, err)
		}
	}

	now := time.Now().UTC()
	objectName := fmt.Sprintf("audit-logs/%s/%s.ndjson", now.Format("2006/01/02"), now.Format("15-04-05"))
	if err := s.Storage.WriteArchive(ctx, objectName, buf.Bytes(), len(logs)); err != nil {
		return 0, fmt.Errorf("archiving %s: %w", objectName, err)
	}

	if err := s.DB.WithContext(ctx).Model(&cursor).Updates(map[string]interface{}{
		"last_export_at": logs[len(logs)-1].CreatedAt,
		"exported_count": gorm.Expr("exported_count + ?", len(logs)),
	}).Error; err != nil {
		return 0, fmt.Errorf("advancing export cursor: %w", err)
	}

	logger.Info("audit_export_success", map[string]interface{}{
		"object_name": objectName,
		"count":       len(logs),
	})
	return len(logs), nil
}

func detailString(details map[string]interface{}, key string) string {
	if details == nil {
		return ""
	}
	v, ok := details[key]
	if !ok {
		return ""
	}
	str, ok := v.(string)
	if !ok {
		return fmt.Sprintf("%v", v)
	}
	return str
}
