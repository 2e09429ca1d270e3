package notification

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/meterflow/meterflow-api/internal/models"
	"github.com/meterflow/meterflow-api/internal/repository"
)

// Event is one notification to persist for a tenant.
type Event struct {
	TenantID string
	Event    models.NotificationEvent
	Severity models.NotificationSeverity
	Title    string
	Message  string
	Metadata map[string]interface{}
}

// Service records tenant-facing notifications. Delivery is storage-backed
// only: clients poll the listing endpoint.
type Service interface {
	Publish(ctx context.Context, evt Event) (models.Notification, error)
	NotifyIngestionCompleted(ctx context.Context, tenantID, jobID, fileName string, created, failed int) error
	NotifyIngestionFailed(ctx context.Context, tenantID, jobID, fileName, reason string) error
	ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Notification, error)
	MarkRead(ctx context.Context, tenantID, notificationID string) (models.Notification, error)
}

type service struct {
	repo   repository.NotificationRepository
	logger zerolog.Logger
}

func NewService(repo repository.NotificationRepository, logger zerolog.Logger) Service {
	return &service{
		repo:   repo,
		logger: logger.With().Str("component", "notification_service").Logger(),
	}
}

func (s *service) Publish(ctx context.Context, evt Event) (models.Notification, error) {
	if evt.Event == "" {
		return models.Notification{}, fmt.Errorf("event type is required")
	}
	if evt.Severity == "" {
		evt.Severity = models.NotificationSeverityInfo
	}
	title := strings.TrimSpace(evt.Title)
	if title == "" {
		title = string(evt.Event)
	}

	params := repository.CreateNotificationParams{
		Event:    evt.Event,
		Severity: evt.Severity,
		Title:    title,
		Message:  strings.TrimSpace(evt.Message),
		Metadata: evt.Metadata,
	}
	if tid := strings.TrimSpace(evt.TenantID); tid != "" {
		params.TenantID = &tid
	}

	notif, err := s.repo.Create(ctx, params)
	if err != nil {
		s.logger.Error().Err(err).Str("event_type", string(evt.Event)).Msg("failed to persist notification")
		return models.Notification{}, err
	}
	return notif, nil
}

func (s *service) NotifyIngestionCompleted(ctx context.Context, tenantID, jobID, fileName string, created, failed int) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for ingestion notifications")
	}
	name := fallbackName(fileName, jobID)
	severity := models.NotificationSeverityInfo
	if failed > 0 {
		severity = models.NotificationSeverityWarning
	}
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventIngestionCompleted,
		Severity: severity,
		Title:    fmt.Sprintf("Ingestion completed: %s", name),
		Message:  fmt.Sprintf("File %s ingested: %d records created, %d failed.", name, created, failed),
		Metadata: map[string]interface{}{
			"job_id":      jobID,
			"file_name":   fileName,
			"created":     created,
			"failed_rows": failed,
		},
	})
	return err
}

func (s *service) NotifyIngestionFailed(ctx context.Context, tenantID, jobID, fileName, reason string) error {
	if strings.TrimSpace(tenantID) == "" {
		return fmt.Errorf("tenant id is required for ingestion notifications")
	}
	name := fallbackName(fileName, jobID)
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "Unknown error"
	}
	_, err := s.Publish(ctx, Event{
		TenantID: tenantID,
		Event:    models.NotificationEventIngestionFailed,
		Severity: models.NotificationSeverityError,
		Title:    fmt.Sprintf("Ingestion failed: %s", name),
		Message:  fmt.Sprintf("File %s could not be ingested: %s", name, reason),
		Metadata: map[string]interface{}{
			"job_id":    jobID,
			"file_name": fileName,
			"reason":    reason,
		},
	})
	return err
}

func (s *service) ListRecent(ctx context.Context, tenantID string, limit int) ([]models.Notification, error) {
	return s.repo.ListRecent(ctx, tenantID, limit)
}

func (s *service) MarkRead(ctx context.Context, tenantID, notificationID string) (models.Notification, error) {
	return s.repo.MarkRead(ctx, tenantID, notificationID)
}

func fallbackName(name, id string) string {
	if strings.TrimSpace(name) != "" {
		return name
	}
	return id
}
