// internal/services/event_service.go
package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/licenseforge/royalty-backend/internal/models"
	"github.com/licenseforge/royalty-backend/internal/utils"
)

// EventService records the observability events ledger operations emit.
// Events are written inside the operation's transaction, so a rolled-back
// call never leaves an event behind, and mirrored to the structured log.
type EventService struct {
	db *gorm.DB
}

func NewEventService(db *gorm.DB) *EventService {
	return &EventService{db: db}
}

func (s *EventService) Record(tx *gorm.DB, eventType models.EventType, licensee models.Address, applicationHash string, reportIndex *int, occurredAt time.Time, data models.JSONB) error {
	event := &models.LedgerEvent{
		EventType:       eventType,
		Licensee:        licensee,
		ApplicationHash: applicationHash,
		ReportIndex:     reportIndex,
		OccurredAt:      occurredAt,
		Data:            data,
	}
	if err := tx.Create(event).Error; err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	fields := logrus.Fields{
		"event":            eventType,
		"licensee":         licensee,
		"application_hash": applicationHash,
		"occurred_at":      occurredAt.Unix(),
	}
	if reportIndex != nil {
		fields["report_index"] = *reportIndex
	}
	logrus.WithFields(fields).Info("Ledger event")
	return nil
}

// Query returns events for admins, newest first.
func (s *EventService) Query(caller models.Address, registry *AccessRegistry, eventType string, licensee string, params utils.PaginationParams) ([]models.LedgerEvent, int64, error) {
	if !registry.IsAdmin(caller) {
		return nil, 0, ErrUnauthorized
	}

	query := s.db.Model(&models.LedgerEvent{})
	if eventType != "" {
		query = query.Where("event_type = ?", eventType)
	}
	if licensee != "" {
		query = query.Where("licensee = ?", models.NormalizeAddress(licensee))
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	allowedSortFields := []string{"occurred_at", "created_at", "event_type"}
	query = utils.ApplySort(query, params, allowedSortFields)
	query = utils.ApplyPagination(query, params)

	var events []models.LedgerEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch events: %w", err)
	}
	return events, total, nil
}
