package models

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

// Outbox publish statuses for EventRecord.PublishStatus.
const (
	OutboxPublishStatusPending    = "PENDING"
	OutboxPublishStatusProcessing = "PROCESSING"
	OutboxPublishStatusSent       = "SENT"
	OutboxPublishStatusFailed     = "FAILED"
	OutboxPublishStatusDead       = "DEAD"
)

// EventRecord is the transactional outbox row. It is inserted in the same
// transaction as the mutation it describes and published to Pub/Sub after
// commit by the dispatcher.
type EventRecord struct {
	ID             int             `gorm:"primary_key;index:idx_outbox_dispatch,priority:3" json:"id"`
	OrganizationId string          `gorm:"size:36;not null;index" json:"organization_id"`
	EntityType     string          `gorm:"size:30;not null;index:idx_outbox_entity,priority:1" json:"entity_type"`
	EntityId       int             `gorm:"not null;index:idx_outbox_entity,priority:2" json:"entity_id"`
	Action         EventAction     `gorm:"size:1;not null" json:"action"`
	UserId         int             `json:"user_id"`
	Payload        json.RawMessage `gorm:"type:blob" json:"payload"`
	CorrelationId  string          `gorm:"size:64;index" json:"correlation_id"`

	PublishStatus    string     `gorm:"size:20;not null;default:'PENDING';index:idx_outbox_dispatch,priority:1" json:"publish_status"` // PENDING|PROCESSING|SENT|FAILED|DEAD
	PublishedAt      *time.Time `json:"published_at"`
	PubSubMessageId  *string    `gorm:"size:255" json:"pubsub_message_id"`
	PublishAttempts  int        `gorm:"not null;default:0" json:"publish_attempts"`
	NextAttemptAt    *time.Time `gorm:"index:idx_outbox_dispatch,priority:2" json:"next_attempt_at"`
	LockedAt         *time.Time `gorm:"index" json:"locked_at"`
	LockedBy         *string    `gorm:"size:100" json:"locked_by"`
	LastPublishError *string    `gorm:"type:text" json:"last_publish_error"`
	CreatedAt        time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// PublishEvent writes an outbox row in tx. The organization comes from tx's context.
func PublishEvent(tx *gorm.DB, entityType string, entityId int, action EventAction, payload interface{}) error {
	ctx := tx.Statement.Context
	organizationId, err := utils.RequireOrganizationId(ctx)
	if err != nil {
		return err
	}
	var raw []byte
	if payload != nil {
		raw, err = json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("outbox payload: %w", err)
		}
	}
	userId, _ := actorFromContext(ctx)

	record := EventRecord{
		OrganizationId: organizationId,
		EntityType:     entityType,
		EntityId:       entityId,
		Action:         action,
		UserId:         userId,
		Payload:        raw,
		CorrelationId:  correlationIdFromContextOrNew(ctx),
		PublishStatus:  OutboxPublishStatusPending,
	}
	return tx.Create(&record).Error
}

func ConvertToEventMessage(record EventRecord) config.EventMessage {
	return config.EventMessage{
		ID:             record.ID,
		OrganizationId: record.OrganizationId,
		EventTime:      record.CreatedAt,
		EntityId:       record.EntityId,
		EntityType:     record.EntityType,
		Action:         string(record.Action),
		UserId:         record.UserId,
		Payload:        record.Payload,
		CorrelationId:  record.CorrelationId,
	}
}

// OutboxStatus is the latest outbox row for an entity, for operators.
type OutboxStatus struct {
	RecordId         int        `json:"record_id"`
	EntityType       string     `json:"entity_type"`
	EntityId         int        `json:"entity_id"`
	PublishStatus    string     `json:"publish_status"`
	PublishAttempts  int        `json:"publish_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at"`
	LastPublishError *string    `json:"last_publish_error"`
	CreatedAt        time.Time  `json:"created_at"`
	PublishedAt      *time.Time `json:"published_at"`
}

func GetOutboxStatus(ctx context.Context, entityType string, entityId int) (*OutboxStatus, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	var rec EventRecord
	if err := config.GetDB().WithContext(ctx).
		Where("entity_type = ? AND entity_id = ?", entityType, entityId).
		Order("id DESC").
		Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	return &OutboxStatus{
		RecordId:         rec.ID,
		EntityType:       rec.EntityType,
		EntityId:         rec.EntityId,
		PublishStatus:    rec.PublishStatus,
		PublishAttempts:  rec.PublishAttempts,
		NextAttemptAt:    rec.NextAttemptAt,
		LastPublishError: rec.LastPublishError,
		CreatedAt:        rec.CreatedAt,
		PublishedAt:      rec.PublishedAt,
	}, nil
}

// ReprocessDeadEvents puts DEAD and FAILED rows of ctx's organization back to PENDING.
func ReprocessDeadEvents(ctx context.Context) (int64, error) {
	if !isAdmin(ctx) {
		return 0, utils.ErrForbidden
	}
	res := config.GetDB().WithContext(ctx).
		Model(&EventRecord{}).
		Where("publish_status IN ?", []string{OutboxPublishStatusDead, OutboxPublishStatusFailed}).
		Updates(map[string]interface{}{
			"publish_status":   OutboxPublishStatusPending,
			"publish_attempts": 0,
			"next_attempt_at":  nil,
			"locked_at":        nil,
			"locked_by":        nil,
		})
	return res.RowsAffected, res.Error
}
