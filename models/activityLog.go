package models

import (
	"context"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

type ActivityAction string

const (
	ActivityActionCreate ActivityAction = "CREATE"
	ActivityActionUpdate ActivityAction = "UPDATE"
	ActivityActionDelete ActivityAction = "DELETE"
	ActivityActionStatus ActivityAction = "STATUS"
)

// ActivityLog is append-only. Rows are written inside the mutating transaction.
type ActivityLog struct {
	ID             int            `gorm:"primary_key" json:"id"`
	OrganizationId string         `gorm:"size:36;not null;index:idx_activity_entity,priority:1" json:"organization_id"`
	UserId         int            `gorm:"index" json:"user_id"`
	UserName       string         `gorm:"size:100" json:"user_name"`
	Action         ActivityAction `gorm:"size:10;not null" json:"action"`
	EntityType     string         `gorm:"size:30;not null;index:idx_activity_entity,priority:2" json:"entity_type"`
	EntityId       int            `gorm:"not null;index:idx_activity_entity,priority:3" json:"entity_id"`
	Description    string         `gorm:"type:text" json:"description"`
	Before         string         `gorm:"type:text" json:"before,omitempty"`
	After          string         `gorm:"type:text" json:"after,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime;index" json:"created_at"`
}

func (a ActivityLog) GetCursor() time.Time { return a.CreatedAt }
func (a ActivityLog) GetId() int           { return a.ID }

type ActivityFilter struct {
	EntityType *string `form:"entity_type"`
	EntityId   *int    `form:"entity_id"`
	UserId     *int    `form:"user_id"`
}

// recordActivity appends an activity row and the matching outbox event in tx.
func recordActivity(tx *gorm.DB,
	action ActivityAction,
	entityType string,
	entityId int,
	before interface{},
	after interface{},
	description string) error {

	ctx := tx.Statement.Context
	userId, userName := actorFromContext(ctx)

	entry := ActivityLog{
		UserId:      userId,
		UserName:    userName,
		Action:      action,
		EntityType:  entityType,
		EntityId:    entityId,
		Description: description,
		Before:      utils.SnapshotJSON(before),
		After:       utils.SnapshotJSON(after),
	}
	if err := tx.Create(&entry).Error; err != nil {
		return err
	}

	payload := after
	if payload == nil {
		payload = before
	}
	return PublishEvent(tx, entityType, entityId, eventActionFor(action), payload)
}

func eventActionFor(action ActivityAction) EventAction {
	switch action {
	case ActivityActionCreate:
		return EventActionCreate
	case ActivityActionDelete:
		return EventActionDelete
	default:
		return EventActionUpdate
	}
}

func ListActivity(ctx context.Context, filter ActivityFilter, page PageInput) (*Connection[ActivityLog], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&ActivityLog{})
	if filter.EntityType != nil && *filter.EntityType != "" {
		dbCtx = dbCtx.Where("entity_type = ?", *filter.EntityType)
	}
	if filter.EntityId != nil {
		dbCtx = dbCtx.Where("entity_id = ?", *filter.EntityId)
	}
	if filter.UserId != nil {
		dbCtx = dbCtx.Where("user_id = ?", *filter.UserId)
	}
	return FetchPage[ActivityLog](dbCtx, "activity_logs", page)
}
