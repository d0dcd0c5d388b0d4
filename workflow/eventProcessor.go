package workflow

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/models"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/sirupsen/logrus"
)

const notificationHandlerName = "notifications"

var ErrInvalidEventMessage = errors.New("invalid event message")

// ProcessEventMessage consumes one delivered outbox event. Redeliveries of an
// event that already succeeded are skipped, so Pub/Sub's at-least-once
// delivery produces each notification once.
func ProcessEventMessage(ctx context.Context, logger *logrus.Logger, msg config.EventMessage) error {
	if msg.OrganizationId == "" || msg.EntityType == "" || msg.ID <= 0 {
		return fmt.Errorf("%w: organization_id, entity_type and id are required", ErrInvalidEventMessage)
	}
	ctx = utils.SetOrganizationIdInContext(ctx, msg.OrganizationId)
	if msg.CorrelationId != "" {
		ctx = utils.SetCorrelationIdInContext(ctx, msg.CorrelationId)
	}
	messageId := strconv.Itoa(msg.ID)

	tx := config.GetDB().WithContext(ctx).Begin()
	skip, err := BeginIdempotency(tx, notificationHandlerName, messageId)
	if err != nil {
		tx.Rollback()
		return err
	}
	if skip {
		tx.Rollback()
		return nil
	}

	created, err := models.CreateNotificationsForEvent(tx, msg)
	if err != nil {
		tx.Rollback()
		markEventFailed(ctx, logger, msg, messageId, err)
		return err
	}
	if err := MarkIdempotencySucceeded(tx, notificationHandlerName, messageId); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit().Error; err != nil {
		return err
	}

	if created > 0 && logger != nil {
		logger.WithFields(logrus.Fields{
			"field":           "ProcessEventMessage",
			"organization_id": msg.OrganizationId,
			"entity_type":     msg.EntityType,
			"entity_id":       msg.EntityId,
			"event_id":        msg.ID,
			"notifications":   created,
		}).Info("notifications created")
	}
	return nil
}

// markEventFailed records the failure in its own transaction; the work
// transaction has already been rolled back.
func markEventFailed(ctx context.Context, logger *logrus.Logger, msg config.EventMessage, messageId string, cause error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	if err := MarkIdempotencyFailed(tx, notificationHandlerName, messageId, cause); err != nil {
		tx.Rollback()
		if logger != nil {
			config.LogError(logger, "workflow", "markEventFailed", "mark failed", msg.ID, err)
		}
		return
	}
	if err := tx.Commit().Error; err != nil && logger != nil {
		config.LogError(logger, "workflow", "markEventFailed", "commit", msg.ID, err)
	}
}
