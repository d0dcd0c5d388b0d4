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

type Notification struct {
	ID             int        `gorm:"primary_key" json:"id"`
	OrganizationId string     `gorm:"size:36;not null;index:idx_notification_user,priority:1" json:"organization_id"`
	UserId         int        `gorm:"not null;index:idx_notification_user,priority:2" json:"user_id"`
	Title          string     `gorm:"size:200;not null" json:"title"`
	Body           string     `gorm:"type:text" json:"body"`
	EntityType     string     `gorm:"size:30" json:"entity_type"`
	EntityId       int        `json:"entity_id"`
	EventId        int        `gorm:"index" json:"event_id"`
	ReadAt         *time.Time `gorm:"index:idx_notification_user,priority:3" json:"read_at"`
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
}

func (n Notification) GetCursor() time.Time { return n.CreatedAt }
func (n Notification) GetId() int           { return n.ID }

type NotificationFilter struct {
	UnreadOnly bool `form:"unread"`
}

type notificationAudience int

const (
	audienceAdmins notificationAudience = iota + 1
	audienceUser
	audienceLawyer
)

// notificationPlan says who hears about an event and what they read.
type notificationPlan struct {
	Audience notificationAudience
	UserId   int
	LawyerId int
	Title    string
	Body     string
}

// planNotifications decides the notifications an event produces. Events that
// nobody needs to hear about yield nil.
func planNotifications(msg config.EventMessage) ([]notificationPlan, error) {
	switch msg.EntityType {
	case EntityTypePayment:
		var ev PaymentEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, fmt.Errorf("payment payload: %w", err)
		}
		if ev.PrevStatus == ev.Status {
			return nil, nil
		}
		if ev.Status == InvoiceStatusPaid {
			return []notificationPlan{{
				Audience: audienceAdmins,
				Title:    "Invoice " + ev.InvoiceNumber + " paid",
				Body:     fmt.Sprintf("Payments of %s settle the invoice total of %s.", ev.AmountPaid.StringFixed(2), ev.InvoiceTotal.StringFixed(2)),
			}}, nil
		}
		return []notificationPlan{{
			Audience: audienceAdmins,
			Title:    "Invoice " + ev.InvoiceNumber + " reopened",
			Body:     fmt.Sprintf("A payment was removed; %s of %s is paid.", ev.AmountPaid.StringFixed(2), ev.InvoiceTotal.StringFixed(2)),
		}}, nil

	case EntityTypeTask:
		if EventAction(msg.Action) == EventActionDelete {
			return nil, nil
		}
		var ev TaskAssignment
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, fmt.Errorf("task payload: %w", err)
		}
		if ev.AssigneeId == nil || *ev.AssigneeId == msg.UserId {
			return nil, nil
		}
		if ev.PreviousAssigneeId != nil && *ev.PreviousAssigneeId == *ev.AssigneeId {
			return nil, nil
		}
		return []notificationPlan{{
			Audience: audienceUser,
			UserId:   *ev.AssigneeId,
			Title:    "Task assigned: " + ev.Title,
			Body:     ev.Description,
		}}, nil

	case EntityTypeAppointment:
		if EventAction(msg.Action) != EventActionCreate {
			return nil, nil
		}
		var ev Appointment
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			return nil, fmt.Errorf("appointment payload: %w", err)
		}
		if ev.LawyerId == nil {
			return nil, nil
		}
		return []notificationPlan{{
			Audience: audienceLawyer,
			LawyerId: *ev.LawyerId,
			Title:    "New appointment: " + ev.Title,
			Body:     ev.StartsAt.Format(time.RFC1123) + " " + ev.Location,
		}}, nil
	}
	return nil, nil
}

// CreateNotificationsForEvent fans an outbox event out into notification rows
// inside tx. tx must carry the event's organization in its context.
func CreateNotificationsForEvent(tx *gorm.DB, msg config.EventMessage) (int, error) {
	plans, err := planNotifications(msg)
	if err != nil || len(plans) == 0 {
		return 0, err
	}

	var rows []Notification
	for _, p := range plans {
		var recipients []int
		switch p.Audience {
		case audienceAdmins:
			admins, err := usersWithRole(tx, UserRoleAdmin)
			if err != nil {
				return 0, err
			}
			for _, a := range admins {
				if a.ID != msg.UserId {
					recipients = append(recipients, a.ID)
				}
			}
		case audienceUser:
			recipients = append(recipients, p.UserId)
		case audienceLawyer:
			var lawyer Lawyer
			if err := tx.Select("id", "user_id").Where("id = ?", p.LawyerId).Take(&lawyer).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					continue
				}
				return 0, err
			}
			// lawyers without a login are not notified
			if lawyer.UserId != nil && *lawyer.UserId != msg.UserId {
				recipients = append(recipients, *lawyer.UserId)
			}
		}
		for _, userId := range recipients {
			rows = append(rows, Notification{
				UserId:     userId,
				Title:      p.Title,
				Body:       p.Body,
				EntityType: msg.EntityType,
				EntityId:   msg.EntityId,
				EventId:    msg.ID,
			})
		}
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := tx.Create(&rows).Error; err != nil {
		return 0, err
	}
	return len(rows), nil
}

// ListNotifications lists the caller's own notifications, newest first.
func ListNotifications(ctx context.Context, filter NotificationFilter, page PageInput) (*Connection[Notification], error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrUnauthorized
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Notification{}).Where("user_id = ?", userId)
	if filter.UnreadOnly {
		dbCtx = dbCtx.Where("read_at IS NULL")
	}
	return FetchPage[Notification](dbCtx, "notifications", page)
}

func CountUnreadNotifications(ctx context.Context) (int64, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return 0, utils.ErrUnauthorized
	}
	var count int64
	err := config.GetDB().WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userId).Count(&count).Error
	return count, err
}

func MarkNotificationRead(ctx context.Context, id int) (*Notification, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return nil, utils.ErrUnauthorized
	}
	db := config.GetDB().WithContext(ctx)
	var n Notification
	if err := db.Where("id = ? AND user_id = ?", id, userId).Take(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	if n.ReadAt != nil {
		return &n, nil
	}
	now := time.Now()
	if err := db.Model(&n).Update("read_at", now).Error; err != nil {
		return nil, err
	}
	n.ReadAt = &now
	return &n, nil
}

func MarkAllNotificationsRead(ctx context.Context) (int64, error) {
	userId, ok := utils.GetUserIdFromContext(ctx)
	if !ok || userId <= 0 {
		return 0, utils.ErrUnauthorized
	}
	res := config.GetDB().WithContext(ctx).Model(&Notification{}).
		Where("user_id = ? AND read_at IS NULL", userId).
		Update("read_at", time.Now())
	return res.RowsAffected, res.Error
}
