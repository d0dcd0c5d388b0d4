package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eventOf(t *testing.T, entityType string, action EventAction, userId int, payload any) config.EventMessage {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return config.EventMessage{
		ID:             1,
		OrganizationId: "org-a",
		EntityType:     entityType,
		EntityId:       5,
		Action:         string(action),
		UserId:         userId,
		Payload:        raw,
	}
}

func TestPlanNotifications_PaymentSettlesInvoice(t *testing.T) {
	msg := eventOf(t, EntityTypePayment, EventActionCreate, 3, PaymentEvent{
		InvoiceNumber: "ACME-INV-000001",
		InvoiceTotal:  dec("500"),
		AmountPaid:    dec("500"),
		PrevStatus:    InvoiceStatusUnpaid,
		Status:        InvoiceStatusPaid,
	})

	plans, err := planNotifications(msg)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, audienceAdmins, plans[0].Audience)
	assert.Equal(t, "Invoice ACME-INV-000001 paid", plans[0].Title)
	assert.Contains(t, plans[0].Body, "500.00")
}

func TestPlanNotifications_PaymentReopensInvoice(t *testing.T) {
	msg := eventOf(t, EntityTypePayment, EventActionDelete, 3, PaymentEvent{
		InvoiceNumber: "ACME-INV-000001",
		InvoiceTotal:  dec("500"),
		AmountPaid:    dec("300"),
		PrevStatus:    InvoiceStatusPaid,
		Status:        InvoiceStatusUnpaid,
	})

	plans, err := planNotifications(msg)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, "Invoice ACME-INV-000001 reopened", plans[0].Title)
}

func TestPlanNotifications_PartialPaymentIsQuiet(t *testing.T) {
	msg := eventOf(t, EntityTypePayment, EventActionCreate, 3, PaymentEvent{
		InvoiceTotal: dec("500"),
		AmountPaid:   dec("300"),
		PrevStatus:   InvoiceStatusUnpaid,
		Status:       InvoiceStatusUnpaid,
	})

	plans, err := planNotifications(msg)
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanNotifications_TaskAssignment(t *testing.T) {
	assignee := 8
	task := Task{ID: 5, Title: "Draft motion", AssigneeId: &assignee}

	plans, err := planNotifications(eventOf(t, EntityTypeTask, EventActionCreate, 3, TaskAssignment{Task: task}))
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, audienceUser, plans[0].Audience)
	assert.Equal(t, 8, plans[0].UserId)
	assert.Equal(t, "Task assigned: Draft motion", plans[0].Title)

	// assigning yourself
	plans, err = planNotifications(eventOf(t, EntityTypeTask, EventActionUpdate, 8, TaskAssignment{Task: task}))
	require.NoError(t, err)
	assert.Empty(t, plans)

	// unchanged assignee on an edit
	plans, err = planNotifications(eventOf(t, EntityTypeTask, EventActionUpdate, 3, TaskAssignment{Task: task, PreviousAssigneeId: &assignee}))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanNotifications_NewAppointmentNotifiesLawyer(t *testing.T) {
	lawyer := 4
	appt := Appointment{Title: "Deposition", LawyerId: &lawyer, StartsAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)}

	plans, err := planNotifications(eventOf(t, EntityTypeAppointment, EventActionCreate, 3, appt))
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.Equal(t, audienceLawyer, plans[0].Audience)
	assert.Equal(t, 4, plans[0].LawyerId)

	plans, err = planNotifications(eventOf(t, EntityTypeAppointment, EventActionUpdate, 3, appt))
	require.NoError(t, err)
	assert.Empty(t, plans)
}

func TestPlanNotifications_BadPayload(t *testing.T) {
	msg := config.EventMessage{EntityType: EntityTypePayment, Payload: json.RawMessage(`"nope"`)}
	_, err := planNotifications(msg)
	assert.Error(t, err)

	plans, err := planNotifications(config.EventMessage{EntityType: EntityTypeClient})
	require.NoError(t, err)
	assert.Nil(t, plans)
}
