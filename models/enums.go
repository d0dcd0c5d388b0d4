package models

type InvoiceStatus string

const (
	InvoiceStatusUnpaid InvoiceStatus = "UNPAID"
	InvoiceStatusPaid   InvoiceStatus = "PAID"
	// InvoiceStatusOverdue is never stored. It is derived from UNPAID and due_date.
	InvoiceStatusOverdue InvoiceStatus = "OVERDUE"
)

func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusUnpaid, InvoiceStatusPaid, InvoiceStatusOverdue:
		return true
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "CASH"
	PaymentMethodBankTransfer PaymentMethod = "BANK_TRANSFER"
	PaymentMethodCard         PaymentMethod = "CARD"
	PaymentMethodCheck        PaymentMethod = "CHECK"
	PaymentMethodOther        PaymentMethod = "OTHER"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodCheck, PaymentMethodOther:
		return true
	}
	return false
}

type UserRole string

const (
	UserRoleAdmin  UserRole = "ADMIN"
	UserRoleLawyer UserRole = "LAWYER"
	UserRoleStaff  UserRole = "STAFF"
)

func (r UserRole) IsValid() bool {
	switch r {
	case UserRoleAdmin, UserRoleLawyer, UserRoleStaff:
		return true
	}
	return false
}

type ClientType string

const (
	ClientTypeIndividual ClientType = "INDIVIDUAL"
	ClientTypeCompany    ClientType = "COMPANY"
)

type CaseStatus string

const (
	CaseStatusOpen     CaseStatus = "OPEN"
	CaseStatusPending  CaseStatus = "PENDING"
	CaseStatusClosed   CaseStatus = "CLOSED"
	CaseStatusArchived CaseStatus = "ARCHIVED"
)

func (s CaseStatus) IsValid() bool {
	switch s {
	case CaseStatusOpen, CaseStatusPending, CaseStatusClosed, CaseStatusArchived:
		return true
	}
	return false
}

type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

type TaskStatus string

const (
	TaskStatusTodo       TaskStatus = "TODO"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusDone       TaskStatus = "DONE"
)

type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "SCHEDULED"
	AppointmentStatusCompleted AppointmentStatus = "COMPLETED"
	AppointmentStatusCancelled AppointmentStatus = "CANCELLED"
)

type SequenceKind string

const (
	SequenceKindCase    SequenceKind = "CASE"
	SequenceKindClient  SequenceKind = "CLIENT"
	SequenceKindInvoice SequenceKind = "INV"
)

func (k SequenceKind) IsValid() bool {
	switch k {
	case SequenceKindCase, SequenceKindClient, SequenceKindInvoice:
		return true
	}
	return false
}

// EventAction is the outbox action code.
type EventAction string

const (
	EventActionCreate EventAction = "C"
	EventActionUpdate EventAction = "U"
	EventActionDelete EventAction = "D"
)

// Entity type names used by the activity log, outbox and notifications.
const (
	EntityTypeOrganization = "organization"
	EntityTypeUser         = "user"
	EntityTypeLawyer       = "lawyer"
	EntityTypeClient       = "client"
	EntityTypeCase         = "case"
	EntityTypeTask         = "task"
	EntityTypeAppointment  = "appointment"
	EntityTypeDocument     = "document"
	EntityTypeInvoice      = "invoice"
	EntityTypePayment      = "payment"
)
