package models

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

type Appointment struct {
	ID             int               `gorm:"primary_key" json:"id"`
	OrganizationId string            `gorm:"size:36;not null;index:idx_appointment_schedule,priority:1" json:"organization_id"`
	CaseId         *int              `gorm:"index" json:"case_id"`
	ClientId       *int              `gorm:"index" json:"client_id"`
	LawyerId       *int              `gorm:"index" json:"lawyer_id"`
	Title          string            `gorm:"size:200;not null" json:"title"`
	Location       string            `gorm:"size:200" json:"location"`
	Notes          string            `gorm:"type:text" json:"notes"`
	StartsAt       time.Time         `gorm:"not null;index:idx_appointment_schedule,priority:2" json:"starts_at"`
	EndsAt         time.Time         `gorm:"not null" json:"ends_at"`
	Status         AppointmentStatus `gorm:"size:20;not null;default:SCHEDULED" json:"status"`
	CreatedBy      int               `json:"created_by"`
	CreatedAt      time.Time         `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time         `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt    `gorm:"index" json:"deleted_at,omitempty"`
}

type NewAppointment struct {
	CaseId   *int              `json:"case_id"`
	ClientId *int              `json:"client_id"`
	LawyerId *int              `json:"lawyer_id"`
	Title    string            `json:"title" validate:"required,max=200"`
	Location string            `json:"location" validate:"max=200"`
	Notes    string            `json:"notes"`
	StartsAt time.Time         `json:"starts_at" validate:"required"`
	EndsAt   time.Time         `json:"ends_at" validate:"required"`
	Status   AppointmentStatus `json:"status" validate:"omitempty,oneof=SCHEDULED COMPLETED CANCELLED"`
}

type AppointmentFilter struct {
	From     *time.Time         `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time         `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	LawyerId *int               `form:"lawyer_id"`
	CaseId   *int               `form:"case_id"`
	Status   *AppointmentStatus `form:"status"`
}

func (a Appointment) GetCursor() time.Time { return a.CreatedAt }
func (a Appointment) GetId() int           { return a.ID }

func (input *NewAppointment) validate(ctx context.Context) error {
	if input.Status == "" {
		input.Status = AppointmentStatusScheduled
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if !input.EndsAt.After(input.StartsAt) {
		return fmt.Errorf("%w: ends_at must be after starts_at", utils.ErrInvalidArgument)
	}
	if input.CaseId != nil {
		if err := utils.ValidateResourceId[Case](ctx, *input.CaseId); err != nil {
			return fmt.Errorf("%w: case", err)
		}
	}
	if input.ClientId != nil {
		if err := utils.ValidateResourceId[Client](ctx, *input.ClientId); err != nil {
			return fmt.Errorf("%w: client", err)
		}
	}
	if input.LawyerId != nil {
		if err := utils.ValidateResourceId[Lawyer](ctx, *input.LawyerId); err != nil {
			return fmt.Errorf("%w: lawyer", err)
		}
	}
	return nil
}

// ensureLawyerFree rejects a SCHEDULED appointment that overlaps another
// SCHEDULED appointment of the same lawyer. Touching intervals do not overlap.
func ensureLawyerFree(tx *gorm.DB, lawyerId *int, startsAt, endsAt time.Time, status AppointmentStatus, exceptId int) error {
	if lawyerId == nil || status != AppointmentStatusScheduled {
		return nil
	}
	dbCtx := tx.Model(&Appointment{}).
		Where("lawyer_id = ? AND status = ?", *lawyerId, AppointmentStatusScheduled).
		Where("starts_at < ? AND ends_at > ?", endsAt, startsAt)
	if exceptId > 0 {
		dbCtx = dbCtx.Where("id <> ?", exceptId)
	}
	var count int64
	if err := dbCtx.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fmt.Errorf("%w: lawyer already has an appointment in this slot", utils.ErrConflict)
	}
	return nil
}

// lockLawyer serializes schedule changes of one lawyer.
func lockLawyer(tx *gorm.DB, lawyerId *int) error {
	if lawyerId == nil {
		return nil
	}
	_, err := utils.FetchModelForUpdate[Lawyer](tx, *lawyerId)
	return err
}

func CreateAppointment(ctx context.Context, input *NewAppointment) (*Appointment, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	userId, _ := actorFromContext(ctx)

	appointment := Appointment{
		CaseId:    input.CaseId,
		ClientId:  input.ClientId,
		LawyerId:  input.LawyerId,
		Title:     input.Title,
		Location:  input.Location,
		Notes:     input.Notes,
		StartsAt:  input.StartsAt,
		EndsAt:    input.EndsAt,
		Status:    input.Status,
		CreatedBy: userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := lockLawyer(tx, input.LawyerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ensureLawyerFree(tx, input.LawyerId, input.StartsAt, input.EndsAt, input.Status, 0); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Create(&appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeAppointment, appointment.ID, nil, appointment, "appointment "+appointment.Title+" scheduled"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &appointment, nil
}

func UpdateAppointment(ctx context.Context, id int, input *NewAppointment) (*Appointment, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := lockLawyer(tx, input.LawyerId); err != nil {
		tx.Rollback()
		return nil, err
	}
	appointment, err := utils.FetchModelForUpdate[Appointment](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := ensureLawyerFree(tx, input.LawyerId, input.StartsAt, input.EndsAt, input.Status, id); err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *appointment
	appointment.CaseId = input.CaseId
	appointment.ClientId = input.ClientId
	appointment.LawyerId = input.LawyerId
	appointment.Title = input.Title
	appointment.Location = input.Location
	appointment.Notes = input.Notes
	appointment.StartsAt = input.StartsAt
	appointment.EndsAt = input.EndsAt
	appointment.Status = input.Status

	if err := tx.Select("case_id", "client_id", "lawyer_id", "title", "location", "notes", "starts_at", "ends_at", "status").
		Updates(appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeAppointment, appointment.ID, before, appointment, "appointment "+appointment.Title+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

func DeleteAppointment(ctx context.Context, id int) (*Appointment, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	appointment, err := utils.FetchModelForUpdate[Appointment](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(appointment).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeAppointment, appointment.ID, appointment, nil, "appointment "+appointment.Title+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return appointment, nil
}

func GetAppointment(ctx context.Context, id int) (*Appointment, error) {
	return utils.FetchModel[Appointment](ctx, id)
}

// ListAppointments orders by start time, soonest first.
func ListAppointments(ctx context.Context, filter AppointmentFilter) ([]*Appointment, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Appointment{})
	if filter.From != nil {
		dbCtx = dbCtx.Where("ends_at > ?", *filter.From)
	}
	if filter.To != nil {
		dbCtx = dbCtx.Where("starts_at < ?", *filter.To)
	}
	if filter.LawyerId != nil {
		dbCtx = dbCtx.Where("lawyer_id = ?", *filter.LawyerId)
	}
	if filter.CaseId != nil {
		dbCtx = dbCtx.Where("case_id = ?", *filter.CaseId)
	}
	if filter.Status != nil && *filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	var results []*Appointment
	if err := dbCtx.Order("starts_at").Limit(500).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
