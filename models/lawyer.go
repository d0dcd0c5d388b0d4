package models

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Lawyer struct {
	ID             int             `gorm:"primary_key" json:"id"`
	OrganizationId string          `gorm:"size:36;not null;index" json:"organization_id"`
	UserId         *int            `gorm:"index" json:"user_id"`
	Name           string          `gorm:"size:100;not null" json:"name"`
	Email          string          `gorm:"size:100" json:"email"`
	Phone          string          `gorm:"size:20" json:"phone"`
	BarNumber      string          `gorm:"size:50" json:"bar_number"`
	Specialization string          `gorm:"size:100" json:"specialization"`
	HourlyRate     decimal.Decimal `gorm:"type:decimal(20,4);default:0" json:"hourly_rate"`
	CreatedAt      time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt  `gorm:"index" json:"deleted_at,omitempty"`
}

type NewLawyer struct {
	UserId         *int            `json:"user_id"`
	Name           string          `json:"name" validate:"required,max=100"`
	Email          string          `json:"email" validate:"omitempty,email"`
	Phone          string          `json:"phone" validate:"phone"`
	BarNumber      string          `json:"bar_number" validate:"max=50"`
	Specialization string          `json:"specialization" validate:"max=100"`
	HourlyRate     decimal.Decimal `json:"hourly_rate" validate:"dgte0"`
}

func (l Lawyer) GetCursor() time.Time { return l.CreatedAt }
func (l Lawyer) GetId() int           { return l.ID }

func (input *NewLawyer) validate(ctx context.Context, id int) error {
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.Phone != "" {
		phone, err := utils.NormalizePhoneNumber(input.Phone)
		if err != nil {
			return err
		}
		input.Phone = phone
	}
	if input.UserId != nil && *input.UserId > 0 {
		if err := utils.ValidateResourceId[User](ctx, *input.UserId); err != nil {
			return fmt.Errorf("%w: user", err)
		}
		if err := utils.ValidateUnique[Lawyer](ctx, "user_id", *input.UserId, id); err != nil {
			return err
		}
	}
	if input.BarNumber != "" {
		if err := utils.ValidateUnique[Lawyer](ctx, "bar_number", input.BarNumber, id); err != nil {
			return err
		}
	}
	return nil
}

func CreateLawyer(ctx context.Context, input *NewLawyer) (*Lawyer, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	if err := input.validate(ctx, 0); err != nil {
		return nil, err
	}

	lawyer := Lawyer{
		UserId:         input.UserId,
		Name:           input.Name,
		Email:          input.Email,
		Phone:          input.Phone,
		BarNumber:      input.BarNumber,
		Specialization: input.Specialization,
		HourlyRate:     input.HourlyRate,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Create(&lawyer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeLawyer, lawyer.ID, nil, lawyer, "lawyer "+lawyer.Name+" added"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &lawyer, nil
}

func UpdateLawyer(ctx context.Context, id int, input *NewLawyer) (*Lawyer, error) {
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	if err := input.validate(ctx, id); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	lawyer, err := utils.FetchModelForUpdate[Lawyer](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *lawyer
	lawyer.UserId = input.UserId
	lawyer.Name = input.Name
	lawyer.Email = input.Email
	lawyer.Phone = input.Phone
	lawyer.BarNumber = input.BarNumber
	lawyer.Specialization = input.Specialization
	lawyer.HourlyRate = input.HourlyRate

	if err := tx.Select("user_id", "name", "email", "phone", "bar_number", "specialization", "hourly_rate").
		Updates(lawyer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeLawyer, lawyer.ID, before, lawyer, "lawyer "+lawyer.Name+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return lawyer, nil
}

// DeleteLawyer soft-deletes the lawyer. Open cases keep their reference.
func DeleteLawyer(ctx context.Context, id int) (*Lawyer, error) {
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	tx := config.GetDB().WithContext(ctx).Begin()
	lawyer, err := utils.FetchModelForUpdate[Lawyer](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(lawyer).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeLawyer, lawyer.ID, lawyer, nil, "lawyer "+lawyer.Name+" removed"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return lawyer, nil
}

func GetLawyer(ctx context.Context, id int) (*Lawyer, error) {
	return utils.FetchModel[Lawyer](ctx, id)
}

func ListLawyers(ctx context.Context, search *string, page PageInput) (*Connection[Lawyer], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Lawyer{})
	if search != nil && *search != "" {
		p := likePattern(*search)
		dbCtx = dbCtx.Where("name LIKE ? OR bar_number LIKE ? OR specialization LIKE ?", p, p, p)
	}
	return FetchPage[Lawyer](dbCtx, "lawyers", page)
}
