package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Organization is the tenant. It has no organization_id column of its own,
// so the tenant guard leaves it alone and every lookup filters by id.
type Organization struct {
	ID        string    `gorm:"primary_key;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Code      string    `gorm:"size:10;not null;unique" json:"code"`
	Email     string    `gorm:"size:100" json:"email"`
	Phone     string    `gorm:"size:20" json:"phone"`
	Address   string    `gorm:"type:text" json:"address"`
	Timezone  string    `gorm:"size:50" json:"timezone"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewOrganization struct {
	Name          string `json:"name" validate:"required,max=100"`
	Code          string `json:"code" validate:"required,orgcode"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone"`
	Address       string `json:"address"`
	Timezone      string `json:"timezone"`
	AdminName     string `json:"admin_name" validate:"required,max=100"`
	AdminEmail    string `json:"admin_email" validate:"required,email"`
	AdminPassword string `json:"admin_password" validate:"required,min=8"`
}

type UpdateOrganizationInput struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Timezone string `json:"timezone"`
}

const defaultTimezone = "UTC"

func normalizeTimezone(tz string) (string, error) {
	tz = strings.TrimSpace(tz)
	if tz == "" {
		return defaultTimezone, nil
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return "", fmt.Errorf("%w: unknown timezone %q", utils.ErrInvalidArgument, tz)
	}
	return tz, nil
}

func (input *NewOrganization) validate() error {
	input.Code = strings.ToUpper(strings.TrimSpace(input.Code))
	input.AdminEmail = strings.ToLower(strings.TrimSpace(input.AdminEmail))
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
	tz, err := normalizeTimezone(input.Timezone)
	if err != nil {
		return err
	}
	input.Timezone = tz
	return nil
}

// CreateOrganization is signup: the organization and its first ADMIN user are
// created together, and the admin is logged in.
func CreateOrganization(ctx context.Context, input *NewOrganization) (*LoginInfo, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}
	db := config.GetDB()

	var count int64
	if err := db.WithContext(ctx).Model(&Organization{}).Where("code = ?", input.Code).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: organization code %s is taken", utils.ErrConflict, input.Code)
	}
	// users are looked up by email across organizations at login
	if err := db.WithContext(utils.SetSkipTenantScopeInContext(ctx, true)).
		Model(&User{}).Where("email = ?", input.AdminEmail).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: email %s is already registered", utils.ErrConflict, input.AdminEmail)
	}

	hashed, err := utils.HashPassword(input.AdminPassword)
	if err != nil {
		return nil, err
	}

	org := Organization{
		ID:       uuid.NewString(),
		Name:     input.Name,
		Code:     input.Code,
		Email:    input.Email,
		Phone:    input.Phone,
		Address:  input.Address,
		Timezone: input.Timezone,
	}
	ctx = utils.SetOrganizationIdInContext(ctx, org.ID)

	tx := db.WithContext(ctx).Begin()
	if err := tx.Create(&org).Error; err != nil {
		tx.Rollback()
		if utils.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: organization code %s is taken", utils.ErrConflict, input.Code)
		}
		return nil, err
	}

	admin := User{
		Name:     input.AdminName,
		Email:    input.AdminEmail,
		Password: hashed,
		Role:     UserRoleAdmin,
		IsActive: utils.NewTrue(),
	}
	if err := tx.Create(&admin).Error; err != nil {
		tx.Rollback()
		if utils.IsDuplicateKeyErr(err) {
			return nil, fmt.Errorf("%w: email %s is already registered", utils.ErrConflict, input.AdminEmail)
		}
		return nil, err
	}

	txCtx := utils.SetUserNameInContext(utils.SetUserIdInContext(ctx, admin.ID), admin.Name)
	if err := recordActivity(tx.WithContext(txCtx), ActivityActionCreate, EntityTypeOrganization, 0, nil, org, "organization created"); err != nil {
		tx.Rollback()
		return nil, err
	}

	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	return issueLogin(&admin, &org)
}

// GetOrganization returns the caller's organization, cached in Redis.
func GetOrganization(ctx context.Context) (*Organization, error) {
	organizationId, err := utils.RequireOrganizationId(ctx)
	if err != nil {
		return nil, err
	}
	return GetOrganizationById(ctx, organizationId)
}

func GetOrganizationById(ctx context.Context, organizationId string) (*Organization, error) {
	org, err := utils.RetrieveRedis[Organization](organizationId)
	if err != nil {
		config.LogError(config.GetLogger(), "Organization", "GetOrganizationById", "redis", organizationId, err)
	}
	if org != nil {
		return org, nil
	}

	var result Organization
	if err := config.GetDB().WithContext(ctx).Where("id = ?", organizationId).Take(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrNotFound
		}
		return nil, err
	}
	if err := utils.StoreRedis(&result, organizationId); err != nil {
		config.LogError(config.GetLogger(), "Organization", "GetOrganizationById", "store redis", organizationId, err)
	}
	return &result, nil
}

func UpdateOrganization(ctx context.Context, input *UpdateOrganizationInput) (*Organization, error) {
	if !isAdmin(ctx) {
		return nil, utils.ErrForbidden
	}
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	tz, err := normalizeTimezone(input.Timezone)
	if err != nil {
		return nil, err
	}
	if input.Phone != "" {
		if input.Phone, err = utils.NormalizePhoneNumber(input.Phone); err != nil {
			return nil, err
		}
	}

	before, err := GetOrganization(ctx)
	if err != nil {
		return nil, err
	}
	after := *before
	after.Name = input.Name
	after.Email = input.Email
	after.Phone = input.Phone
	after.Address = input.Address
	after.Timezone = tz

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Model(&Organization{}).Where("id = ?", before.ID).Updates(map[string]interface{}{
		"name":     after.Name,
		"email":    after.Email,
		"phone":    after.Phone,
		"address":  after.Address,
		"timezone": after.Timezone,
	}).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeOrganization, 0, before, after, "organization updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}

	if err := utils.RemoveRedisItem[Organization](before.ID); err != nil {
		config.LogError(config.GetLogger(), "Organization", "UpdateOrganization", "remove redis", before.ID, err)
	}
	return &after, nil
}
