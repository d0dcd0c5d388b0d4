package models

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

type Client struct {
	ID             int            `gorm:"primary_key" json:"id"`
	OrganizationId string         `gorm:"size:36;not null;uniqueIndex:idx_client_number,priority:1" json:"organization_id"`
	ClientNumber   string         `gorm:"size:40;not null;uniqueIndex:idx_client_number,priority:2" json:"client_number"`
	SequenceNo     int64          `gorm:"not null" json:"sequence_no"`
	Name           string         `gorm:"size:150;not null;index" json:"name"`
	Email          string         `gorm:"size:100" json:"email"`
	Phone          string         `gorm:"size:20" json:"phone"`
	Address        string         `gorm:"type:text" json:"address"`
	Type           ClientType     `gorm:"size:20;not null;default:INDIVIDUAL" json:"type"`
	Notes          string         `gorm:"type:text" json:"notes"`
	CreatedBy      int            `json:"created_by"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

type NewClient struct {
	Name    string     `json:"name" validate:"required,max=150"`
	Email   string     `json:"email" validate:"omitempty,email"`
	Phone   string     `json:"phone" validate:"phone"`
	Address string     `json:"address"`
	Type    ClientType `json:"type" validate:"omitempty,oneof=INDIVIDUAL COMPANY"`
	Notes   string     `json:"notes"`
}

type ClientFilter struct {
	Search         *string     `form:"search"`
	Type           *ClientType `form:"type"`
	IncludeDeleted bool        `form:"include_deleted"`
}

func (c Client) GetCursor() time.Time { return c.CreatedAt }
func (c Client) GetId() int           { return c.ID }

func (input *NewClient) validate() error {
	if input.Type == "" {
		input.Type = ClientTypeIndividual
	}
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
	return nil
}

func CreateClient(ctx context.Context, input *NewClient) (*Client, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	seq, number, err := NextIdentifier(ctx, SequenceKindClient)
	if err != nil {
		return nil, err
	}
	userId, _ := actorFromContext(ctx)

	client := Client{
		ClientNumber: number,
		SequenceNo:   seq,
		Name:         input.Name,
		Email:        input.Email,
		Phone:        input.Phone,
		Address:      input.Address,
		Type:         input.Type,
		Notes:        input.Notes,
		CreatedBy:    userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Create(&client).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeClient, client.ID, nil, client, "client "+client.ClientNumber+" created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &client, nil
}

func UpdateClient(ctx context.Context, id int, input *NewClient) (*Client, error) {
	if err := input.validate(); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	client, err := utils.FetchModelForUpdate[Client](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *client
	client.Name = input.Name
	client.Email = input.Email
	client.Phone = input.Phone
	client.Address = input.Address
	client.Type = input.Type
	client.Notes = input.Notes

	if err := tx.Select("name", "email", "phone", "address", "type", "notes").Updates(client).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeClient, client.ID, before, client, "client "+client.ClientNumber+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return client, nil
}

// DeleteClient soft-deletes a client that has no open case and no unpaid invoice.
func DeleteClient(ctx context.Context, id int) (*Client, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	client, err := utils.FetchModelForUpdate[Client](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}

	var openCases int64
	if err := tx.Model(&Case{}).
		Where("client_id = ? AND status IN ?", id, []CaseStatus{CaseStatusOpen, CaseStatusPending}).
		Count(&openCases).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if openCases > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: client has %d open case(s)", utils.ErrInvalidState, openCases)
	}
	var unpaid int64
	if err := tx.Model(&Invoice{}).
		Where("client_id = ? AND status = ?", id, InvoiceStatusUnpaid).
		Count(&unpaid).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if unpaid > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: client has %d unpaid invoice(s)", utils.ErrInvalidState, unpaid)
	}

	if err := tx.Delete(client).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeClient, client.ID, client, nil, "client "+client.ClientNumber+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return client, nil
}

func GetClient(ctx context.Context, id int, includeDeleted bool) (*Client, error) {
	if includeDeleted {
		return utils.FetchModelUnscoped[Client](ctx, id)
	}
	return utils.FetchModel[Client](ctx, id)
}

func ListClients(ctx context.Context, filter ClientFilter, page PageInput) (*Connection[Client], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Client{})
	if filter.IncludeDeleted {
		dbCtx = dbCtx.Unscoped()
	}
	if filter.Search != nil && *filter.Search != "" {
		p := likePattern(*filter.Search)
		dbCtx = dbCtx.Where("name LIKE ? OR email LIKE ? OR client_number LIKE ?", p, p, p)
	}
	if filter.Type != nil && *filter.Type != "" {
		dbCtx = dbCtx.Where("type = ?", *filter.Type)
	}
	return FetchPage[Client](dbCtx, "clients", page)
}
