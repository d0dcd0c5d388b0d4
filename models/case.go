package models

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

type Case struct {
	ID             int            `gorm:"primary_key" json:"id"`
	OrganizationId string         `gorm:"size:36;not null;uniqueIndex:idx_case_number,priority:1" json:"organization_id"`
	CaseNumber     string         `gorm:"size:40;not null;uniqueIndex:idx_case_number,priority:2" json:"case_number"`
	SequenceNo     int64          `gorm:"not null" json:"sequence_no"`
	Title          string         `gorm:"size:200;not null" json:"title"`
	Description    string         `gorm:"type:text" json:"description"`
	ClientId       int            `gorm:"not null;index" json:"client_id"`
	LawyerId       *int           `gorm:"index" json:"lawyer_id"`
	Status         CaseStatus     `gorm:"size:20;not null;default:OPEN;index" json:"status"`
	Priority       Priority       `gorm:"size:10;not null;default:MEDIUM" json:"priority"`
	OpenedAt       time.Time      `gorm:"not null" json:"opened_at"`
	ClosedAt       *time.Time     `json:"closed_at"`
	CreatedBy      int            `json:"created_by"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	Client *Client `gorm:"foreignKey:ClientId" json:"client,omitempty"`
	Lawyer *Lawyer `gorm:"foreignKey:LawyerId" json:"lawyer,omitempty"`
}

type NewCase struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	ClientId    int        `json:"client_id" validate:"required,gt=0"`
	LawyerId    *int       `json:"lawyer_id"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	OpenedAt    *time.Time `json:"opened_at"`
}

type CaseFilter struct {
	Status         *CaseStatus `form:"status"`
	ClientId       *int        `form:"client_id"`
	LawyerId       *int        `form:"lawyer_id"`
	Search         *string     `form:"search"`
	IncludeDeleted bool        `form:"include_deleted"`
}

func (c Case) GetCursor() time.Time { return c.CreatedAt }
func (c Case) GetId() int           { return c.ID }

var caseTransitions = map[CaseStatus][]CaseStatus{
	CaseStatusOpen:     {CaseStatusPending, CaseStatusClosed},
	CaseStatusPending:  {CaseStatusOpen, CaseStatusClosed},
	CaseStatusClosed:   {CaseStatusOpen, CaseStatusArchived},
	CaseStatusArchived: {CaseStatusClosed},
}

// CanTransitionCase reports whether a case may move from one status to another.
func CanTransitionCase(from, to CaseStatus) bool {
	for _, s := range caseTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// applyCaseStatus moves c to status and keeps ClosedAt in step with it.
func applyCaseStatus(c *Case, status CaseStatus, now time.Time) error {
	if !status.IsValid() {
		return fmt.Errorf("%w: unknown case status %q", utils.ErrInvalidArgument, status)
	}
	if !CanTransitionCase(c.Status, status) {
		return fmt.Errorf("%w: case cannot move from %s to %s", utils.ErrInvalidState, c.Status, status)
	}
	switch status {
	case CaseStatusClosed:
		if c.ClosedAt == nil {
			c.ClosedAt = &now
		}
	case CaseStatusOpen, CaseStatusPending:
		c.ClosedAt = nil
	}
	c.Status = status
	return nil
}

func (input *NewCase) validate(ctx context.Context) error {
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if err := utils.ValidateResourceId[Client](ctx, input.ClientId); err != nil {
		return fmt.Errorf("%w: client", err)
	}
	if input.LawyerId != nil {
		if err := utils.ValidateResourceId[Lawyer](ctx, *input.LawyerId); err != nil {
			return fmt.Errorf("%w: lawyer", err)
		}
	}
	return nil
}

func CreateCase(ctx context.Context, input *NewCase) (*Case, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	seq, number, err := NextIdentifier(ctx, SequenceKindCase)
	if err != nil {
		return nil, err
	}
	userId, _ := actorFromContext(ctx)
	openedAt := time.Now()
	if input.OpenedAt != nil {
		openedAt = *input.OpenedAt
	}

	c := Case{
		CaseNumber:  number,
		SequenceNo:  seq,
		Title:       input.Title,
		Description: input.Description,
		ClientId:    input.ClientId,
		LawyerId:    input.LawyerId,
		Status:      CaseStatusOpen,
		Priority:    input.Priority,
		OpenedAt:    openedAt,
		CreatedBy:   userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Omit("Client", "Lawyer").Create(&c).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeCase, c.ID, nil, c, "case "+c.CaseNumber+" opened"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func UpdateCase(ctx context.Context, id int, input *NewCase) (*Case, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	c, err := utils.FetchModelForUpdate[Case](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if c.Status == CaseStatusArchived {
		tx.Rollback()
		return nil, fmt.Errorf("%w: archived cases are read-only", utils.ErrInvalidState)
	}
	before := *c
	c.Title = input.Title
	c.Description = input.Description
	c.ClientId = input.ClientId
	c.LawyerId = input.LawyerId
	c.Priority = input.Priority
	if input.OpenedAt != nil {
		c.OpenedAt = *input.OpenedAt
	}

	if err := tx.Select("title", "description", "client_id", "lawyer_id", "priority", "opened_at").
		Updates(c).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeCase, c.ID, before, c, "case "+c.CaseNumber+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return c, nil
}

func ChangeCaseStatus(ctx context.Context, id int, status CaseStatus) (*Case, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	c, err := utils.FetchModelForUpdate[Case](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *c
	if err := applyCaseStatus(c, status, time.Now()); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Model(c).Select("status", "closed_at").Updates(c).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	description := fmt.Sprintf("case %s moved from %s to %s", c.CaseNumber, before.Status, c.Status)
	if err := recordActivity(tx, ActivityActionStatus, EntityTypeCase, c.ID, before, c, description); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return c, nil
}

// DeleteCase soft-deletes a case. Cases with unpaid invoices are kept.
func DeleteCase(ctx context.Context, id int) (*Case, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	c, err := utils.FetchModelForUpdate[Case](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	var unpaid int64
	if err := tx.Model(&Invoice{}).
		Where("case_id = ? AND status = ?", id, InvoiceStatusUnpaid).
		Count(&unpaid).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if unpaid > 0 {
		tx.Rollback()
		return nil, fmt.Errorf("%w: case has %d unpaid invoice(s)", utils.ErrInvalidState, unpaid)
	}
	if err := tx.Delete(c).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeCase, c.ID, c, nil, "case "+c.CaseNumber+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return c, nil
}

func GetCase(ctx context.Context, id int, includeDeleted bool) (*Case, error) {
	if includeDeleted {
		return utils.FetchModelUnscoped[Case](ctx, id)
	}
	return utils.FetchModel[Case](ctx, id)
}

func ListCases(ctx context.Context, filter CaseFilter, page PageInput) (*Connection[Case], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Case{})
	if filter.IncludeDeleted {
		dbCtx = dbCtx.Unscoped()
	}
	if filter.Status != nil && *filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	if filter.ClientId != nil {
		dbCtx = dbCtx.Where("client_id = ?", *filter.ClientId)
	}
	if filter.LawyerId != nil {
		dbCtx = dbCtx.Where("lawyer_id = ?", *filter.LawyerId)
	}
	if filter.Search != nil && *filter.Search != "" {
		p := likePattern(*filter.Search)
		dbCtx = dbCtx.Where("title LIKE ? OR case_number LIKE ?", p, p)
	}
	return FetchPage[Case](dbCtx, "cases", page)
}
