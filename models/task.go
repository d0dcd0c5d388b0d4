package models

import (
	"context"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"gorm.io/gorm"
)

// Task belongs to a tenant through its case.
type Task struct {
	ID          int            `gorm:"primary_key" json:"id"`
	CaseId      int            `gorm:"not null;index" json:"case_id"`
	Title       string         `gorm:"size:200;not null" json:"title"`
	Description string         `gorm:"type:text" json:"description"`
	AssigneeId  *int           `gorm:"index" json:"assignee_id"`
	Status      TaskStatus     `gorm:"size:20;not null;default:TODO;index" json:"status"`
	Priority    Priority       `gorm:"size:10;not null;default:MEDIUM" json:"priority"`
	DueDate     *time.Time     `gorm:"index" json:"due_date"`
	CompletedAt *time.Time     `json:"completed_at"`
	CreatedBy   int            `json:"created_by"`
	CreatedAt   time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (Task) TenantParent() (string, string) { return "case_id", "cases" }

func (t Task) GetCursor() time.Time { return t.CreatedAt }
func (t Task) GetId() int           { return t.ID }

type NewTask struct {
	Title       string     `json:"title" validate:"required,max=200"`
	Description string     `json:"description"`
	AssigneeId  *int       `json:"assignee_id"`
	Status      TaskStatus `json:"status" validate:"omitempty,oneof=TODO IN_PROGRESS DONE"`
	Priority    Priority   `json:"priority" validate:"omitempty,oneof=LOW MEDIUM HIGH URGENT"`
	DueDate     *time.Time `json:"due_date"`
}

type TaskFilter struct {
	CaseId     *int        `form:"case_id"`
	AssigneeId *int        `form:"assignee_id"`
	Status     *TaskStatus `form:"status"`
}

// TaskAssignment is the outbox payload for task events.
type TaskAssignment struct {
	Task
	PreviousAssigneeId *int `json:"previous_assignee_id"`
}

func (input *NewTask) validate(ctx context.Context) error {
	if input.Status == "" {
		input.Status = TaskStatusTodo
	}
	if input.Priority == "" {
		input.Priority = PriorityMedium
	}
	if err := utils.ValidateStruct(input); err != nil {
		return err
	}
	if input.AssigneeId != nil {
		if err := utils.ValidateResourceId[User](ctx, *input.AssigneeId); err != nil {
			return fmt.Errorf("%w: assignee", err)
		}
	}
	return nil
}

// completedAtFor keeps CompletedAt set exactly while the task is DONE.
func completedAtFor(status TaskStatus, current *time.Time, now time.Time) *time.Time {
	if status != TaskStatusDone {
		return nil
	}
	if current != nil {
		return current
	}
	return &now
}

func CreateTask(ctx context.Context, caseId int, input *NewTask) (*Task, error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	if err := input.validate(ctx); err != nil {
		return nil, err
	}
	parent, err := utils.FetchModel[Case](ctx, caseId)
	if err != nil {
		return nil, err
	}
	if parent.Status == CaseStatusArchived {
		return nil, fmt.Errorf("%w: archived cases are read-only", utils.ErrInvalidState)
	}
	userId, _ := actorFromContext(ctx)

	task := Task{
		CaseId:      caseId,
		Title:       input.Title,
		Description: input.Description,
		AssigneeId:  input.AssigneeId,
		Status:      input.Status,
		Priority:    input.Priority,
		DueDate:     input.DueDate,
		CompletedAt: completedAtFor(input.Status, nil, time.Now()),
		CreatedBy:   userId,
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	if err := tx.Create(&task).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionCreate, EntityTypeTask, task.ID, nil, TaskAssignment{Task: task}, "task "+task.Title+" created"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return &task, nil
}

func UpdateTask(ctx context.Context, id int, input *NewTask) (*Task, error) {
	if err := input.validate(ctx); err != nil {
		return nil, err
	}

	tx := config.GetDB().WithContext(ctx).Begin()
	task, err := utils.FetchModelForUpdate[Task](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	before := *task
	task.Title = input.Title
	task.Description = input.Description
	task.AssigneeId = input.AssigneeId
	task.Status = input.Status
	task.Priority = input.Priority
	task.DueDate = input.DueDate
	task.CompletedAt = completedAtFor(input.Status, before.CompletedAt, time.Now())

	if err := tx.Select("title", "description", "assignee_id", "status", "priority", "due_date", "completed_at").
		Updates(task).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	after := TaskAssignment{Task: *task, PreviousAssigneeId: before.AssigneeId}
	if err := recordActivity(tx, ActivityActionUpdate, EntityTypeTask, task.ID, before, after, "task "+task.Title+" updated"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return task, nil
}

func DeleteTask(ctx context.Context, id int) (*Task, error) {
	tx := config.GetDB().WithContext(ctx).Begin()
	task, err := utils.FetchModelForUpdate[Task](tx, id)
	if err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Delete(task).Error; err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := recordActivity(tx, ActivityActionDelete, EntityTypeTask, task.ID, task, nil, "task "+task.Title+" deleted"); err != nil {
		tx.Rollback()
		return nil, err
	}
	if err := tx.Commit().Error; err != nil {
		return nil, err
	}
	return task, nil
}

func GetTask(ctx context.Context, id int) (*Task, error) {
	return utils.FetchModel[Task](ctx, id)
}

func ListTasks(ctx context.Context, filter TaskFilter, page PageInput) (*Connection[Task], error) {
	if _, err := utils.RequireOrganizationId(ctx); err != nil {
		return nil, err
	}
	dbCtx := config.GetDB().WithContext(ctx).Model(&Task{})
	if filter.CaseId != nil {
		dbCtx = dbCtx.Where("case_id = ?", *filter.CaseId)
	}
	if filter.AssigneeId != nil {
		dbCtx = dbCtx.Where("assignee_id = ?", *filter.AssigneeId)
	}
	if filter.Status != nil && *filter.Status != "" {
		dbCtx = dbCtx.Where("status = ?", *filter.Status)
	}
	return FetchPage[Task](dbCtx, "tasks", page)
}
