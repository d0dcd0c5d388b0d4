package models

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/AbdiTefera1/casewise-sub001/config"
	"github.com/AbdiTefera1/casewise-sub001/utils"
	"github.com/bsm/redislock"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SequenceCounter is the last number issued for one (organization, kind).
type SequenceCounter struct {
	OrganizationId string       `gorm:"primaryKey;size:36;autoIncrement:false" json:"organization_id"`
	Kind           SequenceKind `gorm:"primaryKey;size:20;autoIncrement:false" json:"kind"`
	LastValue      int64        `gorm:"not null;default:0" json:"last_value"`
	UpdatedAt      time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

const (
	maxSequenceAttempts = 3
	sequencePadWidth    = 6
	sequenceLockTTL     = 3 * time.Second
)

// sequenceRetryDelay is a var so tests can shorten it.
var sequenceRetryDelay = 20 * time.Millisecond

// FormatSequence renders ACME-CASE-000123. Values wider than the pad are kept whole.
func FormatSequence(orgCode string, kind SequenceKind, n int64) string {
	return fmt.Sprintf("%s-%s-%0*d", orgCode, kind, sequencePadWidth, n)
}

// NextSequence reserves the next number for ctx's organization and kind.
//
// The counter row is read with SELECT ... FOR UPDATE in its own short
// transaction, so the number is committed before the caller's entity is written
// and concurrent callers queue on the row lock. A lost race on the first insert
// (duplicate key) or a deadlock replays the transaction, at most
// maxSequenceAttempts times, after which ErrConflict is returned.
func NextSequence(ctx context.Context, kind SequenceKind) (int64, error) {
	ctx, span := tracer.Start(ctx, "sequence.next")
	defer span.End()

	organizationId, err := utils.RequireOrganizationId(ctx)
	if err != nil {
		return 0, err
	}
	if !kind.IsValid() {
		return 0, fmt.Errorf("%w: unknown sequence kind %q", utils.ErrInvalidArgument, kind)
	}
	span.SetAttributes(attribute.String("organization_id", organizationId), attribute.String("kind", string(kind)))

	if config.SequenceRedisLockEnabled() {
		lock, lerr := config.ObtainRedisLock(ctx, sequenceLockKey(organizationId, kind), sequenceLockTTL, 50*time.Millisecond, 20)
		if lerr != nil && !errors.Is(lerr, redislock.ErrNotObtained) {
			config.LogError(config.GetLogger(), "SequenceCounter", "NextSequence", "redis lock", organizationId, lerr)
		}
		if lock != nil {
			defer lock.Release(context.Background())
		}
	}

	var lastErr error
	for attempt := 1; attempt <= maxSequenceAttempts; attempt++ {
		value, err := reserveSequence(ctx, organizationId, kind)
		if err == nil {
			return value, nil
		}
		if !utils.IsDuplicateKeyErr(err) && !utils.IsRetryableTxErr(err) {
			return 0, err
		}
		lastErr = err
		if attempt < maxSequenceAttempts {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(sequenceRetryDelay * time.Duration(attempt)):
			}
		}
	}
	config.LogError(config.GetLogger(), "SequenceCounter", "NextSequence", "retries exhausted", string(kind), lastErr)
	return 0, fmt.Errorf("%w: sequence %s busy, retry later", utils.ErrConflict, kind)
}

// NextIdentifier reserves a number and formats it with the organization code.
func NextIdentifier(ctx context.Context, kind SequenceKind) (int64, string, error) {
	org, err := GetOrganization(ctx)
	if err != nil {
		return 0, "", err
	}
	n, err := NextSequence(ctx, kind)
	if err != nil {
		return 0, "", err
	}
	return n, FormatSequence(org.Code, kind, n), nil
}

func reserveSequence(ctx context.Context, organizationId string, kind SequenceKind) (int64, error) {
	db := config.GetDB()
	tx := db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return 0, tx.Error
	}

	var orgCount int64
	if err := tx.Model(&Organization{}).Where("id = ?", organizationId).Count(&orgCount).Error; err != nil {
		tx.Rollback()
		return 0, err
	}
	if orgCount == 0 {
		tx.Rollback()
		return 0, fmt.Errorf("%w: organization", utils.ErrNotFound)
	}

	var counter SequenceCounter
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("kind = ?", kind).
		Take(&counter).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		counter = SequenceCounter{
			OrganizationId: organizationId,
			Kind:           kind,
			LastValue:      1,
		}
		if err := tx.Create(&counter).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
	case err != nil:
		tx.Rollback()
		return 0, err
	default:
		if err := tx.Model(&SequenceCounter{}).
			Where("kind = ?", kind).
			Update("last_value", gorm.Expr("last_value + 1")).Error; err != nil {
			tx.Rollback()
			return 0, err
		}
		counter.LastValue++
	}

	if err := tx.Commit().Error; err != nil {
		return 0, err
	}
	return counter.LastValue, nil
}

func sequenceLockKey(organizationId string, kind SequenceKind) string {
	return "lock:seq:" + organizationId + ":" + string(kind)
}

// PeekSequence returns the last issued value without reserving one.
func PeekSequence(ctx context.Context, kind SequenceKind) (int64, error) {
	var counter SequenceCounter
	err := config.GetDB().WithContext(ctx).Where("kind = ?", kind).Take(&counter).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return counter.LastValue, nil
}
