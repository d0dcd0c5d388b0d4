package utils

import (
	"errors"

	"github.com/AbdiTefera1/casewise-sub001/appctx"
	mysqlDriver "github.com/go-sql-driver/mysql"
)

// Domain errors wrap one of these with fmt.Errorf("%w: ...") so the HTTP
// boundary can map them with errors.Is.
var (
	ErrUnauthorized    = appctx.ErrUnauthorized
	ErrForbidden       = appctx.ErrForbidden
	ErrNotFound        = appctx.ErrNotFound
	ErrInvalidArgument = appctx.ErrInvalidArgument
	ErrInvalidState    = appctx.ErrInvalidState
	ErrConflict        = appctx.ErrConflict
)

// ErrorRecordNotFound is kept as an alias; cross-tenant reads and missing rows are
// reported the same way so tenant boundaries do not leak.
var ErrorRecordNotFound = ErrNotFound

const (
	mysqlErrDuplicateEntry  = 1062
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

func IsDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDuplicateEntry
	}
	return false
}

// IsRetryableTxErr reports lock contention errors after which the whole
// transaction can safely be replayed.
func IsRetryableTxErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == mysqlErrDeadlock || mysqlErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}
