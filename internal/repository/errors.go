// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// handlers to distinguish between different failure scenarios. For
// example, ErrForbidden indicates that the current user is not
// authorized to perform an operation on a resource owned by
// someone else, while ErrConflict signals that an operation
// cannot proceed due to existing dependent records (e.g. deleting
// a ticket category that already has bookings).
package repository

import (
    "errors"

    "github.com/go-sql-driver/mysql"
)

// ErrForbidden is returned when the caller attempts an operation
// on a resource they do not own. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a delete or update cannot be
// performed because of conflicting state, such as attempting to
// delete an event that still has bookings or moving a booking out of
// a terminal status. Handlers should translate this into an HTTP 409
// response.
var ErrConflict = errors.New("conflict")

// ErrInsufficientInventory is returned by reservation and confirmation
// when the category does not have enough tickets left.  The check and
// the write happen under the same row lock, so this is authoritative.
var ErrInsufficientInventory = errors.New("insufficient inventory")

// Not-found sentinels, one per table.
var (
    ErrVenueNotFound      = errors.New("venue not found")
    ErrEventNotFound      = errors.New("event not found")
    ErrOccurrenceNotFound = errors.New("occurrence not found")
    ErrCategoryNotFound   = errors.New("ticket category not found")
    ErrBookingNotFound    = errors.New("booking not found")
)

// MySQL server error numbers inspected by the repositories.
const (
    errDupEntry        = 1062
    errRowIsReferenced = 1451
    errNoReferencedRow = 1452
)

func mysqlErrNumber(err error) uint16 {
    var me *mysql.MySQLError
    if errors.As(err, &me) {
        return me.Number
    }
    return 0
}

// isDuplicate reports a unique key violation.
func isDuplicate(err error) bool { return mysqlErrNumber(err) == errDupEntry }

// isReferenced reports a delete blocked by a foreign key.
func isReferenced(err error) bool { return mysqlErrNumber(err) == errRowIsReferenced }

// isMissingParent reports an insert/update whose foreign key points nowhere.
func isMissingParent(err error) bool { return mysqlErrNumber(err) == errNoReferencedRow }
