// Package users implements user account management: creation, lookup,
// partial updates, soft deletion and restoration, with uniqueness enforced
// on email and username and passwords stored only as one-way hashes.
package users

import "time"

// Field length limits enforced on requests. Password limits apply to the raw
// value before hashing.
const (
	EmailMaxLen    = 255
	UsernameMinLen = 3
	UsernameMaxLen = 50
	PasswordMinLen = 8
	PasswordMaxLen = 255
	NameMaxLen     = 100
)

// User is a user account record.
//
// IsActive is the sole deletion flag: rows are never physically removed by
// normal operations, a soft-deleted user simply has IsActive=false and is
// invisible to non-administrative reads. Version is the optimistic locking
// counter, starting at 0 and bumped by the store on every successful update;
// it is never settable by a client.
type User struct {
	ID          int64
	Email       string
	Username    string
	Password    string // one-way hash, never serialized outward
	FirstName   *string
	LastName    *string
	IsActive    bool
	LastLoginAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Version     int64
}
