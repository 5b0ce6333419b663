package users

import "time"

// Outward timestamps are UTC ISO-8601 with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// SortableColumns maps request sort fields to column names for listings.
var SortableColumns = map[string]string{
	"id":        "id",
	"email":     "email",
	"username":  "username",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
}

// CreateUserRequest is the inbound payload for user creation. Active status
// and last login are controlled by the service and never read from requests.
type CreateUserRequest struct {
	Email     string  `json:"email" validate:"required,email,max=255"`
	Username  string  `json:"username" validate:"required,min=3,max=50"`
	Password  string  `json:"password" validate:"required,min=8,max=255"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
}

// UpdateUserRequest is the inbound payload for partial updates. Nil fields
// are left untouched by the merge; only provided fields overwrite.
type UpdateUserRequest struct {
	Email     *string `json:"email,omitempty" validate:"omitempty,email,max=255"`
	Username  *string `json:"username,omitempty" validate:"omitempty,min=3,max=50"`
	Password  *string `json:"password,omitempty" validate:"omitempty,min=8,max=255"`
	FirstName *string `json:"firstName,omitempty" validate:"omitempty,max=100"`
	LastName  *string `json:"lastName,omitempty" validate:"omitempty,max=100"`
}

// UserResponse is the outward view of a user. Password and version are
// structurally absent: nothing a caller does can make them appear.
type UserResponse struct {
	ID          int64   `json:"id"`
	Email       string  `json:"email"`
	Username    string  `json:"username"`
	FirstName   *string `json:"firstName,omitempty"`
	LastName    *string `json:"lastName,omitempty"`
	IsActive    bool    `json:"isActive"`
	CreatedAt   string  `json:"createdAt"`
	UpdatedAt   string  `json:"updatedAt"`
	LastLoginAt *string `json:"lastLoginAt,omitempty"`
}

// toUser copies the provided fields into a fresh record. The raw password is
// carried as-is here; the service replaces it with a hash before persistence.
func (r CreateUserRequest) toUser() User {
	return User{
		Email:     r.Email,
		Username:  r.Username,
		Password:  r.Password,
		FirstName: r.FirstName,
		LastName:  r.LastName,
	}
}

// applyTo merges the provided fields into the target record. Identity,
// timestamps, version, active status and last login are never touched by this
// path. Password is merged only when non-empty and is expected to already be
// hashed by the caller. Empty email/username values are treated as absent so
// a merge can never blank a required field.
func (r UpdateUserRequest) applyTo(u *User) {
	if r.Email != nil && *r.Email != "" {
		u.Email = *r.Email
	}
	if r.Username != nil && *r.Username != "" {
		u.Username = *r.Username
	}
	if r.Password != nil && *r.Password != "" {
		u.Password = *r.Password
	}
	if r.FirstName != nil {
		u.FirstName = r.FirstName
	}
	if r.LastName != nil {
		u.LastName = r.LastName
	}
}

func toResponse(u User) UserResponse {
	resp := UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsActive:  u.IsActive,
		CreatedAt: formatTimestamp(u.CreatedAt),
		UpdatedAt: formatTimestamp(u.UpdatedAt),
	}
	if u.LastLoginAt != nil {
		s := formatTimestamp(*u.LastLoginAt)
		resp.LastLoginAt = &s
	}
	return resp
}

func toResponseList(records []User) []UserResponse {
	out := make([]UserResponse, len(records))
	for i, u := range records {
		out[i] = toResponse(u)
	}
	return out
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}
