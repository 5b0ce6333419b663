package users

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strptr(s string) *string { return &s }

func TestCreateRequestToUser(t *testing.T) {
	req := CreateUserRequest{
		Email:     "a@example.com",
		Username:  "alice",
		Password:  "secret-password",
		FirstName: strptr("Alice"),
	}
	u := req.toUser()
	assert.Equal(t, "a@example.com", u.Email)
	assert.Equal(t, "alice", u.Username)
	assert.Equal(t, "secret-password", u.Password)
	require.NotNil(t, u.FirstName)
	assert.Equal(t, "Alice", *u.FirstName)
	assert.Nil(t, u.LastName)
	assert.False(t, u.IsActive)
	assert.Zero(t, u.ID)
	assert.Zero(t, u.Version)
}

func TestUpdateRequestMergesOnlyProvidedFields(t *testing.T) {
	u := User{
		ID:        7,
		Email:     "old@example.com",
		Username:  "olduser",
		Password:  "oldhash",
		FirstName: strptr("Old"),
		LastName:  strptr("Name"),
		IsActive:  true,
		Version:   3,
	}
	req := UpdateUserRequest{FirstName: strptr("New")}
	req.applyTo(&u)

	assert.Equal(t, "old@example.com", u.Email)
	assert.Equal(t, "olduser", u.Username)
	assert.Equal(t, "oldhash", u.Password)
	assert.Equal(t, "New", *u.FirstName)
	assert.Equal(t, "Name", *u.LastName)
	assert.Equal(t, int64(3), u.Version)
	assert.True(t, u.IsActive)
}

func TestUpdateRequestEmptyStringsDoNotBlankRequiredFields(t *testing.T) {
	u := User{Email: "old@example.com", Username: "olduser", Password: "oldhash"}
	req := UpdateUserRequest{
		Email:    strptr(""),
		Username: strptr(""),
		Password: strptr(""),
	}
	req.applyTo(&u)

	assert.Equal(t, "old@example.com", u.Email)
	assert.Equal(t, "olduser", u.Username)
	assert.Equal(t, "oldhash", u.Password)
}

func TestUpdateRequestCanClearOptionalNames(t *testing.T) {
	u := User{FirstName: strptr("Alice"), LastName: strptr("Smith")}
	req := UpdateUserRequest{FirstName: strptr("")}
	req.applyTo(&u)

	require.NotNil(t, u.FirstName)
	assert.Empty(t, *u.FirstName)
	assert.Equal(t, "Smith", *u.LastName)
}

func TestResponseOmitsPasswordAndVersion(t *testing.T) {
	login := time.Date(2024, 3, 4, 5, 6, 7, 890_000_000, time.UTC)
	u := User{
		ID:          7,
		Email:       "a@example.com",
		Username:    "alice",
		Password:    "super-secret-hash",
		IsActive:    true,
		LastLoginAt: &login,
		CreatedAt:   time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		UpdatedAt:   time.Date(2024, 1, 3, 3, 4, 5, 0, time.UTC),
		Version:     9,
	}

	body, err := json.Marshal(toResponse(u))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, fields, "version")
	assert.NotContains(t, string(body), "super-secret-hash")

	assert.Equal(t, "2024-01-02T03:04:05.000Z", fields["createdAt"])
	assert.Equal(t, "2024-03-04T05:06:07.890Z", fields["lastLoginAt"])
}

func TestResponseTimestampsAreUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*3600)
	u := User{CreatedAt: time.Date(2024, 1, 2, 5, 4, 5, 0, loc)}
	resp := toResponse(u)
	assert.Equal(t, "2024-01-02T03:04:05.000Z", resp.CreatedAt)
}

func TestResponseOmitsNilLastLogin(t *testing.T) {
	body, err := json.Marshal(toResponse(User{Email: "a@example.com"}))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(body, &fields))
	assert.NotContains(t, fields, "lastLoginAt")
	assert.NotContains(t, fields, "firstName")
}
