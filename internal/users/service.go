package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/accountd/accountd/internal/shared"
)

// Service enforces the business rules the store cannot enforce alone:
// uniqueness pre-checks, password hashing, merge-on-update and soft-delete
// semantics.
type Service struct {
	repo   Repository
	hasher PasswordHasher
}

// NewService builds a Service instance.
func NewService(repo Repository, hasher PasswordHasher) *Service {
	return &Service{repo: repo, hasher: hasher}
}

// CreateUser creates a new active user. Email uniqueness is checked first,
// then username, so a conflict error always names the field that collided.
// The raw password never reaches the store; only its hash is persisted.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error) {
	if err := s.requireEmailFree(ctx, req.Email); err != nil {
		return nil, err
	}
	if err := s.requireUsernameFree(ctx, req.Username); err != nil {
		return nil, err
	}

	user := req.toUser()

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	user.Password = hash
	user.IsActive = true

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Save(ctx, &user)
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	resp := toResponse(user)
	return &resp, nil
}

// GetUserByID returns the outward view of the active user with the given id.
func (s *Service) GetUserByID(ctx context.Context, id int64) (*UserResponse, error) {
	user, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, wrapLookupErr(err, fmt.Sprintf("user with id %d", id))
	}
	resp := toResponse(*user)
	return &resp, nil
}

// GetUserByEmail returns the outward view of the active user with the email.
func (s *Service) GetUserByEmail(ctx context.Context, email string) (*UserResponse, error) {
	user, err := s.repo.FindActiveByEmail(ctx, email)
	if err != nil {
		return nil, wrapLookupErr(err, fmt.Sprintf("user with email %s", email))
	}
	resp := toResponse(*user)
	return &resp, nil
}

// GetUserByUsername returns the outward view of the active user with the
// username.
func (s *Service) GetUserByUsername(ctx context.Context, username string) (*UserResponse, error) {
	user, err := s.repo.FindActiveByUsername(ctx, username)
	if err != nil {
		return nil, wrapLookupErr(err, fmt.Sprintf("user with username %s", username))
	}
	resp := toResponse(*user)
	return &resp, nil
}

// ListUsers returns one page of active users. The count and the page rows are
// read inside one read-only transaction so they come from the same snapshot.
func (s *Service) ListUsers(ctx context.Context, page shared.PageRequest) (shared.Page[UserResponse], error) {
	var records []User
	var total int
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		records, total, err = repo.ListActive(ctx, page)
		return err
	})
	if err != nil {
		return shared.Page[UserResponse]{}, fmt.Errorf("list users: %w", err)
	}
	return shared.NewPage(toResponseList(records), page, total), nil
}

// ListAllUsers returns every active user. Unsafe on large datasets.
func (s *Service) ListAllUsers(ctx context.Context) ([]UserResponse, error) {
	var records []User
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		records, err = repo.ListActiveAll(ctx)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return toResponseList(records), nil
}

// SearchUsers returns one page of active users matching the composed filter.
// Like ListUsers, the count and the page share a read snapshot.
func (s *Service) SearchUsers(ctx context.Context, filter Filter, page shared.PageRequest) (shared.Page[UserResponse], error) {
	if err := filter.Err(); err != nil {
		return shared.Page[UserResponse]{}, err
	}
	var records []User
	var total int
	err := s.repo.WithReadTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		records, total, err = repo.SearchActive(ctx, filter, page)
		return err
	})
	if err != nil {
		return shared.Page[UserResponse]{}, fmt.Errorf("search users: %w", err)
	}
	return shared.NewPage(toResponseList(records), page, total), nil
}

// UpdateUser merges the provided fields into the stored record. Changed email
// or username values are re-validated for uniqueness exactly as in create. A
// provided non-empty password is hashed and replaces the stored hash; an
// absent or empty one leaves it untouched. A version mismatch during save
// surfaces as a concurrency conflict the caller can map to a retry response.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*UserResponse, error) {
	user, err := s.repo.FindActiveByID(ctx, id)
	if err != nil {
		return nil, wrapLookupErr(err, fmt.Sprintf("user with id %d", id))
	}

	if req.Email != nil && *req.Email != "" && *req.Email != user.Email {
		if err := s.requireEmailFree(ctx, *req.Email); err != nil {
			return nil, err
		}
	}
	if req.Username != nil && *req.Username != "" && *req.Username != user.Username {
		if err := s.requireUsernameFree(ctx, *req.Username); err != nil {
			return nil, err
		}
	}

	if req.Password != nil && *req.Password != "" {
		hash, err := s.hasher.Hash(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("update user: %w", err)
		}
		req.Password = &hash
	} else {
		req.Password = nil
	}

	req.applyTo(user)

	err = s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		return repo.Save(ctx, user)
	})
	if err != nil {
		if errors.Is(err, shared.ErrConcurrency) || errors.Is(err, shared.ErrAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}

	resp := toResponse(*user)
	return &resp, nil
}

// DeleteUser soft-deletes the active user with the given id. Zero affected
// rows after the existence check means another caller deleted it first, which
// is still a not-found outcome.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if _, err := s.repo.FindActiveByID(ctx, id); err != nil {
		return wrapLookupErr(err, fmt.Sprintf("user with id %d", id))
	}
	affected, err := s.repo.SoftDeleteByID(ctx, id)
	if err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user with id %d", shared.ErrNotFound, id)
	}
	return nil
}

// RestoreUser reverses a soft delete and returns the restored record.
func (s *Service) RestoreUser(ctx context.Context, id int64) (*UserResponse, error) {
	affected, err := s.repo.RestoreByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("restore user: %w", err)
	}
	if affected == 0 {
		return nil, fmt.Errorf("%w: inactive user with id %d", shared.ErrNotFound, id)
	}
	return s.GetUserByID(ctx, id)
}

// ExistsByEmail reports whether an active user holds the email. Absence is a
// valid false, never an error.
func (s *Service) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return s.repo.ExistsActiveByEmail(ctx, email)
}

// ExistsByUsername reports whether an active user holds the username.
func (s *Service) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return s.repo.ExistsActiveByUsername(ctx, username)
}

// RecordLogin stamps the last login time. The timestamp must not be in the
// future. Bypasses optimistic locking: login times are not
// business-conflict-sensitive.
func (s *Service) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	if at.After(time.Now()) {
		return shared.NewValidationError("lastLoginAt", "last login date cannot be in the future")
	}
	affected, err := s.repo.UpdateLastLoginAt(ctx, id, at)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user with id %d", shared.ErrNotFound, id)
	}
	return nil
}

// SetActiveStatus activates or deactivates an account administratively,
// bypassing optimistic locking.
func (s *Service) SetActiveStatus(ctx context.Context, id int64, active bool) error {
	affected, err := s.repo.UpdateActiveStatus(ctx, id, active)
	if err != nil {
		return fmt.Errorf("set active status: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: user with id %d", shared.ErrNotFound, id)
	}
	return nil
}

// CountUsers returns the number of active users.
func (s *Service) CountUsers(ctx context.Context) (int64, error) {
	return s.repo.CountActive(ctx)
}

// CountUsersCreatedBetween returns how many active users were created inside
// the inclusive range.
func (s *Service) CountUsersCreatedBetween(ctx context.Context, start, end time.Time) (int64, error) {
	return s.repo.CountActiveCreatedBetween(ctx, start, end)
}

func (s *Service) requireEmailFree(ctx context.Context, email string) error {
	exists, err := s.repo.ExistsActiveByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: user with email %s already exists", shared.ErrAlreadyExists, email)
	}
	return nil
}

func (s *Service) requireUsernameFree(ctx context.Context, username string) error {
	exists, err := s.repo.ExistsActiveByUsername(ctx, username)
	if err != nil {
		return fmt.Errorf("check username: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: user with username %s already exists", shared.ErrAlreadyExists, username)
	}
	return nil
}

func wrapLookupErr(err error, subject string) error {
	if errors.Is(err, shared.ErrNotFound) {
		return fmt.Errorf("%w: %s", shared.ErrNotFound, subject)
	}
	return fmt.Errorf("find %s: %w", subject, err)
}
