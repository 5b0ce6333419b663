package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/accountd/accountd/internal/platform/httpx"
	"github.com/accountd/accountd/internal/shared"
)

// ServicePort defines the operations the handler dispatches to.
type ServicePort interface {
	CreateUser(ctx context.Context, req CreateUserRequest) (*UserResponse, error)
	GetUserByID(ctx context.Context, id int64) (*UserResponse, error)
	GetUserByEmail(ctx context.Context, email string) (*UserResponse, error)
	GetUserByUsername(ctx context.Context, username string) (*UserResponse, error)
	ListUsers(ctx context.Context, page shared.PageRequest) (shared.Page[UserResponse], error)
	ListAllUsers(ctx context.Context) ([]UserResponse, error)
	SearchUsers(ctx context.Context, filter Filter, page shared.PageRequest) (shared.Page[UserResponse], error)
	UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (*UserResponse, error)
	DeleteUser(ctx context.Context, id int64) error
	RestoreUser(ctx context.Context, id int64) (*UserResponse, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// Handler wires the user management HTTP endpoints.
type Handler struct {
	logger      *slog.Logger
	service     ServicePort
	validate    *validator.Validate
	idempotency *shared.IdempotencyStore
}

// NewHandler constructs a Handler. The idempotency store may be nil, which
// disables Idempotency-Key tracking on creation.
func NewHandler(logger *slog.Logger, service ServicePort, idempotency *shared.IdempotencyStore) *Handler {
	return &Handler{
		logger:      logger,
		service:     service,
		validate:    newValidator(),
		idempotency: idempotency,
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

const createOp = "users.create"

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}

	key := r.Header.Get("Idempotency-Key")
	if key != "" && h.idempotency != nil {
		if err := h.idempotency.CheckAndInsert(r.Context(), key, createOp); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				httpx.RespondError(w, fmt.Errorf("%w: request already processed", shared.ErrAlreadyExists))
				return
			}
			h.logger.Error("idempotency check failed", slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
	}

	resp, err := h.service.CreateUser(r.Context(), req)
	if err != nil {
		if key != "" && h.idempotency != nil {
			if relErr := h.idempotency.Release(r.Context(), key, createOp); relErr != nil {
				h.logger.Warn("idempotency release failed", slog.Any("error", relErr))
			}
		}
		h.logger.Error("create user failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}

	h.logger.Info("user created", slog.Int64("id", resp.ID))
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) getByID(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.GetUserByID(r.Context(), id)
	if err != nil {
		h.logError("get user failed", err, slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getByEmail(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	resp, err := h.service.GetUserByEmail(r.Context(), email)
	if err != nil {
		h.logError("get user by email failed", err, slog.String("email", email))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) getByUsername(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	resp, err := h.service.GetUserByUsername(r.Context(), username)
	if err != nil {
		h.logError("get user by username failed", err, slog.String("username", username))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := shared.ParsePageRequest(r.URL.Query(), SortableColumns, "created_at", true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.ListUsers(r.Context(), page)
	if err != nil {
		h.logger.Error("list users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	resp, err := h.service.ListAllUsers(r.Context())
	if err != nil {
		h.logger.Error("list all users failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	if resp == nil {
		resp = []UserResponse{}
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	page, err := shared.ParsePageRequest(r.URL.Query(), SortableColumns, "created_at", true)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	filter, err := h.parseSearchFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}

	resp, err := h.service.SearchUsers(r.Context(), filter, page)
	if err != nil {
		h.logError("search users failed", err)
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) parseSearchFilter(r *http.Request) (Filter, error) {
	q := r.URL.Query()
	filters := []Filter{SearchAllFields(q.Get("q"))}

	if raw := q.Get("createdFrom"); raw != "" || q.Get("createdTo") != "" {
		from, to, err := parseRange(raw, q.Get("createdTo"))
		if err != nil {
			return Filter{}, err
		}
		filters = append(filters, CreatedBetween(from, to))
	}

	return And(filters...), nil
}

func parseRange(fromRaw, toRaw string) (time.Time, time.Time, error) {
	from := time.Time{}
	to := time.Now().UTC()
	var err error
	if fromRaw != "" {
		if from, err = time.Parse(time.RFC3339, fromRaw); err != nil {
			return time.Time{}, time.Time{}, shared.NewValidationError("createdFrom", "must be an RFC 3339 timestamp")
		}
	}
	if toRaw != "" {
		if to, err = time.Parse(time.RFC3339, toRaw); err != nil {
			return time.Time{}, time.Time{}, shared.NewValidationError("createdTo", "must be an RFC 3339 timestamp")
		}
	}
	return from, to, nil
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	var req UpdateUserRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.RespondError(w, fmt.Errorf("%w: malformed request body", shared.ErrValidation))
		return
	}
	if err := h.validateStruct(req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	resp, err := h.service.UpdateUser(r.Context(), id, req)
	if err != nil {
		h.logError("update user failed", err, slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("user updated", slog.Int64("id", id))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteUser(r.Context(), id); err != nil {
		h.logError("delete user failed", err, slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("user deleted", slog.Int64("id", id))
	httpx.NoContent(w)
}

func (h *Handler) restore(w http.ResponseWriter, r *http.Request) {
	id, ok := h.parseID(w, r)
	if !ok {
		return
	}
	resp, err := h.service.RestoreUser(r.Context(), id)
	if err != nil {
		h.logError("restore user failed", err, slog.Int64("id", id))
		httpx.RespondError(w, err)
		return
	}
	h.logger.Info("user restored", slog.Int64("id", id))
	httpx.JSON(w, http.StatusOK, resp)
}

func (h *Handler) existsByEmail(w http.ResponseWriter, r *http.Request) {
	exists, err := h.service.ExistsByEmail(r.Context(), chi.URLParam(r, "email"))
	if err != nil {
		h.logger.Error("email existence check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exists)
}

func (h *Handler) existsByUsername(w http.ResponseWriter, r *http.Request) {
	exists, err := h.service.ExistsByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.logger.Error("username existence check failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, exists)
}

func (h *Handler) parseID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.NewValidationError("id", "id must be a positive integer"))
		return 0, false
	}
	return id, true
}

// validateStruct runs struct tag validation and converts failures into the
// field-to-messages shape of the error envelope.
func (h *Handler) validateStruct(req any) error {
	err := h.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: invalid request", shared.ErrValidation)
	}
	verr := &shared.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), fieldMessage(fe))
	}
	return verr
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fe.Field())
	case "email":
		return fmt.Sprintf("%s must be a valid email address", fe.Field())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "max":
		return fmt.Sprintf("%s must not exceed %s characters", fe.Field(), fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", fe.Field())
	}
}

// logError logs classified client errors at info and everything else at error.
func (h *Handler) logError(msg string, err error, attrs ...slog.Attr) {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.Any("error", err))
	for _, a := range attrs {
		args = append(args, a)
	}
	switch {
	case errors.Is(err, shared.ErrNotFound),
		errors.Is(err, shared.ErrAlreadyExists),
		errors.Is(err, shared.ErrValidation),
		errors.Is(err, shared.ErrConcurrency):
		h.logger.Info(msg, args...)
	default:
		h.logger.Error(msg, args...)
	}
}
