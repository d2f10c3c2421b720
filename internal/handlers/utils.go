package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/programhub/apiserver/internal/response"
	"github.com/programhub/apiserver/internal/services"
	"github.com/programhub/apiserver/types"
)

const maxBodyBytes = 1 << 20

type contextKey string

const contextUserKey contextKey = "user"

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

// userFromContext returns the authenticated user set by RequireAuth.
func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// parsePagination reads page and limit. Absent values are returned as zero
// so the service applies its own defaults; limits above the service
// maximum are clamped there.
func parsePagination(r *http.Request) (page, limit int, err error) {
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		page, err = strconv.Atoi(raw)
		if err != nil || page < 1 {
			return 0, 0, errors.New("invalid page")
		}
	}
	limit, err = parseLimit(r)
	if err != nil {
		return 0, 0, err
	}
	return page, limit, nil
}

func parseLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 {
		return 0, errors.New("invalid limit")
	}
	return limit, nil
}

func parseID(r *http.Request, param, label string) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, param))
	if err != nil {
		return uuid.Nil, errors.New("Invalid " + label + " id")
	}
	return id, nil
}

func paginated[T any](page types.Page[T]) response.Paginated {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	return response.Paginated{
		Data: items,
		Meta: response.Meta{
			Page:      page.Page,
			Limit:     page.Limit,
			Total:     page.Total,
			TotalPage: page.TotalPages(),
		},
	}
}

// writeServiceError maps a service error onto the envelope. Anything that
// is not a domain error is logged and answered with a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var domainErr *services.Error
	if !errors.As(err, &domainErr) {
		logger.ErrorContext(r.Context(), "request failed", "error", err, "method", r.Method, "path", r.URL.Path)
		response.InternalError(w)
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Kind {
	case services.KindValidation:
		status = http.StatusBadRequest
	case services.KindUnauthenticated:
		status = http.StatusUnauthorized
	case services.KindForbidden:
		status = http.StatusForbidden
	case services.KindNotFound:
		status = http.StatusNotFound
	case services.KindConflict:
		status = http.StatusConflict
	}
	response.Error(w, status, domainErr.Message, domainErr.Details)
}
