package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/Prathaban-G/ecommerce/internal/platform/httpx"
	"github.com/Prathaban-G/ecommerce/internal/repositories"
	"github.com/Prathaban-G/ecommerce/internal/services"
)

const maxRequestBodySize = 16 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = maxRequestBodySize
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded JSON object into dst. When optional is true
// an empty body leaves dst untouched.
func decodeJSONBody(r *http.Request, dst any, optional bool) error {
	data, err := readLimitedBody(r, maxRequestBodySize)
	if err != nil {
		if optional && errors.Is(err, errEmptyBody) {
			return nil
		}
		return err
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid JSON payload: %w", err)
	}
	return nil
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", err.Error(), http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	}
}

func writeRateLimited(ctx context.Context, w http.ResponseWriter) {
	httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many requests", http.StatusTooManyRequests))
}

// writeServiceError maps service and repository failures onto the error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrCategoryInvalidFilter),
		errors.Is(err, services.ErrCategoryRequired):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	case errors.Is(err, services.ErrCategoryNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("category_not_found", "category not found", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrCategoryCatalogEmpty):
		httpx.WriteError(ctx, w, httpx.NewError("catalog_empty", "no categories available", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrSessionNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("session_not_found", "session not found or expired", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrSessionLimitReached):
		httpx.WriteError(ctx, w, httpx.NewError("session_limit_reached", "too many active sessions", http.StatusServiceUnavailable))
		return
	case errors.Is(err, services.ErrViewClosed):
		httpx.WriteError(ctx, w, httpx.NewError("session_closed", "session has been closed", http.StatusGone))
		return
	case errors.Is(err, services.ErrNoCategorySelected):
		httpx.WriteError(ctx, w, httpx.NewError("no_category_selected", "select a category first", http.StatusConflict))
		return
	case errors.Is(err, services.ErrNoDetailOpen):
		httpx.WriteError(ctx, w, httpx.NewError("no_detail_open", "no item detail is open", http.StatusConflict))
		return
	case errors.Is(err, services.ErrItemNotVisible):
		httpx.WriteError(ctx, w, httpx.NewError("item_not_visible", "item is not visible", http.StatusNotFound))
		return
	case errors.Is(err, services.ErrDeepLinkMailMissing):
		httpx.WriteError(ctx, w, httpx.NewError("mail_not_configured", "mail contact is not configured", http.StatusNotFound))
		return
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
		return
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) && repoErr.IsUnavailable() {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_unavailable", "catalog store unavailable", http.StatusServiceUnavailable))
		return
	}
	httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
}
