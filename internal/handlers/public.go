package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/Prathaban-G/ecommerce/internal/domain"
	"github.com/Prathaban-G/ecommerce/internal/platform/httpx"
	"github.com/Prathaban-G/ecommerce/internal/services"
)

const categoryCacheControl = "public, max-age=60"

// PublicHandlers exposes the session-less storefront endpoints.
type PublicHandlers struct {
	categories services.CategoryService
	links      *services.DeepLinkComposer
}

// PublicOption customises construction of PublicHandlers.
type PublicOption func(*PublicHandlers)

// WithPublicCategoryService injects the category service.
func WithPublicCategoryService(svc services.CategoryService) PublicOption {
	return func(h *PublicHandlers) {
		h.categories = svc
	}
}

// WithPublicDeepLinks injects the composer used for mail links.
func WithPublicDeepLinks(links *services.DeepLinkComposer) PublicOption {
	return func(h *PublicHandlers) {
		h.links = links
	}
}

// NewPublicHandlers constructs the public handlers.
func NewPublicHandlers(opts ...PublicOption) *PublicHandlers {
	h := &PublicHandlers{}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the public endpoints.
func (h *PublicHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/categories", h.listCategories)
	r.Post("/contact/mail", h.composeMail)
}

type categoryListResponse struct {
	Categories []categoryPayload `json:"categories"`
}

func (h *PublicHandlers) listCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.categories == nil {
		httpx.WriteError(ctx, w, httpx.NewError("category_service_unavailable", "category service unavailable", http.StatusServiceUnavailable))
		return
	}

	values := r.URL.Query()
	query := services.CategoryQuery{
		Filter: domain.CategoryFilter(strings.ToLower(strings.TrimSpace(values.Get("filter")))),
		Search: values.Get("q"),
	}
	categories, err := h.categories.ListCategories(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	resp := categoryListResponse{Categories: make([]categoryPayload, 0, len(categories))}
	for _, category := range categories {
		resp.Categories = append(resp.Categories, buildCategoryPayload(category))
	}
	w.Header().Set("Cache-Control", categoryCacheControl)
	writeJSONResponse(w, http.StatusOK, resp)
}

type mailRequest struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type contactURLResponse struct {
	URL string `json:"url"`
}

func (h *PublicHandlers) composeMail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.links == nil {
		writeServiceError(ctx, w, services.ErrDeepLinkMailMissing)
		return
	}
	var req mailRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Subject) == "" && strings.TrimSpace(req.Body) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "subject or body is required", http.StatusBadRequest))
		return
	}
	link, err := h.links.MailURL(req.Subject, req.Body)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, contactURLResponse{URL: link})
}
