package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/Prathaban-G/ecommerce/internal/platform/httpx"
	"github.com/Prathaban-G/ecommerce/internal/platform/requestctx"
	"github.com/Prathaban-G/ecommerce/internal/services"
)

const (
	sessionIDParam        = "sessionID"
	defaultSessionTimeout = 30 * time.Second
	rateWindow            = time.Minute
)

// SessionStore is the subset of the session registry used by the handlers.
type SessionStore interface {
	Create(ctx context.Context) (*services.CatalogViewModel, error)
	Get(sessionID string) (*services.CatalogViewModel, error)
	Hold(sessionID string) (*services.CatalogViewModel, func(), error)
	Close(ctx context.Context, sessionID string) error
}

var _ SessionStore = (*services.SessionRegistry)(nil)

// SessionHandlers exposes the per-viewer catalog intents.
type SessionHandlers struct {
	sessions   SessionStore
	categories services.CategoryService
	timeout    time.Duration
	clock      func() time.Time

	createLimiter  rateLimiter
	contactLimiter rateLimiter

	upgrader     websocket.Upgrader
	pingInterval time.Duration
	writeWait    time.Duration
}

// SessionOption customises construction of SessionHandlers.
type SessionOption func(*SessionHandlers)

// WithSessionStore injects the session registry.
func WithSessionStore(store SessionStore) SessionOption {
	return func(h *SessionHandlers) {
		h.sessions = store
	}
}

// WithSessionCategoryService injects the service used to auto-select a category.
func WithSessionCategoryService(svc services.CategoryService) SessionOption {
	return func(h *SessionHandlers) {
		h.categories = svc
	}
}

// WithSessionRateLimits limits session creation per client address and
// contact requests per session, both per minute. Zero disables a limit.
func WithSessionRateLimits(createsPerMinute, contactsPerMinute int) SessionOption {
	return func(h *SessionHandlers) {
		h.createLimiter = newFixedWindowLimiter(createsPerMinute, rateWindow, h.clock)
		h.contactLimiter = newFixedWindowLimiter(contactsPerMinute, rateWindow, h.clock)
	}
}

// WithSessionClock overrides the clock used by rate limiting. It must be
// applied before WithSessionRateLimits.
func WithSessionClock(clock func() time.Time) SessionOption {
	return func(h *SessionHandlers) {
		if clock != nil {
			h.clock = clock
		}
	}
}

// WithSessionTimeout overrides the timeout applied to non-stream routes.
func WithSessionTimeout(timeout time.Duration) SessionOption {
	return func(h *SessionHandlers) {
		h.timeout = timeout
	}
}

// WithSessionAllowedOrigins restricts stream upgrades to the given origins.
// An empty list accepts any origin.
func WithSessionAllowedOrigins(origins ...string) SessionOption {
	return func(h *SessionHandlers) {
		allowed := make(map[string]struct{}, len(origins))
		for _, origin := range origins {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowed[strings.ToLower(origin)] = struct{}{}
			}
		}
		if len(allowed) == 0 {
			return
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := strings.ToLower(strings.TrimSpace(r.Header.Get("Origin")))
			if origin == "" {
				return true
			}
			_, ok := allowed[origin]
			return ok
		}
	}
}

// WithStreamKeepAlive overrides the websocket ping interval.
func WithStreamKeepAlive(interval time.Duration) SessionOption {
	return func(h *SessionHandlers) {
		if interval > 0 {
			h.pingInterval = interval
		}
	}
}

// NewSessionHandlers constructs the session handlers.
func NewSessionHandlers(opts ...SessionOption) *SessionHandlers {
	h := &SessionHandlers{
		timeout: defaultSessionTimeout,
		clock:   time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(*http.Request) bool {
				return true
			},
		},
		pingInterval: 30 * time.Second,
		writeWait:    10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the session endpoints. The stream route is registered
// outside the request timeout.
func (h *SessionHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{sessionID}/stream", h.stream)

	r.Group(func(timed chi.Router) {
		if h.timeout > 0 {
			timed.Use(middleware.Timeout(h.timeout))
		}
		timed.Post("/", h.createSession)
		timed.Get("/{sessionID}", h.getSession)
		timed.Delete("/{sessionID}", h.closeSession)
		timed.Put("/{sessionID}/category", h.selectCategory)
		timed.Post("/{sessionID}/refresh", h.refresh)
		timed.Put("/{sessionID}/filter", h.updateFilter)
		timed.Put("/{sessionID}/detail", h.openDetail)
		timed.Delete("/{sessionID}/detail", h.closeDetail)
		timed.Put("/{sessionID}/detail/image", h.selectImage)
		timed.Post("/{sessionID}/contact", h.requestContact)
		timed.Get("/{sessionID}/items/{itemID}/contact", h.redirectContact)
	})
}

type createSessionRequest struct {
	CategoryID string `json:"categoryId"`
	AutoSelect bool   `json:"autoSelect"`
}

func (h *SessionHandlers) createSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if !allowRequest(w, h.createLimiter, clientKey(r)) {
		writeRateLimited(ctx, w)
		return
	}

	var req createSessionRequest
	if err := decodeJSONBody(r, &req, true); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	view, err := h.sessions.Create(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	ctx = requestctx.WithSessionID(ctx, view.ID())

	categoryID := strings.TrimSpace(req.CategoryID)
	if categoryID == "" && req.AutoSelect && h.categories != nil {
		category, err := h.categories.DefaultCategory(ctx)
		switch {
		case err == nil:
			categoryID = category.ID
		case errors.Is(err, services.ErrCategoryCatalogEmpty):
		default:
			_ = h.sessions.Close(ctx, view.ID())
			writeServiceError(ctx, w, err)
			return
		}
	}

	state := view.State()
	if categoryID != "" {
		state, err = view.SelectCategory(ctx, categoryID)
		if err != nil {
			_ = h.sessions.Close(ctx, view.ID())
			writeServiceError(ctx, w, err)
			return
		}
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+view.ID())
	writeJSONResponse(w, http.StatusCreated, buildViewStatePayload(state))
}

func (h *SessionHandlers) getSession(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeViewState(w, view.State())
}

func (h *SessionHandlers) closeSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return
	}
	if err := h.sessions.Close(ctx, chi.URLParam(r, sessionIDParam)); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type selectCategoryRequest struct {
	CategoryID string `json:"categoryId"`
}

func (h *SessionHandlers) selectCategory(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req selectCategoryRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	state, err := view.SelectCategory(ctx, req.CategoryID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeViewState(w, state)
}

func (h *SessionHandlers) refresh(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	state, err := view.Refresh(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	writeViewState(w, state)
}

type filterRequest struct {
	SearchText *string  `json:"searchText"`
	MinPrice   *float64 `json:"minPrice"`
	MaxPrice   *float64 `json:"maxPrice"`
}

func (h *SessionHandlers) updateFilter(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req filterRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if req.SearchText == nil && req.MinPrice == nil && req.MaxPrice == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "searchText, minPrice or maxPrice is required", http.StatusBadRequest))
		return
	}

	state := view.SetFilter(services.FilterUpdate{
		SearchText: req.SearchText,
		MinPrice:   req.MinPrice,
		MaxPrice:   req.MaxPrice,
	})
	writeViewState(w, state)
}

type itemRequest struct {
	ItemID string `json:"itemId"`
}

func (h *SessionHandlers) openDetail(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req itemRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	state, err := view.OpenDetail(req.ItemID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeViewState(w, state)
}

func (h *SessionHandlers) closeDetail(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeViewState(w, view.CloseDetail())
}

type imageRequest struct {
	Index *int `json:"index"`
	Step  *int `json:"step"`
}

func (h *SessionHandlers) selectImage(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req imageRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	var (
		state services.ViewState
		err   error
	)
	switch {
	case req.Index != nil && req.Step != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "index and step are mutually exclusive", http.StatusBadRequest))
		return
	case req.Index != nil:
		state, err = view.SelectImage(*req.Index)
	case req.Step != nil:
		state, err = view.StepImage(*req.Step)
	default:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "index or step is required", http.StatusBadRequest))
		return
	}
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeViewState(w, state)
}

func (h *SessionHandlers) requestContact(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	var req itemRequest
	if err := decodeJSONBody(r, &req, false); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	link, ok := h.contact(w, r, view, req.ItemID)
	if !ok {
		return
	}
	writeJSONResponse(w, http.StatusOK, contactURLResponse{URL: link})
}

func (h *SessionHandlers) redirectContact(w http.ResponseWriter, r *http.Request) {
	view, ok := h.lookup(w, r)
	if !ok {
		return
	}
	link, ok := h.contact(w, r, view, chi.URLParam(r, "itemID"))
	if !ok {
		return
	}
	http.Redirect(w, r, link, http.StatusSeeOther)
}

// contact composes the link and notifies the sink. A sink failure is logged
// by the view model and does not withhold the link from the shopper.
func (h *SessionHandlers) contact(w http.ResponseWriter, r *http.Request, view *services.CatalogViewModel, itemID string) (string, bool) {
	ctx := r.Context()
	if !allowRequest(w, h.contactLimiter, view.ID()) {
		writeRateLimited(ctx, w)
		return "", false
	}
	req, err := view.RequestContact(ctx, itemID)
	if err != nil && req.URL == "" {
		writeServiceError(ctx, w, err)
		return "", false
	}
	return req.URL, true
}

func (h *SessionHandlers) ready(ctx context.Context, w http.ResponseWriter) bool {
	if h.sessions == nil {
		httpx.WriteError(ctx, w, httpx.NewError("session_service_unavailable", "session service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *SessionHandlers) lookup(w http.ResponseWriter, r *http.Request) (*services.CatalogViewModel, bool) {
	ctx := r.Context()
	if !h.ready(ctx, w) {
		return nil, false
	}
	view, err := h.sessions.Get(chi.URLParam(r, sessionIDParam))
	if err != nil {
		writeServiceError(ctx, w, err)
		return nil, false
	}
	return view, true
}

func writeViewState(w http.ResponseWriter, state services.ViewState) {
	w.Header().Set("Cache-Control", "no-store")
	writeJSONResponse(w, http.StatusOK, buildViewStatePayload(state))
}
