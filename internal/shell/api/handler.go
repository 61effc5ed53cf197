// Package api provides HTTP handlers for the Skiff operator API.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skiffhq/skiff/internal/core/composer"
	"github.com/skiffhq/skiff/internal/core/domain"
	"github.com/skiffhq/skiff/internal/core/flags"
	"github.com/skiffhq/skiff/internal/core/validation"
	"github.com/skiffhq/skiff/internal/shell/provider"
	"github.com/skiffhq/skiff/internal/shell/store"
)

// =============================================================================
// Handler
// =============================================================================

// Handler provides HTTP handlers for the API.
type Handler struct {
	store  store.Store
	logger *slog.Logger
}

// NewHandler creates a new API handler.
func NewHandler(s store.Store, l *slog.Logger) *Handler {
	if l == nil {
		l = slog.Default()
	}
	return &Handler{
		store:  s,
		logger: l,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/stacks", func(r chi.Router) {
			r.Post("/", h.handleCreateStack)
			r.Get("/", h.handleListStacks)
			r.Post("/preview", h.handlePreview)
			r.Get("/{id}", h.handleGetStack)
			r.Delete("/{id}", h.handleDeleteStack)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)

	if _, err := h.store.ListStacks(r.Context(), store.ListOptions{Limit: 1}); err != nil {
		checks["database"] = "failed"
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	checks["database"] = "ok"

	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Stack Handlers
// =============================================================================

func (h *Handler) handleCreateStack(w http.ResponseWriter, r *http.Request) {
	var req CreateStackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required", "validation_error")
		return
	}
	if msg := validateFlags(req.Flags); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	stack, err := domain.NewStack(req.Name, flagsFromRequest(req.Flags))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	if err := h.store.CreateStack(r.Context(), stack); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			h.writeError(w, http.StatusConflict, "stack with this name already exists", "stack_exists")
			return
		}
		h.logger.Error("failed to create stack", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create stack", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusCreated, stackToResponse(stack))
}

func (h *Handler) handleGetStack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	stack, err := h.store.GetStack(r.Context(), id)
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "stack not found", "stack_not_found")
			return
		}
		h.logger.Error("failed to get stack", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get stack", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, stackToResponse(stack))
}

func (h *Handler) handleListStacks(w http.ResponseWriter, r *http.Request) {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}

	stacks, err := h.store.ListStacks(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list stacks", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list stacks", "internal_error")
		return
	}

	resp := ListStacksResponse{
		Stacks: make([]StackResponse, 0, len(stacks)),
		Count:  len(stacks),
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
	for _, s := range stacks {
		resp.Stacks = append(resp.Stacks, stackToResponse(&s))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteStack(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := h.store.DeleteStack(r.Context(), id); err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "stack not found", "stack_not_found")
			return
		}
		h.logger.Error("failed to delete stack", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete stack", "internal_error")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handlePreview composes the topology offline and returns the resulting
// exports without persisting anything or touching the cloud provider.
func (h *Handler) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if msg := validateFlags(req.Flags); msg != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	eng := provider.NewPlanEngine(h.logger)
	d, err := composer.Compose(r.Context(), flagsFromRequest(req.Flags), eng, composer.Options{})
	if err != nil {
		h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "composition_error")
		return
	}

	exports, err := d.ResolveExports(r.Context())
	if err != nil {
		h.logger.Error("failed to resolve preview exports", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to resolve exports", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, PreviewResponse{Exports: exports})
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return false
}

func validateFlags(req FlagsRequest) string {
	if msg := validation.ValidateAppName(req.AppName); msg != "" {
		return "flags.app_name: " + msg
	}
	if msg := validation.ValidateEnvironment(req.Environment); msg != "" {
		return "flags.environment: " + msg
	}
	if msg := validation.ValidateRateExpression(req.APIWarmRate); msg != "" {
		return "flags.api_warm_rate: " + msg
	}
	if msg := validation.ValidateRateExpression(req.ArtisanScheduleRate); msg != "" {
		return "flags.artisan_schedule_rate: " + msg
	}
	return ""
}

func flagsFromRequest(req FlagsRequest) flags.FeatureFlags {
	return flags.FeatureFlags{
		AppName:             req.AppName,
		Environment:         req.Environment,
		Region:              req.Region,
		PHPVersion:          req.PHPVersion,
		UseMySQL:            req.UseMySQL,
		UseVPC:              req.UseVPC,
		UseOctane:           req.UseOctane,
		UseAPIWarmer:        req.UseAPIWarmer,
		UseArtisanScheduler: req.UseArtisanScheduler,
		APIWarmRate:         req.APIWarmRate,
		ArtisanScheduleRate: req.ArtisanScheduleRate,
	}
}

func flagsToRequest(f flags.FeatureFlags) FlagsRequest {
	return FlagsRequest{
		AppName:             f.AppName,
		Environment:         f.Environment,
		Region:              f.Region,
		PHPVersion:          f.PHPVersion,
		UseMySQL:            f.UseMySQL,
		UseVPC:              f.UseVPC,
		UseOctane:           f.UseOctane,
		UseAPIWarmer:        f.UseAPIWarmer,
		UseArtisanScheduler: f.UseArtisanScheduler,
		APIWarmRate:         f.APIWarmRate,
		ArtisanScheduleRate: f.ArtisanScheduleRate,
	}
}

func stackToResponse(s *domain.Stack) StackResponse {
	return StackResponse{
		ID:           s.ID,
		Name:         s.Name,
		Flags:        flagsToRequest(s.Flags),
		Status:       string(s.Status),
		Exports:      s.Exports,
		ErrorMessage: s.ErrorMessage,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}
