package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/oakley-grocery/backend/internal/domain"
)

const serviceName = "oakley-grocery"

// Resolver is the resolution use case consumed by the handlers
type Resolver interface {
	Resolve(ctx context.Context, req domain.ResolveRequest) (*domain.ResolutionResult, error)
	ResolveBatch(ctx context.Context, reqs []domain.ResolveRequest) ([]*domain.ResolutionResult, error)
	LearnPreference(ctx context.Context, input domain.PreferenceInput) (uint, error)
	GetPreference(ctx context.Context, genericName string) (*domain.Preference, error)
	ListPreferences(ctx context.Context) ([]domain.Preference, error)
	SearchPreferences(ctx context.Context, substring string) ([]domain.Preference, error)
	DeletePreference(ctx context.Context, genericName string) (bool, error)
	ProductDetails(ctx context.Context, code int64) (*domain.CandidateProduct, error)
	Specials(ctx context.Context, page, pageSize int) ([]domain.CandidateProduct, error)
}

// HealthFunc reports whether a backing dependency is reachable
type HealthFunc func(ctx context.Context) error

// Handler holds dependencies for HTTP handlers
type Handler struct {
	resolver Resolver
	health   HealthFunc
	version  string
	log      zerolog.Logger
}

// NewHandler creates a new HTTP handler. health may be nil; version is
// reported by /health.
func NewHandler(resolver Resolver, health HealthFunc, version string, log zerolog.Logger) *Handler {
	return &Handler{
		resolver: resolver,
		health:   health,
		version:  version,
		log:      log.With().Str("component", "http").Logger(),
	}
}

// batchRequest is the body of POST /api/v1/resolve/batch
type batchRequest struct {
	Items []domain.ResolveRequest `json:"items" binding:"required,min=1,dive"`
}

// HealthCheck returns the health status of the API and its store
func (h *Handler) HealthCheck(c *gin.Context) {
	status, code := "healthy", http.StatusOK
	store := "ok"
	if h.health != nil {
		if err := h.health(c.Request.Context()); err != nil {
			status, code = "unhealthy", http.StatusServiceUnavailable
			store = err.Error()
		}
	}

	c.JSON(code, gin.H{
		"status":  status,
		"service": serviceName,
		"version": h.version,
		"store":   store,
	})
}

// Resolve handles single item resolution
func (h *Handler) Resolve(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req domain.ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.resolver.Resolve(c.Request.Context(), req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// ResolveBatch resolves a list of items. Items whose resolution failed are
// returned unresolved and their errors listed alongside.
func (h *Handler) ResolveBatch(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	results, err := h.resolver.ResolveBatch(c.Request.Context(), req.Items)
	body := gin.H{"results": results}
	if err != nil {
		_ = c.Error(err)
		body["error"] = err.Error()
	}

	c.JSON(http.StatusOK, body)
}

// LearnPreference stores a confirmed product for a generic name
func (h *Handler) LearnPreference(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	var input domain.PreferenceInput
	if err := c.ShouldBindJSON(&input); err != nil {
		h.badRequest(c, err)
		return
	}

	id, err := h.resolver.LearnPreference(c.Request.Context(), input)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": id})
}

// ListPreferences lists preferences, filtered by ?q= when given
func (h *Handler) ListPreferences(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	prefs, err := h.resolver.SearchPreferences(c.Request.Context(), c.Query("q"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if prefs == nil {
		prefs = []domain.Preference{}
	}

	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// GetPreference returns one preference by generic name
func (h *Handler) GetPreference(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	pref, err := h.resolver.GetPreference(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, pref)
}

// DeletePreference forgets a generic name
func (h *Handler) DeletePreference(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	deleted, err := h.resolver.DeletePreference(c.Request.Context(), c.Param("name"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	if !deleted {
		h.writeError(c, domain.ErrPreferenceNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// ProductDetails returns a product by stock code
func (h *Handler) ProductDetails(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	code, err := strconv.ParseInt(c.Param("code"), 10, 64)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	product, err := h.resolver.ProductDetails(c.Request.Context(), code)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, product)
}

// Specials returns products on special, paged by ?page= and ?page_size=
func (h *Handler) Specials(c *gin.Context) {
	if !h.configured(c) {
		return
	}

	page, err := queryInt(c, "page", 1)
	if err != nil {
		h.badRequest(c, err)
		return
	}
	pageSize, err := queryInt(c, "page_size", 20)
	if err != nil {
		h.badRequest(c, err)
		return
	}

	products, err := h.resolver.Specials(c.Request.Context(), page, pageSize)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if products == nil {
		products = []domain.CandidateProduct{}
	}

	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) configured(c *gin.Context) bool {
	if h.resolver == nil {
		c.JSON(http.StatusNotImplemented, gin.H{"error": "resolver not configured"})
		return false
	}
	return true
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	_ = c.Error(err)
	c.JSON(http.StatusBadRequest, gin.H{"error": domain.ErrInvalidRequest.Error(), "details": err.Error()})
}

// writeError maps domain errors onto HTTP statuses
func (h *Handler) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch {
	case errors.Is(err, domain.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrPreferenceNotFound), errors.Is(err, domain.ErrProductNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrProviderFailure):
		c.JSON(http.StatusBadGateway, gin.H{"error": domain.ErrProviderFailure.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
