package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthlens_backend/internal/catalog/service"
	"healthlens_backend/internal/catalog/transport"
	"healthlens_backend/platform/httpkit"
	"healthlens_backend/platform/validator"
)

// Handler handles HTTP requests for the metric catalog.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid metric id"
)

// New creates a new catalog handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// ListMetrics retrieves catalog metrics.
// GET /api/v1/catalog/metrics
func (h *Handler) ListMetrics(c *gin.Context) {
	var req transport.ListMetricsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	result, err := h.svc.ListMetrics(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// GetMetricByKey retrieves a catalog metric by its canonical key.
// GET /api/v1/catalog/metrics/:key
func (h *Handler) GetMetricByKey(c *gin.Context) {
	key := c.Param("key")
	if key == "" {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	result, err := h.svc.GetMetricByKey(c.Request.Context(), key)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// CreateMetric creates a new catalog metric.
// POST /api/v1/admin/catalog/metrics
func (h *Handler) CreateMetric(c *gin.Context) {
	var req transport.CreateMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.CreateMetric(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// UpdateMetric updates a catalog metric.
// PUT /api/v1/admin/catalog/metrics/:id
func (h *Handler) UpdateMetric(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateMetricRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.UpdateMetric(c.Request.Context(), identity.UserID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// DeleteMetric deletes a catalog metric.
// DELETE /api/v1/admin/catalog/metrics/:id
func (h *Handler) DeleteMetric(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.DeleteMetric(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}
