package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthlens_backend/internal/analysis/service"
	"healthlens_backend/internal/analysis/transport"
	"healthlens_backend/platform/httpkit"
	"healthlens_backend/platform/validator"
)

// Handler handles HTTP requests for health analyses.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

// New creates a new analysis handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// Request runs or replays a health analysis for the caller.
// POST /api/v1/analyses
func (h *Handler) Request(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.RequestAnalysis(c.Request.Context(), identity.UserID(), identity.IsAdmin())
	if httpkit.HandleError(c, err) {
		return
	}

	status := http.StatusCreated
	if result.Status == transport.StatusCached {
		status = http.StatusOK
	}
	httpkit.JSON(c, status, result)
}

// List returns the caller's analysis history.
// GET /api/v1/analyses
func (h *Handler) List(c *gin.Context) {
	var req transport.ListAnalysesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
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

	result, err := h.svc.List(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Get returns one analysis with its full document.
// GET /api/v1/analyses/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid analysis id", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
