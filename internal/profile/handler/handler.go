package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"healthlens_backend/internal/profile/service"
	"healthlens_backend/internal/profile/transport"
	"healthlens_backend/platform/httpkit"
	"healthlens_backend/platform/validator"
)

// Handler handles HTTP requests for user profiles.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new profile handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// GetProfile returns the caller's profile.
// GET /api/v1/profile
func (h *Handler) GetProfile(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Get(c.Request.Context(), identity.UserID())
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// UpsertProfile creates or replaces the caller's profile.
// PUT /api/v1/profile
func (h *Handler) UpsertProfile(c *gin.Context) {
	var req transport.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.Upsert(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
