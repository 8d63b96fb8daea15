package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"healthlens_backend/internal/measurements/agent"
	"healthlens_backend/internal/measurements/service"
	"healthlens_backend/internal/measurements/transport"
	"healthlens_backend/platform/httpkit"
	"healthlens_backend/platform/validator"
)

// Handler handles HTTP requests for measurements.
type Handler struct {
	svc         *service.Service
	val         *validator.Validator
	maxFileSize int64
}

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
	msgInvalidID        = "invalid measurement id"
)

// New creates a new measurements handler.
func New(svc *service.Service, val *validator.Validator, maxFileSize int64) *Handler {
	return &Handler{svc: svc, val: val, maxFileSize: maxFileSize}
}

// Extract runs AI extraction over uploaded report photos and returns a
// reviewable preview.
// POST /api/v1/measurements/extract (multipart: images[], hint)
func (h *Handler) Extract(c *gin.Context) {
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}

	files := form.File["images"]
	if len(files) == 0 {
		httpkit.Error(c, http.StatusBadRequest, "at least one image is required", nil)
		return
	}

	images := make([]agent.ImageData, 0, len(files))
	for _, fh := range files {
		if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
			httpkit.Error(c, http.StatusBadRequest, "image exceeds the size limit", nil)
			return
		}
		f, err := fh.Open()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable image upload", nil)
			return
		}
		data, err := io.ReadAll(f)
		_ = f.Close()
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "unreadable image upload", nil)
			return
		}
		images = append(images, agent.ImageData{
			MIMEType: fh.Header.Get("Content-Type"),
			Data:     data,
			Filename: fh.Filename,
		})
	}

	hint := c.PostForm("hint")

	result, err := h.svc.ExtractFromImages(c.Request.Context(), identity.UserID(), images, hint)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Confirm persists a reviewed extraction batch.
// POST /api/v1/measurements/confirm
func (h *Handler) Confirm(c *gin.Context) {
	var req transport.ConfirmRequest
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

	result, err := h.svc.Confirm(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// Create adds a single manual measurement.
// POST /api/v1/measurements
func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateMeasurementRequest
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

	result, err := h.svc.Create(c.Request.Context(), identity.UserID(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.JSON(c, http.StatusCreated, result)
}

// List returns the caller's measurement history.
// GET /api/v1/measurements
func (h *Handler) List(c *gin.Context) {
	var req transport.ListMeasurementsRequest
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

// Get returns one measurement.
// GET /api/v1/measurements/:id
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
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

// Update corrects a measurement.
// PUT /api/v1/measurements/:id
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}

	var req transport.UpdateMeasurementRequest
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

	result, err := h.svc.Update(c.Request.Context(), identity.UserID(), id, req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}

// Delete removes a measurement.
// DELETE /api/v1/measurements/:id
func (h *Handler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidID, nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	if err := h.svc.Delete(c.Request.Context(), identity.UserID(), id); httpkit.HandleError(c, err) {
		return
	}
	c.Status(http.StatusNoContent)
}

// ReportImage returns a presigned download URL for the report photo behind
// a measurement.
// GET /api/v1/measurements/:id/image-url
func (h *Handler) ReportImage(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid measurement id", nil)
		return
	}
	identity := httpkit.MustGetIdentity(c)
	if identity == nil {
		return
	}

	result, err := h.svc.ReportImageURL(c.Request.Context(), identity.UserID(), id)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, result)
}
