package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"dragonfly-id/internal/app"
	"dragonfly-id/internal/transport/http/response"
)

// maxUploadSize bounds what the server buffers. The 10 MiB image rule is enforced by the
// pipeline, which falls back instead of rejecting.
const maxUploadSize = 32 << 20

// VisionHandler handles identification and sighting history requests.
type VisionHandler struct {
	identify *app.IdentifyService
}

type IdentifyReferenceRequest struct {
	Name string `json:"name" binding:"required,max=256"`
}

func NewVisionHandler(identify *app.IdentifyService) *VisionHandler {
	return &VisionHandler{identify: identify}
}

// Identify accepts a multipart form with "image" and records the resulting sighting.
func (h *VisionHandler) Identify(c *gin.Context) {
	observerID, ok := getObserverIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing image file (form field 'image')")
		return
	}
	if file.Size > maxUploadSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "upload too large (max 32MB)")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read image")
		return
	}

	result, err := h.identify.Identify(c.Request.Context(), app.IdentifyInput{
		ObserverID: observerID,
		Filename:   file.Filename,
		Data:       data,
	})
	if err != nil {
		writeIdentifyError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *VisionHandler) IdentifyReference(c *gin.Context) {
	observerID, ok := getObserverIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req IdentifyReferenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.identify.IdentifyReference(c.Request.Context(), observerID, req.Name)
	if err != nil {
		writeIdentifyError(c, err)
		return
	}
	response.OK(c, result)
}

func (h *VisionHandler) ListReferences(c *gin.Context) {
	names, err := h.identify.ListReferences()
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list references failed")
		return
	}
	response.OK(c, gin.H{"references": names})
}

func (h *VisionHandler) ListSightings(c *gin.Context) {
	observerID, ok := getObserverIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	sightings, err := h.identify.ListSightings(observerID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	response.OK(c, gin.H{"sightings": sightings})
}

func (h *VisionHandler) Stats(c *gin.Context) {
	observerID, ok := getObserverIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	stats, err := h.identify.Stats(observerID)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		return
	}
	response.OK(c, stats)
}

func writeIdentifyError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrReferenceNotFound):
		response.Error(c, http.StatusNotFound, response.CodeReferenceNotFound, err.Error())
	case errors.Is(err, app.ErrUnidentified):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeUnidentified, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "identification failed")
	}
}
