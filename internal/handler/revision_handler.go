package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/response"
)

type revisionReader interface {
	NextRevision(ctx context.Context, obsid int) (models.RevisionID, error)
	Record(ctx context.Context, id models.RevisionID) (*models.RevisionRecord, error)
	Artifact(ctx context.Context, id models.RevisionID) ([]byte, error)
	Status(ctx context.Context, id models.RevisionID) (*models.RevisionStatus, error)
}

type revisionExporter interface {
	RevisionPDF(ctx context.Context, id models.RevisionID) ([]byte, error)
	RevisionCSV(ctx context.Context, id models.RevisionID) ([]byte, error)
}

// RevisionHandler serves revision artifacts and their status.
type RevisionHandler struct {
	revisions revisionReader
	exports   revisionExporter
}

// NewRevisionHandler constructs the handler.
func NewRevisionHandler(revisions revisionReader, exports revisionExporter) *RevisionHandler {
	return &RevisionHandler{revisions: revisions, exports: exports}
}

// NextRevision godoc
// @Summary Next free revision id for an obsid
// @Tags Revisions
// @Produce json
// @Param obsid path int true "Obsid"
// @Success 200 {object} response.Envelope
// @Router /observations/{obsid}/next-revision [get]
func (h *RevisionHandler) NextRevision(c *gin.Context) {
	obsid, err := obsidParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := h.revisions.NextRevision(c.Request.Context(), obsid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"id": id})
}

// Get godoc
// @Summary Structured revision record
// @Tags Revisions
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Success 200 {object} response.Envelope
// @Router /revisions/{id} [get]
func (h *RevisionHandler) Get(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.revisions.Record(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record)
}

// Artifact godoc
// @Summary Plain-text revision file
// @Tags Revisions
// @Produce plain
// @Param id path string true "Revision id (obsid.rev)"
// @Router /revisions/{id}/artifact [get]
func (h *RevisionHandler) Artifact(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	body, err := h.revisions.Artifact(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Data(http.StatusOK, contentTypeText, body)
}

// Status godoc
// @Summary Compare a revision with the live catalog
// @Tags Revisions
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Success 200 {object} response.Envelope
// @Router /revisions/{id}/status [get]
func (h *RevisionHandler) Status(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	status, err := h.revisions.Status(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// PDF godoc
// @Summary Printable revision
// @Tags Revisions
// @Produce application/pdf
// @Param id path string true "Revision id (obsid.rev)"
// @Router /revisions/{id}/pdf [get]
func (h *RevisionHandler) PDF(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exports.RevisionPDF(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, service.ExportFilename("revision", &id, "pdf", now()), contentTypePDF, payload)
}

// CSV godoc
// @Summary Revision parameter listing as CSV
// @Tags Revisions
// @Produce text/csv
// @Param id path string true "Revision id (obsid.rev)"
// @Router /revisions/{id}/csv [get]
func (h *RevisionHandler) CSV(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	payload, err := h.exports.RevisionCSV(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, service.ExportFilename("revision", &id, "csv", now()), contentTypeCSV, payload)
}
