package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/dto"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/response"
)

type snapshotReader interface {
	Build(ctx context.Context, obsid int) (*models.ObservationSnapshot, error)
}

type submitter interface {
	Preview(ctx context.Context, obsid int, req dto.SubmitRevisionRequest) (*service.PreviewResult, error)
	Submit(ctx context.Context, obsid int, req dto.SubmitRevisionRequest, user string) (*service.SubmitResult, error)
}

// ObservationHandler serves parameter snapshots and accepts edit sessions.
type ObservationHandler struct {
	catalog     snapshotReader
	submissions submitter
}

// NewObservationHandler constructs the handler.
func NewObservationHandler(catalog snapshotReader, submissions submitter) *ObservationHandler {
	return &ObservationHandler{catalog: catalog, submissions: submissions}
}

// Get godoc
// @Summary Fresh parameter snapshot of an observation
// @Tags Observations
// @Produce json
// @Param obsid path int true "Obsid"
// @Success 200 {object} response.Envelope
// @Router /observations/{obsid} [get]
func (h *ObservationHandler) Get(c *gin.Context) {
	obsid, err := obsidParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	snap, err := h.catalog.Build(c.Request.Context(), obsid)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, snap, map[string]interface{}{"editable": snap.Editable()})
}

// Preview godoc
// @Summary Diff and warnings for unsaved edits
// @Tags Observations
// @Accept json
// @Produce json
// @Param obsid path int true "Obsid"
// @Param payload body dto.SubmitRevisionRequest true "Edits"
// @Success 200 {object} response.Envelope
// @Router /observations/{obsid}/preview [post]
func (h *ObservationHandler) Preview(c *gin.Context) {
	obsid, req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.submissions.Preview(c.Request.Context(), obsid, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Submit godoc
// @Summary Submit an edit session as a new revision
// @Tags Observations
// @Accept json
// @Produce json
// @Param obsid path int true "Obsid"
// @Param payload body dto.SubmitRevisionRequest true "Edits"
// @Success 201 {object} response.Envelope
// @Success 200 {object} response.Envelope "suppressed"
// @Router /observations/{obsid}/revisions [post]
func (h *ObservationHandler) Submit(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	obsid, req, ok := h.bind(c)
	if !ok {
		return
	}
	result, err := h.submissions.Submit(c.Request.Context(), obsid, req, user)
	if err != nil {
		response.Error(c, err)
		return
	}
	if result.Suppressed {
		response.JSON(c, http.StatusOK, result, map[string]interface{}{"message": "observation is not editable; nothing was written"})
		return
	}
	response.Created(c, result)
}

func (h *ObservationHandler) bind(c *gin.Context) (int, dto.SubmitRevisionRequest, bool) {
	var req dto.SubmitRevisionRequest
	obsid, err := obsidParam(c)
	if err != nil {
		response.Error(c, err)
		return 0, req, false
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return 0, req, false
	}
	return obsid, req, true
}
