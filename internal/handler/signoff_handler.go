package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/dto"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/response"
)

type ledgerService interface {
	List(ctx context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error)
	Get(ctx context.Context, id models.RevisionID) (*models.SignoffEntry, error)
	Sign(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error)
	Reverse(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error)
	VerifyAndApprove(ctx context.Context, id models.RevisionID, user string, approve bool, observed time.Time) (*service.VerifyResult, error)
	Approvals(ctx context.Context) ([]models.ApprovalEntry, time.Time, error)
	Reconcile(ctx context.Context) ([]models.RevisionID, error)
}

type ledgerExporter interface {
	LedgerCSV(ctx context.Context, filter models.SignoffFilter) ([]byte, error)
	ApprovalsCSV(ctx context.Context) ([]byte, error)
}

// SignoffHandler exposes the sign-off ledger and the approval registry.
type SignoffHandler struct {
	ledger   ledgerService
	exports  ledgerExporter
	validate *validator.Validate
}

// NewSignoffHandler constructs the handler.
func NewSignoffHandler(ledger ledgerService, exports ledgerExporter, validate *validator.Validate) *SignoffHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &SignoffHandler{ledger: ledger, exports: exports, validate: validate}
}

// List godoc
// @Summary List ledger entries newest first
// @Tags Signoffs
// @Produce json
// @Param obsid query int false "Obsid"
// @Param pending query bool false "Only entries with a pending column"
// @Param signer query string false "Signed by"
// @Param limit query int false "Limit"
// @Param format query string false "csv for a download"
// @Success 200 {object} response.Envelope
// @Router /signoffs [get]
func (h *SignoffHandler) List(c *gin.Context) {
	var q dto.SignoffQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	if err := h.validate.Struct(q); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	filter := models.SignoffFilter{Obsid: q.Obsid, PendingOnly: q.PendingOnly, Signer: q.Signer, Limit: q.Limit}

	if wantsCSV(c) {
		payload, err := h.exports.LedgerCSV(c.Request.Context(), filter)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, service.ExportFilename("signoffs", nil, "csv", now()), contentTypeCSV, payload)
		return
	}

	entries, err := h.ledger.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

// Get godoc
// @Summary One ledger entry
// @Tags Signoffs
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Success 200 {object} response.Envelope
// @Router /signoffs/{id} [get]
func (h *SignoffHandler) Get(c *gin.Context) {
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	entry, err := h.ledger.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

// Sign godoc
// @Summary Sign one ledger column
// @Tags Signoffs
// @Accept json
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Param payload body dto.SignoffRequest true "Column and observed version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /signoffs/{id}/sign [post]
func (h *SignoffHandler) Sign(c *gin.Context) {
	h.columnAction(c, h.ledger.Sign)
}

// Reverse godoc
// @Summary Reverse one's own sign-off inside the grace window
// @Tags Signoffs
// @Accept json
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Param payload body dto.SignoffRequest true "Column and observed version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /signoffs/{id}/reverse [post]
func (h *SignoffHandler) Reverse(c *gin.Context) {
	h.columnAction(c, h.ledger.Reverse)
}

// Verify godoc
// @Summary Sign verification, optionally approving the observation as is
// @Tags Signoffs
// @Accept json
// @Produce json
// @Param id path string true "Revision id (obsid.rev)"
// @Param payload body dto.VerifyRequest true "Approval flag and observed version"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /signoffs/{id}/verify [post]
func (h *SignoffHandler) Verify(c *gin.Context) {
	user, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.VerifyRequest
	if !h.bind(c, &req) {
		return
	}
	result, err := h.ledger.VerifyAndApprove(c.Request.Context(), id, user, req.Approve, req.ObservedAt)
	if err != nil {
		var current *models.SignoffEntry
		if result != nil {
			current = result.Entry
		}
		h.fail(c, err, current)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Approvals godoc
// @Summary Approval registry
// @Tags Signoffs
// @Produce json
// @Param format query string false "csv for a download"
// @Success 200 {object} response.Envelope
// @Router /approvals [get]
func (h *SignoffHandler) Approvals(c *gin.Context) {
	if wantsCSV(c) {
		payload, err := h.exports.ApprovalsCSV(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Attachment(c, service.ExportFilename("approved", nil, "csv", now()), contentTypeCSV, payload)
		return
	}
	entries, modified, err := h.ledger.Approvals(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"lastModified": modified})
}

// Reconcile godoc
// @Summary Seed ledger entries for revisions written without one
// @Tags Signoffs
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /signoffs/reconcile [post]
func (h *SignoffHandler) Reconcile(c *gin.Context) {
	seeded, err := h.ledger.Reconcile(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"seeded": seeded}, map[string]interface{}{"count": len(seeded)})
}

type columnFunc func(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error)

func (h *SignoffHandler) columnAction(c *gin.Context, fn columnFunc) {
	user, err := currentUser(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	id, err := revisionParam(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.SignoffRequest
	if !h.bind(c, &req) {
		return
	}
	entry, err := fn(c.Request.Context(), id, req.Column, user, req.ObservedAt)
	if err != nil {
		h.fail(c, err, entry)
		return
	}
	response.JSON(c, http.StatusOK, entry)
}

func (h *SignoffHandler) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return false
	}
	return true
}

// fail sends stale and busy rejections with the fresh entry so the client
// can reload without another request.
func (h *SignoffHandler) fail(c *gin.Context, err error, current *models.SignoffEntry) {
	if errors.Is(err, appErrors.ErrConflict) || errors.Is(err, appErrors.ErrBusy) {
		if current == nil {
			response.Conflict(c, err, nil)
			return
		}
		response.Conflict(c, err, current)
		return
	}
	response.Error(c, err)
}
