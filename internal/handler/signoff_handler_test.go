package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

var observedAt = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type ledgerServiceStub struct {
	entry      *models.SignoffEntry
	err        error
	verify     *service.VerifyResult
	approvals  []models.ApprovalEntry
	lastFilter models.SignoffFilter
	lastUser   string
	lastColumn models.SignoffColumn
	lastSeen   time.Time
}

func (s *ledgerServiceStub) List(_ context.Context, filter models.SignoffFilter) ([]models.SignoffEntry, error) {
	s.lastFilter = filter
	if s.entry == nil {
		return []models.SignoffEntry{}, s.err
	}
	return []models.SignoffEntry{*s.entry}, s.err
}

func (s *ledgerServiceStub) Get(_ context.Context, _ models.RevisionID) (*models.SignoffEntry, error) {
	return s.entry, s.err
}

func (s *ledgerServiceStub) Sign(_ context.Context, _ models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error) {
	s.lastColumn, s.lastUser, s.lastSeen = column, user, observed
	return s.entry, s.err
}

func (s *ledgerServiceStub) Reverse(ctx context.Context, id models.RevisionID, column models.SignoffColumn, user string, observed time.Time) (*models.SignoffEntry, error) {
	return s.Sign(ctx, id, column, user, observed)
}

func (s *ledgerServiceStub) VerifyAndApprove(_ context.Context, _ models.RevisionID, user string, _ bool, _ time.Time) (*service.VerifyResult, error) {
	s.lastUser = user
	return s.verify, s.err
}

func (s *ledgerServiceStub) Approvals(_ context.Context) ([]models.ApprovalEntry, time.Time, error) {
	return s.approvals, observedAt, s.err
}

func (s *ledgerServiceStub) Reconcile(_ context.Context) ([]models.RevisionID, error) {
	return []models.RevisionID{{Obsid: 12345, Rev: 2}}, s.err
}

type ledgerExporterStub struct{}

func (ledgerExporterStub) LedgerCSV(_ context.Context, _ models.SignoffFilter) ([]byte, error) {
	return []byte("obsidrev\n12345.001\n"), nil
}

func (ledgerExporterStub) ApprovalsCSV(_ context.Context) ([]byte, error) {
	return []byte("obsid\n12345\n"), nil
}

func sampleEntry() *models.SignoffEntry {
	return &models.SignoffEntry{
		ID:           models.RevisionID{Obsid: 12345, Rev: 1},
		General:      models.Pending(),
		ACIS:         models.Signed("asmith", observedAt),
		Verification: models.Pending(),
		UpdatedAt:    observedAt.Add(time.Minute),
	}
}

func signBody(column models.SignoffColumn) []byte {
	body, _ := json.Marshal(map[string]any{"column": column, "observedAt": observedAt})
	return body
}

func TestSignoffHandlerSign(t *testing.T) {
	stub := &ledgerServiceStub{entry: sampleEntry()}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/signoffs/12345.001/sign", signBody(models.ColumnGeneral))
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	asReviewer(c, "bwilson")

	h.Sign(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bwilson", stub.lastUser)
	assert.Equal(t, models.ColumnGeneral, stub.lastColumn)
	assert.True(t, observedAt.Equal(stub.lastSeen))
}

func TestSignoffHandlerConflictReturnsCurrentEntry(t *testing.T) {
	stub := &ledgerServiceStub{entry: sampleEntry(), err: appErrors.ErrConflict}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/signoffs/12345.001/sign", signBody(models.ColumnGeneral))
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	asReviewer(c, "bwilson")

	h.Sign(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Error)
	assert.Equal(t, "CONFLICT", env.Error.Code)
	assert.True(t, env.Retryable)

	var current models.SignoffEntry
	require.NoError(t, json.Unmarshal(env.Data, &current))
	assert.Equal(t, "12345.001", current.ID.String())
	assert.Equal(t, models.StateSigned, current.ACIS.State)
}

func TestSignoffHandlerNonRetryableRejection(t *testing.T) {
	stub := &ledgerServiceStub{err: appErrors.Clone(appErrors.ErrGraceExpired, "too late")}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/signoffs/12345.001/reverse", signBody(models.ColumnACIS))
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	asReviewer(c, "asmith")

	h.Reverse(c)
	require.Equal(t, http.StatusConflict, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "GRACE_EXPIRED", env.Error.Code)
	assert.False(t, env.Retryable)
}

func TestSignoffHandlerRejectsBadRequests(t *testing.T) {
	h := NewSignoffHandler(&ledgerServiceStub{entry: sampleEntry()}, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodPost, "/signoffs/12345.001/sign", signBody(models.ColumnGeneral))
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	h.Sign(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	c, w = newTestContext(http.MethodPost, "/signoffs/12345.001/sign", signBody("archive"))
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	asReviewer(c, "bwilson")
	h.Sign(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/signoffs/abc/sign", signBody(models.ColumnGeneral))
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	asReviewer(c, "bwilson")
	h.Sign(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignoffHandlerVerify(t *testing.T) {
	entry := sampleEntry()
	stub := &ledgerServiceStub{verify: &service.VerifyResult{Entry: entry, Approval: &models.ApprovalEntry{Obsid: 12345, Signer: "carol"}}}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	body, _ := json.Marshal(map[string]any{"approve": true, "observedAt": observedAt})
	c, w := newTestContext(http.MethodPost, "/signoffs/12345.001/verify", body)
	c.Params = gin.Params{{Key: "id", Value: "12345.001"}}
	asReviewer(c, "carol")

	h.Verify(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "carol", stub.lastUser)
	assert.Contains(t, w.Body.String(), `"approval"`)
}

func TestSignoffHandlerListFiltersAndCSV(t *testing.T) {
	stub := &ledgerServiceStub{entry: sampleEntry()}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodGet, "/signoffs?obsid=12345&pending=true&limit=5", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.SignoffFilter{Obsid: 12345, PendingOnly: true, Limit: 5}, stub.lastFilter)
	assert.Equal(t, float64(1), decodeEnvelope(t, w).Meta["count"])

	c, w = newTestContext(http.MethodGet, "/signoffs?format=csv", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "attachment; filename=\"signoffs_")
	assert.Equal(t, "obsidrev\n12345.001\n", w.Body.String())

	c, w = newTestContext(http.MethodGet, "/signoffs?limit=5000", nil)
	h.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSignoffHandlerApprovalsAndReconcile(t *testing.T) {
	stub := &ledgerServiceStub{approvals: []models.ApprovalEntry{{Obsid: 12345, SeqNbr: "500123", Signer: "carol", Date: observedAt}}}
	h := NewSignoffHandler(stub, ledgerExporterStub{}, nil)

	c, w := newTestContext(http.MethodGet, "/approvals", nil)
	h.Approvals(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decodeEnvelope(t, w)
	assert.Equal(t, "2026-03-10T15:00:00Z", env.Meta["lastModified"])

	c, w = newTestContext(http.MethodPost, "/signoffs/reconcile", nil)
	h.Reconcile(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"12345.002"`)
}
