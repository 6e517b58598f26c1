package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/dto"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/service"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

type snapshotReaderStub struct {
	snap *models.ObservationSnapshot
	err  error
}

func (s *snapshotReaderStub) Build(_ context.Context, _ int) (*models.ObservationSnapshot, error) {
	return s.snap, s.err
}

type submitterStub struct {
	result  *service.SubmitResult
	preview *service.PreviewResult
	err     error
	gotReq  dto.SubmitRevisionRequest
	gotUser string
	gotID   int
}

func (s *submitterStub) Preview(_ context.Context, obsid int, req dto.SubmitRevisionRequest) (*service.PreviewResult, error) {
	s.gotID, s.gotReq = obsid, req
	return s.preview, s.err
}

func (s *submitterStub) Submit(_ context.Context, obsid int, req dto.SubmitRevisionRequest, user string) (*service.SubmitResult, error) {
	s.gotID, s.gotReq, s.gotUser = obsid, req, user
	return s.result, s.err
}

func submitBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(dto.SubmitRevisionRequest{Mode: models.ModeNormal, Fields: map[string]any{"ra": 10.2}})
	require.NoError(t, err)
	return body
}

func TestObservationHandlerSubmitCreated(t *testing.T) {
	stub := &submitterStub{result: &service.SubmitResult{Record: &models.RevisionRecord{ID: models.RevisionID{Obsid: 12345, Rev: 1}}}}
	h := NewObservationHandler(&snapshotReaderStub{}, stub)

	c, w := newTestContext(http.MethodPost, "/observations/12345/revisions", submitBody(t))
	c.Params = gin.Params{{Key: "obsid", Value: "12345"}}
	asReviewer(c, "jdoe")

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 12345, stub.gotID)
	assert.Equal(t, "jdoe", stub.gotUser)
	assert.Equal(t, 10.2, stub.gotReq.Fields["ra"])
}

func TestObservationHandlerSubmitSuppressed(t *testing.T) {
	h := NewObservationHandler(&snapshotReaderStub{}, &submitterStub{result: &service.SubmitResult{Suppressed: true}})

	c, w := newTestContext(http.MethodPost, "/observations/12345/revisions", submitBody(t))
	c.Params = gin.Params{{Key: "obsid", Value: "12345"}}
	asReviewer(c, "jdoe")

	h.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, decodeEnvelope(t, w).Meta["message"], "not editable")
}

func TestObservationHandlerValidation(t *testing.T) {
	h := NewObservationHandler(&snapshotReaderStub{}, &submitterStub{err: appErrors.Clone(appErrors.ErrValidation, "bad edit")})

	c, w := newTestContext(http.MethodPost, "/observations/x/preview", submitBody(t))
	c.Params = gin.Params{{Key: "obsid", Value: "x"}}
	h.Preview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/observations/12345/preview", []byte("{"))
	c.Params = gin.Params{{Key: "obsid", Value: "12345"}}
	h.Preview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodPost, "/observations/12345/preview", submitBody(t))
	c.Params = gin.Params{{Key: "obsid", Value: "12345"}}
	h.Preview(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)
}

func TestObservationHandlerGet(t *testing.T) {
	h := NewObservationHandler(&snapshotReaderStub{err: appErrors.Clone(appErrors.ErrNotFound, "obsid 1 not found")}, &submitterStub{})

	c, w := newTestContext(http.MethodGet, "/observations/1", nil)
	c.Params = gin.Params{{Key: "obsid", Value: "1"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
