package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/signoffs", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodPost, "/signoffs/1.001/sign", http.StatusConflict, 40*time.Millisecond)
	m.RevisionWritten(models.ModeNormal)
	m.SignoffConflict("stale")
	m.LedgerSeedFailed()

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 30.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.RevisionsWritten)
	assert.Equal(t, uint64(1), snap.SignoffConflicts)
	assert.Equal(t, uint64(1), snap.LedgerSeedFailures)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `signoff_conflicts_total{reason="stale"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *MetricsService
	m.RevisionWritten(models.ModeAsIs)
	m.SignoffTransition(models.ColumnACIS, "sign")
	assert.Equal(t, models.ServiceMetrics{}, m.Snapshot())

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
