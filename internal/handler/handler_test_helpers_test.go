package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/middleware"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
)

func newTestContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func asReviewer(c *gin.Context, user string) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: user, Role: models.RoleReviewer})
}

type envelope struct {
	Data      json.RawMessage        `json:"data"`
	Error     *struct{ Code string } `json:"error"`
	Retryable bool                   `json:"retryable"`
	Meta      map[string]interface{} `json:"meta"`
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}
