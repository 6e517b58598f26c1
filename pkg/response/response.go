package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

// Envelope represents the common response contract.
type Envelope struct {
	Data      interface{}            `json:"data,omitempty"`
	Error     *appErrors.Error       `json:"error,omitempty"`
	Retryable bool                   `json:"retryable,omitempty"`
	Meta      map[string]interface{} `json:"meta,omitempty"`
}

// JSON sends a success response with optional metadata.
func JSON(c *gin.Context, status int, data interface{}, meta ...map[string]interface{}) {
	noStore(c)
	envelope := Envelope{Data: data}
	if len(meta) > 0 && meta[0] != nil {
		envelope.Meta = meta[0]
	}
	c.JSON(status, envelope)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Error sends an error response converting the error to the common structure.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr, Retryable: appErrors.IsRetryable(err)})
}

// Conflict reports a rejected concurrent update. current is the fresh state
// the client should reload from; it may be nil.
func Conflict(c *gin.Context, err error, current interface{}) {
	appErr := appErrors.FromError(err)
	noStore(c)
	c.JSON(appErr.Status, Envelope{Data: current, Error: appErr, Retryable: appErrors.IsRetryable(err)})
}

// Attachment sends a downloadable payload.
func Attachment(c *gin.Context, filename, contentType string, payload []byte) {
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, payload)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
