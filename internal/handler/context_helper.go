package handler

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/middleware"
	"github.com/chandra-mta/Ocat-Flask-App-sub000/internal/models"
	appErrors "github.com/chandra-mta/Ocat-Flask-App-sub000/pkg/errors"
)

const (
	contentTypeCSV  = "text/csv; charset=utf-8"
	contentTypePDF  = "application/pdf"
	contentTypeText = "text/plain; charset=utf-8"
)

func currentUser(c *gin.Context) (string, error) {
	claims := middleware.Claims(c)
	if claims == nil || claims.Username() == "" {
		return "", appErrors.ErrUnauthorized
	}
	return claims.Username(), nil
}

func obsidParam(c *gin.Context) (int, error) {
	obsid, err := strconv.Atoi(strings.TrimSpace(c.Param("obsid")))
	if err != nil || obsid <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "obsid must be a positive integer")
	}
	return obsid, nil
}

func revisionParam(c *gin.Context) (models.RevisionID, error) {
	id, err := models.ParseRevisionID(c.Param("id"))
	if err != nil {
		return models.RevisionID{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid revision id")
	}
	return id, nil
}

func wantsCSV(c *gin.Context) bool {
	return strings.EqualFold(c.Query("format"), "csv")
}

func now() time.Time {
	return time.Now().UTC()
}
