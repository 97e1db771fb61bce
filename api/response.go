package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/mediaflow/errors"
)

// DataResponse is the success envelope.
type DataResponse struct {
	Data any   `json:"data"`
	Meta *Meta `json:"meta,omitempty"`
}

// Meta carries list totals.
type Meta struct {
	Total int `json:"total"`
}

// respondWithError renders err's AppError, or a generic 500.
func respondWithError(c *gin.Context, err error) {
	appErr := errors.FromError(err)
	c.JSON(appErr.HTTPStatus, appErr.ToResponse())
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, DataResponse{Data: data})
}

func respondList[T any](c *gin.Context, items []T) {
	if items == nil {
		items = []T{}
	}
	c.JSON(http.StatusOK, DataResponse{Data: items, Meta: &Meta{Total: len(items)}})
}

func respondAccepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, DataResponse{Data: data})
}
