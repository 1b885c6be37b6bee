package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/spacesedan/tickersense/internal/aggregator"
	"github.com/spacesedan/tickersense/internal/db"
	"github.com/spacesedan/tickersense/internal/ingest"
)

type errorResponse struct {
	Detail string `json:"detail"`
}

func Error(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, errorResponse{Detail: detail})
}

// statusFor maps domain errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, aggregator.ErrInvalidInput), errors.Is(err, ingest.ErrInvalidMention):
		return http.StatusBadRequest
	case errors.Is(err, db.ErrNotFound):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail writes err with its mapped status. Server errors are logged and hidden
// behind a generic detail.
func fail(c *gin.Context, logger *slog.Logger, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		if logger == nil {
			logger = slog.Default()
		}
		logger.Error("[API] Request failed",
			slog.String("op", op),
			slog.String("path", c.Request.URL.Path),
			slog.String("error", err.Error()))
		Error(c, status, "internal server error")
		return
	}
	Error(c, status, err.Error())
}

func tickerParam(c *gin.Context) string {
	return strings.ToUpper(strings.TrimSpace(c.Param("ticker")))
}

// intQuery reads key as an int, falling back to def when absent. A malformed
// value is reported as invalid input.
func intQuery(c *gin.Context, key string, def int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return def, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", aggregator.ErrInvalidInput, key)
	}
	return i, nil
}
