package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"pipetrack/internal/pipeline"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// BadRequest replies 400 with the given message.
func BadRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, message)
}

// Unauthorized replies 401.
func Unauthorized(c *gin.Context, message string) {
	respondError(c, http.StatusUnauthorized, message)
}

// Forbidden replies 403.
func Forbidden(c *gin.Context, message string) {
	respondError(c, http.StatusForbidden, message)
}

// NotFound replies 404.
func NotFound(c *gin.Context, message string) {
	respondError(c, http.StatusNotFound, message)
}

// Conflict replies 409.
func Conflict(c *gin.Context, message string) {
	respondError(c, http.StatusConflict, message)
}

// Internal replies 500 with a generic message so internals never leak.
func Internal(c *gin.Context) {
	respondError(c, http.StatusInternalServerError, "internal server error")
}

// statusForKind maps progression error kinds to HTTP statuses.
var statusForKind = map[pipeline.Kind]int{
	pipeline.KindValidation:            http.StatusBadRequest,
	pipeline.KindAuthorization:         http.StatusForbidden,
	pipeline.KindDuplicateSchedule:     http.StatusConflict,
	pipeline.KindIncompleteFeedback:    http.StatusBadRequest,
	pipeline.KindUnsupportedFileType:   http.StatusUnsupportedMediaType,
	pipeline.KindStaleState:            http.StatusConflict,
	pipeline.KindNotFound:              http.StatusNotFound,
	pipeline.KindDependencyUnavailable: http.StatusServiceUnavailable,
}

// PipelineError translates an engine error into an HTTP reply. Unknown
// kinds become a 500 without exposing the underlying error text.
func PipelineError(c *gin.Context, err error) {
	var perr *pipeline.Error
	if !errors.As(err, &perr) {
		Internal(c)
		return
	}
	status, ok := statusForKind[perr.Kind]
	if !ok {
		Internal(c)
		return
	}

	body := gin.H{"error": perr.Message(), "code": string(perr.Kind)}
	if perr.Field != "" {
		body["field"] = perr.Field
	}
	c.JSON(status, body)
}
