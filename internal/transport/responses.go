package transport

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/ds124wfegd/openmic-lineup/internal/entity"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
}

type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Class   string `json:"class,omitempty"`
}

// statusFor maps an error class to its HTTP status. Conflicts are 403 so
// clients treat a lost claim the same way as a refused one.
func statusFor(class entity.ErrorClass) int {
	switch class {
	case entity.ClassValidation:
		return http.StatusBadRequest
	case entity.ClassConflict, entity.ClassAuthorization:
		return http.StatusForbidden
	case entity.ClassNotFound:
		return http.StatusNotFound
	case entity.ClassUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	class := entity.ClassOf(err)
	message := err.Error()

	if class == entity.ClassInternal {
		logrus.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Error("Request failed with internal error")

		message = "internal server error"
		if errors.Is(err, entity.ErrReorderFailed) {
			message = entity.ErrReorderFailed.Error()
		}
	}

	c.JSON(statusFor(class), ErrorResponse{
		Success: false,
		Error:   message,
		Class:   class.String(),
	})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
		Class:   entity.ClassValidation.String(),
	})
}

func parseIDParam(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}
