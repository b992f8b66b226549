package handler

import (
	"errors"
	"net/http"
	"strconv"

	"marketplace/internal/apperror"
	"marketplace/internal/middleware"
	"marketplace/internal/model"
	"marketplace/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// StatusFor maps a domain error kind to its HTTP status.
func StatusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict, apperror.KindAlreadyApplied:
		return http.StatusConflict
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindForbidden:
		return http.StatusForbidden
	case apperror.KindInvalidState:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a standard error response. Infrastructure
// errors are logged by the request logger and hidden from the client.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		c.JSON(status, response.Error(status, "Internal server error"))
		return
	}
	c.JSON(status, response.ErrorWithCode(status, string(apperror.KindOf(err)), err.Error()))
}

// respondBindError reports a malformed body, naming the failing fields
// when the binding validator produced them.
func respondBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := make(map[string]string, len(verrs))
		for _, ve := range verrs {
			fields[ve.Field()] = ve.Tag()
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"status":      "error",
			"status_code": http.StatusBadRequest,
			"code":        string(apperror.KindValidation),
			"error":       "Invalid request payload",
			"fields":      fields,
		})
		return
	}
	c.JSON(http.StatusBadRequest, response.ErrorWithCode(http.StatusBadRequest, string(apperror.KindValidation), "Invalid request payload: "+err.Error()))
}

func uintParam(c *gin.Context, name string) (uint, bool) {
	n, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || n == 0 {
		respondError(c, apperror.Validation("invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return uint(n), true
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		respondError(c, apperror.Validation("invalid %s %q", name, c.Param(name)))
		return uuid.Nil, false
	}
	return id, true
}

// optionalUUIDQuery parses a uuid query parameter; absent means nil.
func optionalUUIDQuery(c *gin.Context, name string) (*uuid.UUID, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		respondError(c, apperror.Validation("invalid %s %q", name, raw))
		return nil, false
	}
	return &id, true
}

func mustActor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, response.Error(http.StatusUnauthorized, "Not authenticated"))
		return model.Actor{}, false
	}
	return actor, true
}
