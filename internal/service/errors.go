package service

import (
	"errors"

	"marketplace/internal/apperror"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

var tracer trace.Tracer = otel.Tracer("marketplace/internal/service")

// notFoundOr turns gorm.ErrRecordNotFound into an apperror NotFound and
// passes every other error through.
func notFoundOr(err error, format string, args ...interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperror.NotFound(format, args...)
	}
	return err
}
