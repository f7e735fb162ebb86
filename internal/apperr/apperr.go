// Package apperr holds the error taxonomy shared by the payment, settlement,
// approval and statistics services, and its mapping onto HTTP responses.
package apperr

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
)

// ValidationError reports missing or malformed input. Fields lists every
// offending field, in the order they were checked.
type ValidationError struct {
	Fields []string
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Reason
	}
	if e.Reason == "" {
		return "missing or invalid fields: " + strings.Join(e.Fields, ", ")
	}
	return fmt.Sprintf("%s: %s", e.Reason, strings.Join(e.Fields, ", "))
}

// NotFoundError is returned when an entity does not exist, is outside the
// caller's scope, or a state change affected zero rows.
type NotFoundError struct {
	Entity string
	ID     any
}

func (e *NotFoundError) Error() string {
	if e.ID == nil {
		return e.Entity + " not found"
	}
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// ConflictError is returned when an operation would break a single-transition
// invariant or a uniqueness constraint.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// PersistenceError wraps a data store failure. Its message is generic; the
// wrapped error is only exposed outside production.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Validation builds a ValidationError from a field checker. Returns nil when
// no fields were collected so callers can write `if err := v.Err(); err != nil`.
type Validation struct {
	fields []string
}

func (v *Validation) Require(ok bool, field string) {
	if !ok {
		v.fields = append(v.fields, field)
	}
}

func (v *Validation) Err() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

func Invalid(reason string, fields ...string) error {
	return &ValidationError{Reason: reason, Fields: fields}
}

func NotFound(entity string, id any) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func Conflict(format string, args ...any) error {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

func Persistence(op string, err error) error {
	return &PersistenceError{Op: op, Err: err}
}

// StatusCode maps an error onto an HTTP status.
func StatusCode(err error) int {
	var (
		ve *ValidationError
		nf *NotFoundError
		ce *ConflictError
		fe *fiber.Error
	)
	switch {
	case err == nil:
		return fiber.StatusOK
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusServiceUnavailable
	case errors.As(err, &ve):
		return fiber.StatusBadRequest
	case errors.As(err, &nf):
		return fiber.StatusNotFound
	case errors.As(err, &ce):
		return fiber.StatusConflict
	case errors.As(err, &fe):
		return fe.Code
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler. Internal details
// are attached only when showDetail is set (non-production).
func ErrorHandler(showDetail bool, onUnexpected func(c *fiber.Ctx, err error)) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := StatusCode(err)
		body := fiber.Map{"success": false}

		var (
			ve *ValidationError
			fe *fiber.Error
		)
		switch {
		case errors.As(err, &ve):
			body["error"] = ve.Error()
			if len(ve.Fields) > 0 {
				body["fields"] = ve.Fields
			}
		case errors.As(err, &fe):
			body["error"] = fe.Message
		case status == fiber.StatusServiceUnavailable:
			body["error"] = "Request timed out"
		case status == fiber.StatusInternalServerError:
			if onUnexpected != nil {
				onUnexpected(c, err)
			}
			body["error"] = "Internal server error"
			if showDetail {
				body["detail"] = err.Error()
			}
		default:
			body["error"] = err.Error()
		}

		return c.Status(status).JSON(body)
	}
}
