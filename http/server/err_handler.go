package server

import (
	"errors"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/saga"
	"github.com/rise-and-shine/dddbase/meta"
)

// codeRouterError is used when the router itself rejects a request.
const codeRouterError = "ROUTER_ERROR"

// WriteErrorResponse writes a standardized error response and returns err
// for the middlewares above.
func WriteErrorResponse(c *fiber.Ctx, err error, hideDetails bool) error {
	err = mapFiberError(err)
	traceID := c.UserContext().Value(meta.TraceID)

	c.Status(StatusOf(err))
	_ = c.JSON(map[string]any{
		"trace_id": traceID,
		"error":    buildErrorSchema(err, hideDetails),
	})

	return err
}

// StatusOf maps err to an HTTP status through its errx type. Saga failures are
// client errors only when every task failed with one.
func StatusOf(err error) int {
	switch saga.TypeOf(err) {
	case errx.T_Authentication:
		return fiber.StatusUnauthorized
	case errx.T_Forbidden:
		return fiber.StatusForbidden
	case errx.T_NotFound:
		return fiber.StatusNotFound
	case errx.T_Validation:
		return fiber.StatusBadRequest
	case errx.T_Conflict:
		return fiber.StatusConflict
	case errx.T_Throttling:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}

// customErrorHandler writes errors no middleware handled. Responses already
// carrying an error status are left alone.
func customErrorHandler(hideDetails bool) fiber.ErrorHandler {
	return func(ctx *fiber.Ctx, err error) error {
		r := ctx.Response()
		if r != nil && r.StatusCode() >= fiber.StatusBadRequest {
			return nil
		}

		_ = WriteErrorResponse(ctx, err, hideDetails)
		return nil
	}
}

// errorSchema is the error body returned to clients.
type errorSchema struct {
	Code     string          `json:"code"`
	Message  string          `json:"message"`
	Trace    string          `json:"trace,omitempty"`
	Details  map[string]any  `json:"details,omitempty"`
	Entities []string        `json:"entities,omitempty"`
	Errors   []taskErrSchema `json:"errors,omitempty"`
}

type taskErrSchema struct {
	Entity  string `json:"entity"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func buildErrorSchema(err error, hideDetails bool) errorSchema {
	var sagaErr *saga.SagaError
	if errors.As(err, &sagaErr) {
		resp := errorSchema{
			Code:     sagaErr.Code(),
			Message:  sagaErr.Error(),
			Entities: sagaErr.Entities(),
		}
		for _, te := range sagaErr.Errors() {
			resp.Errors = append(resp.Errors, taskErrSchema{
				Entity:  te.Entity,
				Code:    codeOf(te.Err),
				Message: te.Err.Error(),
			})
		}
		return resp
	}

	var outdated *command.OutdatedEntityError
	if errors.As(err, &outdated) {
		return errorSchema{
			Code:     outdated.Code(),
			Message:  outdated.Error(),
			Entities: outdated.Entities,
		}
	}

	e := errx.AsErrorX(err)
	resp := errorSchema{
		Code:    e.Code(),
		Message: e.Error(),
	}
	if !hideDetails || e.Type() == errx.T_Validation {
		resp.Details = e.Details()
	}
	if !hideDetails {
		resp.Trace = e.Trace()
	}
	return resp
}

func codeOf(err error) string {
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return errx.AsErrorX(err).Code()
}

// mapFiberError converts router errors such as unknown routes or oversized
// bodies to errx errors of the matching type.
func mapFiberError(err error) error {
	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		return err
	}

	var t errx.Type
	switch {
	case fiberErr.Code == fiber.StatusUnauthorized:
		t = errx.T_Authentication
	case fiberErr.Code == fiber.StatusForbidden:
		t = errx.T_Forbidden
	case fiberErr.Code == fiber.StatusNotFound:
		t = errx.T_NotFound
	case fiberErr.Code == fiber.StatusConflict:
		t = errx.T_Conflict
	case fiberErr.Code == fiber.StatusTooManyRequests:
		t = errx.T_Throttling
	case fiberErr.Code >= 400 && fiberErr.Code < 500:
		t = errx.T_Validation
	default:
		t = errx.T_Internal
	}

	return errx.New(
		fiberErr.Message,
		errx.WithCode(codeRouterError),
		errx.WithType(t),
		errx.WithDetails(errx.D{
			"fiber_code": fiberErr.Code,
			"fiber_msg":  fiberErr.Message,
		}),
	)
}
