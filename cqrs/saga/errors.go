package saga

import (
	"errors"
	"strings"

	"github.com/code19m/errx"
	"github.com/samber/lo"
)

const (
	// CodeSagaNotFound is returned for unknown saga identifiers.
	CodeSagaNotFound = "SAGA_NOT_FOUND"
	// CodeTaskTimeout is recorded for tasks that did not settle in time.
	CodeTaskTimeout = "SAGA_TASK_TIMEOUT"
	// CodeSagaFailed is the code of SagaError.
	CodeSagaFailed = "SAGA_FAILED"
	// CodeRollbackFailed tags compensations that could not be dispatched.
	CodeRollbackFailed = "ROLLBACK_FAILED"
)

func notFound(id string) error {
	return errx.New(
		"saga not found",
		errx.WithCode(CodeSagaNotFound),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"saga_id": id}),
	)
}

// TaskError is the failure of one saga task.
type TaskError struct {
	Entity string
	Err    error
}

// SagaError collects the failures of the tasks of one saga run. Failures of
// the compensating commands are never part of it.
type SagaError struct {
	SagaID string
	errs   []TaskError
}

// Add records err for entity.
func (e *SagaError) Add(entity string, err error) {
	e.errs = append(e.errs, TaskError{Entity: entity, Err: err})
}

// Errors returns the recorded failures in the order tasks were added.
func (e *SagaError) Errors() []TaskError {
	return append([]TaskError(nil), e.errs...)
}

// HasErrors reports whether any failure was recorded.
func (e *SagaError) HasErrors() bool {
	return len(e.errs) > 0
}

// Entities returns the distinct failing entity names in first-seen order.
func (e *SagaError) Entities() []string {
	return lo.Uniq(lo.Map(e.errs, func(te TaskError, _ int) string { return te.Entity }))
}

func (e *SagaError) Error() string {
	entities := e.Entities()
	if len(entities) == 1 {
		return "Errors on entity " + entities[0]
	}
	return "Errors on entities " + strings.Join(entities, ", ")
}

// Unwrap exposes the task errors to errors.Is and errors.As.
func (e *SagaError) Unwrap() []error {
	return lo.Map(e.errs, func(te TaskError, _ int) error { return te.Err })
}

// Code returns CodeSagaFailed.
func (e *SagaError) Code() string { return CodeSagaFailed }

// Type is errx.T_Validation when every task failed with a client error
// (validation, conflict or not found) and errx.T_Internal otherwise.
func (e *SagaError) Type() errx.Type {
	if len(e.errs) == 0 {
		return errx.T_Internal
	}
	for _, te := range e.errs {
		switch TypeOf(te.Err) {
		case errx.T_Validation, errx.T_Conflict, errx.T_NotFound:
		default:
			return errx.T_Internal
		}
	}
	return errx.T_Validation
}

// TypeOf returns the errx type of err, honouring any error in its chain that
// exposes a Type method.
func TypeOf(err error) errx.Type {
	var typed interface{ Type() errx.Type }
	if errors.As(err, &typed) {
		return typed.Type()
	}
	return errx.GetType(err)
}
