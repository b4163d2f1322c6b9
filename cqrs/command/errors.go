package command

import (
	"fmt"
	"strings"

	"github.com/code19m/errx"
)

const (
	// CodeUnroutableCommand is returned when no handler is subscribed for a command.
	CodeUnroutableCommand = "UNROUTABLE_COMMAND"
	// CodeOutdatedEntity is returned when version conflicts outlast the retries.
	CodeOutdatedEntity = "OUTDATED_ENTITY"
)

const noNameGiven = "no name given"

// Unroutable builds the error returned for commands without a handler.
func Unroutable(name string) error {
	if name == "" {
		name = noNameGiven
	}
	return errx.New(
		"no handler for incoming command: "+name,
		errx.WithCode(CodeUnroutableCommand),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"command_name": name}),
	)
}

// OutdatedEntityError reports entities whose version kept changing under the
// handler until every retry was used.
type OutdatedEntityError struct {
	// Command is the name of the dispatched command.
	Command string
	// Entities are the names of the still-conflicting entities.
	Entities []string
	// Attempts is the number of times the handler was executed.
	Attempts int
}

func (e *OutdatedEntityError) Error() string {
	return fmt.Sprintf("outdated entities after %d attempts of %s: %s",
		e.Attempts, e.Command, strings.Join(e.Entities, ", "))
}

// Code returns CodeOutdatedEntity.
func (e *OutdatedEntityError) Code() string { return CodeOutdatedEntity }

// Type returns errx.T_Conflict.
func (e *OutdatedEntityError) Type() errx.Type { return errx.T_Conflict }
