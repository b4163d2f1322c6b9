// Package handler exposes the command dispatcher, read models and the event
// dispatcher state over HTTP.
package handler

import (
	"context"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/rise-and-shine/dddbase/cqrs/command"
	"github.com/rise-and-shine/dddbase/cqrs/event"
	"github.com/rise-and-shine/dddbase/meta"
	"github.com/rise-and-shine/dddbase/val"
)

// Routes.
const (
	CommandPath   = "/command"
	LastEventPath = "/events/last"
)

// CommandDispatcher dispatches commands.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, cmd command.Command) ([]event.Event, error)
}

// LastEventSource reports the uuid of the last processed event.
type LastEventSource interface {
	LastProcessedEventUUID() string
}

// View is a read model served over HTTP.
type View interface {
	View(ctx context.Context) (any, error)
}

// commandRequest is the envelope accepted by POST /command.
type commandRequest struct {
	Name    string         `json:"name"    validate:"required,message_name"`
	Payload map[string]any `json:"payload"`
	SagaID  string         `json:"saga_id" validate:"omitempty,max=128"`
}

type commandResponse struct {
	Command string   `json:"command"`
	Events  []string `json:"events"`
}

// RegisterCommands mounts POST /command.
func RegisterCommands(r fiber.Router, d CommandDispatcher) {
	r.Post(CommandPath, func(c *fiber.Ctx) error {
		var req commandRequest
		if err := c.BodyParser(&req); err != nil {
			return errx.New("invalid command body: "+err.Error(),
				errx.WithCode(val.CodeValidationFailed),
				errx.WithType(errx.T_Validation),
			)
		}
		if err := val.ValidateSchema(req); err != nil {
			return err
		}

		ctx := c.UserContext()
		cmd := command.New(req.Name, req.Payload)
		cmd.SagaID = req.SagaID
		if cmd.SagaID == "" {
			cmd.SagaID, _ = ctx.Value(meta.SagaID).(string)
		}

		events, err := d.Dispatch(ctx, cmd)
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusAccepted).JSON(commandResponse{
			Command: cmd.Name,
			Events:  lo.Map(events, func(e event.Event, _ int) string { return e.Name }),
		})
	})
}

// RegisterView mounts GET route serving the current state of v.
func RegisterView(r fiber.Router, route string, v View) {
	r.Get(route, func(c *fiber.Ctx) error {
		state, err := v.View(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(state)
	})
}

// RegisterLastEvent mounts GET /events/last.
func RegisterLastEvent(r fiber.Router, src LastEventSource) {
	r.Get(LastEventPath, func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"uuid": src.LastProcessedEventUUID()})
	})
}
