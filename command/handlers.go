package command

import (
	"context"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-rpcsession/core"
)

// MutatingService is the subset of core.Client used by command handlers.
type MutatingService interface {
	Login(ctx context.Context) (core.Session, error)
	Invalidate(ctx context.Context) error
	SetTransactionMode(enabled bool)
	Create(ctx context.Context, objects any) (core.Result, error)
	Update(ctx context.Context, objects any) (core.Result, error)
	Delete(ctx context.Context, objectType string, ids []string) (core.Result, error)
	Execute(ctx context.Context, objectType string, synchronous bool, ids []string) (core.Result, error)
	Subscribe(ctx context.Context, requests any) (core.Result, error)
	Amend(ctx context.Context, requests any) (core.Result, error)
	Generate(ctx context.Context, objects any) (core.Result, error)
}

type LoginCommand struct {
	service MutatingService
}

func NewLoginCommand(service MutatingService) *LoginCommand {
	return &LoginCommand{service: service}
}

func (c *LoginCommand) Execute(ctx context.Context, _ LoginMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: login service is required")
	}
	out, err := c.service.Login(ctx)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type InvalidateSessionCommand struct {
	service MutatingService
}

func NewInvalidateSessionCommand(service MutatingService) *InvalidateSessionCommand {
	return &InvalidateSessionCommand{service: service}
}

func (c *InvalidateSessionCommand) Execute(ctx context.Context, _ InvalidateSessionMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: session service is required")
	}
	return c.service.Invalidate(ctx)
}

type SetTransactionModeCommand struct {
	service MutatingService
}

func NewSetTransactionModeCommand(service MutatingService) *SetTransactionModeCommand {
	return &SetTransactionModeCommand{service: service}
}

func (c *SetTransactionModeCommand) Execute(_ context.Context, msg SetTransactionModeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: transaction mode service is required")
	}
	c.service.SetTransactionMode(msg.Enabled)
	return nil
}

type CreateCommand struct {
	service MutatingService
}

func NewCreateCommand(service MutatingService) *CreateCommand {
	return &CreateCommand{service: service}
}

func (c *CreateCommand) Execute(ctx context.Context, msg CreateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: create service is required")
	}
	return storeCall(ctx, func() (core.Result, error) { return c.service.Create(ctx, msg.Objects) })
}

type UpdateCommand struct {
	service MutatingService
}

func NewUpdateCommand(service MutatingService) *UpdateCommand {
	return &UpdateCommand{service: service}
}

func (c *UpdateCommand) Execute(ctx context.Context, msg UpdateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: update service is required")
	}
	return storeCall(ctx, func() (core.Result, error) { return c.service.Update(ctx, msg.Objects) })
}

type DeleteCommand struct {
	service MutatingService
}

func NewDeleteCommand(service MutatingService) *DeleteCommand {
	return &DeleteCommand{service: service}
}

func (c *DeleteCommand) Execute(ctx context.Context, msg DeleteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: delete service is required")
	}
	return storeCall(ctx, func() (core.Result, error) {
		return c.service.Delete(ctx, msg.ObjectType, msg.IDs)
	})
}

type ExecuteCommand struct {
	service MutatingService
}

func NewExecuteCommand(service MutatingService) *ExecuteCommand {
	return &ExecuteCommand{service: service}
}

func (c *ExecuteCommand) Execute(ctx context.Context, msg ExecuteMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: execute service is required")
	}
	return storeCall(ctx, func() (core.Result, error) {
		return c.service.Execute(ctx, msg.ObjectType, msg.Synchronous, msg.IDs)
	})
}

type SubscribeCommand struct {
	service MutatingService
}

func NewSubscribeCommand(service MutatingService) *SubscribeCommand {
	return &SubscribeCommand{service: service}
}

func (c *SubscribeCommand) Execute(ctx context.Context, msg SubscribeMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: subscribe service is required")
	}
	return storeCall(ctx, func() (core.Result, error) { return c.service.Subscribe(ctx, msg.Requests) })
}

type AmendCommand struct {
	service MutatingService
}

func NewAmendCommand(service MutatingService) *AmendCommand {
	return &AmendCommand{service: service}
}

func (c *AmendCommand) Execute(ctx context.Context, msg AmendMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: amend service is required")
	}
	return storeCall(ctx, func() (core.Result, error) { return c.service.Amend(ctx, msg.Requests) })
}

type GenerateCommand struct {
	service MutatingService
}

func NewGenerateCommand(service MutatingService) *GenerateCommand {
	return &GenerateCommand{service: service}
}

func (c *GenerateCommand) Execute(ctx context.Context, msg GenerateMessage) error {
	if c == nil || c.service == nil {
		return commandDependencyError("command: generate service is required")
	}
	return storeCall(ctx, func() (core.Result, error) { return c.service.Generate(ctx, msg.Objects) })
}

func storeCall(ctx context.Context, call func() (core.Result, error)) error {
	out, err := call()
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
