package rpcsession

import (
	"fmt"

	rpccommand "github.com/goliatone/go-rpcsession/command"
	"github.com/goliatone/go-rpcsession/core"
	rpcquery "github.com/goliatone/go-rpcsession/query"
)

type CommandQueryService interface {
	rpccommand.MutatingService
	rpcquery.RemoteReader
	rpcquery.SessionReader
}

type Commands struct {
	Login              *rpccommand.LoginCommand
	InvalidateSession  *rpccommand.InvalidateSessionCommand
	SetTransactionMode *rpccommand.SetTransactionModeCommand
	Create             *rpccommand.CreateCommand
	Update             *rpccommand.UpdateCommand
	Delete             *rpccommand.DeleteCommand
	Execute            *rpccommand.ExecuteCommand
	Subscribe          *rpccommand.SubscribeCommand
	Amend              *rpccommand.AmendCommand
	Generate           *rpccommand.GenerateCommand
}

type Queries struct {
	Query          *rpcquery.QueryQuery
	QueryMore      *rpcquery.QueryMoreQuery
	GetUserInfo    *rpcquery.GetUserInfoQuery
	CurrentSession *rpcquery.CurrentSessionQuery
	ListAttempts   *rpcquery.ListAttemptsQuery
}

type Facade struct {
	service  CommandQueryService
	commands Commands
	queries  Queries
}

type FacadeOption func(*facadeOptions)

type facadeOptions struct {
	attemptReader rpcquery.AttemptReader
}

// WithAttemptReader backs the ListAttempts query, typically with a
// sqlstore.AttemptJournal.
func WithAttemptReader(reader rpcquery.AttemptReader) FacadeOption {
	return func(options *facadeOptions) {
		options.attemptReader = reader
	}
}

func NewFacade(service CommandQueryService, opts ...FacadeOption) (*Facade, error) {
	if service == nil {
		return nil, fmt.Errorf("rpcsession: command/query service is required")
	}
	cfg := facadeOptions{}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&cfg)
	}

	reader := cfg.attemptReader
	if reader == nil {
		if candidate, ok := service.(rpcquery.AttemptReader); ok {
			reader = candidate
		}
	}

	facade := &Facade{service: service}
	facade.commands = Commands{
		Login:              rpccommand.NewLoginCommand(service),
		InvalidateSession:  rpccommand.NewInvalidateSessionCommand(service),
		SetTransactionMode: rpccommand.NewSetTransactionModeCommand(service),
		Create:             rpccommand.NewCreateCommand(service),
		Update:             rpccommand.NewUpdateCommand(service),
		Delete:             rpccommand.NewDeleteCommand(service),
		Execute:            rpccommand.NewExecuteCommand(service),
		Subscribe:          rpccommand.NewSubscribeCommand(service),
		Amend:              rpccommand.NewAmendCommand(service),
		Generate:           rpccommand.NewGenerateCommand(service),
	}
	facade.queries = Queries{
		Query:          rpcquery.NewQueryQuery(service),
		QueryMore:      rpcquery.NewQueryMoreQuery(service),
		GetUserInfo:    rpcquery.NewGetUserInfoQuery(service),
		CurrentSession: rpcquery.NewCurrentSessionQuery(service),
		ListAttempts:   rpcquery.NewListAttemptsQuery(reader),
	}
	return facade, nil
}

func (f *Facade) Commands() Commands {
	if f == nil {
		return Commands{}
	}
	return f.commands
}

func (f *Facade) Queries() Queries {
	if f == nil {
		return Queries{}
	}
	return f.queries
}

func (f *Facade) Service() CommandQueryService {
	if f == nil {
		return nil
	}
	return f.service
}

var _ CommandQueryService = (*core.Client)(nil)
