package command

import (
	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-rpcsession/core"
)

var (
	_ gocmd.Commander[LoginMessage]              = (*LoginCommand)(nil)
	_ gocmd.Commander[InvalidateSessionMessage]  = (*InvalidateSessionCommand)(nil)
	_ gocmd.Commander[SetTransactionModeMessage] = (*SetTransactionModeCommand)(nil)
	_ gocmd.Commander[CreateMessage]             = (*CreateCommand)(nil)
	_ gocmd.Commander[UpdateMessage]             = (*UpdateCommand)(nil)
	_ gocmd.Commander[DeleteMessage]             = (*DeleteCommand)(nil)
	_ gocmd.Commander[ExecuteMessage]            = (*ExecuteCommand)(nil)
	_ gocmd.Commander[SubscribeMessage]          = (*SubscribeCommand)(nil)
	_ gocmd.Commander[AmendMessage]              = (*AmendCommand)(nil)
	_ gocmd.Commander[GenerateMessage]           = (*GenerateCommand)(nil)
	_ MutatingService                            = (*core.Client)(nil)
)
