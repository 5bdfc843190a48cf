package command

import (
	"reflect"
	"strings"
)

const (
	TypeLogin              = "rpcsession.command.login"
	TypeInvalidateSession  = "rpcsession.command.session.invalidate"
	TypeSetTransactionMode = "rpcsession.command.transaction_mode.set"
	TypeCreate             = "rpcsession.command.create"
	TypeUpdate             = "rpcsession.command.update"
	TypeDelete             = "rpcsession.command.delete"
	TypeExecute            = "rpcsession.command.execute"
	TypeSubscribe          = "rpcsession.command.subscribe"
	TypeAmend              = "rpcsession.command.amend"
	TypeGenerate           = "rpcsession.command.generate"
)

type LoginMessage struct{}

func (LoginMessage) Type() string { return TypeLogin }

func (LoginMessage) Validate() error { return nil }

type InvalidateSessionMessage struct{}

func (InvalidateSessionMessage) Type() string { return TypeInvalidateSession }

func (InvalidateSessionMessage) Validate() error { return nil }

type SetTransactionModeMessage struct {
	Enabled bool
}

func (SetTransactionModeMessage) Type() string { return TypeSetTransactionMode }

func (SetTransactionModeMessage) Validate() error { return nil }

type CreateMessage struct {
	Objects any
}

func (CreateMessage) Type() string { return TypeCreate }

func (m CreateMessage) Validate() error {
	return validatePayload("objects", m.Objects)
}

type UpdateMessage struct {
	Objects any
}

func (UpdateMessage) Type() string { return TypeUpdate }

func (m UpdateMessage) Validate() error {
	return validatePayload("objects", m.Objects)
}

type DeleteMessage struct {
	ObjectType string
	IDs        []string
}

func (DeleteMessage) Type() string { return TypeDelete }

func (m DeleteMessage) Validate() error {
	if strings.TrimSpace(m.ObjectType) == "" {
		return commandValidationError("object_type", "object type is required")
	}
	return validateIDs(m.IDs)
}

type ExecuteMessage struct {
	ObjectType  string
	Synchronous bool
	IDs         []string
}

func (ExecuteMessage) Type() string { return TypeExecute }

func (m ExecuteMessage) Validate() error {
	if strings.TrimSpace(m.ObjectType) == "" {
		return commandValidationError("object_type", "object type is required")
	}
	return validateIDs(m.IDs)
}

type SubscribeMessage struct {
	Requests any
}

func (SubscribeMessage) Type() string { return TypeSubscribe }

func (m SubscribeMessage) Validate() error {
	return validatePayload("requests", m.Requests)
}

type AmendMessage struct {
	Requests any
}

func (AmendMessage) Type() string { return TypeAmend }

func (m AmendMessage) Validate() error {
	return validatePayload("requests", m.Requests)
}

type GenerateMessage struct {
	Objects any
}

func (GenerateMessage) Type() string { return TypeGenerate }

func (m GenerateMessage) Validate() error {
	return validatePayload("objects", m.Objects)
}

func validateIDs(ids []string) error {
	if len(ids) == 0 {
		return commandValidationError("ids", "at least one id is required")
	}
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			return commandValidationError("ids", "ids must not be blank")
		}
	}
	return nil
}

// validatePayload rejects nil payloads and empty slices or maps. Payload
// contents are opaque.
func validatePayload(field string, payload any) error {
	if payload == nil {
		return commandValidationError(field, field+" are required")
	}
	value := reflect.ValueOf(payload)
	switch value.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		if value.Len() == 0 {
			return commandValidationError(field, field+" must not be empty")
		}
	case reflect.Pointer, reflect.Interface:
		if value.IsNil() {
			return commandValidationError(field, field+" are required")
		}
	}
	return nil
}
