package admin

import (
	"context"
)

// CommandRequest is one invocation of an admin command.
type CommandRequest struct {
	// Data is the decoded JSON payload of the request.
	Data interface{}
	// ValidatorData may be set by the command's validator and is passed on to its handler.
	ValidatorData interface{}
}

// Command is an admin command handler.
type Command interface {
	// Validator checks the request before it is handled. Errors reject the request.
	Validator(request *CommandRequest) error
	// Handler handles a validated request and returns the value displayed to the caller.
	Handler(ctx context.Context, request *CommandRequest) (interface{}, error)
}
