package commands

import (
	"context"

	"github.com/onflow/localnet/admin"
)

var _ admin.Command = (*StatusCommand)(nil)

// StatusCommand returns the status of the run and its nodes.
type StatusCommand struct {
	run Run
}

func NewStatusCommand(run Run) *StatusCommand {
	return &StatusCommand{run: run}
}

func (s *StatusCommand) Handler(_ context.Context, _ *admin.CommandRequest) (interface{}, error) {
	return s.run.Status(), nil
}

// Validator accepts any input, the command takes no arguments.
func (s *StatusCommand) Validator(_ *admin.CommandRequest) error {
	return nil
}
