package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/onflow/localnet/admin"
	"github.com/onflow/localnet/model/localnet"
)

const (
	DefaultTailLines = 100
	MaxTailLines     = 10000
)

var _ admin.Command = (*TailLogCommand)(nil)

type tailLogRequest struct {
	node  localnet.NodeID
	lines int
}

// TailLogCommand returns the last lines of the log of one node.
type TailLogCommand struct {
	run Run
}

func NewTailLogCommand(run Run) *TailLogCommand {
	return &TailLogCommand{run: run}
}

func (t *TailLogCommand) Handler(_ context.Context, req *admin.CommandRequest) (interface{}, error) {
	data := req.ValidatorData.(*tailLogRequest)
	lines, err := t.run.TailLog(data.node, data.lines)
	if err != nil {
		return nil, fmt.Errorf("could not read log of %s: %w", data.node, err)
	}
	if lines == nil {
		lines = []string{}
	}
	return lines, nil
}

// Validator validates the request.
// Returns admin.InvalidAdminReqError for invalid/malformed requests.
func (t *TailLogCommand) Validator(req *admin.CommandRequest) error {
	input, ok := req.Data.(map[string]interface{})
	if !ok {
		return admin.ErrValidatorReqDataFormat
	}

	node, ok := input["node"].(string)
	if !ok || node == "" {
		return admin.NewInvalidAdminReqErrorf("the \"node\" field is required")
	}
	known := false
	for _, ns := range t.run.Status().Nodes {
		if ns.ID == localnet.NodeID(node) {
			known = true
			break
		}
	}
	if !known {
		return admin.NewInvalidAdminReqParameterError("node", "no such node in the run", node)
	}

	data := &tailLogRequest{node: localnet.NodeID(node), lines: DefaultTailLines}
	if raw, ok := input["lines"]; ok {
		lines, err := parseLines(raw)
		if err != nil {
			return admin.NewInvalidAdminReqParameterError("lines", err.Error(), raw)
		}
		data.lines = lines
	}

	req.ValidatorData = data
	return nil
}

func parseLines(raw interface{}) (int, error) {
	var lines int
	switch v := raw.(type) {
	case float64:
		if v != float64(int(v)) {
			return 0, errors.New("must be an integer")
		}
		lines = int(v)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, errors.New("must be an integer")
		}
		lines = n
	default:
		return 0, errors.New("must be a number")
	}
	if lines < 1 || lines > MaxTailLines {
		return 0, fmt.Errorf("must be between 1 and %d", MaxTailLines)
	}
	return lines, nil
}
