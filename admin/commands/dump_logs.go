package commands

import (
	"context"
	"fmt"

	"github.com/docker/go-units"

	"github.com/onflow/localnet/admin"
)

var _ admin.Command = (*DumpLogsCommand)(nil)

// LogSummary describes the captured log of one node.
type LogSummary struct {
	Bytes int    `json:"bytes"`
	Size  string `json:"size"`
}

// DumpLogsCommand summarizes the captured logs of every node.
type DumpLogsCommand struct {
	run Run
}

func NewDumpLogsCommand(run Run) *DumpLogsCommand {
	return &DumpLogsCommand{run: run}
}

func (d *DumpLogsCommand) Handler(_ context.Context, _ *admin.CommandRequest) (interface{}, error) {
	dump, err := d.run.DumpLogs()
	if err != nil {
		return nil, fmt.Errorf("could not dump logs: %w", err)
	}

	summary := make(map[string]LogSummary, len(dump))
	for node, data := range dump {
		summary[node.String()] = LogSummary{
			Bytes: len(data),
			Size:  units.HumanSize(float64(len(data))),
		}
	}
	return summary, nil
}

func (d *DumpLogsCommand) Validator(_ *admin.CommandRequest) error {
	return nil
}
