// Package commands implements the admin commands of a foreground run.
package commands

import (
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module/lifecycle"
)

// Run is the view of a run the commands operate on.
type Run interface {
	Status() lifecycle.Status
	TailLog(id localnet.NodeID, n int) ([]string, error)
	DumpLogs() (map[localnet.NodeID][]byte, error)
}
