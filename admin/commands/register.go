package commands

import (
	"github.com/onflow/localnet/admin"
)

// CommandDumpLogs is the name of DumpLogsCommand.
const CommandDumpLogs = "dump-logs"

// Register registers every run command with the server.
func Register(server *admin.Server, run Run) {
	server.RegisterCommand(admin.CommandStatus, NewStatusCommand(run))
	server.RegisterCommand(admin.CommandTailLog, NewTailLogCommand(run))
	server.RegisterCommand(CommandDumpLogs, NewDumpLogsCommand(run))
}
