package logging

import (
	"github.com/rs/zerolog"

	"github.com/onflow/localnet/model/localnet"
)

// Node returns a child logger carrying the identifying fields of a node.
func Node(log zerolog.Logger, spec localnet.NodeSpec) zerolog.Logger {
	return log.With().
		Str("node", spec.ID.String()).
		Str("role", spec.Role.String()).
		Int("ordinal", spec.Ordinal).
		Logger()
}

// NodeIDs converts node IDs to strings for array log fields.
func NodeIDs(ids []localnet.NodeID) []string {
	ss := make([]string, 0, len(ids))
	for _, id := range ids {
		ss = append(ss, id.String())
	}
	return ss
}
