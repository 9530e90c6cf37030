package module

import (
	"github.com/onflow/localnet/model/localnet"
)

// LocalnetMetrics records the lifecycle events of a run: run state changes, node launches, health
// outcomes and node stops.
type LocalnetMetrics interface {
	OnEvent(event localnet.Event)
}
