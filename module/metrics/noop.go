package metrics

import (
	"github.com/onflow/localnet/model/localnet"
	"github.com/onflow/localnet/module"
)

type NoopCollector struct{}

var _ module.LocalnetMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

func (nc *NoopCollector) OnEvent(localnet.Event) {}
