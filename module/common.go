package module

import (
	"github.com/onflow/localnet/module/irrecoverable"
)

// ReadyDoneAware provides easy interface to wait for module startup and shutdown.
// Modules that implement this interface only support a single start-stop cycle,
// and will not restart if Ready() is called again after shutdown has already commenced.
type ReadyDoneAware interface {
	// Ready returns a channel that is closed once startup has completed.
	Ready() <-chan struct{}

	// Done returns a channel that is closed once shutdown has completed.
	Done() <-chan struct{}
}

// Startable provides an interface to start a module. Once started, the module runs until the context is
// cancelled or an irrecoverable error is thrown on it.
type Startable interface {
	Start(irrecoverable.SignalerContext)
}
