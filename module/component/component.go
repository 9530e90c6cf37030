// Package component runs long-lived parts of a foreground run, such as the admin server and node
// supervision, as workers sharing one lifetime.
package component

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/atomic"

	"github.com/onflow/localnet/module"
	"github.com/onflow/localnet/module/irrecoverable"
	"github.com/onflow/localnet/module/util"
)

// ErrMultipleStartup is returned by a component started more than once.
var ErrMultipleStartup = errors.New("component may only be started once")

// Component can be started once, and exposes channels closed when startup and shutdown completed.
// Once Start has been called, Done closes eventually, after a graceful shutdown or an irrecoverable
// error thrown on the start context.
type Component interface {
	module.Startable
	module.ReadyDoneAware
}

// ReadyFunc is called by a worker once it is ready.
type ReadyFunc func()

// ComponentWorker is a routine of a component. It runs until ctx is cancelled, and must call ready once
// it is serving. Errors it cannot handle are thrown on ctx.
type ComponentWorker func(ctx irrecoverable.SignalerContext, ready ReadyFunc)

// ComponentManagerBuilder collects the workers of a ComponentManager.
type ComponentManagerBuilder interface {
	AddWorker(ComponentWorker) ComponentManagerBuilder
	Build() *ComponentManager
}

type componentManagerBuilderImpl struct {
	workers []ComponentWorker
}

func NewComponentManagerBuilder() ComponentManagerBuilder {
	return &componentManagerBuilderImpl{}
}

// AddWorker adds a worker. It is not safe for concurrent use.
func (c *componentManagerBuilderImpl) AddWorker(worker ComponentWorker) ComponentManagerBuilder {
	c.workers = append(c.workers, worker)
	return c
}

func (c *componentManagerBuilderImpl) Build() *ComponentManager {
	return &ComponentManager{
		started:        atomic.NewBool(false),
		ready:          make(chan struct{}),
		done:           make(chan struct{}),
		workersDone:    make(chan struct{}),
		shutdownSignal: make(chan struct{}),
		workers:        c.workers,
	}
}

var _ Component = (*ComponentManager)(nil)

// ComponentManager implements Component for a set of workers. Ready closes once every worker called
// its ReadyFunc, Done once every worker returned.
//
// Shutdown is triggered by cancelling the context passed to Start. An error thrown by any worker shuts
// down all workers and is re-thrown on the parent context.
type ComponentManager struct {
	started        *atomic.Bool
	ready          chan struct{}
	done           chan struct{}
	workersDone    chan struct{}
	shutdownSignal chan struct{}

	workers []ComponentWorker
}

// Start launches the workers. It panics if called more than once.
func (c *ComponentManager) Start(parent irrecoverable.SignalerContext) {
	if !c.started.CompareAndSwap(false, true) {
		panic(ErrMultipleStartup)
	}

	ctx, cancel := context.WithCancel(parent)
	signalerCtx, errChan := irrecoverable.WithSignaler(ctx)

	go func() {
		<-ctx.Done()
		close(c.shutdownSignal)
	}()

	go func() {
		// the error reaches the parent before Done closes
		defer func() {
			<-c.workersDone
			close(c.done)
		}()

		if err := util.WaitError(errChan, c.workersDone); err != nil {
			cancel()
			parent.Throw(err)
		}
	}()

	var workersReady sync.WaitGroup
	var workersDone sync.WaitGroup
	workersReady.Add(len(c.workers))
	workersDone.Add(len(c.workers))

	for _, worker := range c.workers {
		worker := worker
		go func() {
			defer workersDone.Done()
			var readyOnce sync.Once
			worker(signalerCtx, func() {
				readyOnce.Do(workersReady.Done)
			})
		}()
	}

	go func() {
		workersReady.Wait()
		close(c.ready)
	}()
	go func() {
		workersDone.Wait()
		close(c.workersDone)
	}()
}

// Ready is closed once all workers are ready. It never closes if a worker exits before being ready.
func (c *ComponentManager) Ready() <-chan struct{} {
	return c.ready
}

// Done is closed once all workers returned.
func (c *ComponentManager) Done() <-chan struct{} {
	return c.done
}

// ShutdownSignal is closed once shutdown began, by cancellation or a thrown error.
func (c *ComponentManager) ShutdownSignal() <-chan struct{} {
	return c.shutdownSignal
}

// Run starts the component and blocks until it is done. It returns the first error thrown by the
// component, nil if it shut down because ctx was cancelled.
func Run(ctx context.Context, c Component) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	signalerCtx, errChan := irrecoverable.WithSignaler(runCtx)

	go c.Start(signalerCtx)

	err := util.WaitError(errChan, c.Done())
	if err != nil {
		cancel()
		<-c.Done()
	}
	return err
}
