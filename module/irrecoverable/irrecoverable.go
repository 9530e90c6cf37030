// Package irrecoverable lets a worker goroutine report an error it cannot recover from to the owner of
// its context, which shuts the worker's component down.
package irrecoverable

import (
	"context"
	"fmt"
	"runtime"
)

// Signaler sends irrecoverable errors to the owner of a context.
type Signaler struct {
	errors chan error
}

// NewSignaler returns a signaler and the channel its first error is delivered on.
func NewSignaler() (*Signaler, <-chan error) {
	errors := make(chan error, 1)
	return &Signaler{errors: errors}, errors
}

// Throw reports err and terminates the calling goroutine. Only the first error thrown is delivered,
// later ones are dropped.
func (s *Signaler) Throw(err error) {
	select {
	case s.errors <- err:
	default:
	}
	runtime.Goexit()
}

// SignalerContext is a context.Context carrying a Signaler.
type SignalerContext interface {
	context.Context
	Throw(err error)
	sealed()
}

type signalerCtx struct {
	context.Context
	signaler *Signaler
}

func (sc signalerCtx) sealed() {}

func (sc signalerCtx) Throw(err error) {
	sc.signaler.Throw(err)
}

// WithSignaler derives a SignalerContext from ctx. The returned channel receives the first error thrown.
func WithSignaler(ctx context.Context) (SignalerContext, <-chan error) {
	signaler, errs := NewSignaler()
	return signalerCtx{ctx, signaler}, errs
}

// Throw throws err on ctx if it is a SignalerContext, and panics otherwise.
func Throw(ctx context.Context, err error) {
	if sc, ok := ctx.(SignalerContext); ok {
		sc.Throw(err)
	}
	panic(fmt.Sprintf("irrecoverable error signaler not found for context, unhandled error: %v", err))
}
