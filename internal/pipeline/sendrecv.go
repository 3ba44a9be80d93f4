package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// NotSent is returned by NonBlockingSend when no receiver was waiting.
var NotSent = errors.New("value not sent")

// BlockingSend waits until v is taken or ctx is done.
func BlockingSend[T any](ctx context.Context, out chan<- T, v T) error {
	select {
	case out <- v:
		return nil
	case <-ctx.Done():
		return context.Canceled
	}
}

// NonBlockingSend hands v over only if a receiver is already waiting.
func NonBlockingSend[T any](ctx context.Context, out chan<- T, v T) error {
	if ctx.Err() != nil {
		return context.Canceled
	}
	select {
	case out <- v:
		return nil
	default:
		return NotSent
	}
}

// BlockingRecv waits for a value or for ctx to be done.
func BlockingRecv[T any](ctx context.Context, in <-chan T) (T, error) {
	select {
	case v := <-in:
		return v, nil
	case <-ctx.Done():
		var zero T
		return zero, context.Canceled
	}
}
