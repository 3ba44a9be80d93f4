// Package pipeline runs small graphs of goroutine nodes connected by unbuffered channels.
//
// A node has an optional setup and teardown hook and a step function that is called in a loop
// until it fails or its context is canceled. Errors, including the final context.Canceled, are
// reported on Err(), which is what the Graph watches.
package pipeline

import (
	"context"

	"github.com/pkg/errors"
)

// NoStep is reported by a node that was run without a step function.
var NoStep = errors.New("no step function")

type Node interface {
	Name() string
	Run(context.Context)
	Err() <-chan error
}

// lifecycle is the part shared by every node kind.
type lifecycle struct {
	name     string
	errChan  chan error
	setup    func() error
	teardown func() error
}

func newLifecycle(name string) lifecycle {
	return lifecycle{
		name:     name,
		errChan:  make(chan error, 2), // room for a step error and a teardown error
		setup:    nil, // set by SetupFunc()
		teardown: nil, // set by TeardownFunc()
	}
}

func (l *lifecycle) Name() string {
	return l.name
}

func (l *lifecycle) SetupFunc(setup func() error) {
	l.setup = setup
}

func (l *lifecycle) TeardownFunc(teardown func() error) {
	l.teardown = teardown
}

func (l *lifecycle) Err() <-chan error {
	return l.errChan
}

// run calls setup once, then iterate until it fails, then teardown. Every failure is reported.
func (l *lifecycle) run(iterate func() error) {
	if l.setup != nil {
		err := l.setup()
		if err != nil {
			l.errChan <- errors.Wrap(err, "setup error")
			return
		}
	}

	defer func() {
		if l.teardown != nil {
			err := l.teardown()
			if err != nil {
				l.errChan <- errors.Wrap(err, "teardown error")
			}
		}
	}()

	for {
		err := iterate()
		if err != nil {
			l.errChan <- err
			return
		}
	}
}

// SourceNode produces values with its step function, e.g. frames read from a camera.
type SourceNode[T any] struct {
	lifecycle
	outChan chan T
	step    func() (T, error)
}

var _ Node = &SourceNode[int]{}

func NewSourceNode[T any](name string) *SourceNode[T] {
	return &SourceNode[T]{
		lifecycle: newLifecycle(name),
		outChan:   make(chan T),
		step:      nil, // set by StepFunc()
	}
}

func (n *SourceNode[T]) StepFunc(step func() (T, error)) {
	n.step = step
}

func (n *SourceNode[T]) Stream() <-chan T {
	return n.outChan
}

func (n *SourceNode[T]) Run(ctx context.Context) {
	if n.step == nil {
		n.errChan <- errors.Wrapf(NoStep, "node '%s'", n.name)
		return
	}

	go n.run(func() error {
		v, err := n.step()
		if err != nil {
			return err
		}
		return BlockingSend(ctx, n.outChan, v)
	})
}

// ConverterNode maps every received value to a value of another type.
type ConverterNode[From, To any] struct {
	lifecycle
	inChan  <-chan From
	outChan chan To
	step    func(From) (To, error)

	dropWhenBusy bool
}

var _ Node = &ConverterNode[int, string]{}

func NewConverterNode[From, To any](name string, inChan <-chan From) *ConverterNode[From, To] {
	return &ConverterNode[From, To]{
		lifecycle: newLifecycle(name),
		inChan:    inChan,
		outChan:   make(chan To),
		step:      nil, // set by StepFunc()
	}
}

func (n *ConverterNode[From, To]) StepFunc(step func(From) (To, error)) {
	n.step = step
}

// DropWhenBusy makes the node discard converted values nobody is waiting for, so a slow consumer
// always gets the newest value instead of holding up the producer.
func (n *ConverterNode[From, To]) DropWhenBusy() {
	n.dropWhenBusy = true
}

func (n *ConverterNode[From, To]) Stream() <-chan To {
	return n.outChan
}

func (n *ConverterNode[From, To]) Run(ctx context.Context) {
	if n.step == nil {
		n.errChan <- errors.Wrapf(NoStep, "node '%s'", n.name)
		return
	}

	go n.run(func() error {
		v, err := BlockingRecv(ctx, n.inChan)
		if err != nil {
			return err
		}

		v2, err := n.step(v)
		if err != nil {
			return err
		}

		if !n.dropWhenBusy {
			return BlockingSend(ctx, n.outChan, v2)
		}
		if err := NonBlockingSend(ctx, n.outChan, v2); !errors.Is(err, NotSent) {
			return err
		}
		return nil
	})
}

// SinkNode consumes values, e.g. shows previews in a view.
type SinkNode[T any] struct {
	lifecycle
	inChan <-chan T
	step   func(T) error
}

var _ Node = &SinkNode[int]{}

func NewSinkNode[T any](name string, inChan <-chan T) *SinkNode[T] {
	return &SinkNode[T]{
		lifecycle: newLifecycle(name),
		inChan:    inChan,
		step:      nil, // set by StepFunc()
	}
}

func (n *SinkNode[T]) StepFunc(step func(T) error) {
	n.step = step
}

func (n *SinkNode[T]) Run(ctx context.Context) {
	if n.step == nil {
		n.errChan <- errors.Wrapf(NoStep, "node '%s'", n.name)
		return
	}

	go n.run(func() error {
		v, err := BlockingRecv(ctx, n.inChan)
		if err != nil {
			return err
		}
		return n.step(v)
	})
}

// NewDrainNode discards everything it receives. Headless runs use it to keep a source flowing.
func NewDrainNode[T any](name string, inChan <-chan T) *SinkNode[T] {
	n := NewSinkNode[T](name, inChan)
	n.StepFunc(func(T) error { return nil })
	return n
}
