package pipeline

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNonBlockingSendWithoutReceiver(t *testing.T) {
	ch := make(chan int)
	err := NonBlockingSend(context.Background(), ch, 1)
	assert.ErrorIs(t, err, NotSent)
}

func TestBlockingRecvCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := BlockingRecv(ctx, make(chan int))
	assert.ErrorIs(t, err, context.Canceled)
}

func countingSource(limit int) *SourceNode[int] {
	src := NewSourceNode[int]("SRC")
	next := 0
	src.StepFunc(func() (int, error) {
		if next == limit {
			return 0, io.EOF
		}
		next++
		return next, nil
	})
	return src
}

func TestGraphRunsUntilSourceEnds(t *testing.T) {
	allSeen := make(chan struct{})

	src := NewSourceNode[int]("SRC")
	next := 0
	src.StepFunc(func() (int, error) {
		if next == 3 {
			<-allSeen
			return 0, io.EOF
		}
		next++
		return next, nil
	})

	double := NewConverterNode[int, int]("DBL", src.Stream())
	double.StepFunc(func(v int) (int, error) { return v * 2, nil })

	var values []int
	sink := NewSinkNode[int]("SINK", double.Stream())
	sink.StepFunc(func(v int) error {
		values = append(values, v)
		if len(values) == 3 {
			close(allSeen)
		}
		return nil
	})

	g := NewGraph("test")
	g.SetNodes(src, double, sink)
	g.Run(context.Background())

	select {
	case err := <-g.Err():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "[Node SRC: EOF]")
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not stop")
	}

	assert.Equal(t, []int{2, 4, 6}, values)
}

func TestGraphCancelIsNotAnError(t *testing.T) {
	src := countingSource(-1)
	drain := NewDrainNode[int]("DRAIN", src.Stream())

	g := NewGraph("cancel")
	g.SetNodes(src, drain)

	ctx, cancel := context.WithCancel(context.Background())
	g.Run(ctx)
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-g.Err():
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not stop")
	}
}

func TestDropWhenBusyNeverBlocksProducer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan int)
	conv := NewConverterNode[int, int]("PREVIEW", in)
	conv.DropWhenBusy()
	conv.StepFunc(func(v int) (int, error) { return v, nil })
	conv.Run(ctx)

	// Nobody reads the converter's output, yet every input is taken.
	sendCtx, sendCancel := context.WithTimeout(ctx, 2*time.Second)
	defer sendCancel()
	for i := 1; i <= 5; i++ {
		require.NoError(t, BlockingSend(sendCtx, in, i))
	}

	go func() {
		for i := 6; BlockingSend(ctx, in, i) == nil; i++ {
		}
	}()

	select {
	case v := <-conv.Stream():
		assert.GreaterOrEqual(t, v, 5, "older values were dropped")
	case <-time.After(5 * time.Second):
		t.Fatal("waiting reader got nothing")
	}

	cancel()
	assert.ErrorIs(t, <-conv.Err(), context.Canceled)
}

func TestNodeWithoutStepFailsGraph(t *testing.T) {
	src := countingSource(-1)
	sink := NewSinkNode[int]("SINK", src.Stream())

	g := NewGraph("nostep")
	g.SetNodes(src, sink)
	g.Run(context.Background())

	select {
	case err := <-g.Err():
		require.Error(t, err)
		assert.Contains(t, err.Error(), "node 'SINK': no step function")
	case <-time.After(5 * time.Second):
		t.Fatal("graph did not stop")
	}

	bare := NewConverterNode[int, int]("BARE", make(chan int))
	bare.Run(context.Background())
	assert.ErrorIs(t, <-bare.Err(), NoStep)
}

func TestSetupAndTeardownErrorsAreReported(t *testing.T) {
	src := countingSource(1)
	src.SetupFunc(func() error { return errors.New("no camera") })

	src.Run(context.Background())
	err := <-src.Err()
	require.Error(t, err)
	assert.Equal(t, "setup error: no camera", err.Error())

	src = countingSource(0)
	src.TeardownFunc(func() error { return errors.New("close failed") })
	src.Run(context.Background())
	assert.ErrorIs(t, <-src.Err(), io.EOF)
	assert.EqualError(t, <-src.Err(), "teardown error: close failed")
}

func TestFlattenErrors(t *testing.T) {
	assert.NoError(t, FlattenErrors())
	assert.NoError(t, FlattenErrors(nil, nil))

	one := errors.New("one")
	assert.Same(t, one, FlattenErrors(nil, one))
	assert.EqualError(t, FlattenErrors(one, nil, errors.New("two")), "one, two")
}
