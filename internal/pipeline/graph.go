package pipeline

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/liptakmatyas/opencv-playground/landmarkcam/internal/logging"
)

var TeardownTimedOut = errors.New("teardown timed out")

type namedNodes map[string]Node

type nodeErr struct {
	name string
	err  error
}

// Graph runs a set of nodes until the context is canceled or one of them fails, then cancels the
// rest and waits (bounded) for them to stop. The final outcome is sent once on Err().
type Graph struct {
	name               string
	isRunningMu        sync.Mutex
	nodes              namedNodes
	errChan            chan error
	minTeardownTimeout time.Duration
}

// The Graph is a Node, so graphs can be nested.
var _ Node = &Graph{}

func NewGraph(name string) *Graph {
	return &Graph{
		name:               name,
		isRunningMu:        sync.Mutex{},
		nodes:              make(namedNodes),
		errChan:            make(chan error, 1),
		minTeardownTimeout: 1 * time.Second,
	}
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) SetNodes(nodes ...Node) {
	g.isRunningMu.Lock()
	defer g.isRunningMu.Unlock()

	for _, node := range nodes {
		g.nodes[node.Name()] = node
	}
}

func (g *Graph) Run(ctx context.Context) {
	go g.loop(ctx)
}

func (g *Graph) Err() <-chan error {
	return g.errChan
}

func (g *Graph) teardownTimeoutForNNodes(n int) time.Duration {
	if n <= 1 {
		return g.minTeardownTimeout
	}

	return g.minTeardownTimeout + time.Duration(math.Log10(float64(n))*float64(time.Second))
}

func (g *Graph) loop(parentCtx context.Context) {
	g.isRunningMu.Lock()
	defer g.isRunningMu.Unlock()

	logger := logging.For("graph").WithField("graph", g.name)

	nodeCtx, cancelNodeCtx := context.WithCancel(parentCtx)
	defer cancelNodeCtx()

	// Every node reports exactly one terminal error; fan them in so we can select on one channel.
	exited := make(chan nodeErr, len(g.nodes))
	for nodeName, node := range g.nodes {
		nodeName, node := nodeName, node
		node.Run(nodeCtx)
		go func() {
			exited <- nodeErr{name: nodeName, err: <-node.Err()}
		}()
	}

	running := len(g.nodes)
	nodeErrs := make(map[string]error)

	var mainLoopErr error
	select {
	case <-parentCtx.Done():

	case ne := <-exited:
		running--
		// Nodes see the cancellation through nodeCtx and may beat us to it.
		if errors.Is(ne.err, context.Canceled) && parentCtx.Err() != nil {
			break
		}
		logger.WithField("node", ne.name).WithError(ne.err).Error("Node error")
		nodeErrs[ne.name] = ne.err
		mainLoopErr = errors.New("Node error")
	}

	cancelNodeCtx()

	var teardownErr error
	if running > 0 {
		timeout := time.NewTimer(g.teardownTimeoutForNNodes(running))
		defer timeout.Stop()

	TEARDOWN_LOOP:
		for running > 0 {
			select {
			case <-timeout.C:
				logger.Warn("Teardown timeout.")
				teardownErr = TeardownTimedOut
				break TEARDOWN_LOOP

			case ne := <-exited:
				running--
				if ne.err != nil && !errors.Is(ne.err, context.Canceled) {
					logger.Tracef("Node '%s' error: %v", ne.name, ne.err)
					nodeErrs[ne.name] = ne.err
				}
			}
		}
	}

	var errMsg string
	if mainLoopErr != nil {
		errMsg += fmt.Sprintf("[MainLoop: %s]", mainLoopErr.Error())
	}
	if teardownErr != nil {
		errMsg += fmt.Sprintf("[TearDown: %s]", teardownErr.Error())
	}
	names := make([]string, 0, len(nodeErrs))
	for nodeName := range nodeErrs {
		names = append(names, nodeName)
	}
	sort.Strings(names)
	for _, nodeName := range names {
		errMsg += fmt.Sprintf("[Node %s: %v]", nodeName, nodeErrs[nodeName])
	}

	var err error
	if errMsg != "" {
		err = errors.Errorf("Graph %s failed: %s", g.name, errMsg)
	}
	g.errChan <- err
}
