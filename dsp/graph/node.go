package graph

import (
	"fmt"

	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
	"github.com/cwbudde/algo-audiograph/dsp/param"
)

// ID is a node's stable handle inside its Context.
type ID int

// NoNode marks an empty input bus or a missing parent.
const NoNode ID = -1

// Processor is a node's rendering strategy. Process runs on the render
// goroutine with the context lock held and must not block or allocate. buf
// arrives holding the node's assembled input (silence for sources) and is
// left holding the node's output.
type Processor interface {
	Process(buf *buffer.Buffer)
}

// Lifecycle hooks a Processor may implement. They run on the control
// goroutine with the context lock held.
type (
	Initializer   interface{ OnInitialize() error }
	Uninitializer interface{ OnUninitialize() }
	Starter       interface{ OnStart() error }
	Stopper       interface{ OnStop() }
)

// Handle is anything that wraps a node: *Node itself and every node type
// built on it.
type Handle interface {
	node() *Node
}

// Node is one vertex of the render graph. Nodes live in their Context's
// arena and refer to each other only by ID.
type Node struct {
	ctx  *Context
	id   ID
	name string
	role Role
	proc Processor

	format   Format
	declared Format

	sources []ID
	parent  ID

	native         string
	requiresNative string
	adapterFor     string

	initialized bool
	enabled     bool
	autoPulled  bool
	released    bool

	buf      *buffer.Buffer
	rendered uint64
	params   []*param.Param
}

func (n *Node) node() *Node { return n }

// ID returns the node's handle.
func (n *Node) ID() ID { return n.id }

// Name returns the node's name.
func (n *Node) Name() string { return n.name }

// Role returns the node's capabilities.
func (n *Node) Role() Role { return n.role }

// Context returns the owning context.
func (n *Node) Context() *Context { return n.ctx }

// Processor returns the node's rendering strategy.
func (n *Node) Processor() Processor { return n.proc }

// NativeKey returns the native backend key, or "" for generic nodes.
func (n *Node) NativeKey() string { return n.native }

// IsAdapter reports whether the node was inserted by an adapter rule.
func (n *Node) IsAdapter() bool { return n.adapterFor != "" }

func (n *Node) String() string {
	return fmt.Sprintf("%s#%d", n.name, n.id)
}

// Format returns the node's current format.
func (n *Node) Format() Format {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.format
}

// NumChannels returns the resolved channel count, or 0.
func (n *Node) NumChannels() int {
	return n.Format().NumChannels
}

// Sources returns a copy of the input busses. Empty busses hold NoNode.
func (n *Node) Sources() []ID {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return append([]ID(nil), n.sources...)
}

// NumInputs returns the number of input busses.
func (n *Node) NumInputs() int {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return len(n.sources)
}

// Parent returns the most recently connected consumer, or NoNode.
func (n *Node) Parent() ID {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.parent
}

// IsInitialized reports whether the node holds buffers for the current
// format.
func (n *Node) IsInitialized() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.initialized
}

// IsEnabled reports whether the node processes audio.
func (n *Node) IsEnabled() bool {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.enabled
}

// Connect makes n a source of dest and returns dest for chaining. Mixers
// take n on their first free bus; every other node on bus 0.
func (n *Node) Connect(dest Handle) (*Node, error) {
	d := dest.node()
	if err := n.ctx.connect(n, d, -1); err != nil {
		return nil, err
	}
	return d, nil
}

// ConnectBus makes n the source of dest on the given bus. A bus beyond
// dest's input count is a configuration error; a mixer additionally grows
// by one when bus equals its input count.
func (n *Node) ConnectBus(dest Handle, bus int) (*Node, error) {
	if bus < 0 {
		return nil, fmt.Errorf("%w: negative bus %d", core.ErrConfiguration, bus)
	}
	d := dest.node()
	if err := n.ctx.connect(n, d, bus); err != nil {
		return nil, err
	}
	return d, nil
}

// SetSource makes source the input of n on bus.
func (n *Node) SetSource(source Handle, bus int) error {
	_, err := source.node().ConnectBus(n, bus)
	return err
}

// ClearSource empties one input bus.
func (n *Node) ClearSource(bus int) error {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	if bus < 0 || bus >= len(n.sources) {
		return fmt.Errorf("%w: bus %d is out of range (inputs: %d)", core.ErrConfiguration, bus, len(n.sources))
	}
	n.ctx.clearSourceLocked(n, bus)
	return nil
}

// Disconnect removes n from every consumer and clears its own inputs.
func (n *Node) Disconnect() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.ctx.disconnectLocked(n)
}

// Initialize resolves the node's format and allocates its buffers.
func (n *Node) Initialize() error {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.ctx.initializeLocked(n)
}

// Uninitialize stops the node and releases its buffers.
func (n *Node) Uninitialize() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.ctx.uninitializeLocked(n)
}

// Start enables processing. The node must be initialized.
func (n *Node) Start() error {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.ctx.startNodeLocked(n)
}

// Stop disables processing. A stopped source renders silence and a stopped
// effect passes its input through.
func (n *Node) Stop() {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	n.ctx.stopNodeLocked(n)
}

// SetEnabled calls Start or Stop.
func (n *Node) SetEnabled(enabled bool) error {
	if enabled {
		return n.Start()
	}
	n.Stop()
	return nil
}

// SetAutoPulled makes the context render n every block even when it is not
// reachable from the root, as needed by taps hanging off the graph.
func (n *Node) SetAutoPulled(pulled bool) error {
	n.ctx.mu.Lock()
	defer n.ctx.mu.Unlock()
	return n.ctx.setAutoPulledLocked(n, pulled)
}

// NewParam creates a Param bound to this node's context timeline and lock.
func (n *Node) NewParam(value float32) *param.Param {
	p := param.New(value)
	p.Bind(n.ctx, &n.ctx.mu, n.ctx.FramesPerBlock())
	n.ctx.mu.Lock()
	n.params = append(n.params, p)
	n.ctx.mu.Unlock()
	return p
}
