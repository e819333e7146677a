package graph

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/device"
	"github.com/cwbudde/algo-audiograph/dsp/buffer"
	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// DefaultOutputChannels is the root channel count of a context without a
// device, and the cap applied to a device's output channels.
const DefaultOutputChannels = 2

// Option configures a Context.
type Option func(*Context)

// WithDevice drives the context from d: its descriptor sets the sample rate
// and block size, its render callback pulls the graph, and its change
// notifications trigger re-initialization.
func WithDevice(d device.Device) Option {
	return func(c *Context) {
		c.dev = d
	}
}

// WithConfig sets sample rate and block size for a context without a
// device.
func WithConfig(opts ...core.ProcessorOption) Option {
	return func(c *Context) {
		c.cfg = core.ApplyProcessorOptions(opts...)
	}
}

// WithLogger sets the logger used for control-side events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Context) {
		if l != nil {
			c.log = l
		}
	}
}

// WithAdapterRules replaces the adapter rule set.
func WithAdapterRules(r *AdapterRules) Option {
	return func(c *Context) {
		if r != nil {
			c.rules = r
		}
	}
}

// WithOutputChannels fixes the root channel count instead of deriving it
// from the device.
func WithOutputChannels(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.outputChannels = n
		}
	}
}

// Context owns a render graph. All nodes live in its arena; a single mutex
// guards topology, parameter schedules and tap publication, and is held by
// the render goroutine for the duration of one block.
type Context struct {
	mu  sync.Mutex
	log logrus.FieldLogger

	cfg            core.ProcessorConfig
	outputChannels int
	sampleRate     atomic.Uint64 // float64 bits
	framesPerBlock atomic.Int64
	processed      atomic.Uint64
	dropped        atomic.Uint64

	dev         device.Device
	unsubscribe func()

	nodes      []*Node
	root       ID
	enabled    bool
	wasEnabled bool
	wasRunning []ID
	block      uint64
	autoPulled []ID

	rules *AdapterRules
	pool  *buffer.Pool
}

// New creates a Context.
func New(opts ...Option) (*Context, error) {
	c := &Context{
		log:   logrus.StandardLogger(),
		cfg:   core.DefaultProcessorConfig(),
		root:  NoNode,
		rules: DefaultAdapterRules(),
		pool:  buffer.NewPool(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	if c.dev != nil {
		desc := c.dev.Descriptor()
		if err := desc.Validate(); err != nil {
			return nil, err
		}
		c.adoptDescriptor(desc)
		c.dev.SetRenderCallback(c.Render)
		c.unsubscribe = c.dev.Subscribe(c)
	} else {
		if err := c.cfg.Validate(); err != nil {
			return nil, err
		}
		c.setSampleRate(c.cfg.SampleRate)
		c.framesPerBlock.Store(int64(c.cfg.BlockSize))
	}

	c.log.WithFields(logrus.Fields{
		"component":        "context",
		"sample_rate":      c.SampleRate(),
		"frames_per_block": c.FramesPerBlock(),
	}).Debug("context created")
	return c, nil
}

var (
	defaultOnce    sync.Once
	defaultContext *Context
)

// Default returns a process-wide device-less context, created on first use
// with the default configuration. Code that needs a device or custom
// settings should construct its own Context with New.
func Default() *Context {
	defaultOnce.Do(func() {
		c, err := New()
		if err != nil {
			panic("graph: default context: " + err.Error())
		}
		defaultContext = c
	})
	return defaultContext
}

// SampleRate returns the process sample rate.
func (c *Context) SampleRate() float64 {
	return math.Float64frombits(c.sampleRate.Load())
}

// FramesPerBlock returns the render block size.
func (c *Context) FramesPerBlock() int {
	return int(c.framesPerBlock.Load())
}

// NumProcessedFrames returns the frames rendered since creation.
func (c *Context) NumProcessedFrames() uint64 {
	return c.processed.Load()
}

// NumProcessedSeconds returns the start time of the next block in seconds.
func (c *Context) NumProcessedSeconds() float64 {
	return core.FramesToSeconds(c.processed.Load(), c.SampleRate())
}

// NumDroppedBlocks counts render calls whose output size did not match the
// block size; they were answered with silence.
func (c *Context) NumDroppedBlocks() uint64 {
	return c.dropped.Load()
}

// Mutex returns the context lock. Hold it to batch several parameter or
// topology changes into one atomic update relative to rendering; do not call
// locking Context or Node methods while holding it.
func (c *Context) Mutex() sync.Locker {
	return &c.mu
}

// Device returns the driving device, or nil.
func (c *Context) Device() device.Device {
	return c.dev
}

// Logger returns the context logger.
func (c *Context) Logger() logrus.FieldLogger {
	return c.log
}

// IsEnabled reports whether the context is started.
func (c *Context) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Node returns the node with the given ID, or nil.
func (c *Context) Node(id ID) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nodeLocked(id)
}

// NumNodes returns the number of live nodes.
func (c *Context) NumNodes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	count := 0
	for _, n := range c.nodes {
		if n != nil {
			count++
		}
	}
	return count
}

// MakeNode registers a node with the given rendering strategy and role.
// Source nodes default to one specified channel and manual start; all other
// roles infer their channel count and start with the context.
func (c *Context) MakeNode(proc Processor, role Role, opts ...NodeOption) *Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.makeNodeLocked(proc, role, opts...)
}

func (c *Context) makeNodeLocked(proc Processor, role Role, opts ...NodeOption) *Node {
	cfg := nodeConfig{
		name:   strings.TrimPrefix(fmt.Sprintf("%T", proc), "*graph."),
		format: Format{ChannelMode: ChannelsInferred},
	}
	if role.Has(RoleSource) {
		cfg.format = Format{NumChannels: 1, ChannelMode: ChannelsSpecified}
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if !cfg.autoEnabledSet {
		cfg.format.AutoEnabled = !role.Has(RoleSource)
	}

	n := &Node{
		ctx:            c,
		id:             ID(len(c.nodes)),
		name:           cfg.name,
		role:           role,
		proc:           proc,
		format:         cfg.format,
		declared:       cfg.format,
		parent:         NoNode,
		native:         cfg.native,
		requiresNative: cfg.requiresNative,
	}
	if max := role.maxInputs(); max > 0 {
		n.sources = make([]ID, max)
		for i := range n.sources {
			n.sources[i] = NoNode
		}
	}
	c.nodes = append(c.nodes, n)
	return n
}

// Release disconnects a node, uninitializes it and removes it from the
// arena. Its ID is not reused.
func (c *Context) Release(h Handle) {
	n := h.node()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.releaseLocked(n)
}

func (c *Context) releaseLocked(n *Node) {
	if n.ctx != c || n.released {
		return
	}
	c.disconnectLocked(n)
	c.uninitializeLocked(n)
	c.dropAutoPulledLocked(n)
	n.released = true
	c.nodes[n.id] = nil
	if c.root == n.id {
		c.root = NoNode
	}
}

// Root returns the output node, creating it on first call.
func (c *Context) Root() *LineOut {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rootLocked()
}

func (c *Context) rootLocked() *LineOut {
	if n := c.nodeLocked(c.root); n != nil {
		return n.proc.(*LineOut)
	}
	out := newLineOutLocked(c)
	c.root = out.id
	return out
}

// Chain connects each node to the next, e.g. Chain(gen, gain, ctx.Root()).
func (c *Context) Chain(nodes ...Handle) error {
	for i := 0; i+1 < len(nodes); i++ {
		if _, err := nodes[i].node().Connect(nodes[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// Start initializes the graph reachable from the root and from auto-pulled
// nodes, starts every auto-enabled node sources-first and finally starts the
// device. Calling Start on a started context does nothing.
func (c *Context) Start() error {
	c.mu.Lock()
	wasEnabled := c.enabled
	err := c.startLocked()
	c.mu.Unlock()
	if err != nil || wasEnabled || c.dev == nil {
		return err
	}
	if err := c.dev.Start(); err != nil {
		c.Stop()
		return fmt.Errorf("starting device: %w", err)
	}
	return nil
}

// Stop stops every auto-enabled node and then the device. Calling Stop on a
// stopped context does nothing.
func (c *Context) Stop() {
	c.mu.Lock()
	wasEnabled := c.enabled
	c.stopLocked()
	c.mu.Unlock()
	if wasEnabled && c.dev != nil {
		if err := c.dev.Stop(); err != nil {
			c.log.WithError(err).WithField("component", "context").Warn("stopping device")
		}
	}
}

// SetEnabled calls Start or Stop.
func (c *Context) SetEnabled(enabled bool) error {
	if enabled {
		return c.Start()
	}
	c.Stop()
	return nil
}

// InitializeAll initializes every node reachable from the root or an
// auto-pulled node.
func (c *Context) InitializeAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initializeAllLocked()
}

// UninitializeAll stops and uninitializes every node.
func (c *Context) UninitializeAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.uninitializeAllLocked()
}

// Close stops the context and detaches it from its device.
func (c *Context) Close() error {
	c.Stop()
	c.mu.Lock()
	c.uninitializeAllLocked()
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if c.dev != nil {
		c.dev.SetRenderCallback(nil)
	}
	return nil
}

// ParamsWillChange implements device.Listener: it remembers whether the
// context was running, stops it and tears down every node.
func (c *Context) ParamsWillChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wasEnabled = c.enabled
	c.wasRunning = c.wasRunning[:0]
	for _, n := range c.nodes {
		if n != nil && n.enabled && !n.format.AutoEnabled {
			c.wasRunning = append(c.wasRunning, n.id)
		}
	}
	c.stopLocked()
	c.uninitializeAllLocked()
	c.log.WithFields(logrus.Fields{
		"component":   "context",
		"was_enabled": c.wasEnabled,
	}).Info("device parameters will change")
}

// ParamsDidChange implements device.Listener: it adopts the new device
// format, re-initializes the graph and restores the running state of the
// context and of every node that was running.
func (c *Context) ParamsDidChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.dev != nil {
		c.adoptDescriptor(c.dev.Descriptor())
	}

	entry := c.log.WithFields(logrus.Fields{
		"component":        "context",
		"sample_rate":      c.SampleRate(),
		"frames_per_block": c.FramesPerBlock(),
	})
	if err := c.initializeAllLocked(); err != nil {
		entry.WithError(err).Error("re-initializing graph after device change")
		return
	}
	if c.wasEnabled {
		if err := c.startLocked(); err != nil {
			entry.WithError(err).Error("restarting context after device change")
			return
		}
	}
	for _, id := range c.wasRunning {
		if n := c.nodeLocked(id); n != nil && n.initialized {
			if err := c.startNodeLocked(n); err != nil {
				entry.WithError(err).WithField("node", n.String()).Warn("restarting node after device change")
			}
		}
	}
	c.wasRunning = c.wasRunning[:0]
	entry.Info("device parameters did change")
}

func (c *Context) adoptDescriptor(desc device.Descriptor) {
	c.setSampleRate(desc.SampleRate)
	c.framesPerBlock.Store(int64(desc.FramesPerBlock))
}

func (c *Context) setSampleRate(sr float64) {
	c.sampleRate.Store(math.Float64bits(sr))
}

func (c *Context) rootChannels() int {
	if c.outputChannels > 0 {
		return c.outputChannels
	}
	if c.dev != nil {
		if ch := c.dev.Descriptor().NumOutputChannels; ch > 0 {
			return min(ch, DefaultOutputChannels)
		}
	}
	return DefaultOutputChannels
}

func (c *Context) nodeLocked(id ID) *Node {
	if id < 0 || int(id) >= len(c.nodes) {
		return nil
	}
	return c.nodes[id]
}
