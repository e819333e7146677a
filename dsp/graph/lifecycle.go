package graph

import (
	"fmt"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

// resolveLocked fills in an inferred node's channel count if the graph
// already determines it. It reports whether the format is complete.
func (c *Context) resolveLocked(n *Node) bool {
	if n.role.Has(RoleOutput) && !n.initialized {
		n.format.NumChannels = c.rootChannels()
	}
	if n.format.IsComplete() {
		return true
	}
	if ch := c.inferChannelsLocked(n); ch > 0 {
		n.format.NumChannels = ch
		return true
	}
	return false
}

// inferChannelsLocked walks the consumer chain first, then the chain of
// first sources, and returns the first resolved channel count.
func (c *Context) inferChannelsLocked(n *Node) int {
	limit := len(c.nodes)
	p := c.nodeLocked(n.parent)
	for hops := 0; p != nil && hops < limit; hops++ {
		if p.format.IsComplete() {
			return p.format.NumChannels
		}
		p = c.nodeLocked(p.parent)
	}
	s := c.firstSourceLocked(n)
	for hops := 0; s != nil && hops < limit; hops++ {
		if s.format.IsComplete() {
			return s.format.NumChannels
		}
		s = c.firstSourceLocked(s)
	}
	return 0
}

func (c *Context) firstSourceLocked(n *Node) *Node {
	for _, id := range n.sources {
		if src := c.nodeLocked(id); src != nil {
			return src
		}
	}
	return nil
}

func (c *Context) initializeLocked(n *Node) error {
	if n.released {
		return fmt.Errorf("%w: %s was released", ErrForeignNode, n)
	}
	if n.initialized {
		return nil
	}
	if !c.resolveLocked(n) {
		return fmt.Errorf("%w: cannot resolve channel count of %s", core.ErrFormat, n)
	}
	for _, id := range n.sources {
		if src := c.nodeLocked(id); src != nil {
			if err := checkStrict(src, n); err != nil {
				return err
			}
		}
	}

	fpb := c.FramesPerBlock()
	n.buf = c.pool.Get(fpb, n.format.NumChannels)
	for _, p := range n.params {
		p.Bind(c, &c.mu, fpb)
	}
	if h, ok := n.proc.(Initializer); ok {
		if err := h.OnInitialize(); err != nil {
			c.pool.Put(n.buf)
			n.buf = nil
			return fmt.Errorf("initializing %s: %w", n, err)
		}
	}
	n.initialized = true

	c.log.WithFields(logrus.Fields{
		"component":   "graph",
		"node":        n.String(),
		"channels":    n.format.NumChannels,
		"pool_allocs": c.pool.Stats().Allocs,
	}).Debug("node initialized")
	return nil
}

// initializeTreeLocked initializes n's sources before n.
func (c *Context) initializeTreeLocked(n *Node, seen map[ID]bool) error {
	if seen[n.id] {
		return nil
	}
	seen[n.id] = true
	// Resolve before descending so inferred sources can see this node.
	c.resolveLocked(n)
	for _, id := range n.sources {
		if src := c.nodeLocked(id); src != nil {
			if err := c.initializeTreeLocked(src, seen); err != nil {
				return err
			}
		}
	}
	return c.initializeLocked(n)
}

func (c *Context) initializeAllLocked() error {
	seen := map[ID]bool{}
	if err := c.initializeTreeLocked(c.rootLocked().node(), seen); err != nil {
		return err
	}
	for _, id := range c.autoPulled {
		if n := c.nodeLocked(id); n != nil {
			if err := c.initializeTreeLocked(n, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Context) uninitializeLocked(n *Node) {
	if !n.initialized {
		return
	}
	c.stopNodeLocked(n)
	if h, ok := n.proc.(Uninitializer); ok {
		h.OnUninitialize()
	}
	c.pool.Put(n.buf)
	n.buf = nil
	n.initialized = false
	if n.declared.ChannelMode == ChannelsInferred {
		n.format.NumChannels = 0
	}
}

func (c *Context) uninitializeAllLocked() {
	for _, n := range c.nodes {
		if n != nil {
			c.uninitializeLocked(n)
		}
	}
}

func (c *Context) startNodeLocked(n *Node) error {
	if n.released {
		return fmt.Errorf("%w: %s was released", ErrForeignNode, n)
	}
	if !n.initialized {
		return fmt.Errorf("%w: %s is not initialized", core.ErrState, n)
	}
	if n.enabled {
		return nil
	}
	if h, ok := n.proc.(Starter); ok {
		if err := h.OnStart(); err != nil {
			return fmt.Errorf("starting %s: %w", n, err)
		}
	}
	n.enabled = true
	return nil
}

func (c *Context) stopNodeLocked(n *Node) {
	if !n.enabled {
		return
	}
	n.enabled = false
	if h, ok := n.proc.(Stopper); ok {
		h.OnStop()
	}
}

// startTreeLocked starts the auto-enabled nodes of n's tree, sources first.
func (c *Context) startTreeLocked(n *Node, seen map[ID]bool) error {
	if seen[n.id] {
		return nil
	}
	seen[n.id] = true
	for _, id := range n.sources {
		if src := c.nodeLocked(id); src != nil {
			if err := c.startTreeLocked(src, seen); err != nil {
				return err
			}
		}
	}
	if !n.format.AutoEnabled {
		return nil
	}
	return c.startNodeLocked(n)
}

func (c *Context) stopTreeLocked(n *Node, seen map[ID]bool) {
	if seen[n.id] {
		return
	}
	seen[n.id] = true
	for _, id := range n.sources {
		if src := c.nodeLocked(id); src != nil {
			c.stopTreeLocked(src, seen)
		}
	}
	if n.format.AutoEnabled {
		c.stopNodeLocked(n)
	}
}

func (c *Context) startLocked() error {
	if c.enabled {
		return nil
	}
	if err := c.initializeAllLocked(); err != nil {
		return err
	}
	seen := map[ID]bool{}
	if err := c.startTreeLocked(c.rootLocked().node(), seen); err != nil {
		return err
	}
	for _, id := range c.autoPulled {
		if n := c.nodeLocked(id); n != nil {
			if err := c.startTreeLocked(n, seen); err != nil {
				return err
			}
		}
	}
	c.enabled = true
	c.log.WithFields(logrus.Fields{
		"component": "context",
		"nodes":     len(seen),
	}).Info("context started")
	return nil
}

func (c *Context) stopLocked() {
	if !c.enabled {
		return
	}
	c.enabled = false
	seen := map[ID]bool{}
	if root := c.nodeLocked(c.root); root != nil {
		c.stopTreeLocked(root, seen)
	}
	for _, id := range c.autoPulled {
		if n := c.nodeLocked(id); n != nil {
			c.stopTreeLocked(n, seen)
		}
	}
	c.log.WithField("component", "context").Info("context stopped")
}

func (c *Context) dropAutoPulledLocked(n *Node) {
	n.autoPulled = false
	c.autoPulled = slices.DeleteFunc(c.autoPulled, func(id ID) bool { return id == n.id })
}

func (c *Context) setAutoPulledLocked(n *Node, pulled bool) error {
	if n.released {
		return fmt.Errorf("%w: %s was released", ErrForeignNode, n)
	}
	if n.autoPulled == pulled {
		return nil
	}
	if !pulled {
		c.dropAutoPulledLocked(n)
		return nil
	}
	if c.enabled {
		if err := c.initializeTreeLocked(n, map[ID]bool{}); err != nil {
			return err
		}
		if err := c.startTreeLocked(n, map[ID]bool{}); err != nil {
			return err
		}
	}
	n.autoPulled = true
	c.autoPulled = append(c.autoPulled, n.id)
	return nil
}
