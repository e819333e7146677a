package graph

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-audiograph/dsp/core"
)

type adaptStep int

const (
	// adaptNone links source to destination directly.
	adaptNone adaptStep = iota
	// adaptExisting routes through an adapter the source already feeds.
	adaptExisting
	// adaptSplice moves an adapter found further downstream directly behind
	// the source.
	adaptSplice
	// adaptNew inserts a freshly built adapter.
	adaptNew
)

type connectPlan struct {
	step    adaptStep
	rule    AdapterRule
	adapter *Node
}

// connect links src into dest, inserting an adapter when dest requires a
// native source. Adapters are built between two critical sections so that
// rule constructors may use the ordinary locking API.
func (c *Context) connect(src, dest *Node, bus int) error {
	if src.ctx != c || dest.ctx != c {
		return fmt.Errorf("%w: %s -> %s", ErrForeignNode, src, dest)
	}

	c.mu.Lock()
	plan, err := c.planLocked(src, dest)
	c.mu.Unlock()
	if err != nil {
		return err
	}

	var spare *Node
	if plan.step == adaptNew {
		spare, err = plan.rule.New(c, src)
		if err != nil {
			return fmt.Errorf("building %q adapter for %s: %w", plan.rule.Key, src, err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if spare != nil {
		spare.adapterFor = plan.rule.Key
	}
	plan, err = c.planLocked(src, dest)
	if err == nil {
		err = c.applyLocked(plan, src, dest, bus, &spare)
	}
	if spare != nil {
		c.releaseLocked(spare)
	}
	return err
}

func (c *Context) planLocked(src, dest *Node) (connectPlan, error) {
	if src.released || dest.released {
		return connectPlan{}, fmt.Errorf("%w: %s -> %s", ErrForeignNode, src, dest)
	}
	key := dest.requiresNative
	if key == "" || src.native == key {
		return connectPlan{step: adaptNone}, nil
	}
	// The chain is already hosted by an adapter further up.
	if c.findUpstreamLocked(src, func(n *Node) bool { return n.adapterFor == key }) != nil {
		return connectPlan{step: adaptNone}, nil
	}

	rule, ok := c.rules.Lookup(key)
	if !ok {
		return connectPlan{}, fmt.Errorf("%w: no adapter rule for native key %q (%s -> %s)",
			core.ErrConfiguration, key, src, dest)
	}
	for _, consumer := range c.consumersLocked(src.id) {
		if consumer.adapterFor == key {
			return connectPlan{step: adaptExisting, rule: rule, adapter: consumer}, nil
		}
	}
	if a := c.findDownstreamAdapterLocked(src, key); a != nil {
		return connectPlan{step: adaptSplice, rule: rule, adapter: a}, nil
	}
	if native := c.findDownstreamLocked(src, key); native != nil {
		return connectPlan{}, fmt.Errorf("%w: generic %s already feeds native %s without an adapter",
			core.ErrConfiguration, src, native)
	}
	if rule.Accepts != nil && !rule.Accepts(src) {
		return connectPlan{}, fmt.Errorf("%w: %q adapter does not accept %s",
			core.ErrConfiguration, key, src)
	}
	return connectPlan{step: adaptNew, rule: rule}, nil
}

func (c *Context) applyLocked(plan connectPlan, src, dest *Node, bus int, spare **Node) error {
	switch plan.step {
	case adaptExisting:
		return c.linkLocked(plan.adapter, dest, bus)
	case adaptSplice:
		if err := c.spliceLocked(plan.adapter, src); err != nil {
			return err
		}
		return c.linkLocked(plan.adapter, dest, bus)
	case adaptNew:
		a := *spare
		if a == nil {
			return fmt.Errorf("%w: graph changed while connecting %s -> %s", core.ErrState, src, dest)
		}
		if src.format.IsComplete() && a.format.ChannelMode != ChannelsStrict {
			a.format.NumChannels = src.format.NumChannels
		}
		if err := c.linkLocked(src, a, 0); err != nil {
			return err
		}
		if err := c.linkLocked(a, dest, bus); err != nil {
			c.disconnectLocked(a)
			return err
		}
		*spare = nil
		c.log.WithFields(logrus.Fields{
			"component": "graph",
			"adapter":   a.String(),
			"source":    src.String(),
			"dest":      dest.String(),
			"native":    plan.rule.Key,
		}).Info("inserted adapter")
		return nil
	default:
		return c.linkLocked(src, dest, bus)
	}
}

// linkLocked stores src on dest's bus. A negative bus picks the first free
// mixer bus, or bus 0 for other nodes.
func (c *Context) linkLocked(src, dest *Node, bus int) error {
	max := dest.role.maxInputs()
	if max == 0 {
		return fmt.Errorf("%w: %s has no inputs", core.ErrConfiguration, dest)
	}
	if bus < 0 {
		bus = c.freeBusLocked(dest)
	}
	growable := max < 0
	if bus > len(dest.sources) || (bus == len(dest.sources) && !growable) {
		return fmt.Errorf("%w: bus %d of %s is out of range (inputs: %d)",
			core.ErrConfiguration, bus, dest, len(dest.sources))
	}
	if bus < len(dest.sources) && dest.sources[bus] != NoNode {
		if dest.sources[bus] == src.id {
			return nil
		}
		return fmt.Errorf("%w: bus %d of %s holds node %d", ErrBusOccupied, bus, dest, dest.sources[bus])
	}
	if src == dest || c.findUpstreamLocked(src, func(n *Node) bool { return n == dest }) != nil {
		return fmt.Errorf("%w: %s -> %s", ErrCycle, src, dest)
	}
	if err := checkStrict(src, dest); err != nil {
		return err
	}

	states := c.snapshotLocked(src, dest)
	appended := bus == len(dest.sources)
	if appended {
		dest.sources = append(dest.sources, NoNode)
	}
	dest.sources[bus] = src.id
	prevParent := src.parent
	src.parent = dest.id
	undo := func() {
		c.restoreLocked(states)
		dest.sources[bus] = NoNode
		if appended {
			dest.sources = dest.sources[:bus]
		}
		src.parent = prevParent
	}

	c.resolveLocked(src)
	c.resolveLocked(dest)
	if err := checkStrict(src, dest); err != nil {
		undo()
		return err
	}

	if dest.initialized {
		if err := c.initializeTreeLocked(src, map[ID]bool{}); err != nil {
			undo()
			return err
		}
		if c.enabled {
			if err := c.startTreeLocked(src, map[ID]bool{}); err != nil {
				undo()
				return err
			}
		}
	}

	c.log.WithFields(logrus.Fields{
		"component": "graph",
		"source":    src.String(),
		"dest":      dest.String(),
		"bus":       bus,
	}).Debug("connected")
	return nil
}

// nodeState is the part of a node a failed link may have changed.
type nodeState struct {
	n           *Node
	format      Format
	initialized bool
	enabled     bool
}

// snapshotLocked records n, its source tree and extra.
func (c *Context) snapshotLocked(n *Node, extra ...*Node) []nodeState {
	nodes := append([]*Node{n}, extra...)
	c.findUpstreamLocked(n, func(up *Node) bool {
		nodes = append(nodes, up)
		return false
	})
	states := make([]nodeState, len(nodes))
	for i, m := range nodes {
		states[i] = nodeState{n: m, format: m.format, initialized: m.initialized, enabled: m.enabled}
	}
	return states
}

// restoreLocked stops and uninitializes nodes that were started or
// initialized after the snapshot and puts their formats back.
func (c *Context) restoreLocked(states []nodeState) {
	for _, st := range states {
		if st.n.enabled && !st.enabled {
			c.stopNodeLocked(st.n)
		}
	}
	for _, st := range states {
		if st.n.initialized && !st.initialized {
			c.uninitializeLocked(st.n)
		}
		st.n.format = st.format
	}
}

// spliceLocked moves adapter a, which src reaches through generic nodes,
// directly behind src. The consumers of a take a's old input instead and
// the consumers of src on the way to a read from a, so every existing path
// keeps its nodes.
func (c *Context) spliceLocked(a, src *Node) error {
	prev := c.firstSourceLocked(a)
	if prev == nil {
		return fmt.Errorf("%w: adapter %s has no input", core.ErrState, a)
	}
	var onPath []*Node
	for _, consumer := range c.consumersLocked(src.id) {
		if c.reachesLocked(consumer, a) {
			onPath = append(onPath, consumer)
		}
	}

	for _, consumer := range c.consumersLocked(a.id) {
		for bus, id := range consumer.sources {
			if id == a.id {
				consumer.sources[bus] = prev.id
			}
		}
		if prev.parent == a.id {
			prev.parent = consumer.id
		}
	}
	for bus, id := range a.sources {
		if id == prev.id {
			a.sources[bus] = src.id
		}
	}
	a.parent = NoNode
	for _, consumer := range onPath {
		for bus, id := range consumer.sources {
			if id == src.id {
				consumer.sources[bus] = a.id
			}
		}
		a.parent = consumer.id
	}
	src.parent = a.id

	c.log.WithFields(logrus.Fields{
		"component": "graph",
		"adapter":   a.String(),
		"source":    src.String(),
		"moved":     prev.String(),
	}).Info("spliced adapter")
	return nil
}

// reachesLocked reports whether target is from or lies downstream of it.
func (c *Context) reachesLocked(from, target *Node) bool {
	seen := map[ID]bool{from.id: true}
	queue := []*Node{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == target {
			return true
		}
		for _, consumer := range c.consumersLocked(cur.id) {
			if !seen[consumer.id] {
				seen[consumer.id] = true
				queue = append(queue, consumer)
			}
		}
	}
	return false
}

func (c *Context) freeBusLocked(dest *Node) int {
	if !dest.role.Has(RoleMixer) {
		return 0
	}
	for i, id := range dest.sources {
		if id == NoNode {
			return i
		}
	}
	return len(dest.sources)
}

func checkStrict(src, dest *Node) error {
	if dest.format.ChannelMode != ChannelsStrict || !src.format.IsComplete() {
		return nil
	}
	if src.format.NumChannels != dest.format.NumChannels {
		return fmt.Errorf("%w: %s takes %d channels, %s has %d",
			core.ErrConfiguration, dest, dest.format.NumChannels, src, src.format.NumChannels)
	}
	return nil
}

func (c *Context) clearSourceLocked(n *Node, bus int) {
	old := c.nodeLocked(n.sources[bus])
	n.sources[bus] = NoNode
	if old == nil || old.parent != n.id {
		return
	}
	old.parent = NoNode
	if consumers := c.consumersLocked(old.id); len(consumers) > 0 {
		old.parent = consumers[len(consumers)-1].id
	}
}

func (c *Context) disconnectLocked(n *Node) {
	for _, consumer := range c.consumersLocked(n.id) {
		for bus, id := range consumer.sources {
			if id == n.id {
				consumer.sources[bus] = NoNode
			}
		}
	}
	n.parent = NoNode
	for bus, id := range n.sources {
		if id != NoNode {
			c.clearSourceLocked(n, bus)
		}
	}
}

// consumersLocked returns every node that has id on one of its busses, in
// arena order.
func (c *Context) consumersLocked(id ID) []*Node {
	var out []*Node
	for _, n := range c.nodes {
		if n == nil {
			continue
		}
		for _, s := range n.sources {
			if s == id {
				out = append(out, n)
				break
			}
		}
	}
	return out
}

// findUpstreamLocked searches n's source tree, excluding n, depth first.
func (c *Context) findUpstreamLocked(n *Node, match func(*Node) bool) *Node {
	seen := map[ID]bool{n.id: true}
	var walk func(*Node) *Node
	walk = func(cur *Node) *Node {
		for _, id := range cur.sources {
			src := c.nodeLocked(id)
			if src == nil || seen[id] {
				continue
			}
			seen[id] = true
			if match(src) {
				return src
			}
			if found := walk(src); found != nil {
				return found
			}
		}
		return nil
	}
	return walk(n)
}

// findDownstreamAdapterLocked returns an adapter for key that n reaches
// through generic nodes only.
func (c *Context) findDownstreamAdapterLocked(n *Node, key string) *Node {
	seen := map[ID]bool{n.id: true}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, consumer := range c.consumersLocked(cur.id) {
			if seen[consumer.id] {
				continue
			}
			seen[consumer.id] = true
			if consumer.adapterFor == key {
				return consumer
			}
			if consumer.native == key {
				continue
			}
			queue = append(queue, consumer)
		}
	}
	return nil
}

// findDownstreamLocked returns a non-adapter node native to key that n
// reaches through generic nodes only.
func (c *Context) findDownstreamLocked(n *Node, key string) *Node {
	seen := map[ID]bool{n.id: true}
	queue := []*Node{n}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, consumer := range c.consumersLocked(cur.id) {
			if seen[consumer.id] {
				continue
			}
			seen[consumer.id] = true
			if consumer.adapterFor == key {
				continue
			}
			if consumer.native == key {
				return consumer
			}
			queue = append(queue, consumer)
		}
	}
	return nil
}
