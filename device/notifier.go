package device

import "sync"

// Notifier fans change notifications out to subscribed listeners. Backends
// embed it to implement Subscribe.
type Notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]Listener
}

// Subscribe registers l and returns a function that removes it.
func (n *Notifier) Subscribe(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]Listener)
	}
	id := n.next
	n.next++
	n.listeners[id] = l

	var once sync.Once
	return func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			delete(n.listeners, id)
		})
	}
}

// NotifyWillChange calls ParamsWillChange on every listener in subscription
// order. Listeners run without the notifier lock held.
func (n *Notifier) NotifyWillChange() {
	for _, l := range n.snapshot() {
		l.ParamsWillChange()
	}
}

// NotifyDidChange calls ParamsDidChange on every listener.
func (n *Notifier) NotifyDidChange() {
	for _, l := range n.snapshot() {
		l.ParamsDidChange()
	}
}

// Change runs fn between NotifyWillChange and NotifyDidChange. Listeners
// see the did-change call whether or not fn fails.
func (n *Notifier) Change(fn func() error) error {
	n.NotifyWillChange()
	defer n.NotifyDidChange()
	return fn()
}

// NumListeners returns the number of subscribed listeners.
func (n *Notifier) NumListeners() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.listeners)
}

func (n *Notifier) snapshot() []Listener {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Listener, 0, len(n.listeners))
	for id := 0; id < n.next; id++ {
		if l, ok := n.listeners[id]; ok {
			out = append(out, l)
		}
	}
	return out
}
